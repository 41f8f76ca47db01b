package model

import (
	"time"

	"gorm.io/gorm"
)

// Product 数字商品：卖家上传的“库存行”按条出售。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `gorm:"size:128;not null" json:"name"`
	SellerID uint   `gorm:"not null;index" json:"seller_id"`
	Price    int64  `gorm:"not null" json:"price"` // 单位：分

	// StockQuantity / AvailableQuantity 任何公开操作后必须一致，
	// 且等于权威数据文件中的非空行数。只通过 stock.Ledger 写入。
	StockQuantity       int64 `gorm:"not null;default:0" json:"stock_quantity"`
	AvailableQuantity   int64 `gorm:"not null;default:0" json:"available_quantity"`
	SoldCount           int64 `gorm:"not null;default:0" json:"sold_count"`
	IsQuantityValidated bool  `gorm:"not null;default:false" json:"is_quantity_validated"`

	Files       []StockFile      `gorm:"foreignKey:ProductID" json:"files,omitempty"`
	ManualEntry *ManualEntryInfo `gorm:"foreignKey:ProductID" json:"manual_entry,omitempty"`
}

func (Product) TableName() string { return "products" }

// AuthoritativeFile 返回被标记为权威的数据文件；分配只从该文件切分。
// 显式打标而非依赖 files[0] 的位置约定。
func (p *Product) AuthoritativeFile() *StockFile {
	for i := range p.Files {
		if p.Files[i].IsAuthoritative {
			return &p.Files[i]
		}
	}
	return nil
}

// StockFile 商品数据文件记录；内容本体存放在 storage.Store。
type StockFile struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductID  uint      `gorm:"not null;index" json:"product_id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	StorageKey string    `gorm:"size:255;uniqueIndex;not null" json:"storage_key"`
	EntryCount int64     `gorm:"not null;default:0" json:"entry_count"`
	Format     string    `gorm:"size:32" json:"format"`
	UploadedAt time.Time `gorm:"not null" json:"uploaded_at"`

	// IsAuthoritative 每个商品至多一个为 true。
	IsAuthoritative bool `gorm:"not null;default:false" json:"is_authoritative"`
}

func (StockFile) TableName() string { return "stock_files" }

// ManualEntryInfo 手工录入通道的元信息；内容仍写入权威数据文件。
type ManualEntryInfo struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductID    uint      `gorm:"not null;uniqueIndex" json:"product_id"`
	Format       string    `gorm:"size:32;not null" json:"format"`
	EntryCount   int64     `gorm:"not null;default:0" json:"entry_count"`
	TotalUploads int       `gorm:"not null;default:0" json:"total_uploads"`
	LastUpdated  time.Time `gorm:"not null" json:"last_updated"`
}

func (ManualEntryInfo) TableName() string { return "manual_entries" }
