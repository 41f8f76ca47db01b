package model

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态。余额与库存在下单时同步扣减，
// 因此没有“待支付”态；交付失败不回滚订单。
type OrderStatus int

const (
	OrderCompleted OrderStatus = iota // 已完成（扣款扣库存成功）
	OrderCancelled                    // 已取消（仅管理侧使用）
)

// Order 购买订单，含交付（fulfillment）跟踪字段。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo   string      `gorm:"size:64;uniqueIndex;not null" json:"order_no"`
	BuyerID   uint        `gorm:"not null;index" json:"buyer_id"`
	SellerID  uint        `gorm:"not null;index" json:"seller_id"`
	ProductID uint        `gorm:"not null;index" json:"product_id"`
	Quantity  int64       `gorm:"not null;default:1" json:"quantity"`
	Amount    int64       `gorm:"not null" json:"amount"` // 总金额，单位分
	Status    OrderStatus `gorm:"not null;default:0" json:"status"`

	// DownloadReady=false 且订单已完成，表示交付文件生成失败，
	// 买家稍后可重试下载；资金与库存不因此回滚。
	DownloadReady    bool   `gorm:"not null;default:false" json:"download_ready"`
	DownloadFileName string `gorm:"size:255" json:"download_file_name"`
}

func (Order) TableName() string { return "orders" }
