package model

import (
	"time"

	"gorm.io/gorm"
)

// SaleStat 按商品聚合的销售统计，由 Kafka 消费者异步写入。
// 只做展示用途，不参与库存判定。
type SaleStat struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ProductID     uint  `gorm:"not null;uniqueIndex" json:"product_id"`
	TotalOrders   int64 `gorm:"not null;default:0" json:"total_orders"`
	TotalEntries  int64 `gorm:"not null;default:0" json:"total_entries"`
	TotalAmount   int64 `gorm:"not null;default:0" json:"total_amount"` // 分
	FailedDeliver int64 `gorm:"not null;default:0" json:"failed_deliver"`
}

func (SaleStat) TableName() string { return "sale_stats" }

// SaleEvent 已处理的交付事件，幂等去重用（event_id 唯一）。
type SaleEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID   string `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	OrderNo   string `gorm:"size:64;index;not null" json:"order_no"`
	ProductID uint   `gorm:"not null;index" json:"product_id"`
}

func (SaleEvent) TableName() string { return "sale_events" }
