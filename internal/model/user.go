package model

import (
	"time"

	"gorm.io/gorm"
)

// UserRole 账户角色；认证不在本服务范围内，user_id 由调用方提供。
type UserRole int

const (
	RoleBuyer  UserRole = iota // 买家
	RoleSeller                 // 卖家
	RoleAdmin                  // 平台（收取佣金）
)

// User 余额账户。购买时：买家扣全额，卖家入 90%，平台入 10% 佣金。
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name    string   `gorm:"size:128;not null" json:"name"`
	Role    UserRole `gorm:"not null;default:0" json:"role"`
	Balance int64    `gorm:"not null;default:0" json:"balance"` // 单位：分
}

func (User) TableName() string { return "users" }
