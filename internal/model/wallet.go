package model

import (
	"time"
)

// Wallet 钱包表
// 与 User 一一对应，随用户注册原子创建，余额从 0 开始。
// Balance 是主余额，ReferralBalance 是推荐佣金独立池，
// 两者只能通过 service 层的受保护状态转移来修改。
type Wallet struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserUID         string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_uid"`
	Name            string    `gorm:"type:varchar(128)" json:"name"` // 冗余的展示名，规范名以 users 表为准
	Balance         int64     `gorm:"not null;default:0" json:"balance"`
	ReferralBalance int64     `gorm:"not null;default:0" json:"referral_balance"`
	Version         int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
