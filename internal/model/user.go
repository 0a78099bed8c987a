package model

import (
	"time"
)

// User 用户表
// UID 由外部身份服务（登录成功后）下发，引擎不管理任何凭证。
// 用户只在首次登录时由引擎创建，范围内不存在删除操作。
type User struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UID            string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"uid"`
	Name           string     `gorm:"type:varchar(128);not null" json:"name"`
	Email          string     `gorm:"type:varchar(128)" json:"email"`
	Phone          string     `gorm:"type:varchar(32)" json:"phone"`
	ReferralCode   string     `gorm:"type:varchar(32);uniqueIndex" json:"referral_code"`
	ReferredBy     string     `gorm:"type:varchar(64);index" json:"referred_by"` // 推荐人的 UID，可为空
	InboxClearedAt *time.Time `json:"inbox_cleared_at"`                          // 清空收件箱的水位线，仅隐藏广播，不删除广播记录
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
