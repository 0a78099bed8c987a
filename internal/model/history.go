package model

import (
	"time"
)

// 历史动作标签（直接展示给后台，保持英文文案）
const (
	ActionUserRegistered     = "User Registered"
	ActionCreatedOrder       = "Created Order"
	ActionCompletedOrder     = "Completed Order"
	ActionDeclinedOrder      = "Declined Order"
	ActionCreatedFundRequest = "Created Fund Request"
	ActionApprovedFund       = "Approved Fund Request"
	ActionDeclinedFund       = "Declined Fund Request"
	ActionSentGlobalMessage  = "Sent Global Message"
	ActionClearedInbox       = "Cleared Inbox"
	ActionWithdrewReferral   = "Withdrew Referral Earnings"
)

const (
	ActorSystem = "System"
	ActorAdmin  = "Admin"
)

// HistoryItem 审计历史表，只追加，从不修改或删除。
// UserUID 标记记录归属的用户（用于个人资料聚合查询），
// 全局动作（如广播）UserUID 为空。
type HistoryItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Action    string    `gorm:"type:varchar(64);not null" json:"action"`
	Target    string    `gorm:"type:varchar(128);not null" json:"target"` // 目标实体标识（订单号、UID 等）
	Actor     string    `gorm:"type:varchar(128);not null" json:"actor"`  // 操作者（System / Admin / 用户名）
	UserUID   string    `gorm:"type:varchar(64);index" json:"user_uid"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (HistoryItem) TableName() string {
	return "history_items"
}
