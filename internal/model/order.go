package model

import (
	"time"
)

const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusDeclined  = "Declined"
)

// ValidOrderTransitions 订单状态机
// Pending 是唯一的非终态；Completed / Declined 之后不允许任何转移，
// 余额效果（下单扣款、拒绝退款）都以"前一个状态"为准，保证至多生效一次。
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending: {OrderStatusCompleted, OrderStatusDeclined},
}

func CanOrderTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidOrderTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

const (
	ServiceFollowers = "followers"
	ServiceLikes     = "likes"
	ServiceComments  = "comments"
	ServiceViews     = "views"
)

// ServiceMinQuantity 各服务的最小下单量（同时是数量步长）
var ServiceMinQuantity = map[string]int64{
	ServiceFollowers: 10,
	ServiceLikes:     100,
	ServiceComments:  5,
	ServiceViews:     1000,
}

func IsValidService(service string) bool {
	_, ok := ServiceMinQuantity[service]
	return ok
}

// Order 服务订单表
// 下单即预留资金（从主余额扣减 Price），管理员拒绝时全额退回，
// 完成时不再发生任何余额变动。
type Order struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，客户端生成
	UserUID   string    `gorm:"type:varchar(64);index;not null" json:"user_uid"`
	Service   string    `gorm:"type:varchar(32);index;not null" json:"service"`
	Link      string    `gorm:"type:varchar(512);not null" json:"link"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	Price     int64     `gorm:"not null" json:"price"` // paise
	Status    string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
