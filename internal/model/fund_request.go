package model

import (
	"time"
)

const (
	FundStatusPending  = "Pending"
	FundStatusApproved = "Approved"
	FundStatusDeclined = "Declined"
)

// ValidFundTransitions 充值申请状态机，与订单同理只有 Pending 一个非终态
var ValidFundTransitions = map[string][]string{
	FundStatusPending: {FundStatusApproved, FundStatusDeclined},
}

func CanFundTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidFundTransitions[currentStatus]
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

const PaymentMethodUPI = "UPI"

// FundRequest 充值申请表
// 用户声称已通过外部渠道（UPI）支付了 ClaimedAmount，附上流水号等待管理员核验。
// 管理员批准时可以用 ApprovedAmount 覆盖实际入账金额，
// 两个字段都保留，不丢失用户的原始申报。
type FundRequest struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	RequestID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，客户端生成
	UserUID        string    `gorm:"type:varchar(64);index;not null" json:"user_uid"`
	ClaimedAmount  int64     `gorm:"not null" json:"claimed_amount"`  // paise，用户申报金额
	ApprovedAmount *int64    `json:"approved_amount"`                 // paise，管理员批准金额，未覆盖时为空
	Status         string    `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentMethod  string    `gorm:"type:varchar(32);not null" json:"payment_method"`
	TransactionID  string    `gorm:"type:varchar(64);not null" json:"transaction_id"` // 外部支付渠道流水号
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditAmount 实际入账金额：有批准金额用批准金额，否则用申报金额
func (f *FundRequest) CreditAmount() int64 {
	if f.ApprovedAmount != nil {
		return *f.ApprovedAmount
	}
	return f.ClaimedAmount
}

func (FundRequest) TableName() string {
	return "fund_requests"
}
