package model

import (
	"time"
)

const (
	TransactionTypeReserve          = "RESERVE"           // 下单预留（扣主余额）
	TransactionTypeRefund           = "REFUND"            // 订单被拒绝，退回预留
	TransactionTypeDeposit          = "DEPOSIT"           // 充值申请批准入账
	TransactionTypeCommission       = "COMMISSION"        // 推荐佣金（入推荐池）
	TransactionTypeReferralWithdraw = "REFERRAL_WITHDRAW" // 推荐池转入主余额
)

// WalletTransaction 钱包流水表
// 每一笔余额变动都要落一条流水，对账的唯一依据：
// 1. 只追加，不修改，不删除
// 2. 记录变动前后余额，便于校验一致性（见 LedgerAuditJob）
// 3. RefNo 关联订单号 / 充值单号，便于追溯
//
// 注意 COMMISSION 和 REFERRAL_WITHDRAW 记的是推荐池的变动，
// BalanceBefore/After 对应 referral_balance；其余类型对应主余额。
type WalletTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserUID       string    `gorm:"type:varchar(64);index;not null" json:"user_uid"`
	RefNo         string    `gorm:"type:varchar(64);index;not null" json:"ref_no"`
	Amount        int64     `gorm:"not null" json:"amount"` // paise，正数入账，负数出账
	Type          string    `gorm:"type:varchar(32);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
