package model

import (
	"time"
)

// RecipientAll 广播收件人标记，收件箱查询时做读侧过滤，不做逐用户写扩散
const RecipientAll = "all"

// Message 站内信表
// 由管理员广播或系统（注册欢迎信）创建；
// 用户"清空收件箱"只删除发给自己的私信，广播通过
// users.inbox_cleared_at 水位线在读侧隐藏。
type Message struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"message_no"`
	Recipient string    `gorm:"type:varchar(64);index;not null" json:"recipient"` // "all" 或具体 UID
	Subject   string    `gorm:"type:varchar(256);not null" json:"subject"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
