package repository

import (
	"context"
	"time"

	"boostpanel/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, tx *gorm.DB, msg *model.Message) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// ListForUser 用户收件箱视图：发给自己的私信 + 所有广播，
// 广播在读侧按清空水位线过滤（clearedAt 之前的不再展示）
func (r *MessageRepository) ListForUser(ctx context.Context, uid string, clearedAt *time.Time) ([]*model.Message, error) {
	var messages []*model.Message
	query := r.db.WithContext(ctx).
		Where("recipient = ? OR recipient = ?", uid, model.RecipientAll)
	if clearedAt != nil {
		query = query.Where("created_at > ?", *clearedAt)
	}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Find(&messages).Error
	return messages, err
}

// DeleteDirect 删除发给该用户的私信（清空收件箱时调用，广播记录不动）
func (r *MessageRepository) DeleteDirect(ctx context.Context, tx *gorm.DB, uid string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("recipient = ?", uid).
		Delete(&model.Message{}).Error
}
