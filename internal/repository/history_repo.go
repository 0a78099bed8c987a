package repository

import (
	"context"

	"boostpanel/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository 审计历史，只有追加和查询，没有更新删除
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Create(ctx context.Context, tx *gorm.DB, item *model.HistoryItem) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (r *HistoryRepository) ListByUserUID(ctx context.Context, uid string) ([]*model.HistoryItem, error) {
	var items []*model.HistoryItem
	err := r.db.WithContext(ctx).
		Where("user_uid = ?", uid).
		Order("created_at DESC").
		Order("id DESC").
		Find(&items).Error
	return items, err
}

func (r *HistoryRepository) ListAll(ctx context.Context, page, pageSize int) ([]*model.HistoryItem, int64, error) {
	var items []*model.HistoryItem
	var total int64

	query := r.db.WithContext(ctx).Model(&model.HistoryItem{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}
