package repository

import (
	"context"
	"errors"

	"boostpanel/internal/model"

	"gorm.io/gorm"
)

var (
	ErrFundRequestNotFound = errors.New("充值申请不存在")
	ErrFundStatusInvalid   = errors.New("充值申请状态不合法，不允许该转移")
)

type FundRequestRepository struct {
	db *gorm.DB
}

func NewFundRequestRepository(db *gorm.DB) *FundRequestRepository {
	return &FundRequestRepository{db: db}
}

func (r *FundRequestRepository) Create(ctx context.Context, tx *gorm.DB, req *model.FundRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(req).Error
}

func (r *FundRequestRepository) GetByRequestNo(ctx context.Context, requestNo string) (*model.FundRequest, error) {
	var req model.FundRequest
	err := r.db.WithContext(ctx).Where("request_no = ?", requestNo).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFundRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

func (r *FundRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*model.FundRequest, error) {
	var req model.FundRequest
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// UpdateStatus 受保护的状态转移，批准时一并写入批准金额。
// 与订单同理，WHERE 带前置状态保证余额效果至多生效一次。
func (r *FundRequestRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, requestNo string, fromStatus, toStatus string, approvedAmount *int64) error {
	if !model.CanFundTransitionTo(fromStatus, toStatus) {
		return ErrFundStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	if toStatus == model.FundStatusApproved && approvedAmount != nil {
		updates["approved_amount"] = *approvedAmount
	}

	result := tx.WithContext(ctx).
		Model(&model.FundRequest{}).
		Where("request_no = ? AND status = ?", requestNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrFundStatusInvalid
	}

	return nil
}

func (r *FundRequestRepository) ListByUserUID(ctx context.Context, uid string) ([]*model.FundRequest, error) {
	var reqs []*model.FundRequest
	err := r.db.WithContext(ctx).
		Where("user_uid = ?", uid).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *FundRequestRepository) ListAll(ctx context.Context, page, pageSize int) ([]*model.FundRequest, int64, error) {
	var reqs []*model.FundRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&model.FundRequest{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&reqs).Error

	return reqs, total, err
}
