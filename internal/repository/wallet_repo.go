package repository

import (
	"context"
	"errors"

	"boostpanel/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWalletNotFound       = errors.New("钱包不存在")
	ErrBalanceNotEnough     = errors.New("余额不足")
	ErrOptimisticLock       = errors.New("乐观锁冲突，请重试")
	ErrReferralBalanceEmpty = errors.New("推荐收益为零，无可提取金额")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, tx *gorm.DB, wallet *model.Wallet) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(wallet).Error
}

func (r *WalletRepository) GetByUserUID(ctx context.Context, uid string) (*model.Wallet, error) {
	return r.GetByUserUIDTx(ctx, nil, uid)
}

// GetByUserUIDTx 事务内读取钱包
// 流水的 BalanceBefore/After 快照必须和余额变动在同一个事务里取，
// 否则并发变动会让快照失真
func (r *WalletRepository) GetByUserUIDTx(ctx context.Context, tx *gorm.DB, uid string) (*model.Wallet, error) {
	if tx == nil {
		tx = r.db
	}
	var wallet model.Wallet
	err := tx.WithContext(ctx).Where("user_uid = ?", uid).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) ListAll(ctx context.Context) ([]*model.Wallet, error) {
	var wallets []*model.Wallet
	err := r.db.WithContext(ctx).Find(&wallets).Error
	return wallets, err
}

// Deduct 条件扣减主余额
// WHERE 里同时校验余额充足和版本号，余额不足和并发冲突都不会扣成负数
func (r *WalletRepository) Deduct(ctx context.Context, tx *gorm.DB, uid string, amount int64, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_uid = ? AND balance >= ? AND version = ?", uid, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		wallet, err := r.GetByUserUID(ctx, uid)
		if err != nil {
			return err
		}
		if wallet.Balance < amount {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 增加主余额（退款、充值入账）
func (r *WalletRepository) Increase(ctx context.Context, tx *gorm.DB, uid string, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_uid = ?", uid).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// CreditReferral 给推荐池入账佣金
func (r *WalletRepository) CreditReferral(ctx context.Context, tx *gorm.DB, uid string, amount int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_uid = ?", uid).
		Updates(map[string]interface{}{
			"referral_balance": gorm.Expr("referral_balance + ?", amount),
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// WithdrawReferral 推荐池整体转入主余额并清零，单条 UPDATE 保证原子性。
// 推荐池为零时条件不满足，RowsAffected 为 0，天然防住重复提取。
func (r *WalletRepository) WithdrawReferral(ctx context.Context, tx *gorm.DB, uid string) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_uid = ? AND referral_balance > 0", uid).
		Updates(map[string]interface{}{
			"balance":          gorm.Expr("balance + referral_balance"),
			"referral_balance": 0,
			"version":          gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByUserUID(ctx, uid); err != nil {
			return err
		}
		return ErrReferralBalanceEmpty
	}

	return nil
}
