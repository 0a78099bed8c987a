package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"boostpanel/internal/config"
	"boostpanel/internal/infrastructure/lock"
	"boostpanel/internal/model"
	"boostpanel/internal/repository"
	"boostpanel/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type ReferralService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	historyRepo     *repository.HistoryRepository
}

func NewReferralService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ReferralService {
	return &ReferralService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		historyRepo:     repository.NewHistoryRepository(db),
	}
}

// WithdrawEarnings 提取推荐收益
//
// 推荐池整体转入主余额并清零，原子完成；池子为空时拒绝。
// 落两条流水（池 -X / 主余额 +X），净和为零，对账时
// 主余额 + 推荐池 == 流水净和 的不变式保持成立。
func (s *ReferralService) WithdrawEarnings(ctx context.Context, uid string) (int64, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return 0, err
	}

	walletLock := lock.NewWalletLock(s.redisClient, uid, "referral-withdraw")
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return 0, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	wallet, err := s.walletRepo.GetByUserUID(ctx, uid)
	if err != nil {
		return 0, err
	}
	if wallet.ReferralBalance <= 0 {
		return 0, repository.ErrReferralBalanceEmpty
	}

	amount := wallet.ReferralBalance

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.walletRepo.WithdrawReferral(ctx, tx, uid); err != nil {
			return err
		}

		outTrans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserUID:       uid,
			RefNo:         uid,
			Amount:        -amount,
			Type:          model.TransactionTypeReferralWithdraw,
			BalanceBefore: wallet.ReferralBalance,
			BalanceAfter:  0,
			Remark:        "推荐池转出",
		}
		if err := s.transactionRepo.Create(ctx, tx, outTrans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		inTrans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserUID:       uid,
			RefNo:         uid,
			Amount:        amount,
			Type:          model.TransactionTypeReferralWithdraw,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance + amount,
			Remark:        "推荐收益转入主余额",
		}
		if err := s.transactionRepo.Create(ctx, tx, inTrans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		item := &model.HistoryItem{
			Action:  model.ActionWithdrewReferral,
			Target:  uid,
			Actor:   user.Name,
			UserUID: uid,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	log.Printf("[ReferralService] 推荐收益提取: uid=%s, amount=%d", uid, amount)
	return amount, nil
}

// ListReferredUsers 我推荐的用户列表
func (s *ReferralService) ListReferredUsers(ctx context.Context, uid string) ([]*model.User, error) {
	if _, err := s.userRepo.GetByUID(ctx, uid); err != nil {
		return nil, err
	}
	return s.userRepo.ListReferredBy(ctx, uid)
}
