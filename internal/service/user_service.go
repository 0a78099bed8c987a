package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"boostpanel/internal/config"
	"boostpanel/internal/model"
	"boostpanel/internal/repository"
	"boostpanel/pkg/idgen"

	"gorm.io/gorm"
)

// ErrValidation 入参校验失败，handler 统一映射为参数错误
var ErrValidation = errors.New("参数校验失败")

type UserService struct {
	db              *gorm.DB
	cfg             *config.Config
	userRepo        *repository.UserRepository
	walletRepo      *repository.WalletRepository
	orderRepo       *repository.OrderRepository
	fundRepo        *repository.FundRequestRepository
	transactionRepo *repository.TransactionRepository
	historyRepo     *repository.HistoryRepository
	messageRepo     *repository.MessageRepository
}

func NewUserService(db *gorm.DB, cfg *config.Config) *UserService {
	return &UserService{
		db:              db,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		fundRepo:        repository.NewFundRequestRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		historyRepo:     repository.NewHistoryRepository(db),
		messageRepo:     repository.NewMessageRepository(db),
	}
}

// CompleteRegistrationRequest 注册信息一次性带齐，
// 不走任何临时存储旁路（手机号、推荐码都在这一个调用里）
type CompleteRegistrationRequest struct {
	UID          string
	Name         string
	Email        string
	Phone        string
	ReferralCode string
}

// CompleteRegistration 用户/钱包开户
//
// 身份服务登录成功后第一次把 UID 交给引擎时调用，原子完成：
// 用户记录、零余额钱包、注册审计、欢迎站内信。
// 按 UID 幂等：已存在时不做任何变更，直接返回现有记录。
func (s *UserService) CompleteRegistration(ctx context.Context, req *CompleteRegistrationRequest) (*model.User, error) {
	if req.UID == "" {
		return nil, fmt.Errorf("%w: uid 不能为空", ErrValidation)
	}

	existing, err := s.userRepo.GetByUID(ctx, req.UID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	name := req.Name
	if name == "" {
		uid := req.UID
		if len(uid) > 5 {
			uid = uid[:5]
		}
		name = fmt.Sprintf("User-%s", uid)
	}

	// 推荐码换推荐人 UID；推荐码无效时按无推荐处理，不阻断注册
	referredBy := ""
	if req.ReferralCode != "" {
		referrer, err := s.userRepo.GetByReferralCode(ctx, req.ReferralCode)
		if err == nil {
			referredBy = referrer.UID
		} else if !errors.Is(err, repository.ErrReferralCodeNotFound) {
			return nil, err
		} else {
			log.Printf("[UserService] 注册携带的推荐码无效: uid=%s, code=%s", req.UID, req.ReferralCode)
		}
	}

	user := &model.User{
		UID:          req.UID,
		Name:         name,
		Email:        req.Email,
		Phone:        req.Phone,
		ReferralCode: idgen.GenerateReferralCode(),
		ReferredBy:   referredBy,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return fmt.Errorf("创建用户失败: %w", err)
		}

		wallet := &model.Wallet{
			UserUID: user.UID,
			Name:    user.Name,
		}
		if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
			return fmt.Errorf("创建钱包失败: %w", err)
		}

		item := &model.HistoryItem{
			Action:  model.ActionUserRegistered,
			Target:  user.UID,
			Actor:   model.ActorSystem,
			UserUID: user.UID,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		welcome := &model.Message{
			MessageNo: idgen.GenerateMessageNo(),
			Recipient: user.UID,
			Subject:   "Welcome to BoostPanel!",
			Body: fmt.Sprintf("Hi %s, welcome aboard! We're thrilled to have you. "+
				"You can start by exploring our services or adding funds to your wallet.", user.Name),
		}
		if err := s.messageRepo.Create(ctx, tx, welcome); err != nil {
			return fmt.Errorf("写入欢迎消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[UserService] 新用户开户: uid=%s, name=%s, referredBy=%s", user.UID, user.Name, referredBy)
	return user, nil
}

// EnsureUser 普通登录路径的开户入口（没有注册表单字段时）
func (s *UserService) EnsureUser(ctx context.Context, uid, name, email string) (*model.User, error) {
	return s.CompleteRegistration(ctx, &CompleteRegistrationRequest{
		UID:   uid,
		Name:  name,
		Email: email,
	})
}

func (s *UserService) GetUser(ctx context.Context, uid string) (*model.User, error) {
	return s.userRepo.GetByUID(ctx, uid)
}

// UserData 个人资料聚合视图，每个集合都按时间倒序
type UserData struct {
	User         *model.User                `json:"user"`
	Wallet       *model.Wallet              `json:"wallet"`
	Orders       []*model.Order             `json:"orders"`
	FundRequests []*model.FundRequest       `json:"fund_requests"`
	History      []*model.HistoryItem       `json:"history"`
	Transactions []*model.WalletTransaction `json:"transactions"`
}

// GetUserData 聚合单个用户的完整档案
func (s *UserService) GetUserData(ctx context.Context, uid string) (*UserData, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByUserUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	// 展示名可能与用户记录漂移，规范名始终以 users 表为准
	wallet.Name = user.Name

	orders, err := s.orderRepo.ListAllByUserUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	fundRequests, err := s.fundRepo.ListByUserUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	history, err := s.historyRepo.ListByUserUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	transactions, _, err := s.transactionRepo.ListByUserUID(ctx, uid, 1, 100)
	if err != nil {
		return nil, err
	}

	return &UserData{
		User:         user,
		Wallet:       wallet,
		Orders:       orders,
		FundRequests: fundRequests,
		History:      history,
		Transactions: transactions,
	}, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListAll(ctx)
}

// ListHistory 后台审计历史，倒序分页
func (s *UserService) ListHistory(ctx context.Context, page, pageSize int) ([]*model.HistoryItem, int64, error) {
	return s.historyRepo.ListAll(ctx, page, pageSize)
}

// todayStart 自然日的开始，每日限额按创建时间的日期部分计算
func todayStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
