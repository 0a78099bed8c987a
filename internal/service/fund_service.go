package service

import (
	"context"
	"encoding/json"
	"errors"
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

var ErrInvalidApprovedAmount = errors.New("批准金额必须大于0")

type FundService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	fundRepo        *repository.FundRequestRepository
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	historyRepo     *repository.HistoryRepository
	outboxRepo      *repository.OutboxRepository
}

func NewFundService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *FundService {
	return &FundService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		fundRepo:        repository.NewFundRequestRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		historyRepo:     repository.NewHistoryRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type CreateFundRequestRequest struct {
	RequestID     string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserUID       string `json:"user_uid" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"` // paise，用户申报金额
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id" binding:"required"` // 外部支付渠道流水号
}

// CreateFundRequest 提交充值申请
// 创建时没有任何余额效果，入账只发生在管理员批准那一刻
func (s *FundService) CreateFundRequest(ctx context.Context, req *CreateFundRequestRequest) (*model.FundRequest, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: 申报金额必须大于0", ErrValidation)
	}
	if req.TransactionID == "" {
		return nil, fmt.Errorf("%w: 缺少支付流水号", ErrValidation)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentMethodUPI
	}

	// 幂等校验
	existing, err := s.fundRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询充值申请失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	user, err := s.userRepo.GetByUID(ctx, req.UserUID)
	if err != nil {
		return nil, err
	}

	fundReq := &model.FundRequest{
		RequestNo:     idgen.GenerateFundRequestNo(),
		RequestID:     req.RequestID,
		UserUID:       req.UserUID,
		ClaimedAmount: req.Amount,
		Status:        model.FundStatusPending,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.fundRepo.Create(ctx, tx, fundReq); err != nil {
			return fmt.Errorf("创建充值申请失败: %w", err)
		}

		item := &model.HistoryItem{
			Action:  model.ActionCreatedFundRequest,
			Target:  fundReq.RequestNo,
			Actor:   user.Name,
			UserUID: req.UserUID,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		return s.appendFundEvent(ctx, tx, fundReq, "created")
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[FundService] 充值申请创建: requestNo=%s, uid=%s, amount=%d",
		fundReq.RequestNo, req.UserUID, req.Amount)
	return fundReq, nil
}

// UpdateFundRequestStatus 管理员批复充值申请
//
// Approved：可选用 overrideAmount 覆盖入账金额（必须为正），
// 入账 + 推荐佣金 + 状态翻转同事务；状态保护保证入账至多一次。
// Declined：只翻状态，资金从未入账所以没有任何余额效果。
func (s *FundService) UpdateFundRequestStatus(ctx context.Context, requestNo, action string, overrideAmount *int64, operator string) (*model.FundRequest, error) {
	if action != model.FundStatusApproved && action != model.FundStatusDeclined {
		return nil, fmt.Errorf("%w: 不支持的批复动作 %s", ErrValidation, action)
	}
	if overrideAmount != nil && *overrideAmount <= 0 {
		return nil, ErrInvalidApprovedAmount
	}

	fundLock := lock.NewFundRequestLock(s.redisClient, requestNo, operator)
	if err := fundLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer fundLock.Unlock(ctx)

	fundReq, err := s.fundRepo.GetByRequestNo(ctx, requestNo)
	if err != nil {
		return nil, err
	}
	if fundReq.Status != model.FundStatusPending {
		return nil, repository.ErrFundStatusInvalid
	}

	if action == model.FundStatusApproved {
		// 入账要动钱包，按用户维度加锁，
		// 并发的余额变动不会让流水快照失真
		walletLock := lock.NewWalletLock(s.redisClient, fundReq.UserUID, requestNo)
		if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer walletLock.Unlock(ctx)
	}

	historyAction := model.ActionApprovedFund
	if action == model.FundStatusDeclined {
		historyAction = model.ActionDeclinedFund
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.fundRepo.UpdateStatus(ctx, tx, requestNo, model.FundStatusPending, action, overrideAmount); err != nil {
			return err
		}

		if action == model.FundStatusApproved {
			credit := fundReq.ClaimedAmount
			if overrideAmount != nil {
				credit = *overrideAmount
				fundReq.ApprovedAmount = overrideAmount
			}

			wallet, err := s.walletRepo.GetByUserUIDTx(ctx, tx, fundReq.UserUID)
			if err != nil {
				return err
			}
			if err := s.walletRepo.Increase(ctx, tx, fundReq.UserUID, credit); err != nil {
				return fmt.Errorf("充值入账失败: %w", err)
			}

			trans := &model.WalletTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserUID:       fundReq.UserUID,
				RefNo:         fundReq.RequestNo,
				Amount:        credit,
				Type:          model.TransactionTypeDeposit,
				BalanceBefore: wallet.Balance,
				BalanceAfter:  wallet.Balance + credit,
				Remark:        fmt.Sprintf("充值入账-%s-%s", fundReq.PaymentMethod, fundReq.TransactionID),
			}
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}

			if err := s.creditReferralCommission(ctx, tx, fundReq, credit); err != nil {
				return err
			}
		}

		item := &model.HistoryItem{
			Action:  historyAction,
			Target:  requestNo,
			Actor:   operator,
			UserUID: fundReq.UserUID,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		fundReq.Status = action
		event := "approved"
		if action == model.FundStatusDeclined {
			event = "declined"
		}
		return s.appendFundEvent(ctx, tx, fundReq, event)
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[FundService] 充值批复: requestNo=%s, action=%s, operator=%s", requestNo, action, operator)
	return fundReq, nil
}

// creditReferralCommission 推荐佣金：被推荐用户每笔批准的充值，
// 按比例提成进推荐人的独立推荐池（不是主余额）
func (s *FundService) creditReferralCommission(ctx context.Context, tx *gorm.DB, fundReq *model.FundRequest, credit int64) error {
	user, err := s.userRepo.GetByUID(ctx, fundReq.UserUID)
	if err != nil {
		return err
	}
	if user.ReferredBy == "" {
		return nil
	}

	commission := credit * s.cfg.Business.ReferralPercent / 100
	if commission <= 0 {
		return nil
	}

	referrerWallet, err := s.walletRepo.GetByUserUIDTx(ctx, tx, user.ReferredBy)
	if err != nil {
		// 推荐人钱包缺失属于数据异常，佣金失败不应拖垮整笔入账之外的事务语义，
		// 但在同一事务里我们选择整体失败，保持账目一致
		return fmt.Errorf("查询推荐人钱包失败: %w", err)
	}

	if err := s.walletRepo.CreditReferral(ctx, tx, user.ReferredBy, commission); err != nil {
		return fmt.Errorf("佣金入账失败: %w", err)
	}

	trans := &model.WalletTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserUID:       user.ReferredBy,
		RefNo:         fundReq.RequestNo,
		Amount:        commission,
		Type:          model.TransactionTypeCommission,
		BalanceBefore: referrerWallet.ReferralBalance,
		BalanceAfter:  referrerWallet.ReferralBalance + commission,
		Remark:        fmt.Sprintf("推荐佣金-来自 %s 的充值", fundReq.UserUID),
	}
	if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录佣金流水失败: %w", err)
	}

	log.Printf("[FundService] 推荐佣金入账: referrer=%s, from=%s, commission=%d",
		user.ReferredBy, fundReq.UserUID, commission)
	return nil
}

func (s *FundService) appendFundEvent(ctx context.Context, tx *gorm.DB, fundReq *model.FundRequest, event string) error {
	payload := map[string]interface{}{
		"event":          event,
		"request_no":     fundReq.RequestNo,
		"user_uid":       fundReq.UserUID,
		"claimed_amount": fundReq.ClaimedAmount,
		"credit_amount":  fundReq.CreditAmount(),
		"status":         fundReq.Status,
		"at":             time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: fundReq.RequestNo,
		Topic:      s.cfg.Kafka.Topic.FundEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入事件失败: %w", err)
	}
	return nil
}

func (s *FundService) GetFundRequest(ctx context.Context, requestNo string) (*model.FundRequest, error) {
	return s.fundRepo.GetByRequestNo(ctx, requestNo)
}

func (s *FundService) ListUserFundRequests(ctx context.Context, uid string) ([]*model.FundRequest, error) {
	return s.fundRepo.ListByUserUID(ctx, uid)
}

func (s *FundService) ListAllFundRequests(ctx context.Context, page, pageSize int) ([]*model.FundRequest, int64, error) {
	return s.fundRepo.ListAll(ctx, page, pageSize)
}
