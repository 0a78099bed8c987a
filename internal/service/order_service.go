package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"boostpanel/internal/config"
	"boostpanel/internal/infrastructure/lock"
	"boostpanel/internal/model"
	"boostpanel/internal/repository"
	"boostpanel/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

type OrderService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	userRepo        *repository.UserRepository
	orderRepo       *repository.OrderRepository
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	historyRepo     *repository.HistoryRepository
	outboxRepo      *repository.OutboxRepository
	settingsRepo    *repository.SettingsRepository
}

func NewOrderService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *OrderService {
	return &OrderService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		userRepo:        repository.NewUserRepository(db),
		orderRepo:       repository.NewOrderRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		historyRepo:     repository.NewHistoryRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
		settingsRepo:    repository.NewSettingsRepository(redisClient),
	}
}

type CreateOrderRequest struct {
	RequestID string `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserUID   string `json:"user_uid" binding:"required"`
	Service   string `json:"service" binding:"required"`
	Link      string `json:"link" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
}

// Price 订单价格：每 10 个单位 PricePer10Units paise
func (s *OrderService) Price(quantity int64) int64 {
	return quantity * s.cfg.Business.PricePer10Units / 10
}

func (s *OrderService) validateCreate(req *CreateOrderRequest) error {
	if !model.IsValidService(req.Service) {
		return fmt.Errorf("%w: 未知服务类型 %s", ErrValidation, req.Service)
	}
	if !strings.HasPrefix(req.Link, "http://") && !strings.HasPrefix(req.Link, "https://") {
		return fmt.Errorf("%w: 内容链接必须是 http/https 地址", ErrValidation)
	}
	step := model.ServiceMinQuantity[req.Service]
	if req.Quantity < step {
		return fmt.Errorf("%w: %s 最小下单量为 %d", ErrValidation, req.Service, step)
	}
	if req.Quantity%step != 0 {
		return fmt.Errorf("%w: 下单量必须是 %d 的整数倍", ErrValidation, step)
	}
	return nil
}

// CreateOrder 下单（预留资金策略）
//
// 【关键点】资金在创建时一次性扣减（预留），之后：
//   - 管理员批准（Completed）：不再有任何余额变动
//   - 管理员拒绝（Declined）：全额退回，且只退一次
//
// 扣款、订单、流水、审计、事件在同一个数据库事务里落库，
// 事务外再套一把按用户维度的分布式锁，防止同一用户并发下单超扣。
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*model.Order, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	// 幂等校验
	existing, err := s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	user, err := s.userRepo.GetByUID(ctx, req.UserUID)
	if err != nil {
		return nil, err
	}

	walletLock := lock.NewWalletLock(s.redisClient, req.UserUID, req.RequestID)
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer walletLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	existing, err = s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// 每日限额（按服务、按自然日全量统计，0 表示不限）
	limits, err := s.settingsRepo.GetServiceLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取服务限额失败: %w", err)
	}
	if limit := limits[req.Service]; limit > 0 {
		count, err := s.orderRepo.CountByServiceOnDay(ctx, req.Service, todayStart(time.Now()))
		if err != nil {
			return nil, fmt.Errorf("统计当日订单失败: %w", err)
		}
		if count >= limit {
			return nil, repository.ErrDailyLimitReached
		}
	}

	price := s.Price(req.Quantity)

	wallet, err := s.walletRepo.GetByUserUID(ctx, req.UserUID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance < price {
		return nil, repository.ErrBalanceNotEnough
	}

	order := &model.Order{
		OrderNo:   idgen.GenerateOrderNo(),
		RequestID: req.RequestID,
		UserUID:   req.UserUID,
		Service:   req.Service,
		Link:      req.Link,
		Quantity:  req.Quantity,
		Price:     price,
		Status:    model.OrderStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		if err := s.walletRepo.Deduct(ctx, tx, req.UserUID, price, wallet.Version); err != nil {
			return err
		}

		trans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserUID:       req.UserUID,
			RefNo:         order.OrderNo,
			Amount:        -price,
			Type:          model.TransactionTypeReserve,
			BalanceBefore: wallet.Balance,
			BalanceAfter:  wallet.Balance - price,
			Remark:        fmt.Sprintf("下单预留-%s-%d", req.Service, req.Quantity),
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		item := &model.HistoryItem{
			Action:  model.ActionCreatedOrder,
			Target:  order.OrderNo,
			Actor:   user.Name,
			UserUID: req.UserUID,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		if err := s.appendOrderEvent(ctx, tx, order, "created"); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 下单成功: orderNo=%s, uid=%s, service=%s, price=%d",
		order.OrderNo, req.UserUID, req.Service, price)
	return order, nil
}

// UpdateOrderStatus 管理员批复订单
//
// Completed：受保护转移，无余额效果（资金已在下单时预留）
// Declined：受保护转移 + 全额退款，退款与状态翻转同事务，
// 状态保护保证重复操作（或并发的第二个管理员会话）不会二次退款。
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderNo, action, operator string) (*model.Order, error) {
	if action != model.OrderStatusCompleted && action != model.OrderStatusDeclined {
		return nil, fmt.Errorf("%w: 不支持的批复动作 %s", ErrValidation, action)
	}

	orderLock := lock.NewOrderLock(s.redisClient, orderNo, operator)
	if err := orderLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer orderLock.Unlock(ctx)

	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return nil, repository.ErrOrderStatusInvalid
	}

	historyAction := model.ActionCompletedOrder
	if action == model.OrderStatusDeclined {
		historyAction = model.ActionDeclinedOrder

		// 退款要动钱包，和下单一样按用户维度加锁，
		// 避免并发的余额变动让流水快照失真
		walletLock := lock.NewWalletLock(s.redisClient, order.UserUID, orderNo)
		if err := walletLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer walletLock.Unlock(ctx)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.UpdateStatus(ctx, tx, orderNo, model.OrderStatusPending, action); err != nil {
			return err
		}

		if action == model.OrderStatusDeclined {
			wallet, err := s.walletRepo.GetByUserUIDTx(ctx, tx, order.UserUID)
			if err != nil {
				return err
			}
			if err := s.walletRepo.Increase(ctx, tx, order.UserUID, order.Price); err != nil {
				return fmt.Errorf("退款失败: %w", err)
			}
			trans := &model.WalletTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				UserUID:       order.UserUID,
				RefNo:         order.OrderNo,
				Amount:        order.Price,
				Type:          model.TransactionTypeRefund,
				BalanceBefore: wallet.Balance,
				BalanceAfter:  wallet.Balance + order.Price,
				Remark:        fmt.Sprintf("订单被拒绝，退回预留-%s", order.OrderNo),
			}
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		item := &model.HistoryItem{
			Action:  historyAction,
			Target:  orderNo,
			Actor:   operator,
			UserUID: order.UserUID,
		}
		if err := s.historyRepo.Create(ctx, tx, item); err != nil {
			return fmt.Errorf("记录审计历史失败: %w", err)
		}

		order.Status = action
		if err := s.appendOrderEvent(ctx, tx, order, strings.ToLower(action)); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("[OrderService] 订单批复: orderNo=%s, action=%s, operator=%s", orderNo, action, operator)
	return order, nil
}

func (s *OrderService) appendOrderEvent(ctx context.Context, tx *gorm.DB, order *model.Order, event string) error {
	payload := map[string]interface{}{
		"event":    event,
		"order_no": order.OrderNo,
		"user_uid": order.UserUID,
		"service":  order.Service,
		"quantity": order.Quantity,
		"price":    order.Price,
		"status":   order.Status,
		"at":       time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: order.OrderNo,
		Topic:      s.cfg.Kafka.Topic.OrderEvents,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入事件失败: %w", err)
	}
	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

// CountTodaysOrders 今日某服务的全量下单数（限额展示用）
func (s *OrderService) CountTodaysOrders(ctx context.Context, service string) (int64, error) {
	if !model.IsValidService(service) {
		return 0, fmt.Errorf("%w: 未知服务类型 %s", ErrValidation, service)
	}
	return s.orderRepo.CountByServiceOnDay(ctx, service, todayStart(time.Now()))
}

func (s *OrderService) ListUserOrders(ctx context.Context, uid string, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserUID(ctx, uid, page, pageSize)
}

func (s *OrderService) ListAllOrders(ctx context.Context, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListAll(ctx, page, pageSize)
}
