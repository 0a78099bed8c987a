package service

import (
	"context"
	"path/filepath"
	"testing"

	"boostpanel/internal/config"
	"boostpanel/internal/model"
	"boostpanel/internal/repository"
	"boostpanel/pkg/idgen"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv 测试环境：sqlite 文件库 + miniredis，每个测试独立一套
type testEnv struct {
	db       *gorm.DB
	rdb      *redis.Client
	cfg      *config.Config
	users    *UserService
	orders   *OrderService
	funds    *FundService
	referral *ReferralService
	messages *MessageService
	settings *SettingsService

	walletRepo *repository.WalletRepository
	txnRepo    *repository.TransactionRepository
}

func newTestConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			PricePer10Units: 100,
			ReferralPercent: 7,
			MaxRetryCount:   3,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				OrderEvents: "boostpanel.order.events",
				FundEvents:  "boostpanel.fund.events",
				Broadcast:   "boostpanel.broadcast",
			},
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "boostpanel_test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.Order{},
		&model.FundRequest{},
		&model.WalletTransaction{},
		&model.HistoryItem{},
		&model.Message{},
		&model.OutboxMessage{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := newTestConfig()

	return &testEnv{
		db:         db,
		rdb:        rdb,
		cfg:        cfg,
		users:      NewUserService(db, cfg),
		orders:     NewOrderService(db, rdb, cfg),
		funds:      NewFundService(db, rdb, cfg),
		referral:   NewReferralService(db, rdb, cfg),
		messages:   NewMessageService(db, cfg),
		settings:   NewSettingsService(rdb),
		walletRepo: repository.NewWalletRepository(db),
		txnRepo:    repository.NewTransactionRepository(db),
	}
}

// registerUser 开户（可带推荐码）
func (e *testEnv) registerUser(t *testing.T, uid, name, referralCode string) *model.User {
	t.Helper()
	user, err := e.users.CompleteRegistration(context.Background(), &CompleteRegistrationRequest{
		UID:          uid,
		Name:         name,
		Email:        uid + "@example.com",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return user
}

// topUp 直接给钱包打钱，绕过充值审批流程（只做测试铺底）。
// 同时补一条流水，保证对账不变式在测试里依然成立。
func (e *testEnv) topUp(t *testing.T, uid string, amount int64) {
	t.Helper()
	ctx := context.Background()
	wallet := e.wallet(t, uid)
	require.NoError(t, e.walletRepo.Increase(ctx, nil, uid, amount))
	require.NoError(t, e.txnRepo.Create(ctx, nil, &model.WalletTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserUID:       uid,
		RefNo:         "test-topup",
		Amount:        amount,
		Type:          model.TransactionTypeDeposit,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance + amount,
		Remark:        "测试铺底",
	}))
}

func (e *testEnv) wallet(t *testing.T, uid string) *model.Wallet {
	t.Helper()
	wallet, err := e.walletRepo.GetByUserUID(context.Background(), uid)
	require.NoError(t, err)
	return wallet
}

// assertConservation 对账不变式：主余额 + 推荐池 == 流水净和
func (e *testEnv) assertConservation(t *testing.T, uid string) {
	t.Helper()
	wallet := e.wallet(t, uid)
	sum, err := e.txnRepo.SumByUserUID(context.Background(), uid)
	require.NoError(t, err)
	require.Equal(t, wallet.Balance+wallet.ReferralBalance, sum,
		"钱包余额与流水净和不一致: uid=%s", uid)
}
