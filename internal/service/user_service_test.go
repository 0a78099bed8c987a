package service

import (
	"context"
	"testing"

	"boostpanel/internal/model"
	"boostpanel/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteRegistrationProvisionsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.CompleteRegistration(ctx, &CompleteRegistrationRequest{
		UID:   "u1",
		Name:  "Alice",
		Email: "alice@example.com",
		Phone: "+911234567890",
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", user.UID)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEmpty(t, user.ReferralCode)
	assert.Empty(t, user.ReferredBy)

	// 钱包同步开好，余额从零开始
	wallet := env.wallet(t, "u1")
	assert.Zero(t, wallet.Balance)
	assert.Zero(t, wallet.ReferralBalance)

	// 一条注册审计 + 一封欢迎站内信
	data, err := env.users.GetUserData(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, data.History, 1)
	assert.Equal(t, model.ActionUserRegistered, data.History[0].Action)
	assert.Equal(t, model.ActorSystem, data.History[0].Actor)

	inbox, err := env.messages.ListInbox(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Welcome to BoostPanel!", inbox[0].Subject)
}

func TestRegistrationIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.registerUser(t, "u1", "Alice", "")

	// 重复注册返回已有账户，不会重复开钱包或重发欢迎信
	second, err := env.users.CompleteRegistration(ctx, &CompleteRegistrationRequest{
		UID:  "u1",
		Name: "Alice Again",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Alice", second.Name)

	inbox, err := env.messages.ListInbox(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestRegistrationNameFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.CompleteRegistration(ctx, &CompleteRegistrationRequest{
		UID: "firebase-uid-12345",
	})
	require.NoError(t, err)
	assert.Equal(t, "User-fireb", user.Name)
}

func TestRegistrationWithReferralCode(t *testing.T) {
	env := newTestEnv(t)

	referrer := env.registerUser(t, "ref1", "Referrer", "")
	user := env.registerUser(t, "u1", "Alice", referrer.ReferralCode)

	assert.Equal(t, "ref1", user.ReferredBy)

	referred, err := env.referral.ListReferredUsers(context.Background(), "ref1")
	require.NoError(t, err)
	require.Len(t, referred, 1)
	assert.Equal(t, "u1", referred[0].UID)
}

func TestRegistrationIgnoresInvalidReferralCode(t *testing.T) {
	env := newTestEnv(t)

	// 无效推荐码不阻断注册，按无推荐处理
	user := env.registerUser(t, "u1", "Alice", "REFNOSUCH")
	assert.Empty(t, user.ReferredBy)
}

func TestGetUserDataAggregation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")
	env.topUp(t, "u1", 10000)

	_, err := env.orders.CreateOrder(ctx, &CreateOrderRequest{
		RequestID: "req-1",
		UserUID:   "u1",
		Service:   model.ServiceFollowers,
		Link:      "https://example.com/profile",
		Quantity:  10,
	})
	require.NoError(t, err)

	_, err = env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        5000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	data, err := env.users.GetUserData(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1", data.User.UID)
	assert.Len(t, data.Orders, 1)
	assert.Len(t, data.FundRequests, 1)
	assert.Len(t, data.History, 3) // 注册 + 下单 + 充值申请
	assert.NotEmpty(t, data.Transactions)
}

func TestGetUserDataCanonicalName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	// 钱包上的展示名漂移后，聚合视图仍以 users 表为准
	require.NoError(t, env.db.Model(&model.Wallet{}).
		Where("user_uid = ?", "u1").
		Update("name", "Stale Name").Error)

	data, err := env.users.GetUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", data.Wallet.Name)
}

func TestGetUserDataNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.users.GetUserData(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
