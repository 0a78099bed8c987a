package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"boostpanel/internal/model"
	"boostpanel/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCreateFundRequestNoBalanceEffect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000, // ₹450
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	assert.Equal(t, model.FundStatusPending, fundReq.Status)
	assert.Equal(t, int64(45000), fundReq.ClaimedAmount)
	assert.Nil(t, fundReq.ApprovedAmount)
	assert.Equal(t, model.PaymentMethodUPI, fundReq.PaymentMethod)

	// 创建只是申报，分文未入账
	assert.Zero(t, env.wallet(t, "u1").Balance)
}

func TestCreateFundRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	_, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        -100,
		TransactionID: "upi-txn-001",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID: "fr-2",
		UserUID:   "u1",
		Amount:    100,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateFundRequestIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	req := &CreateFundRequestRequest{
		RequestID:     "fr-dup",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	}

	first, err := env.funds.CreateFundRequest(ctx, req)
	require.NoError(t, err)

	second, err := env.funds.CreateFundRequest(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.RequestNo, second.RequestNo)

	reqs, err := env.funds.ListUserFundRequests(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}

func TestApproveCreditsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	updated, err := env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, nil, "Admin")
	require.NoError(t, err)
	assert.Equal(t, model.FundStatusApproved, updated.Status)
	assert.Equal(t, int64(45000), env.wallet(t, "u1").Balance)
	env.assertConservation(t, "u1")

	// 重复批准：终态保护，不会二次入账
	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, nil, "Admin")
	require.ErrorIs(t, err, repository.ErrFundStatusInvalid)
	assert.Equal(t, int64(45000), env.wallet(t, "u1").Balance)

	// 批准后也不能再拒绝
	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusDeclined, nil, "Admin")
	require.ErrorIs(t, err, repository.ErrFundStatusInvalid)
}

func TestApproveWithOverrideAmount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	// 管理员核验实际到账只有 ₹400，覆盖入账金额
	updated, err := env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, int64Ptr(40000), "Admin")
	require.NoError(t, err)

	// 申报金额原样保留，批准金额单独记
	assert.Equal(t, int64(45000), updated.ClaimedAmount)
	require.NotNil(t, updated.ApprovedAmount)
	assert.Equal(t, int64(40000), *updated.ApprovedAmount)
	assert.Equal(t, int64(40000), updated.CreditAmount())

	assert.Equal(t, int64(40000), env.wallet(t, "u1").Balance)
	env.assertConservation(t, "u1")
}

func TestApproveRejectsNonPositiveOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, int64Ptr(0), "Admin")
	assert.ErrorIs(t, err, ErrInvalidApprovedAmount)

	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, int64Ptr(-500), "Admin")
	assert.ErrorIs(t, err, ErrInvalidApprovedAmount)

	// 申请保持 Pending，没有入账
	current, err := env.funds.GetFundRequest(ctx, fundReq.RequestNo)
	require.NoError(t, err)
	assert.Equal(t, model.FundStatusPending, current.Status)
	assert.Zero(t, env.wallet(t, "u1").Balance)
}

func TestDeclineFundRequestNoCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	updated, err := env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusDeclined, nil, "Admin")
	require.NoError(t, err)
	assert.Equal(t, model.FundStatusDeclined, updated.Status)
	assert.Zero(t, env.wallet(t, "u1").Balance)

	// 拒绝后不能再批准
	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, nil, "Admin")
	require.ErrorIs(t, err, repository.ErrFundStatusInvalid)
	assert.Zero(t, env.wallet(t, "u1").Balance)
}

func TestReferralCommissionOnApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.registerUser(t, "ref1", "Referrer", "")
	env.registerUser(t, "u1", "Alice", referrer.ReferralCode)

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000, // ₹450
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, nil, "Admin")
	require.NoError(t, err)

	// 被推荐人全额入账
	assert.Equal(t, int64(45000), env.wallet(t, "u1").Balance)

	// 推荐人拿 7% 佣金进推荐池：45000 * 7 / 100 = 3150 paise（₹31.50）
	refWallet := env.wallet(t, "ref1")
	assert.Zero(t, refWallet.Balance)
	assert.Equal(t, int64(3150), refWallet.ReferralBalance)

	env.assertConservation(t, "u1")
	env.assertConservation(t, "ref1")
}

func TestCommissionFollowsApprovedOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	referrer := env.registerUser(t, "ref1", "Referrer", "")
	env.registerUser(t, "u1", "Alice", referrer.ReferralCode)

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	// 佣金按实际入账金额计算，而不是申报金额
	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, int64Ptr(10000), "Admin")
	require.NoError(t, err)

	assert.Equal(t, int64(700), env.wallet(t, "ref1").ReferralBalance)
}

func TestConcurrentApprovalsChainSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	requestNos := make([]string, 2)
	for i := range requestNos {
		fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
			RequestID:     fmt.Sprintf("fr-%d", i),
			UserUID:       "u1",
			Amount:        45000,
			TransactionID: fmt.Sprintf("upi-txn-%d", i),
		})
		require.NoError(t, err)
		requestNos[i] = fundReq.RequestNo
	}

	// 同一个钱包的两笔入账并发批准：钱包锁串行化之后，
	// 两条流水的快照必须首尾相接，不能都从同一个旧余额出发
	var wg sync.WaitGroup
	for _, requestNo := range requestNos {
		wg.Add(1)
		go func(no string) {
			defer wg.Done()
			_, err := env.funds.UpdateFundRequestStatus(ctx, no, model.FundStatusApproved, nil, "Admin")
			assert.NoError(t, err)
		}(requestNo)
	}
	wg.Wait()

	assert.Equal(t, int64(90000), env.wallet(t, "u1").Balance)
	env.assertConservation(t, "u1")

	var deposits []*model.WalletTransaction
	require.NoError(t, env.db.
		Where("user_uid = ? AND type = ?", "u1", model.TransactionTypeDeposit).
		Order("balance_before ASC").
		Find(&deposits).Error)
	require.Len(t, deposits, 2)
	assert.Equal(t, int64(0), deposits[0].BalanceBefore)
	assert.Equal(t, int64(45000), deposits[0].BalanceAfter)
	assert.Equal(t, int64(45000), deposits[1].BalanceBefore)
	assert.Equal(t, int64(90000), deposits[1].BalanceAfter)
}

func TestNoCommissionWithoutReferrer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.registerUser(t, "u1", "Alice", "")

	fundReq, err := env.funds.CreateFundRequest(ctx, &CreateFundRequestRequest{
		RequestID:     "fr-1",
		UserUID:       "u1",
		Amount:        45000,
		TransactionID: "upi-txn-001",
	})
	require.NoError(t, err)

	_, err = env.funds.UpdateFundRequestStatus(ctx, fundReq.RequestNo, model.FundStatusApproved, nil, "Admin")
	require.NoError(t, err)

	// 没有推荐人，只有被充值用户一条 DEPOSIT 流水
	_, total, err := env.txnRepo.ListByUserUID(ctx, "u1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
