package service

import (
	"context"
	"testing"

	"starcards/internal/model"
	"starcards/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedWallet(t *testing.T, db *gorm.DB, merchantName string, balance int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.MerchantWallet{
		MerchantName:     merchantName,
		TotalIncome:      decimal.NewFromInt(balance),
		AvailableBalance: decimal.NewFromInt(balance),
		PendingBalance:   decimal.Zero,
		FrozenBalance:    decimal.Zero,
	}).Error)
}

func TestWithdrawalBelowMinimumRejected(t *testing.T) {
	db := setupTestDB(t)
	s := NewWalletService(db, nil, testConfig())

	_, err := s.RequestWithdrawal(context.Background(), &WithdrawRequest{
		RequestID:    "wd-min-1",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(50),
	})
	assert.Error(t, err)
}

func TestWithdrawalInsufficientBalanceRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedWallet(t, db, "测试商家", 100)

	s := NewWalletService(db, nil, testConfig())

	_, err := s.RequestWithdrawal(ctx, &WithdrawRequest{
		RequestID:    "wd-bal-1",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(101),
	})
	assert.ErrorIs(t, err, repository.ErrBalanceNotEnough)

	// 校验失败不产生任何状态变更
	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "100.00", wallet.AvailableBalance.StringFixed(2))
}

func TestWithdrawalFeePolicy(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedWallet(t, db, "测试商家", 5000)

	s := NewWalletService(db, nil, testConfig())

	// 当日首笔免手续费
	first, err := s.withdraw(ctx, &WithdrawRequest{
		RequestID:    "wd-fee-1",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.00", first.Fee.StringFixed(2))
	assert.Equal(t, "1000.00", first.ActualAmount.StringFixed(2))
	assert.Equal(t, model.WithdrawalStatusPending, first.Status)

	// 当日第二笔收 0.1%
	second, err := s.withdraw(ctx, &WithdrawRequest{
		RequestID:    "wd-fee-2",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.00", second.Fee.StringFixed(2))
	assert.Equal(t, "999.00", second.ActualAmount.StringFixed(2))

	// 余额按申请全额扣减
	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "3000.00", wallet.AvailableBalance.StringFixed(2))
}

func TestResolveWithdrawalApprove(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedWallet(t, db, "测试商家", 5000)

	s := NewWalletService(db, nil, testConfig())

	resp, err := s.withdraw(ctx, &WithdrawRequest{
		RequestID:    "wd-ok-1",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	resolved, err := s.ResolveWithdrawal(ctx, resp.WithdrawalNo, true)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCompleted, resolved.Status)

	// 通过后余额不回退
	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "4000.00", wallet.AvailableBalance.StringFixed(2))

	// 提现流水落终态
	trans, err := repository.NewTransactionRepository(db).GetByRefNo(ctx, resp.WithdrawalNo, model.TransactionTypeWithdraw)
	require.NoError(t, err)
	require.NotNil(t, trans)
	assert.Equal(t, model.TransactionStatusSuccess, trans.Status)
}

func TestResolveWithdrawalRejectRefundsBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedWallet(t, db, "测试商家", 5000)

	s := NewWalletService(db, nil, testConfig())

	resp, err := s.withdraw(ctx, &WithdrawRequest{
		RequestID:    "wd-rej-1",
		MerchantName: "测试商家",
		Amount:       decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	resolved, err := s.ResolveWithdrawal(ctx, resp.WithdrawalNo, false)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, resolved.Status)

	// 拒绝后申请金额退回
	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "5000.00", wallet.AvailableBalance.StringFixed(2))

	trans, err := repository.NewTransactionRepository(db).GetByRefNo(ctx, resp.WithdrawalNo, model.TransactionTypeWithdraw)
	require.NoError(t, err)
	require.NotNil(t, trans)
	assert.Equal(t, model.TransactionStatusFailed, trans.Status)

	// 终态不可重复处理
	_, err = s.ResolveWithdrawal(ctx, resp.WithdrawalNo, true)
	assert.Error(t, err)
}

func TestGetWalletCreatesOnFirstAccess(t *testing.T) {
	db := setupTestDB(t)
	s := NewWalletService(db, nil, testConfig())

	detail, err := s.GetWallet(context.Background(), "新商家")
	require.NoError(t, err)
	assert.Equal(t, "新商家", detail.Wallet.MerchantName)
	assert.True(t, detail.Wallet.AvailableBalance.IsZero())
	assert.Empty(t, detail.Transactions)
	assert.Empty(t, detail.Withdrawals)
}
