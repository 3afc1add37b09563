package repository

import (
	"context"
	"errors"

	"starcards/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWalletNotFound   = errors.New("钱包不存在")
	ErrBalanceNotEnough = errors.New("可提现余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByMerchantName(ctx context.Context, merchantName string) (*model.MerchantWallet, error) {
	var wallet model.MerchantWallet
	err := r.db.WithContext(ctx).Where("merchant_name = ?", merchantName).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// GetOrCreate 首次结算/查询时自动建立钱包
func (r *WalletRepository) GetOrCreate(ctx context.Context, merchantName string) (*model.MerchantWallet, error) {
	wallet, err := r.GetByMerchantName(ctx, merchantName)
	if err == nil {
		return wallet, nil
	}

	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	newWallet := &model.MerchantWallet{
		MerchantName:     merchantName,
		TotalIncome:      decimal.Zero,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		FrozenBalance:    decimal.Zero,
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_name"}},
			DoNothing: true,
		}).
		Create(newWallet).Error

	if err != nil {
		return nil, err
	}

	return r.GetByMerchantName(ctx, merchantName)
}

// CreditSettlement 订单结算入账：总入账记总价，可提现余额记扣费后净额
func (r *WalletRepository) CreditSettlement(ctx context.Context, tx *gorm.DB, merchantName string, totalPrice, settledAmount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.MerchantWallet{}).
		Where("merchant_name = ?", merchantName).
		Updates(map[string]interface{}{
			"total_income":      gorm.Expr("total_income + ?", totalPrice),
			"available_balance": gorm.Expr("available_balance + ?", settledAmount),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}

// Debit 扣减可提现余额，余额校验 + 乐观锁一次到位
func (r *WalletRepository) Debit(ctx context.Context, tx *gorm.DB, merchantName string, amount decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.MerchantWallet{}).
		Where("merchant_name = ? AND available_balance >= ? AND version = ?", merchantName, amount, version).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance - ?", amount),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		wallet, err := r.GetByMerchantName(ctx, merchantName)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance.LessThan(amount) {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// CreditBack 提现被拒后退回余额
func (r *WalletRepository) CreditBack(ctx context.Context, tx *gorm.DB, merchantName string, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.MerchantWallet{}).
		Where("merchant_name = ?", merchantName).
		Updates(map[string]interface{}{
			"available_balance": gorm.Expr("available_balance + ?", amount),
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}

	return nil
}
