package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 商家钱包与资金流水
// ============================================================================

// 流水类型
const (
	TransactionTypeIncome   = "INCOME"   // 订单结算入账
	TransactionTypeFee      = "FEE"      // 平台扣费/广告费
	TransactionTypeWithdraw = "WITHDRAW" // 提现出账
	TransactionTypeRefund   = "REFUND"   // 退款
)

// 流水状态
const (
	TransactionStatusSuccess = "SUCCESS"
	TransactionStatusPending = "PENDING"
	TransactionStatusFailed  = "FAILED"
)

// 提现单状态
const (
	WithdrawalStatusPending   = "PENDING"
	WithdrawalStatusCompleted = "COMPLETED"
	WithdrawalStatusRejected  = "REJECTED"
)

// 提现规则：单笔最低 100 元；当日首笔免费，后续每笔按 0.1% 收取手续费
var (
	MinWithdrawalAmount = decimal.NewFromInt(100)
	WithdrawalFeeRate   = decimal.NewFromFloat(0.001)
)

// WithdrawalFee 按当日已有提现笔数计算本笔手续费
func WithdrawalFee(priorCountToday int, amount decimal.Decimal) decimal.Decimal {
	if priorCountToday == 0 {
		return decimal.Zero
	}
	return amount.Mul(WithdrawalFeeRate).Round(2)
}

// NextBusinessDay T+1 到账，遇周末顺延到下一个工作日
func NextBusinessDay(now time.Time) time.Time {
	d := now.AddDate(0, 0, 1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// MerchantWallet 商家钱包表
// 以车头名称为键，可提现余额只通过结算入账增加、提现出账减少，不允许为负
type MerchantWallet struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	MerchantName     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_name"`
	TotalIncome      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_income"`      // 历史总入账
	AvailableBalance decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"available_balance"` // 可提现
	PendingBalance   decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"pending_balance"`   // 结算中
	FrozenBalance    decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"frozen_balance"`    // 风控冻结
	Version          int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MerchantWallet) TableName() string {
	return "merchant_wallet"
}

// WalletTransaction 钱包流水表
//
// 只追加，不删除：除待处理提现的状态可原地更新外，其余字段写入后不再修改
type WalletTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	MerchantName  string          `gorm:"type:varchar(64);index;not null" json:"merchant_name"`
	RefNo         string          `gorm:"type:varchar(64);index" json:"ref_no"` // 关联单号（订单号/提现单号/广告单号）
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"` // 正数入账，负数出账
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	Status        string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transaction"
}

// WithdrawalRequest 提现申请表
type WithdrawalRequest struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_no"`
	MerchantName string          `gorm:"type:varchar(64);index;not null" json:"merchant_name"`
	Amount       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Fee          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"fee"`
	ActualAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"actual_amount"` // 到手金额 = 申请金额 - 手续费
	RequestDate  time.Time       `gorm:"not null;index" json:"request_date"`
	ExpectedDate time.Time       `gorm:"not null" json:"expected_date"` // T+1 工作日
	Status       string          `gorm:"type:varchar(20);index;not null" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
