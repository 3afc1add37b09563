package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"starcards/internal/config"
	"starcards/internal/infrastructure/lock"
	"starcards/internal/model"
	"starcards/internal/repository"
	"starcards/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WalletService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	withdrawalRepo  *repository.WithdrawalRepository
	outboxRepo      *repository.OutboxRepository
}

func NewWalletService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *WalletService {
	return &WalletService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		withdrawalRepo:  repository.NewWithdrawalRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type WalletDetail struct {
	Wallet       *model.MerchantWallet      `json:"wallet"`
	Transactions []*model.WalletTransaction `json:"transactions"`
	Withdrawals  []*model.WithdrawalRequest `json:"withdrawals"`
}

// GetWallet 钱包详情（余额 + 流水 + 提现记录）
func (s *WalletService) GetWallet(ctx context.Context, merchantName string) (*WalletDetail, error) {
	wallet, err := s.walletRepo.GetOrCreate(ctx, merchantName)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	transactions, _, err := s.transactionRepo.ListByMerchant(ctx, merchantName, 1, 50)
	if err != nil {
		return nil, fmt.Errorf("查询流水失败: %w", err)
	}

	withdrawals, _, err := s.withdrawalRepo.ListByMerchant(ctx, merchantName, 1, 50)
	if err != nil {
		return nil, fmt.Errorf("查询提现记录失败: %w", err)
	}

	return &WalletDetail{
		Wallet:       wallet,
		Transactions: transactions,
		Withdrawals:  withdrawals,
	}, nil
}

type WithdrawRequest struct {
	RequestID    string          `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	MerchantName string          `json:"merchant_name" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"required"`
}

type WithdrawResponse struct {
	WithdrawalNo string          `json:"withdrawal_no"`
	Amount       decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	ActualAmount decimal.Decimal `json:"actual_amount"`
	ExpectedDate time.Time       `json:"expected_date"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
}

// RequestWithdrawal 商家提现申请
//
// 校验失败不产生任何状态变更。手续费从申请金额里扣（到手 = 申请 - 手续费），
// 余额按申请全额扣减。
func (s *WalletService) RequestWithdrawal(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	if req.Amount.LessThan(model.MinWithdrawalAmount) {
		return nil, fmt.Errorf("提现金额不能低于%s元", model.MinWithdrawalAmount.String())
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, req.MerchantName)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	if req.Amount.GreaterThan(wallet.AvailableBalance) {
		return nil, repository.ErrBalanceNotEnough
	}

	// 获取分布式锁，同一商家的提现串行执行
	withdrawLock := lock.NewWithdrawLock(s.redisClient, req.MerchantName, req.RequestID)
	err = withdrawLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer withdrawLock.Unlock(ctx)

	return s.withdraw(ctx, req)
}

// withdraw 提现事务本体
func (s *WalletService) withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	// 锁内重读余额
	wallet, err := s.walletRepo.GetOrCreate(ctx, req.MerchantName)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	if req.Amount.GreaterThan(wallet.AvailableBalance) {
		return nil, repository.ErrBalanceNotEnough
	}

	now := time.Now()

	// 当日首笔免手续费，之后每笔 0.1%
	priorToday, err := s.withdrawalRepo.CountByMerchantOnDate(ctx, nil, req.MerchantName, now)
	if err != nil {
		return nil, fmt.Errorf("查询当日提现记录失败: %w", err)
	}
	fee := model.WithdrawalFee(int(priorToday), req.Amount)
	actualAmount := req.Amount.Sub(fee)

	withdrawalNo := idgen.GenerateWithdrawalNo()
	request := &model.WithdrawalRequest{
		WithdrawalNo: withdrawalNo,
		MerchantName: req.MerchantName,
		Amount:       req.Amount,
		Fee:          fee,
		ActualAmount: actualAmount,
		RequestDate:  now,
		ExpectedDate: model.NextBusinessDay(now),
		Status:       model.WithdrawalStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.walletRepo.Debit(ctx, tx, req.MerchantName, req.Amount, wallet.Version); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return repository.ErrBalanceNotEnough
			}
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errors.New("系统繁忙，请重试")
			}
			return fmt.Errorf("余额扣减失败: %w", err)
		}

		if err := s.withdrawalRepo.Create(ctx, tx, request); err != nil {
			return fmt.Errorf("创建提现单失败: %w", err)
		}

		trans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			MerchantName:  req.MerchantName,
			RefNo:         withdrawalNo,
			Type:          model.TransactionTypeWithdraw,
			Amount:        req.Amount.Neg(),
			Description:   fmt.Sprintf("余额提现-%s", withdrawalNo),
			Status:        model.TransactionStatusPending,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录提现流水失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"event":         "wallet.withdrawal.requested",
			"withdrawal_no": withdrawalNo,
			"merchant_name": req.MerchantName,
			"amount":        req.Amount.String(),
			"fee":           fee.String(),
			"actual_amount": actualAmount.String(),
			"expected_date": request.ExpectedDate.Format("2006-01-02"),
			"requested_at":  now.Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: withdrawalNo,
			Topic:      s.cfg.Kafka.Topic.WalletEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("提现申请成功: withdrawalNo=%s, merchant=%s, amount=%s, fee=%s",
		withdrawalNo, req.MerchantName, req.Amount.String(), fee.String())

	return &WithdrawResponse{
		WithdrawalNo: withdrawalNo,
		Amount:       req.Amount,
		Fee:          fee,
		ActualAmount: actualAmount,
		ExpectedDate: request.ExpectedDate,
		Status:       model.WithdrawalStatusPending,
		Message:      "提现申请已受理，预计T+1到账",
	}, nil
}

// ResolveWithdrawal 支付通道回调：推进提现单终态
//
// 通过：提现单 COMPLETED，流水置 SUCCESS。
// 拒绝：提现单 REJECTED，申请金额退回可提现余额，流水置 FAILED。
func (s *WalletService) ResolveWithdrawal(ctx context.Context, withdrawalNo string, approve bool) (*model.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}
	if request.Status != model.WithdrawalStatusPending {
		return nil, fmt.Errorf("提现单已处理，当前状态: %s", request.Status)
	}

	targetStatus := model.WithdrawalStatusCompleted
	transStatus := model.TransactionStatusSuccess
	if !approve {
		targetStatus = model.WithdrawalStatusRejected
		transStatus = model.TransactionStatusFailed
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalNo, model.WithdrawalStatusPending, targetStatus); err != nil {
			return fmt.Errorf("更新提现单状态失败: %w", err)
		}

		if err := s.transactionRepo.UpdateStatusByRefNo(ctx, tx, withdrawalNo, model.TransactionTypeWithdraw,
			model.TransactionStatusPending, transStatus); err != nil {
			return fmt.Errorf("更新提现流水失败: %w", err)
		}

		if !approve {
			if err := s.walletRepo.CreditBack(ctx, tx, request.MerchantName, request.Amount); err != nil {
				return fmt.Errorf("退回余额失败: %w", err)
			}
		}

		msgPayload := map[string]interface{}{
			"event":         "wallet.withdrawal.resolved",
			"withdrawal_no": withdrawalNo,
			"merchant_name": request.MerchantName,
			"status":        targetStatus,
			"resolved_at":   time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: withdrawalNo,
			Topic:      s.cfg.Kafka.Topic.WalletEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		return s.outboxRepo.Create(ctx, tx, outboxMsg)
	})

	if err != nil {
		return nil, err
	}

	log.Printf("提现单已处理: withdrawalNo=%s, status=%s", withdrawalNo, targetStatus)

	return s.withdrawalRepo.GetByWithdrawalNo(ctx, withdrawalNo)
}
