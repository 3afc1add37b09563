package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"starcards/internal/config"
	"starcards/internal/model"
	"starcards/internal/repository"
	"starcards/pkg/idgen"

	"gorm.io/gorm"
)

type OrderService struct {
	db              *gorm.DB
	cfg             *config.Config
	orderRepo       *repository.OrderRepository
	carRepo         *repository.CarRepository
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewOrderService(db *gorm.DB, cfg *config.Config) *OrderService {
	return &OrderService{
		db:              db,
		cfg:             cfg,
		orderRepo:       repository.NewOrderRepository(db),
		carRepo:         repository.NewCarRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderNo string) (*model.Order, error) {
	return s.orderRepo.GetByOrderNo(ctx, orderNo)
}

func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	return s.orderRepo.ListByUserID(ctx, userID, page, pageSize)
}

// RequestShipping 买家申请发货，只有开箱后的订单可以申请
func (s *OrderService) RequestShipping(ctx context.Context, orderNo string) error {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}

	if err := s.orderRepo.UpdateStatus(ctx, nil, orderNo, order.Status, model.OrderStatusShipped); err != nil {
		if errors.Is(err, repository.ErrOrderStatusInvalid) {
			return fmt.Errorf("当前状态不允许申请发货: %s", order.Status)
		}
		return err
	}
	return nil
}

// ConfirmReceipt 买家确认收货，触发结算
//
// 结算的触发点是明确的领域事件（确认收货 / 结算窗口到期），不是定时演示。
func (s *OrderService) ConfirmReceipt(ctx context.Context, orderNo string) (*model.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.Settle(ctx, order)
}

// Settle 订单结算
//
// 幂等：已完成/已结算的订单直接返回，不产生任何资金变动——这是本系统最重要的不变式。
// 未发货的订单拒绝结算，避免跳过费率计算直接完成。
func (s *OrderService) Settle(ctx context.Context, order *model.Order) (*model.Order, error) {
	if order.Status == model.OrderStatusCompleted || order.IsSettled {
		return order, nil
	}
	if order.Status != model.OrderStatusShipped {
		return nil, fmt.Errorf("订单未发货，不能结算: %s", order.Status)
	}

	car, err := s.carRepo.GetByCarNo(ctx, order.CarNo)
	if err != nil {
		return nil, fmt.Errorf("查询车队失败: %w", err)
	}

	// 结算入账前确保钱包存在
	if _, err := s.walletRepo.GetOrCreate(ctx, car.HostName); err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}

	serviceFee, paymentFee, settledAmount := model.ComputeSettlement(order.TotalPrice)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.MarkSettled(ctx, tx, order.OrderNo, serviceFee, paymentFee, settledAmount); err != nil {
			return err
		}

		// 两笔流水：全额入账 + 合并扣费
		incomeTrans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			MerchantName:  car.HostName,
			RefNo:         order.OrderNo,
			Type:          model.TransactionTypeIncome,
			Amount:        order.TotalPrice,
			Description:   fmt.Sprintf("订单结算-%s", order.CarTitle),
			Status:        model.TransactionStatusSuccess,
		}
		if err := s.transactionRepo.Create(ctx, tx, incomeTrans); err != nil {
			return fmt.Errorf("记录入账流水失败: %w", err)
		}

		feeTrans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			MerchantName:  car.HostName,
			RefNo:         order.OrderNo,
			Type:          model.TransactionTypeFee,
			Amount:        serviceFee.Add(paymentFee).Neg(),
			Description:   fmt.Sprintf("技术服务费及通道费-%s", order.OrderNo),
			Status:        model.TransactionStatusSuccess,
		}
		if err := s.transactionRepo.Create(ctx, tx, feeTrans); err != nil {
			return fmt.Errorf("记录扣费流水失败: %w", err)
		}

		if err := s.walletRepo.CreditSettlement(ctx, tx, car.HostName, order.TotalPrice, settledAmount); err != nil {
			return fmt.Errorf("钱包入账失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"event":          "order.settled",
			"order_no":       order.OrderNo,
			"car_no":         order.CarNo,
			"merchant_name":  car.HostName,
			"total_price":    order.TotalPrice.String(),
			"service_fee":    serviceFee.String(),
			"payment_fee":    paymentFee.String(),
			"settled_amount": settledAmount.String(),
			"settled_at":     time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: order.OrderNo,
			Topic:      s.cfg.Kafka.Topic.OrderEvents,
			Payload:    string(payloadBytes),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		return nil
	})

	if err != nil {
		// 并发下另一次结算先落账：按幂等处理，返回最新订单
		if errors.Is(err, repository.ErrOrderAlreadySettled) {
			return s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
		}
		return nil, err
	}

	log.Printf("订单结算完成: orderNo=%s, merchant=%s, settled=%s",
		order.OrderNo, car.HostName, settledAmount.String())

	return s.orderRepo.GetByOrderNo(ctx, order.OrderNo)
}
