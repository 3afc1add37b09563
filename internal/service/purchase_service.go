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

type PurchaseService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	carRepo     *repository.CarRepository
	orderRepo   *repository.OrderRepository
	outboxRepo  *repository.OutboxRepository
}

func NewPurchaseService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *PurchaseService {
	return &PurchaseService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		carRepo:     repository.NewCarRepository(db),
		orderRepo:   repository.NewOrderRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type PurchaseItemRequest struct {
	SlotName string `json:"slot_name" binding:"required"`
	Count    int    `json:"count" binding:"required,gt=0"`
}

type PurchaseRequest struct {
	RequestID string                `json:"request_id" binding:"required"` // 幂等ID，客户端生成
	UserID    int64                 `json:"user_id" binding:"required"`
	CarNo     string                `json:"car_no" binding:"required"`
	Items     []PurchaseItemRequest `json:"items" binding:"required,min=1,dive"`
}

type PurchaseResponse struct {
	OrderNo    string          `json:"order_no"`
	CarNo      string          `json:"car_no"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CarStatus  string          `json:"car_status"`
	Message    string          `json:"message,omitempty"`
}

// Purchase 上车（支付回调后的占位确认）
//
// 需要保证：
//  1. 幂等：相同 request_id 只会占位一次
//  2. 原子：建单、占位扣减、满员翻转同事务
//  3. 并发安全：同一买家的请求串行执行
func (s *PurchaseService) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	// 幂等校验
	existingOrder, err := s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existingOrder != nil {
		return &PurchaseResponse{
			OrderNo:    existingOrder.OrderNo,
			CarNo:      existingOrder.CarNo,
			Status:     existingOrder.Status,
			TotalPrice: existingOrder.TotalPrice,
			Message:    "订单已存在",
		}, nil
	}

	// 获取分布式锁
	purchaseLock := lock.NewPurchaseLock(s.redisClient, req.UserID, req.RequestID)
	err = purchaseLock.Lock(ctx, 100*time.Millisecond, 30)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer purchaseLock.Unlock(ctx)

	// 获取锁后再次检查幂等
	existingOrder, err = s.orderRepo.GetByRequestID(ctx, req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败: %w", err)
	}
	if existingOrder != nil {
		return &PurchaseResponse{
			OrderNo:    existingOrder.OrderNo,
			CarNo:      existingOrder.CarNo,
			Status:     existingOrder.Status,
			TotalPrice: existingOrder.TotalPrice,
			Message:    "订单已存在",
		}, nil
	}

	return s.purchase(ctx, req)
}

// purchase 占位事务本体
func (s *PurchaseService) purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResponse, error) {
	car, err := s.carRepo.GetByCarNo(ctx, req.CarNo)
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			return nil, errors.New("车队不存在")
		}
		return nil, fmt.Errorf("查询车队失败: %w", err)
	}

	if car.Status != model.CarStatusRecruiting {
		return nil, errors.New("该车不在招募中，无法上车")
	}

	items := make([]model.PurchaseItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, model.PurchaseItem{SlotName: item.SlotName, Count: item.Count})
	}

	// 金额以服务端车位单价为准，未知位置不计价也不占位
	totalPrice := car.PriceOf(items)

	orderNo := idgen.GenerateOrderNo()
	order := &model.Order{
		OrderNo:    orderNo,
		RequestID:  req.RequestID,
		UserID:     req.UserID,
		CarNo:      car.CarNo,
		CarTitle:   car.Title,
		CarImage:   car.CoverImage,
		TotalPrice: totalPrice,
		Status:     model.OrderStatusPaid,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, model.OrderItem{
			OrderNo:  orderNo,
			SlotName: item.SlotName,
			Count:    item.Count,
		})
	}

	var becameFull bool

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		// 行锁内重读车位，避免并发占位写丢失
		lockedCar, err := s.carRepo.GetByCarNoForUpdate(ctx, tx, req.CarNo)
		if err != nil {
			return fmt.Errorf("锁定车队失败: %w", err)
		}
		if lockedCar.Status != model.CarStatusRecruiting {
			return errors.New("该车不在招募中，无法上车")
		}

		becameFull = lockedCar.ApplyPurchase(items)

		if err := s.carRepo.SaveSlotSpots(ctx, tx, lockedCar.Slots); err != nil {
			return fmt.Errorf("占位扣减失败: %w", err)
		}

		if becameFull {
			if err := s.carRepo.UpdateStatus(ctx, tx, req.CarNo, model.CarStatusRecruiting, model.CarStatusFull); err != nil {
				return fmt.Errorf("更新车队状态失败: %w", err)
			}
		}

		msgPayload := map[string]interface{}{
			"event":       "order.paid",
			"order_no":    orderNo,
			"car_no":      car.CarNo,
			"user_id":     req.UserID,
			"total_price": totalPrice.String(),
			"car_full":    becameFull,
			"paid_at":     time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: orderNo,
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
		return nil, err
	}

	log.Printf("上车成功: orderNo=%s, carNo=%s, userID=%d, total=%s, full=%v",
		orderNo, car.CarNo, req.UserID, totalPrice.String(), becameFull)

	carStatus := model.CarStatusRecruiting
	if becameFull {
		carStatus = model.CarStatusFull
	}

	return &PurchaseResponse{
		OrderNo:    orderNo,
		CarNo:      car.CarNo,
		Status:     model.OrderStatusPaid,
		TotalPrice: totalPrice,
		CarStatus:  carStatus,
		Message:    "支付成功！位置已锁定",
	}, nil
}
