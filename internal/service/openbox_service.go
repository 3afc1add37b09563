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

type OpenBoxService struct {
	db         *gorm.DB
	cfg        *config.Config
	carRepo    *repository.CarRepository
	orderRepo  *repository.OrderRepository
	outboxRepo *repository.OutboxRepository
}

func NewOpenBoxService(db *gorm.DB, cfg *config.Config) *OpenBoxService {
	return &OpenBoxService{
		db:         db,
		cfg:        cfg,
		carRepo:    repository.NewCarRepository(db),
		orderRepo:  repository.NewOrderRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// CardInput 车头录入的单张中卡
type CardInput struct {
	Name       string `json:"name" binding:"required"`
	Rarity     string `json:"rarity" binding:"required"`
	ArtistName string `json:"artist_name"`
	ImageURL   string `json:"image_url"`
}

type OpenBoxRequest struct {
	CarNo string `json:"car_no" binding:"required"`
	// 位置名 -> 该位置开出的卡片列表，由车头（直播/拍摄流程）录入
	Results map[string][]CardInput `json:"results" binding:"required"`
}

type OpenBoxResponse struct {
	CarNo        string `json:"car_no"`
	Status       string `json:"status"`
	OrderCount   int    `json:"order_count"`
	CardHitCount int    `json:"card_hit_count"`
	Message      string `json:"message,omitempty"`
}

// OpenBox 开箱分卡
//
// 整车状态切到 OPENED，并把各位置开出的卡片分发到购买过该位置的订单上。
// 分发规则沿用线上行为：同一位置的全部结果广播给每个买家，订单状态同步切到 OPENED。
func (s *OpenBoxService) OpenBox(ctx context.Context, req *OpenBoxRequest) (*OpenBoxResponse, error) {
	for slotName, cards := range req.Results {
		for _, card := range cards {
			if !model.IsValidRarity(card.Rarity) {
				return nil, fmt.Errorf("位置 %s 的卡片稀有度不合法: %s", slotName, card.Rarity)
			}
		}
	}

	car, err := s.carRepo.GetByCarNo(ctx, req.CarNo)
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			return nil, errors.New("车队不存在")
		}
		return nil, fmt.Errorf("查询车队失败: %w", err)
	}

	if !model.CarCanTransitionTo(car.Status, model.CarStatusOpened) {
		return nil, fmt.Errorf("当前状态不允许开箱: %s", car.Status)
	}

	var orderCount, hitCount int

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.carRepo.UpdateStatus(ctx, tx, req.CarNo, car.Status, model.CarStatusOpened); err != nil {
			return fmt.Errorf("更新车队状态失败: %w", err)
		}

		orders, err := s.orderRepo.ListPaidByCarNo(ctx, tx, req.CarNo)
		if err != nil {
			return fmt.Errorf("查询整车订单失败: %w", err)
		}
		orderCount = len(orders)

		for _, order := range orders {
			// 每张订单独立铸卡，保证卡片记录归属唯一订单
			for _, item := range order.Items {
				cards, ok := req.Results[item.SlotName]
				if !ok || len(cards) == 0 {
					continue
				}
				for _, card := range cards {
					hit := &model.CardResult{
						CardNo:     idgen.GenerateCardNo(),
						OrderNo:    order.OrderNo,
						Name:       card.Name,
						Rarity:     card.Rarity,
						ArtistName: card.ArtistName,
						ImageURL:   card.ImageURL,
					}
					if err := tx.WithContext(ctx).Create(hit).Error; err != nil {
						return fmt.Errorf("写入中卡记录失败: %w", err)
					}
					hitCount++
				}
			}

			if err := s.orderRepo.UpdateStatus(ctx, tx, order.OrderNo, model.OrderStatusPaid, model.OrderStatusOpened); err != nil {
				return fmt.Errorf("更新订单状态失败: %w", err)
			}
		}

		msgPayload := map[string]interface{}{
			"event":       "car.opened",
			"car_no":      req.CarNo,
			"host_name":   car.HostName,
			"order_count": orderCount,
			"hit_count":   hitCount,
			"opened_at":   time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: req.CarNo,
			Topic:      s.cfg.Kafka.Topic.CarEvents,
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

	log.Printf("开箱完成: carNo=%s, orders=%d, hits=%d", req.CarNo, orderCount, hitCount)

	return &OpenBoxResponse{
		CarNo:        req.CarNo,
		Status:       model.CarStatusOpened,
		OrderCount:   orderCount,
		CardHitCount: hitCount,
		Message:      "开箱完成！已自动分卡",
	}, nil
}
