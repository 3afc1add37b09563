package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"starcards/internal/config"
	"starcards/internal/model"
	"starcards/internal/repository"
	"starcards/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CarService struct {
	db         *gorm.DB
	cfg        *config.Config
	carRepo    *repository.CarRepository
	outboxRepo *repository.OutboxRepository
}

func NewCarService(db *gorm.DB, cfg *config.Config) *CarService {
	return &CarService{
		db:         db,
		cfg:        cfg,
		carRepo:    repository.NewCarRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// PublishSlotRequest 发车时的单个车位定义
type PublishSlotRequest struct {
	Name       string          `json:"name" binding:"required"`
	AvatarURL  string          `json:"avatar_url"`
	Price      decimal.Decimal `json:"price" binding:"required"`
	TotalSpots int             `json:"total_spots" binding:"required,gt=0"`
	IsHot      bool            `json:"is_hot"`
}

// PublishCarRequest 发车命令，所有字段在落库前校验
type PublishCarRequest struct {
	HostName     string               `json:"host_name" binding:"required"`
	HostType     string               `json:"host_type" binding:"required"`
	SupplierName string               `json:"supplier_name"`
	Title        string               `json:"title"`
	IPName       string               `json:"ip_name" binding:"required"`
	SeriesName   string               `json:"series_name"`
	BoxCount     int                  `json:"box_count" binding:"required,gt=0"`
	CoverImage   string               `json:"cover_image"`
	Description  string               `json:"description"`
	ExtraNote    string               `json:"extra_note"`
	Slots        []PublishSlotRequest `json:"slots" binding:"required,min=1,dive"`
}

// PublishCar 发车
func (s *CarService) PublishCar(ctx context.Context, req *PublishCarRequest) (*model.Car, error) {
	if req.HostType != model.HostTypeMerchant && req.HostType != model.HostTypeFanLeader {
		return nil, errors.New("车头类型不合法")
	}
	// B类粉头必须绑定供货商家
	if req.HostType == model.HostTypeFanLeader && req.SupplierName == "" {
		return nil, errors.New("粉头发车必须填写供货商家")
	}
	for _, slot := range req.Slots {
		if slot.Price.IsNegative() {
			return nil, fmt.Errorf("车位 %s 单价不能为负", slot.Name)
		}
	}

	title := req.Title
	if title == "" {
		// 标题缺省时按「【IP名】描述首行」生成
		firstLine := req.Description
		if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
			firstLine = firstLine[:idx]
		}
		title = fmt.Sprintf("【%s】%s", req.IPName, firstLine)
	}

	car := &model.Car{
		CarNo:        idgen.GenerateCarNo(),
		Title:        title,
		IPName:       req.IPName,
		SeriesName:   req.SeriesName,
		BoxCount:     req.BoxCount,
		HostName:     req.HostName,
		HostType:     req.HostType,
		SupplierName: req.SupplierName,
		Status:       model.CarStatusRecruiting,
		CoverImage:   req.CoverImage,
		Description:  req.Description,
		ExtraNote:    req.ExtraNote,
	}
	for _, slot := range req.Slots {
		car.Slots = append(car.Slots, model.CarSlot{
			Name:       slot.Name,
			AvatarURL:  slot.AvatarURL,
			Price:      slot.Price,
			TotalSpots: slot.TotalSpots,
			IsHot:      slot.IsHot,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.carRepo.Create(ctx, tx, car); err != nil {
			return fmt.Errorf("发车失败: %w", err)
		}

		msgPayload := map[string]interface{}{
			"event":        "car.published",
			"car_no":       car.CarNo,
			"host_name":    car.HostName,
			"host_type":    car.HostType,
			"ip_name":      car.IPName,
			"published_at": time.Now().Format(time.RFC3339),
		}
		payloadBytes, _ := json.Marshal(msgPayload)

		outboxMsg := &model.OutboxMessage{
			MessageKey: car.CarNo,
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

	return car, nil
}

func (s *CarService) GetCar(ctx context.Context, carNo string) (*model.Car, error) {
	return s.carRepo.GetByCarNo(ctx, carNo)
}

func (s *CarService) ListCars(ctx context.Context, status string, page, pageSize int) ([]*model.Car, int64, error) {
	return s.carRepo.List(ctx, status, page, pageSize)
}

func (s *CarService) ListByHost(ctx context.Context, hostName string) ([]*model.Car, error) {
	return s.carRepo.ListByHost(ctx, hostName)
}

// ShipCar 车头标记整车已发货（开箱之后的动作，不可逆）
func (s *CarService) ShipCar(ctx context.Context, carNo string) error {
	car, err := s.carRepo.GetByCarNo(ctx, carNo)
	if err != nil {
		return err
	}

	return s.carRepo.UpdateStatus(ctx, nil, car.CarNo, car.Status, model.CarStatusShipped)
}
