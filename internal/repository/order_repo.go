package repository

import (
	"context"
	"errors"
	"time"

	"starcards/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound       = errors.New("订单不存在")
	ErrOrderStatusInvalid  = errors.New("订单状态不合法")
	ErrOrderAlreadySettled = errors.New("订单已结算")
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Hits").
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetByRequestID 幂等查询，不存在返回 nil
func (r *OrderRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("request_id = ?", requestID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus 条件更新状态，非法流转直接拒绝
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderNo string, fromStatus, toStatus string) error {
	if !model.OrderCanTransitionTo(fromStatus, toStatus) {
		return ErrOrderStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ?", orderNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderStatusInvalid
	}

	return nil
}

// MarkSettled 结算落账
// 条件更新是防止重复结算的最后一道闸：只有「已发货且未结算」的订单才会被改写，
// 并发的第二次结算影响行数为 0，返回 ErrOrderAlreadySettled。
func (r *OrderRepository) MarkSettled(ctx context.Context, tx *gorm.DB, orderNo string, serviceFee, paymentFee, settledAmount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_no = ? AND status = ? AND is_settled = ?", orderNo, model.OrderStatusShipped, false).
		Updates(map[string]interface{}{
			"status":         model.OrderStatusCompleted,
			"is_settled":     true,
			"service_fee":    serviceFee,
			"payment_fee":    paymentFee,
			"settled_amount": settledAmount,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOrderAlreadySettled
	}

	return nil
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Preload("Items").
		Preload("Hits").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error

	return orders, total, err
}

// ListPaidByCarNo 开箱分卡时拉取整车的已支付订单
func (r *OrderRepository) ListPaidByCarNo(ctx context.Context, tx *gorm.DB, carNo string) ([]*model.Order, error) {
	if tx == nil {
		tx = r.db
	}
	var orders []*model.Order
	err := tx.WithContext(ctx).
		Preload("Items").
		Where("car_no = ? AND status = ?", carNo, model.OrderStatusPaid).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// GetShippedBefore 结算窗口任务：拉取发货后长期未确认收货的订单
func (r *OrderRepository) GetShippedBefore(ctx context.Context, beforeTime time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OrderStatusShipped, beforeTime).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
