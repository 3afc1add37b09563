package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPaid      = "PAID"      // 已支付，占位成功
	OrderStatusOpened    = "OPENED"    // 所在车已开箱，卡片已分发
	OrderStatusShipped   = "SHIPPED"   // 已申请发货
	OrderStatusCompleted = "COMPLETED" // 已确认收货并完成结算
)

// 订单状态单向流转，不允许跳级：未开箱不能发货，未发货不能结算
var ValidOrderStatusTransitions = map[string][]string{
	OrderStatusPaid:    {OrderStatusOpened},
	OrderStatusOpened:  {OrderStatusShipped},
	OrderStatusShipped: {OrderStatusCompleted},
}

func OrderCanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidOrderStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// 平台定价：技术服务费 2.5%，支付通道费 0.4%
var (
	ServiceFeeRate = decimal.NewFromFloat(0.025)
	PaymentFeeRate = decimal.NewFromFloat(0.004)
)

// ComputeSettlement 计算订单结算三要素
// 各项金额四舍五入保留两位小数，实际入账 = 总价 - 服务费 - 通道费
func ComputeSettlement(totalPrice decimal.Decimal) (serviceFee, paymentFee, settledAmount decimal.Decimal) {
	serviceFee = totalPrice.Mul(ServiceFeeRate).Round(2)
	paymentFee = totalPrice.Mul(PaymentFeeRate).Round(2)
	settledAmount = totalPrice.Sub(serviceFee).Sub(paymentFee)
	return serviceFee, paymentFee, settledAmount
}

// Order 订单表
// 一张订单对应买家在一辆车上的一次购买
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`
	RequestID     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"` // 幂等ID，客户端生成
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	CarNo         string          `gorm:"type:varchar(64);index;not null" json:"car_no"`
	CarTitle      string          `gorm:"type:varchar(128);not null" json:"car_title"`
	CarImage      string          `gorm:"type:varchar(256)" json:"car_image"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	Status        string          `gorm:"type:varchar(20);index;not null" json:"status"`
	IsSettled     bool            `gorm:"not null;default:false" json:"is_settled"`
	ServiceFee    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"service_fee"`    // 结算时写入
	PaymentFee    decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"payment_fee"`    // 结算时写入
	SettledAmount decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"settled_amount"` // 结算时写入
	Items         []OrderItem     `gorm:"foreignKey:OrderNo;references:OrderNo" json:"items"`
	Hits          []CardResult    `gorm:"foreignKey:OrderNo;references:OrderNo" json:"hits"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "car_order"
}

// OrderItem 订单明细：位置名 + 份数
type OrderItem struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo  string `gorm:"type:varchar(64);index;not null" json:"order_no"`
	SlotName string `gorm:"type:varchar(64);not null" json:"slot_name"`
	Count    int    `gorm:"not null" json:"count"`
}

func (OrderItem) TableName() string {
	return "car_order_item"
}
