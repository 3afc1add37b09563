package service

import (
	"context"
	"testing"

	"starcards/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func publishTestCar(t *testing.T, db *gorm.DB, slots []PublishSlotRequest) *model.Car {
	t.Helper()

	carService := NewCarService(db, testConfig())
	car, err := carService.PublishCar(context.Background(), &PublishCarRequest{
		HostName:    "测试商家",
		HostType:    model.HostTypeMerchant,
		Title:       "【测试IP】第一弹拼车",
		IPName:      "测试IP",
		BoxCount:    1,
		Description: "整箱拼车",
		Slots:       slots,
	})
	require.NoError(t, err)
	return car
}

func TestPurchaseTakesSlotsAndFlipsFull(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 2},
	})

	s := NewPurchaseService(db, nil, cfg)

	// 第一单占 1 位，车还在招募中
	resp, err := s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-001",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, resp.Status)
	assert.Equal(t, "100", resp.TotalPrice.String())
	assert.Equal(t, model.CarStatusRecruiting, resp.CarStatus)

	// 第二单占满最后一位，整车翻转为满员
	resp, err = s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-002",
		UserID:    1002,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusFull, resp.CarStatus)

	reloaded, err := NewCarService(db, cfg).GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusFull, reloaded.Status)
	assert.Equal(t, 2, reloaded.Slots[0].TakenSpots)
}

func TestPurchaseClampsOversizedCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(50), TotalSpots: 3},
	})

	s := NewPurchaseService(db, nil, testConfig())

	// 买 5 份只占到 3 位，金额仍按申报份数计
	resp, err := s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-clamp",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusFull, resp.CarStatus)
	assert.Equal(t, "250", resp.TotalPrice.String())

	reloaded, err := NewCarService(db, testConfig()).GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Slots[0].TakenSpots)
}

func TestPurchaseUnknownSlotNotCharged(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 5},
	})

	s := NewPurchaseService(db, nil, testConfig())

	resp, err := s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-unknown",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items: []PurchaseItemRequest{
			{SlotName: "艺人A", Count: 1},
			{SlotName: "不存在的位置", Count: 3},
		},
	})
	require.NoError(t, err)

	// 未知位置不计价也不占位
	assert.Equal(t, "100", resp.TotalPrice.String())

	reloaded, err := NewCarService(db, testConfig()).GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Slots[0].TakenSpots)
}

func TestPurchaseIdempotency(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 5},
	})

	s := NewPurchaseService(db, nil, testConfig())

	first, err := s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-dup",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	// 相同 request_id 重放：返回已有订单，不再占位
	second, err := s.Purchase(ctx, &PurchaseRequest{
		RequestID: "req-dup",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, first.OrderNo, second.OrderNo)

	reloaded, err := NewCarService(db, testConfig()).GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Slots[0].TakenSpots)
}

func TestPurchaseRejectsNonRecruitingCar(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 1},
	})

	s := NewPurchaseService(db, nil, testConfig())

	// 占满翻转为 FULL 之后不允许继续上车
	_, err := s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-full-1",
		UserID:    1001,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	_, err = s.purchase(ctx, &PurchaseRequest{
		RequestID: "req-full-2",
		UserID:    1002,
		CarNo:     car.CarNo,
		Items:     []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	assert.Error(t, err)
}
