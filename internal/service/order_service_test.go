package service

import (
	"context"
	"testing"

	"starcards/internal/model"
	"starcards/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// shipTestOrder 把订单推进到已发货状态（开箱 -> 申请发货）
func shipTestOrder(t *testing.T, db *gorm.DB, carNo, orderNo string) {
	t.Helper()
	cfg := testConfig()
	ctx := context.Background()

	_, err := NewOpenBoxService(db, cfg).OpenBox(ctx, &OpenBoxRequest{
		CarNo: carNo,
		Results: map[string][]CardInput{
			"艺人A": {{Name: "普卡", Rarity: "R"}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, NewOrderService(db, cfg).RequestShipping(ctx, orderNo))
}

func TestSettleCreditsWallet(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(256), TotalSpots: 3},
	})

	resp, err := NewPurchaseService(db, nil, cfg).purchase(ctx, &PurchaseRequest{
		RequestID: "settle-req-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	shipTestOrder(t, db, car.CarNo, resp.OrderNo)

	orderService := NewOrderService(db, cfg)
	settled, err := orderService.ConfirmReceipt(ctx, resp.OrderNo)
	require.NoError(t, err)

	// 256 -> 服务费 6.40，通道费 1.02，净额 248.58
	assert.Equal(t, model.OrderStatusCompleted, settled.Status)
	assert.True(t, settled.IsSettled)
	assert.Equal(t, "6.40", settled.ServiceFee.StringFixed(2))
	assert.Equal(t, "1.02", settled.PaymentFee.StringFixed(2))
	assert.Equal(t, "248.58", settled.SettledAmount.StringFixed(2))

	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "256.00", wallet.TotalIncome.StringFixed(2))
	assert.Equal(t, "248.58", wallet.AvailableBalance.StringFixed(2))

	// 入账 + 扣费两笔流水
	transactions, total, err := repository.NewTransactionRepository(db).ListByMerchant(ctx, "测试商家", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, transactions, 2)
}

func TestSettleIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(200), TotalSpots: 3},
	})

	resp, err := NewPurchaseService(db, nil, cfg).purchase(ctx, &PurchaseRequest{
		RequestID: "settle-dup-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	shipTestOrder(t, db, car.CarNo, resp.OrderNo)

	orderService := NewOrderService(db, cfg)
	_, err = orderService.ConfirmReceipt(ctx, resp.OrderNo)
	require.NoError(t, err)

	// 重复确认收货不产生第二次入账
	settled, err := orderService.ConfirmReceipt(ctx, resp.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCompleted, settled.Status)

	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "194.20", wallet.AvailableBalance.StringFixed(2))

	_, total, err := repository.NewTransactionRepository(db).ListByMerchant(ctx, "测试商家", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestSettleRejectsUnshippedOrder(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	resp, err := NewPurchaseService(db, nil, cfg).purchase(ctx, &PurchaseRequest{
		RequestID: "settle-early-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	// 未发货不能结算
	_, err = NewOrderService(db, cfg).ConfirmReceipt(ctx, resp.OrderNo)
	assert.Error(t, err)
}

func TestRequestShippingRejectsPaidOrder(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	resp, err := NewPurchaseService(db, nil, cfg).purchase(ctx, &PurchaseRequest{
		RequestID: "ship-early-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)

	// 未开箱不能申请发货
	err = NewOrderService(db, cfg).RequestShipping(ctx, resp.OrderNo)
	assert.Error(t, err)
}

func TestCarLifecycleEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 2},
	})

	purchaseService := NewPurchaseService(db, nil, cfg)
	orderService := NewOrderService(db, cfg)
	carService := NewCarService(db, cfg)

	// 两单占满整车
	o1, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "e2e-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	o2, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "e2e-2", UserID: 1002, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusFull, o2.CarStatus)

	// 开箱分卡
	_, err = NewOpenBoxService(db, cfg).OpenBox(ctx, &OpenBoxRequest{
		CarNo: car.CarNo,
		Results: map[string][]CardInput{
			"艺人A": {{Name: "签名卡", Rarity: "SSR"}},
		},
	})
	require.NoError(t, err)

	// 两位买家申请发货，车头标记整车发货
	require.NoError(t, orderService.RequestShipping(ctx, o1.OrderNo))
	require.NoError(t, orderService.RequestShipping(ctx, o2.OrderNo))
	require.NoError(t, carService.ShipCar(ctx, car.CarNo))

	reloadedCar, err := carService.GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusShipped, reloadedCar.Status)

	// 确认收货结算：每单 100 -> 净额 97.10
	_, err = orderService.ConfirmReceipt(ctx, o1.OrderNo)
	require.NoError(t, err)
	_, err = orderService.ConfirmReceipt(ctx, o2.OrderNo)
	require.NoError(t, err)

	wallet, err := repository.NewWalletRepository(db).GetByMerchantName(ctx, "测试商家")
	require.NoError(t, err)
	assert.Equal(t, "200.00", wallet.TotalIncome.StringFixed(2))
	assert.Equal(t, "194.20", wallet.AvailableBalance.StringFixed(2))
}
