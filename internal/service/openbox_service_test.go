package service

import (
	"context"
	"testing"

	"starcards/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBoxDistributesCardsToAllBuyers(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
		{Name: "艺人B", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	purchaseService := NewPurchaseService(db, nil, cfg)

	// 两位买家买同一个位置，一位买家买另一个位置
	order1, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "open-req-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 1}},
	})
	require.NoError(t, err)
	order2, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "open-req-2", UserID: 1002, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人A", Count: 2}},
	})
	require.NoError(t, err)
	order3, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "open-req-3", UserID: 1003, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人B", Count: 1}},
	})
	require.NoError(t, err)

	openBoxService := NewOpenBoxService(db, cfg)
	resp, err := openBoxService.OpenBox(ctx, &OpenBoxRequest{
		CarNo: car.CarNo,
		Results: map[string][]CardInput{
			"艺人A": {
				{Name: "签名卡", Rarity: "SSR", ArtistName: "艺人A"},
				{Name: "普卡", Rarity: "R", ArtistName: "艺人A"},
			},
			"艺人B": {
				{Name: "特典卡", Rarity: "SSP", ArtistName: "艺人B"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusOpened, resp.Status)
	assert.Equal(t, 3, resp.OrderCount)

	orderService := NewOrderService(db, cfg)

	// 同一位置的开箱结果广播给每个买家，各自持有独立的卡片记录
	o1, err := orderService.GetOrder(ctx, order1.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusOpened, o1.Status)
	assert.Len(t, o1.Hits, 2)

	o2, err := orderService.GetOrder(ctx, order2.OrderNo)
	require.NoError(t, err)
	assert.Len(t, o2.Hits, 2)

	o3, err := orderService.GetOrder(ctx, order3.OrderNo)
	require.NoError(t, err)
	assert.Len(t, o3.Hits, 1)
	assert.Equal(t, "SSP", o3.Hits[0].Rarity)

	// 卡片编号全局唯一，不同订单不共享记录
	assert.NotEqual(t, o1.Hits[0].CardNo, o2.Hits[0].CardNo)
}

func TestOpenBoxOrderWithoutResultsStillAdvances(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
		{Name: "艺人B", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	purchaseService := NewPurchaseService(db, nil, cfg)
	order, err := purchaseService.purchase(ctx, &PurchaseRequest{
		RequestID: "open-miss-1", UserID: 1001, CarNo: car.CarNo,
		Items: []PurchaseItemRequest{{SlotName: "艺人B", Count: 1}},
	})
	require.NoError(t, err)

	// 只录入艺人A的结果，买艺人B的订单没有中卡，状态照样推进
	openBoxService := NewOpenBoxService(db, cfg)
	_, err = openBoxService.OpenBox(ctx, &OpenBoxRequest{
		CarNo: car.CarNo,
		Results: map[string][]CardInput{
			"艺人A": {{Name: "普卡", Rarity: "R"}},
		},
	})
	require.NoError(t, err)

	reloaded, err := NewOrderService(db, cfg).GetOrder(ctx, order.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusOpened, reloaded.Status)
	assert.Empty(t, reloaded.Hits)
}

func TestOpenBoxRejectsInvalidRarity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	openBoxService := NewOpenBoxService(db, testConfig())
	_, err := openBoxService.OpenBox(ctx, &OpenBoxRequest{
		CarNo: car.CarNo,
		Results: map[string][]CardInput{
			"艺人A": {{Name: "假卡", Rarity: "UR"}},
		},
	})
	assert.Error(t, err)

	// 校验失败不产生任何状态变更
	reloaded, err := NewCarService(db, testConfig()).GetCar(ctx, car.CarNo)
	require.NoError(t, err)
	assert.Equal(t, model.CarStatusRecruiting, reloaded.Status)
}

func TestOpenBoxRejectsOpenedCar(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	car := publishTestCar(t, db, []PublishSlotRequest{
		{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 3},
	})

	openBoxService := NewOpenBoxService(db, cfg)
	req := &OpenBoxRequest{
		CarNo: car.CarNo,
		Results: map[string][]CardInput{
			"艺人A": {{Name: "普卡", Rarity: "R"}},
		},
	}

	_, err := openBoxService.OpenBox(ctx, req)
	require.NoError(t, err)

	// 开箱不可逆，重复开箱被拒绝
	_, err = openBoxService.OpenBox(ctx, req)
	assert.Error(t, err)
}
