package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCar() *Car {
	return &Car{
		CarNo:  "CAR001",
		Status: CarStatusRecruiting,
		Slots: []CarSlot{
			{Name: "艺人A", Price: decimal.NewFromInt(100), TotalSpots: 5, TakenSpots: 0},
			{Name: "艺人B", Price: decimal.NewFromFloat(128.5), TotalSpots: 3, TakenSpots: 0},
		},
	}
}

func TestApplyPurchaseClampsToCapacity(t *testing.T) {
	car := newTestCar()
	car.Slots[0].TakenSpots = 3

	// 余位只剩 2，买 4 份按上限截断
	full := car.ApplyPurchase([]PurchaseItem{{SlotName: "艺人A", Count: 4}})

	assert.Equal(t, 5, car.Slots[0].TakenSpots)
	assert.False(t, full)
}

func TestApplyPurchaseIgnoresUnknownSlot(t *testing.T) {
	car := newTestCar()

	full := car.ApplyPurchase([]PurchaseItem{
		{SlotName: "不存在的位置", Count: 2},
		{SlotName: "艺人B", Count: 1},
	})

	assert.Equal(t, 0, car.Slots[0].TakenSpots)
	assert.Equal(t, 1, car.Slots[1].TakenSpots)
	assert.False(t, full)
}

func TestApplyPurchaseDetectsFull(t *testing.T) {
	car := newTestCar()

	full := car.ApplyPurchase([]PurchaseItem{
		{SlotName: "艺人A", Count: 5},
		{SlotName: "艺人B", Count: 3},
	})

	assert.True(t, full)
	assert.True(t, car.IsFull())
}

func TestIsFullEmptySlots(t *testing.T) {
	car := &Car{CarNo: "CAR002", Status: CarStatusRecruiting}
	assert.False(t, car.IsFull())
}

func TestPriceOf(t *testing.T) {
	car := newTestCar()

	total := car.PriceOf([]PurchaseItem{
		{SlotName: "艺人A", Count: 2},
		{SlotName: "艺人B", Count: 1},
		{SlotName: "不存在的位置", Count: 10},
	})

	// 100*2 + 128.5*1，未知位置不计价
	require.True(t, total.Equal(decimal.NewFromFloat(328.5)), "got %s", total)
}

func TestCarStatusTransitions(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{CarStatusRecruiting, CarStatusFull, true},
		{CarStatusRecruiting, CarStatusOpened, true}, // 车头可以不满员强开
		{CarStatusFull, CarStatusOpened, true},
		{CarStatusOpened, CarStatusShipped, true},
		{CarStatusFull, CarStatusRecruiting, false},
		{CarStatusRecruiting, CarStatusShipped, false},
		{CarStatusShipped, CarStatusOpened, false},
		{CarStatusShipped, CarStatusRecruiting, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CarCanTransitionTo(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
