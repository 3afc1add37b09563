package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 拼车（团购车队）状态常量
// ============================================================================

const (
	CarStatusRecruiting = "RECRUITING" // 招募中
	CarStatusFull       = "FULL"       // 满员待开
	CarStatusOpened     = "OPENED"     // 已开箱
	CarStatusShipped    = "SHIPPED"    // 已发货
)

// 车头类型
const (
	HostTypeMerchant  = "MERCHANT"   // A类：有货有执照的商家
	HostTypeFanLeader = "FAN_LEADER" // B类：绑定供货商家的粉头
)

// 车队状态只能单向流转：满员后不允许回到招募中，开箱/发货由车头触发且不可逆。
// 招募中允许直接开箱（车头可以不满员强开）。
var ValidCarStatusTransitions = map[string][]string{
	CarStatusRecruiting: {CarStatusFull, CarStatusOpened},
	CarStatusFull:       {CarStatusOpened},
	CarStatusOpened:     {CarStatusShipped},
}

func CarCanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidCarStatusTransitions[currentStatus]
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

// Car 拼车表
// 一辆车是一次集卡盲盒的拼箱团购，由车头（商家或粉头）发起
type Car struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CarNo        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"car_no"`
	Title        string    `gorm:"type:varchar(128);not null" json:"title"`
	IPName       string    `gorm:"type:varchar(64);not null" json:"ip_name"`       // IP/剧目名
	SeriesName   string    `gorm:"type:varchar(64)" json:"series_name"`            // 弹数/系列
	BoxCount     int       `gorm:"not null" json:"box_count"`                      // 拼箱数
	HostName     string    `gorm:"type:varchar(64);index;not null" json:"host_name"`
	HostType     string    `gorm:"type:varchar(20);not null" json:"host_type"`
	SupplierName string    `gorm:"type:varchar(64)" json:"supplier_name"`          // B类车头绑定的供货商家
	Status       string    `gorm:"type:varchar(20);index;not null" json:"status"`
	CoverImage   string    `gorm:"type:varchar(256)" json:"cover_image"`
	Description  string    `gorm:"type:text" json:"description"`
	ExtraNote    string    `gorm:"type:varchar(512)" json:"extra_note"`
	Slots        []CarSlot `gorm:"foreignKey:CarID" json:"slots"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Car) TableName() string {
	return "car"
}

// CarSlot 车位表
// 每个位置对应一位艺人或特典，插入顺序即展示顺序
type CarSlot struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CarID      int64           `gorm:"index;not null" json:"car_id"`
	Name       string          `gorm:"type:varchar(64);not null" json:"name"`
	AvatarURL  string          `gorm:"type:varchar(256)" json:"avatar_url"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`       // 单价
	TotalSpots int             `gorm:"not null" json:"total_spots"`                    // 总位数
	TakenSpots int             `gorm:"not null;default:0" json:"taken_spots"`          // 已占位数
	IsHot      bool            `gorm:"not null;default:false" json:"is_hot"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CarSlot) TableName() string {
	return "car_slot"
}

// PurchaseItem 一条购买明细：位置名 + 份数
type PurchaseItem struct {
	SlotName string
	Count    int
}

// ApplyPurchase 在内存中执行占位扣减
//
// 扣减规则沿用线上行为：
//   - 超出余位的部分直接按上限截断，不报错
//   - 位置名不存在的明细直接忽略，不报错
//
// 返回扣减后整车是否满员。调用方负责在同一事务里持久化车位与状态。
func (c *Car) ApplyPurchase(items []PurchaseItem) bool {
	for _, item := range items {
		if item.Count <= 0 {
			continue
		}
		for i := range c.Slots {
			if c.Slots[i].Name != item.SlotName {
				continue
			}
			taken := c.Slots[i].TakenSpots + item.Count
			if taken > c.Slots[i].TotalSpots {
				taken = c.Slots[i].TotalSpots
			}
			c.Slots[i].TakenSpots = taken
			break
		}
	}
	return c.IsFull()
}

// IsFull 所有位置都占满才算满员
func (c *Car) IsFull() bool {
	if len(c.Slots) == 0 {
		return false
	}
	for _, slot := range c.Slots {
		if slot.TakenSpots < slot.TotalSpots {
			return false
		}
	}
	return true
}

// PriceOf 按车位单价计算一组明细的应付金额，未知位置不计价
func (c *Car) PriceOf(items []PurchaseItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Count <= 0 {
			continue
		}
		for _, slot := range c.Slots {
			if slot.Name == item.SlotName {
				total = total.Add(slot.Price.Mul(decimal.NewFromInt(int64(item.Count))))
				break
			}
		}
	}
	return total
}
