package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 广告位
const (
	BannerSlotHomeTop         = "HOME_TOP"
	BannerSlotMerchantListTop = "MERCHANT_LIST_TOP"
	BannerSlotCarDetailMid    = "CAR_DETAIL_MID"
)

// 广告投放状态
const (
	BannerStatusPending  = "PENDING"  // 待生效
	BannerStatusActive   = "ACTIVE"   // 投放中
	BannerStatusExpired  = "EXPIRED"  // 已结束
	BannerStatusRejected = "REJECTED" // 审核拒绝
)

func IsValidBannerSlot(slotID string) bool {
	switch slotID {
	case BannerSlotHomeTop, BannerSlotMerchantListTop, BannerSlotCarDetailMid:
		return true
	}
	return false
}

// BannerCampaign 广告位购买记录，费用从商家钱包余额扣除
type BannerCampaign struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BannerNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"banner_no"`
	MerchantName    string          `gorm:"type:varchar(64);index;not null" json:"merchant_name"`
	SlotID          string          `gorm:"type:varchar(32);index;not null" json:"slot_id"`
	ImageURL        string          `gorm:"type:varchar(256);not null" json:"image_url"`
	TargetURL       string          `gorm:"type:varchar(256)" json:"target_url"`
	Title           string          `gorm:"type:varchar(128)" json:"title"`
	StartTime       time.Time       `gorm:"not null;index" json:"start_time"`
	EndTime         time.Time       `gorm:"not null;index" json:"end_time"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Status          string          `gorm:"type:varchar(20);index;not null" json:"status"`
	ImpressionCount int64           `gorm:"not null;default:0" json:"impression_count"`
	ClickCount      int64           `gorm:"not null;default:0" json:"click_count"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BannerCampaign) TableName() string {
	return "banner_campaign"
}
