package model

import (
	"time"
)

// 卡片稀有度，由低到高
const (
	RarityR   = "R"
	RaritySR  = "SR"
	RaritySSR = "SSR"
	RaritySSP = "SSP"
)

// RarityRank 稀有度排序权重，数值越大越稀有
var RarityRank = map[string]int{
	RarityR:   1,
	RaritySR:  2,
	RaritySSR: 3,
	RaritySSP: 4,
}

func IsValidRarity(rarity string) bool {
	_, ok := RarityRank[rarity]
	return ok
}

// CardResult 中卡记录
// 开箱分卡时写入，归属唯一订单，写入后不再修改
type CardResult struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CardNo     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"card_no"`
	OrderNo    string    `gorm:"type:varchar(64);index;not null" json:"order_no"`
	Name       string    `gorm:"type:varchar(64);not null" json:"name"`
	Rarity     string    `gorm:"type:varchar(10);not null" json:"rarity"`
	ArtistName string    `gorm:"type:varchar(64);not null" json:"artist_name"`
	ImageURL   string    `gorm:"type:varchar(256)" json:"image_url"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (CardResult) TableName() string {
	return "card_result"
}
