package repository

import (
	"context"
	"errors"
	"time"

	"starcards/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBannerNotFound      = errors.New("广告单不存在")
	ErrBannerStatusInvalid = errors.New("广告单状态不合法")
)

type BannerRepository struct {
	db *gorm.DB
}

func NewBannerRepository(db *gorm.DB) *BannerRepository {
	return &BannerRepository{db: db}
}

func (r *BannerRepository) Create(ctx context.Context, tx *gorm.DB, campaign *model.BannerCampaign) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(campaign).Error
}

func (r *BannerRepository) GetByBannerNo(ctx context.Context, bannerNo string) (*model.BannerCampaign, error) {
	var campaign model.BannerCampaign
	err := r.db.WithContext(ctx).Where("banner_no = ?", bannerNo).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBannerNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *BannerRepository) ListActive(ctx context.Context, slotID string, now time.Time) ([]*model.BannerCampaign, error) {
	var campaigns []*model.BannerCampaign
	err := r.db.WithContext(ctx).
		Where("slot_id = ? AND status = ? AND start_time <= ? AND end_time > ?",
			slotID, model.BannerStatusActive, now, now).
		Order("created_at ASC").
		Find(&campaigns).Error
	return campaigns, err
}

func (r *BannerRepository) ListByMerchant(ctx context.Context, merchantName string) ([]*model.BannerCampaign, error) {
	var campaigns []*model.BannerCampaign
	err := r.db.WithContext(ctx).
		Where("merchant_name = ?", merchantName).
		Order("created_at DESC").
		Find(&campaigns).Error
	return campaigns, err
}

func (r *BannerRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, bannerNo string, fromStatus, toStatus string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.BannerCampaign{}).
		Where("banner_no = ? AND status = ?", bannerNo, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBannerStatusInvalid
	}

	return nil
}

// GetPendingToActivate 已到投放开始时间的待生效广告
func (r *BannerRepository) GetPendingToActivate(ctx context.Context, now time.Time, limit int) ([]*model.BannerCampaign, error) {
	var campaigns []*model.BannerCampaign
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", model.BannerStatusPending, now).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

// GetActiveExpired 已过投放结束时间的在投广告
func (r *BannerRepository) GetActiveExpired(ctx context.Context, now time.Time, limit int) ([]*model.BannerCampaign, error) {
	var campaigns []*model.BannerCampaign
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", model.BannerStatusActive, now).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, err
}

func (r *BannerRepository) IncrementImpression(ctx context.Context, bannerNo string) error {
	return r.db.WithContext(ctx).
		Model(&model.BannerCampaign{}).
		Where("banner_no = ?", bannerNo).
		UpdateColumn("impression_count", gorm.Expr("impression_count + 1")).Error
}

func (r *BannerRepository) IncrementClick(ctx context.Context, bannerNo string) error {
	return r.db.WithContext(ctx).
		Model(&model.BannerCampaign{}).
		Where("banner_no = ?", bannerNo).
		UpdateColumn("click_count", gorm.Expr("click_count + 1")).Error
}
