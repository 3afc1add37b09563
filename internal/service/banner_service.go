package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"starcards/internal/config"
	"starcards/internal/model"
	"starcards/internal/repository"
	"starcards/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BannerService struct {
	db              *gorm.DB
	cfg             *config.Config
	bannerRepo      *repository.BannerRepository
	walletRepo      *repository.WalletRepository
	transactionRepo *repository.TransactionRepository
}

func NewBannerService(db *gorm.DB, cfg *config.Config) *BannerService {
	return &BannerService{
		db:              db,
		cfg:             cfg,
		bannerRepo:      repository.NewBannerRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

type PurchaseBannerRequest struct {
	MerchantName string          `json:"merchant_name" binding:"required"`
	SlotID       string          `json:"slot_id" binding:"required"`
	ImageURL     string          `json:"image_url" binding:"required"`
	TargetURL    string          `json:"target_url"`
	Title        string          `json:"title"`
	StartTime    time.Time       `json:"start_time" binding:"required"`
	EndTime      time.Time       `json:"end_time" binding:"required"`
	Price        decimal.Decimal `json:"price" binding:"required"`
}

// PurchaseBanner 购买广告位，费用从钱包可提现余额扣除
func (s *BannerService) PurchaseBanner(ctx context.Context, req *PurchaseBannerRequest) (*model.BannerCampaign, error) {
	if !model.IsValidBannerSlot(req.SlotID) {
		return nil, errors.New("广告位不存在")
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, errors.New("投放结束时间必须晚于开始时间")
	}
	if !req.Price.IsPositive() {
		return nil, errors.New("广告位价格必须大于0")
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, req.MerchantName)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	if req.Price.GreaterThan(wallet.AvailableBalance) {
		return nil, repository.ErrBalanceNotEnough
	}

	bannerNo := idgen.GenerateBannerNo()
	campaign := &model.BannerCampaign{
		BannerNo:     bannerNo,
		MerchantName: req.MerchantName,
		SlotID:       req.SlotID,
		ImageURL:     req.ImageURL,
		TargetURL:    req.TargetURL,
		Title:        req.Title,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Price:        req.Price,
		Status:       model.BannerStatusPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.walletRepo.Debit(ctx, tx, req.MerchantName, req.Price, wallet.Version); err != nil {
			if errors.Is(err, repository.ErrBalanceNotEnough) {
				return repository.ErrBalanceNotEnough
			}
			if errors.Is(err, repository.ErrOptimisticLock) {
				return errors.New("系统繁忙，请重试")
			}
			return fmt.Errorf("余额扣减失败: %w", err)
		}

		if err := s.bannerRepo.Create(ctx, tx, campaign); err != nil {
			return fmt.Errorf("创建广告单失败: %w", err)
		}

		trans := &model.WalletTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			MerchantName:  req.MerchantName,
			RefNo:         bannerNo,
			Type:          model.TransactionTypeFee,
			Amount:        req.Price.Neg(),
			Description:   fmt.Sprintf("广告位购买-%s", req.SlotID),
			Status:        model.TransactionStatusSuccess,
		}
		return s.transactionRepo.Create(ctx, tx, trans)
	})

	if err != nil {
		return nil, err
	}

	log.Printf("广告位购买成功: bannerNo=%s, merchant=%s, slot=%s, price=%s",
		bannerNo, req.MerchantName, req.SlotID, req.Price.String())

	return campaign, nil
}

func (s *BannerService) ListActive(ctx context.Context, slotID string) ([]*model.BannerCampaign, error) {
	if !model.IsValidBannerSlot(slotID) {
		return nil, errors.New("广告位不存在")
	}
	return s.bannerRepo.ListActive(ctx, slotID, time.Now())
}

func (s *BannerService) ListByMerchant(ctx context.Context, merchantName string) ([]*model.BannerCampaign, error) {
	return s.bannerRepo.ListByMerchant(ctx, merchantName)
}

func (s *BannerService) TrackImpression(ctx context.Context, bannerNo string) error {
	return s.bannerRepo.IncrementImpression(ctx, bannerNo)
}

func (s *BannerService) TrackClick(ctx context.Context, bannerNo string) error {
	return s.bannerRepo.IncrementClick(ctx, bannerNo)
}
