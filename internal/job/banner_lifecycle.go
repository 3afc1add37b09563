package job

import (
	"context"
	"log"
	"time"

	"starcards/internal/model"
	"starcards/internal/repository"

	"gorm.io/gorm"
)

// BannerLifecycleJob 广告位生命周期任务：到投放时间自动上线，过期自动下线
type BannerLifecycleJob struct {
	db         *gorm.DB
	bannerRepo *repository.BannerRepository
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewBannerLifecycleJob(db *gorm.DB) *BannerLifecycleJob {
	return &BannerLifecycleJob{
		db:         db,
		bannerRepo: repository.NewBannerRepository(db),
		stopCh:     make(chan struct{}),
		interval:   30 * time.Second,
		batchSize:  100,
	}
}

func (j *BannerLifecycleJob) Start(ctx context.Context) {
	log.Println("[BannerLifecycle] 广告位生命周期任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[BannerLifecycle] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[BannerLifecycle] 任务停止")
			return
		case <-ticker.C:
			j.advanceLifecycle(ctx)
		}
	}
}

func (j *BannerLifecycleJob) Stop() {
	close(j.stopCh)
}

func (j *BannerLifecycleJob) advanceLifecycle(ctx context.Context) {
	now := time.Now()

	pending, err := j.bannerRepo.GetPendingToActivate(ctx, now, j.batchSize)
	if err != nil {
		log.Printf("[BannerLifecycle] 查询待上线广告失败: %v", err)
	} else {
		for _, campaign := range pending {
			if err := j.bannerRepo.UpdateStatus(ctx, nil, campaign.BannerNo, model.BannerStatusPending, model.BannerStatusActive); err != nil {
				log.Printf("[BannerLifecycle] 广告上线失败: bannerNo=%s, err=%v", campaign.BannerNo, err)
				continue
			}
			log.Printf("[BannerLifecycle] 广告已上线: bannerNo=%s, slot=%s", campaign.BannerNo, campaign.SlotID)
		}
	}

	expired, err := j.bannerRepo.GetActiveExpired(ctx, now, j.batchSize)
	if err != nil {
		log.Printf("[BannerLifecycle] 查询过期广告失败: %v", err)
		return
	}
	for _, campaign := range expired {
		if err := j.bannerRepo.UpdateStatus(ctx, nil, campaign.BannerNo, model.BannerStatusActive, model.BannerStatusExpired); err != nil {
			log.Printf("[BannerLifecycle] 广告下线失败: bannerNo=%s, err=%v", campaign.BannerNo, err)
			continue
		}
		log.Printf("[BannerLifecycle] 广告已过期下线: bannerNo=%s", campaign.BannerNo)
	}
}
