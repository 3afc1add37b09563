package job

import (
	"context"
	"log"
	"time"

	"starcards/internal/config"
	"starcards/internal/repository"
	"starcards/internal/service"

	"gorm.io/gorm"
)

// SettlementWindowJob 结算窗口任务
//
// 发货后超过结算窗口仍未确认收货的订单，视作默认确认，自动触发结算。
type SettlementWindowJob struct {
	db           *gorm.DB
	cfg          *config.Config
	orderRepo    *repository.OrderRepository
	orderService *service.OrderService
	stopCh       chan struct{}
	interval     time.Duration
	batchSize    int
}

func NewSettlementWindowJob(db *gorm.DB, cfg *config.Config, orderService *service.OrderService) *SettlementWindowJob {
	return &SettlementWindowJob{
		db:           db,
		cfg:          cfg,
		orderRepo:    repository.NewOrderRepository(db),
		orderService: orderService,
		stopCh:       make(chan struct{}),
		interval:     time.Minute,
		batchSize:    100,
	}
}

func (j *SettlementWindowJob) Start(ctx context.Context) {
	log.Println("[SettlementWindow] 自动结算任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SettlementWindow] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[SettlementWindow] 任务停止")
			return
		case <-ticker.C:
			j.settleExpiredOrders(ctx)
		}
	}
}

func (j *SettlementWindowJob) Stop() {
	close(j.stopCh)
}

func (j *SettlementWindowJob) settleExpiredOrders(ctx context.Context) {
	deadline := time.Now().Add(-time.Duration(j.cfg.Business.SettlementWindowHours) * time.Hour)

	orders, err := j.orderRepo.GetShippedBefore(ctx, deadline, j.batchSize)
	if err != nil {
		log.Printf("[SettlementWindow] 查询到期订单失败: %v", err)
		return
	}

	for _, order := range orders {
		if _, err := j.orderService.Settle(ctx, order); err != nil {
			log.Printf("[SettlementWindow] 订单结算失败: orderNo=%s, err=%v", order.OrderNo, err)
			continue
		}
		log.Printf("[SettlementWindow] 超期订单自动结算: orderNo=%s", order.OrderNo)
	}
}
