package handler

import (
	"starcards/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 车队相关
		car := api.Group("/car")
		{
			car.POST("/publish", h.PublishCar)
			car.GET("/detail", h.GetCar)
			car.GET("/list", h.ListCars)
			car.GET("/host", h.ListHostCars)
			car.POST("/open", h.OpenBox)
			car.POST("/ship", h.ShipCar)
		}

		// 订单相关
		order := api.Group("/order")
		{
			order.POST("/purchase", h.Purchase)
			order.GET("/detail", h.GetOrder)
			order.GET("/list", h.ListOrders)
			order.POST("/ship", h.RequestShipping)
			order.POST("/confirm", h.ConfirmReceipt)
		}

		// 钱包相关
		wallet := api.Group("/wallet")
		{
			wallet.GET("/detail", h.GetWallet)
			wallet.POST("/withdraw", h.RequestWithdrawal)
			wallet.POST("/withdraw/resolve", h.ResolveWithdrawal)
		}

		// 广告位相关
		banner := api.Group("/banner")
		{
			banner.POST("/purchase", h.PurchaseBanner)
			banner.GET("/active", h.ListActiveBanners)
			banner.GET("/list", h.ListMerchantBanners)
			banner.POST("/track", h.TrackBanner)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
