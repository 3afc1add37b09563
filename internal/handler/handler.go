package handler

import (
	"errors"
	"strconv"

	"starcards/internal/config"
	"starcards/internal/repository"
	"starcards/internal/service"
	"starcards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	carService      *service.CarService
	purchaseService *service.PurchaseService
	openBoxService  *service.OpenBoxService
	orderService    *service.OrderService
	walletService   *service.WalletService
	bannerService   *service.BannerService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		carService:      service.NewCarService(db, cfg),
		purchaseService: service.NewPurchaseService(db, rdb, cfg),
		openBoxService:  service.NewOpenBoxService(db, cfg),
		orderService:    service.NewOrderService(db, cfg),
		walletService:   service.NewWalletService(db, rdb, cfg),
		bannerService:   service.NewBannerService(db, cfg),
	}
}

// ============================================================
// 车队相关接口
// ============================================================

// PublishCar 发车
// POST /api/v1/car/publish
func (h *Handler) PublishCar(c *gin.Context) {
	var req service.PublishCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	car, err := h.carService.PublishCar(c.Request.Context(), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"car_no": car.CarNo,
		"title":  car.Title,
		"status": car.Status,
	})
}

// GetCar 查询车队详情
// GET /api/v1/car/detail?car_no=xxx
func (h *Handler) GetCar(c *gin.Context) {
	carNo := c.Query("car_no")
	if carNo == "" {
		response.ParamError(c, "car_no 参数不能为空")
		return
	}

	car, err := h.carService.GetCar(c.Request.Context(), carNo)
	if err != nil {
		if errors.Is(err, repository.ErrCarNotFound) {
			response.BusinessError(c, response.CodeCarNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, car)
}

// ListCars 查询车队列表
// GET /api/v1/car/list?status=RECRUITING&page=1&page_size=10
func (h *Handler) ListCars(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	cars, total, err := h.carService.ListCars(c.Request.Context(), status, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      cars,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListHostCars 查询车头名下的车队
// GET /api/v1/car/host?host_name=xxx
func (h *Handler) ListHostCars(c *gin.Context) {
	hostName := c.Query("host_name")
	if hostName == "" {
		response.ParamError(c, "host_name 参数不能为空")
		return
	}

	cars, err := h.carService.ListByHost(c.Request.Context(), hostName)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, cars)
}

// OpenBox 开箱分卡
// POST /api/v1/car/open
//
// 【关键点】开箱是车队生命周期的核心操作：
// 1. 整车状态 RECRUITING/FULL -> OPENED，不可逆
// 2. 各位置开出的卡片分发到购买过该位置的全部订单
// 3. 状态翻转、铸卡、订单推进在同一事务内完成
func (h *Handler) OpenBox(c *gin.Context) {
	var req service.OpenBoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.openBoxService.OpenBox(c.Request.Context(), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ShipCar 车头标记整车发货
// POST /api/v1/car/ship
func (h *Handler) ShipCar(c *gin.Context) {
	var req struct {
		CarNo string `json:"car_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.carService.ShipCar(c.Request.Context(), req.CarNo); err != nil {
		if errors.Is(err, repository.ErrCarStatusInvalid) {
			response.BusinessError(c, response.CodeCarStatusInvalid, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "整车已发货",
	})
}

// ============================================================
// 上车/订单相关接口
// ============================================================

// Purchase 上车（支付回调后的占位确认）
// POST /api/v1/order/purchase
//
// 【关键点】上车是整个系统最核心的操作，需要保证：
// 1. 幂等性：相同的 request_id 只会占位一次
// 2. 原子性：建单、占位扣减、满员翻转必须同时成功或同时失败
// 3. 并发安全：通过分布式锁串行化同一买家的请求
func (h *Handler) Purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.purchaseService.Purchase(c.Request.Context(), &req)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// GetOrder 查询订单详情（含中卡记录）
// GET /api/v1/order/detail?order_no=xxx
func (h *Handler) GetOrder(c *gin.Context) {
	orderNo := c.Query("order_no")
	if orderNo == "" {
		response.ParamError(c, "order_no 参数不能为空")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, order)
}

// ListOrders 查询用户订单列表
// GET /api/v1/order/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// RequestShipping 买家申请发货
// POST /api/v1/order/ship
func (h *Handler) RequestShipping(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.orderService.RequestShipping(c.Request.Context(), req.OrderNo); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "已申请发货",
	})
}

// ConfirmReceipt 买家确认收货，触发订单结算
// POST /api/v1/order/confirm
func (h *Handler) ConfirmReceipt(c *gin.Context) {
	var req struct {
		OrderNo string `json:"order_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.ConfirmReceipt(c.Request.Context(), req.OrderNo)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			response.BusinessError(c, response.CodeOrderNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"order_no":       order.OrderNo,
		"status":         order.Status,
		"service_fee":    order.ServiceFee,
		"payment_fee":    order.PaymentFee,
		"settled_amount": order.SettledAmount,
	})
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetWallet 查询商家钱包详情（余额 + 流水 + 提现记录）
// GET /api/v1/wallet/detail?merchant_name=xxx
func (h *Handler) GetWallet(c *gin.Context) {
	merchantName := c.Query("merchant_name")
	if merchantName == "" {
		response.ParamError(c, "merchant_name 参数不能为空")
		return
	}

	detail, err := h.walletService.GetWallet(c.Request.Context(), merchantName)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, detail)
}

// RequestWithdrawal 商家提现申请
// POST /api/v1/wallet/withdraw
//
// 【关键点】提现规则：
// 1. 单笔不低于最低提现金额
// 2. 当日首笔免手续费，之后每笔收 0.1%
// 3. T+1 个工作日到账
func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req service.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.walletService.RequestWithdrawal(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, result)
}

// ResolveWithdrawal 支付通道回调，推进提现单终态
// POST /api/v1/wallet/withdraw/resolve
func (h *Handler) ResolveWithdrawal(c *gin.Context) {
	var req struct {
		WithdrawalNo string `json:"withdrawal_no" binding:"required"`
		Approve      *bool  `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.walletService.ResolveWithdrawal(c.Request.Context(), req.WithdrawalNo, *req.Approve)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			response.BusinessError(c, response.CodeWithdrawalNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"withdrawal_no": request.WithdrawalNo,
		"status":        request.Status,
	})
}

// ============================================================
// 广告位相关接口
// ============================================================

// PurchaseBanner 商家购买广告位
// POST /api/v1/banner/purchase
func (h *Handler) PurchaseBanner(c *gin.Context) {
	var req service.PurchaseBannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	campaign, err := h.bannerService.PurchaseBanner(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"banner_no": campaign.BannerNo,
		"slot_id":   campaign.SlotID,
		"status":    campaign.Status,
	})
}

// ListActiveBanners 查询指定广告位的在投广告
// GET /api/v1/banner/active?slot_id=xxx
func (h *Handler) ListActiveBanners(c *gin.Context) {
	slotID := c.Query("slot_id")
	if slotID == "" {
		response.ParamError(c, "slot_id 参数不能为空")
		return
	}

	campaigns, err := h.bannerService.ListActive(c.Request.Context(), slotID)
	if err != nil {
		response.BusinessError(c, response.CodeBannerSlotInvalid, err.Error())
		return
	}

	response.Success(c, campaigns)
}

// ListMerchantBanners 查询商家的广告投放记录
// GET /api/v1/banner/list?merchant_name=xxx
func (h *Handler) ListMerchantBanners(c *gin.Context) {
	merchantName := c.Query("merchant_name")
	if merchantName == "" {
		response.ParamError(c, "merchant_name 参数不能为空")
		return
	}

	campaigns, err := h.bannerService.ListByMerchant(c.Request.Context(), merchantName)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, campaigns)
}

// TrackBanner 广告曝光/点击上报
// POST /api/v1/banner/track
func (h *Handler) TrackBanner(c *gin.Context) {
	var req struct {
		BannerNo string `json:"banner_no" binding:"required"`
		Event    string `json:"event" binding:"required"` // impression / click
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var err error
	switch req.Event {
	case "impression":
		err = h.bannerService.TrackImpression(c.Request.Context(), req.BannerNo)
	case "click":
		err = h.bannerService.TrackClick(c.Request.Context(), req.BannerNo)
	default:
		response.ParamError(c, "event 参数只支持 impression / click")
		return
	}

	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"message": "上报成功",
	})
}
