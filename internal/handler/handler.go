package handler

import (
	"errors"
	"strconv"

	"boostpanel/internal/config"
	"boostpanel/internal/repository"
	"boostpanel/internal/service"
	"boostpanel/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService     *service.UserService
	orderService    *service.OrderService
	fundService     *service.FundService
	referralService *service.ReferralService
	messageService  *service.MessageService
	settingsService *service.SettingsService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		userService:     service.NewUserService(db, cfg),
		orderService:    service.NewOrderService(db, rdb, cfg),
		fundService:     service.NewFundService(db, rdb, cfg),
		referralService: service.NewReferralService(db, rdb, cfg),
		messageService:  service.NewMessageService(db, cfg),
		settingsService: service.NewSettingsService(rdb),
	}
}

// respondError 业务错误到响应码的统一映射
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidApprovedAmount):
		response.ParamError(c, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, repository.ErrDailyLimitReached):
		response.BusinessError(c, response.CodeDailyLimitReached, err.Error())
	case errors.Is(err, repository.ErrOrderStatusInvalid):
		response.BusinessError(c, response.CodeOrderStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrFundStatusInvalid):
		response.BusinessError(c, response.CodeFundStatusInvalid, err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		response.BusinessError(c, response.CodeOrderNotFound, err.Error())
	case errors.Is(err, repository.ErrFundRequestNotFound):
		response.BusinessError(c, response.CodeFundRequestNotFound, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, repository.ErrWalletNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, err.Error())
	case errors.Is(err, repository.ErrReferralBalanceEmpty):
		response.BusinessError(c, response.CodeReferralBalanceEmpty, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

// ============================================================
// 注册 / 用户相关接口
// ============================================================

// RegisterRequest 注册信息一次带齐，没有临时存储旁路
type RegisterRequest struct {
	UID          string `json:"uid" binding:"required"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

// Register 完成注册（幂等开户）
// POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.CompleteRegistration(c.Request.Context(), &service.CompleteRegistrationRequest{
		UID:          req.UID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, user)
}

// SessionRequest 普通登录（身份服务已认证，引擎只负责开户）
type SessionRequest struct {
	UID   string `json:"uid" binding:"required"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session 首次登录开户
// POST /api/v1/auth/session
func (h *Handler) Session(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.EnsureUser(c.Request.Context(), req.UID, req.Name, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, user)
}

// GetProfile 个人档案聚合（用户+钱包+订单+充值+历史）
// GET /api/v1/user/profile?uid=xxx
func (h *Handler) GetProfile(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ParamError(c, "uid 参数不能为空")
		return
	}

	data, err := h.userService.GetUserData(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, data)
}

// GetBalance 查询钱包余额
// GET /api/v1/wallet/balance?uid=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ParamError(c, "uid 参数不能为空")
		return
	}

	data, err := h.userService.GetUserData(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_uid":         data.Wallet.UserUID,
		"balance":          data.Wallet.Balance,
		"referral_balance": data.Wallet.ReferralBalance,
	})
}

// ============================================================
// 订单相关接口
// ============================================================

// CreateOrder 下单
// POST /api/v1/order/create
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, order)
}

// ListOrders 查询用户订单列表
// GET /api/v1/order/list?uid=xxx&page=1&page_size=10
func (h *Handler) ListOrders(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ParamError(c, "uid 参数不能为空")
		return
	}

	page, pageSize := pageParams(c)
	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetTodaysOrderCount 今日某服务的下单量（配合每日限额展示）
// GET /api/v1/order/today-count?service=followers
func (h *Handler) GetTodaysOrderCount(c *gin.Context) {
	svc := c.Query("service")
	count, err := h.orderService.CountTodaysOrders(c.Request.Context(), svc)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"service": svc,
		"count":   count,
	})
}

// AdminListOrders 后台订单列表
// GET /api/v1/admin/orders?page=1&page_size=10
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := pageParams(c)
	orders, total, err := h.orderService.ListAllOrders(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      orders,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateOrderRequest 订单批复请求
type UpdateOrderRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	Action  string `json:"action" binding:"required"` // Completed / Declined
}

// AdminUpdateOrder 管理员批复订单
// POST /api/v1/admin/order/update
func (h *Handler) AdminUpdateOrder(c *gin.Context) {
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), req.OrderNo, req.Action, "Admin")
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, order)
}

// ============================================================
// 充值相关接口
// ============================================================

// CreateFundRequest 提交充值申请
// POST /api/v1/fund/create
func (h *Handler) CreateFundRequest(c *gin.Context) {
	var req service.CreateFundRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	fundReq, err := h.fundService.CreateFundRequest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, fundReq)
}

// AdminListFundRequests 后台充值申请列表
// GET /api/v1/admin/fund-requests?page=1&page_size=10
func (h *Handler) AdminListFundRequests(c *gin.Context) {
	page, pageSize := pageParams(c)
	reqs, total, err := h.fundService.ListAllFundRequests(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      reqs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateFundRequestRequest 充值批复请求
// ApprovedAmount 可选，覆盖入账金额（必须为正）
type UpdateFundRequestRequest struct {
	RequestNo      string `json:"request_no" binding:"required"`
	Action         string `json:"action" binding:"required"` // Approved / Declined
	ApprovedAmount *int64 `json:"approved_amount"`
}

// AdminUpdateFundRequest 管理员批复充值申请
// POST /api/v1/admin/fund/update
func (h *Handler) AdminUpdateFundRequest(c *gin.Context) {
	var req UpdateFundRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	fundReq, err := h.fundService.UpdateFundRequestStatus(
		c.Request.Context(), req.RequestNo, req.Action, req.ApprovedAmount, "Admin")
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, fundReq)
}

// ============================================================
// 推荐相关接口
// ============================================================

// WithdrawReferralRequest 提取推荐收益
type WithdrawReferralRequest struct {
	UID string `json:"uid" binding:"required"`
}

// WithdrawReferral 推荐池整体转入主余额
// POST /api/v1/referral/withdraw
func (h *Handler) WithdrawReferral(c *gin.Context) {
	var req WithdrawReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := h.referralService.WithdrawEarnings(c.Request.Context(), req.UID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"withdrawn": amount,
	})
}

// ListReferredUsers 我推荐的用户
// GET /api/v1/referral/list?uid=xxx
func (h *Handler) ListReferredUsers(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ParamError(c, "uid 参数不能为空")
		return
	}

	users, err := h.referralService.ListReferredUsers(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, users)
}

// ============================================================
// 站内信相关接口
// ============================================================

// GetInbox 用户收件箱
// GET /api/v1/inbox?uid=xxx
func (h *Handler) GetInbox(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		response.ParamError(c, "uid 参数不能为空")
		return
	}

	messages, err := h.messageService.ListInbox(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, messages)
}

// ClearInboxRequest 清空收件箱
type ClearInboxRequest struct {
	UID string `json:"uid" binding:"required"`
}

// ClearInbox 清空收件箱（私信删除，广播按用户隐藏）
// POST /api/v1/inbox/clear
func (h *Handler) ClearInbox(c *gin.Context) {
	var req ClearInboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.messageService.ClearInbox(c.Request.Context(), req.UID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "收件箱已清空",
	})
}

// BroadcastRequest 全员广播
type BroadcastRequest struct {
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// AdminBroadcast 管理员全员广播
// POST /api/v1/admin/message/broadcast
func (h *Handler) AdminBroadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	msg, err := h.messageService.Broadcast(c.Request.Context(), req.Subject, req.Body, "Admin")
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, msg)
}

// ============================================================
// 后台其余接口
// ============================================================

// AdminListUsers 后台用户列表
// GET /api/v1/admin/users
func (h *Handler) AdminListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, users)
}

// AdminListHistory 审计历史
// GET /api/v1/admin/history?page=1&page_size=10
func (h *Handler) AdminListHistory(c *gin.Context) {
	page, pageSize := pageParams(c)
	items, total, err := h.userService.ListHistory(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminGetSettings 后台配置（收款码 + 每日限额）
// GET /api/v1/admin/settings
func (h *Handler) AdminGetSettings(c *gin.Context) {
	qrCodeURL, err := h.settingsService.GetQRCodeURL(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	limits, err := h.settingsService.GetServiceLimits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"qr_code_url":    qrCodeURL,
		"service_limits": limits,
	})
}

// UpdateSettingsRequest 更新后台配置，两个字段都可选
type UpdateSettingsRequest struct {
	QRCodeURL     *string          `json:"qr_code_url"`
	ServiceLimits map[string]int64 `json:"service_limits"`
}

// AdminUpdateSettings 更新后台配置
// POST /api/v1/admin/settings
func (h *Handler) AdminUpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.QRCodeURL != nil {
		if err := h.settingsService.SetQRCodeURL(ctx, *req.QRCodeURL); err != nil {
			respondError(c, err)
			return
		}
	}
	if req.ServiceLimits != nil {
		if err := h.settingsService.SetServiceLimits(ctx, req.ServiceLimits); err != nil {
			respondError(c, err)
			return
		}
	}

	response.Success(c, gin.H{
		"message": "配置已更新",
	})
}
