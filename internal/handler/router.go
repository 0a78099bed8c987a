package handler

import (
	"boostpanel/internal/config"

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
		// 注册 / 登录
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/session", h.Session)
		}

		// 用户与钱包
		user := api.Group("/user")
		{
			user.GET("/profile", h.GetProfile)
		}
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
		}

		// 订单相关
		order := api.Group("/order")
		{
			order.POST("/create", h.CreateOrder)
			order.GET("/list", h.ListOrders)
			order.GET("/today-count", h.GetTodaysOrderCount)
		}

		// 充值相关
		fund := api.Group("/fund")
		{
			fund.POST("/create", h.CreateFundRequest)
		}

		// 推荐相关
		referral := api.Group("/referral")
		{
			referral.POST("/withdraw", h.WithdrawReferral)
			referral.GET("/list", h.ListReferredUsers)
		}

		// 站内信
		api.GET("/inbox", h.GetInbox)
		api.POST("/inbox/clear", h.ClearInbox)

		// 后台管理
		admin := api.Group("/admin")
		{
			admin.GET("/users", h.AdminListUsers)
			admin.GET("/orders", h.AdminListOrders)
			admin.POST("/order/update", h.AdminUpdateOrder)
			admin.GET("/fund-requests", h.AdminListFundRequests)
			admin.POST("/fund/update", h.AdminUpdateFundRequest)
			admin.POST("/message/broadcast", h.AdminBroadcast)
			admin.GET("/history", h.AdminListHistory)
			admin.GET("/settings", h.AdminGetSettings)
			admin.POST("/settings", h.AdminUpdateSettings)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
