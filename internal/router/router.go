package router

import (
	"fmt"
	"strings"

	"github.com/epay-next/internal/cache"
	"github.com/epay-next/internal/config"
	gatewayhandlers "github.com/epay-next/internal/http/handlers/gateway"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	gatewayHandler := gatewayhandlers.NewHandler(
		c.MerchantService,
		c.TradeService,
		c.CashierService,
	)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "epn"
	}
	redisClient := cache.Client()
	submitRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:submit", redisPrefix),
		WindowSeconds: cfg.Security.SubmitRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SubmitRateLimit.MaxRequests,
	}
	submitLimiter := RateLimitMiddleware(redisClient, submitRule, KeyByIPAndPid)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 商户下单接口（两代协议）
	r.POST("/mapi", submitLimiter, gatewayHandler.Mapi)
	r.GET("/submit", submitLimiter, gatewayHandler.Submit)
	r.POST("/submit", submitLimiter, gatewayHandler.Submit)

	api := r.Group("/api/pay")
	{
		api.POST("/create", submitLimiter, gatewayHandler.CreateV2)
		api.GET("/query", gatewayHandler.Query)
	}

	// 收银台与上游回调
	pay := r.Group("/pay")
	{
		pay.GET("/cashier", gatewayHandler.Cashier)
		pay.POST("/cashier/dispatch", gatewayHandler.CashierDispatch)
		pay.Any("/notify/:trade_no", gatewayHandler.Notify)
		pay.Any("/return/:trade_no", gatewayHandler.Return)
	}

	return r
}
