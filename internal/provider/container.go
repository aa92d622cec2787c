package provider

import (
	"github.com/epay-next/internal/cache"
	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/queue"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/service"

	// 注册内置支付插件
	_ "github.com/epay-next/internal/plugin/alipay"
	_ "github.com/epay-next/internal/plugin/epayup"
	_ "github.com/epay-next/internal/plugin/wxpay"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	MerchantRepo     repository.MerchantRepository
	ChannelRepo      repository.ChannelRepository
	PayGroupRepo     repository.PayGroupRepository
	PollingGroupRepo repository.PollingGroupRepository
	OrderRepo        repository.OrderRepository
	SettingRepo      repository.SettingRepository

	// Services
	MerchantService *service.MerchantService
	FeeService      *service.FeeService
	ChannelSelector *service.ChannelSelector
	MonitorService  *service.MonitorService
	NotifyService   *service.NotifyService
	TradeService    *service.TradeService
	CashierService  *service.CashierService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.MerchantRepo = repository.NewMerchantRepository(db)
	c.ChannelRepo = repository.NewChannelRepository(db)
	c.PayGroupRepo = repository.NewPayGroupRepository(db)
	c.PollingGroupRepo = repository.NewPollingGroupRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	gatewayCfg := &c.Config.Gateway

	c.MerchantService = service.NewMerchantService(c.MerchantRepo)
	c.FeeService = service.NewFeeService(c.PayGroupRepo)
	c.ChannelSelector = service.NewChannelSelector(c.ChannelRepo, c.PayGroupRepo, c.PollingGroupRepo)
	c.MonitorService = service.NewMonitorService(c.SettingRepo, c.ChannelRepo, c.QueueClient, gatewayCfg)
	c.NotifyService = service.NewNotifyService(c.OrderRepo, c.MerchantRepo, gatewayCfg)
	c.TradeService = service.NewTradeService(
		c.OrderRepo,
		c.MerchantRepo,
		c.ChannelRepo,
		c.FeeService,
		c.ChannelSelector,
		c.MonitorService,
		c.NotifyService,
		c.QueueClient,
		gatewayCfg,
	)
	c.CashierService = service.NewCashierService(gatewayCfg)
}
