package service

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/queue"
	"github.com/epay-next/internal/repository"
)

// TradeService 订单创建、通道锁定与上游下单
type TradeService struct {
	orderRepo    repository.OrderRepository
	merchantRepo repository.MerchantRepository
	channelRepo  repository.ChannelRepository
	feeService   *FeeService
	selector     *ChannelSelector
	monitor      *MonitorService
	notify       *NotifyService
	queueClient  *queue.Client
	gatewayCfg   *config.GatewayConfig
}

// NewTradeService 创建订单服务
func NewTradeService(
	orderRepo repository.OrderRepository,
	merchantRepo repository.MerchantRepository,
	channelRepo repository.ChannelRepository,
	feeService *FeeService,
	selector *ChannelSelector,
	monitor *MonitorService,
	notify *NotifyService,
	queueClient *queue.Client,
	gatewayCfg *config.GatewayConfig,
) *TradeService {
	return &TradeService{
		orderRepo:    orderRepo,
		merchantRepo: merchantRepo,
		channelRepo:  channelRepo,
		feeService:   feeService,
		selector:     selector,
		monitor:      monitor,
		notify:       notify,
		queueClient:  queueClient,
		gatewayCfg:   gatewayCfg,
	}
}

// GenerateTradeNo 生成平台订单号：时间戳 + 6 位随机数字
func GenerateTradeNo() string {
	return time.Now().Format("20060102150405") + fmt.Sprintf("%06d", rand.Intn(1000000))
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	OutTradeNo string
	PayType    string
	Name       string
	Money      models.Money
	NotifyURL  string
	ReturnURL  string
	Param      string
	ClientIP   string
	SignType   string
	CertInfo   models.JSON // 实名要求等附加信息
}

// CreateOrReuseOrder 创建订单。同商户同商户订单号存在待支付订单时原单复用，
// 更新支付方式与回调地址等可变字段。
func (s *TradeService) CreateOrReuseOrder(merchant *models.Merchant, input CreateOrderInput) (*models.Order, error) {
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if strings.TrimSpace(input.OutTradeNo) == "" || strings.TrimSpace(input.PayType) == "" {
		return nil, fmt.Errorf("%w: out_trade_no/type is required", ErrParamInvalid)
	}
	if !input.Money.Decimal.IsPositive() {
		return nil, fmt.Errorf("%w: money must be positive", ErrParamInvalid)
	}

	fee, err := s.feeService.Resolve(merchant, input.PayType, input.Money)
	if err != nil {
		return nil, err
	}

	existing, err := s.orderRepo.GetPendingByMerchantOutTradeNo(merchant.ID, input.OutTradeNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.reusePendingOrder(existing, merchant, input, fee)
	}

	expiresAt := time.Now().Add(s.orderExpire())
	order := &models.Order{
		TradeNo:    GenerateTradeNo(),
		OutTradeNo: input.OutTradeNo,
		MerchantID: merchant.ID,
		PayType:    input.PayType,
		Name:       input.Name,
		Money:      input.Money,
		FeeMoney:   fee.FeeMoney,
		RealMoney:  fee.RealMoney,
		FeePayer:   merchant.FeePayer,
		SignType:   input.SignType,
		Status:     constants.OrderStatusPending,
		CertInfo:   input.CertInfo,
		NotifyURL:  input.NotifyURL,
		ReturnURL:  input.ReturnURL,
		Param:      input.Param,
		ClientIP:   input.ClientIP,
		ExpiresAt:  &expiresAt,
	}
	if err := s.orderRepo.Create(order); err != nil {
		// 并发首次提交撞上待支付部分唯一索引时改走复用
		existing, lookupErr := s.orderRepo.GetPendingByMerchantOutTradeNo(merchant.ID, input.OutTradeNo)
		if lookupErr == nil && existing != nil {
			return s.reusePendingOrder(existing, merchant, input, fee)
		}
		return nil, err
	}
	if err := s.queueClient.EnqueueTradeExpireClose(
		queue.TradeExpireClosePayload{OrderID: order.ID},
		time.Until(expiresAt),
	); err != nil {
		logger.Warnw("trade_expire_enqueue_failed", "trade_no", order.TradeNo, "error", err)
	}
	logger.Infow("trade_order_created",
		"trade_no", order.TradeNo,
		"out_trade_no", order.OutTradeNo,
		"merchant_id", merchant.ID,
		"pay_type", order.PayType,
		"money", order.Money.String(),
	)
	return order, nil
}

func (s *TradeService) reusePendingOrder(existing *models.Order, merchant *models.Merchant, input CreateOrderInput, fee FeeResult) (*models.Order, error) {
	existing.PayType = input.PayType
	existing.Name = input.Name
	existing.Money = input.Money
	existing.FeeMoney = fee.FeeMoney
	existing.RealMoney = fee.RealMoney
	existing.FeePayer = merchant.FeePayer
	existing.NotifyURL = input.NotifyURL
	existing.ReturnURL = input.ReturnURL
	existing.Param = input.Param
	existing.ClientIP = input.ClientIP
	existing.SignType = input.SignType
	existing.CertInfo = input.CertInfo
	// 复用时清掉上一次锁定的通道，按新支付方式重选
	existing.ChannelID = nil
	if err := s.orderRepo.Update(existing); err != nil {
		return nil, err
	}
	logger.Infow("trade_order_reused",
		"trade_no", existing.TradeNo,
		"out_trade_no", existing.OutTradeNo,
		"pay_type", existing.PayType,
	)
	return existing, nil
}

// Dispatch 为订单锁定通道并向上游下单。
// 第一次下单时持久化通道与费率字段，此后通道不可再变。
func (s *TradeService) Dispatch(ctx context.Context, merchant *models.Merchant, order *models.Order) (*plugin.SubmitResult, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPending {
		return nil, ErrOrderStatusInvalid
	}

	channel, err := s.resolveChannel(merchant, order)
	if err != nil {
		return nil, err
	}
	if err := s.checkAmountBounds(channel, order.RealMoney); err != nil {
		return nil, err
	}
	if order.ChannelID == nil {
		if err := s.lockChannel(order, channel); err != nil {
			return nil, err
		}
	}

	p, err := plugin.Get(channel.PluginName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrChannelUnavailable, channel.PluginName)
	}
	submitCtx, cancel := context.WithTimeout(ctx, s.pluginTimeout())
	defer cancel()
	result, err := p.Submit(submitCtx, channel.Config, s.orderInfo(order))
	if err != nil {
		logger.Warnw("trade_dispatch_failed",
			"trade_no", order.TradeNo,
			"channel_id", channel.ID,
			"plugin", channel.PluginName,
			"error", err,
		)
		s.monitor.Inspect(ctx, channel, err)
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	logger.Infow("trade_dispatched",
		"trade_no", order.TradeNo,
		"channel_id", channel.ID,
		"plugin", channel.PluginName,
		"submit_type", result.Type,
	)
	return result, nil
}

// GetOrder 查询订单，优先平台订单号
func (s *TradeService) GetOrder(merchant *models.Merchant, tradeNo, outTradeNo string) (*models.Order, error) {
	if strings.TrimSpace(tradeNo) != "" {
		order, err := s.orderRepo.GetByTradeNo(tradeNo)
		if err != nil {
			return nil, err
		}
		if order == nil || (merchant != nil && order.MerchantID != merchant.ID) {
			return nil, ErrOrderNotFound
		}
		return order, nil
	}
	if merchant == nil || strings.TrimSpace(outTradeNo) == "" {
		return nil, fmt.Errorf("%w: trade_no/out_trade_no is required", ErrParamInvalid)
	}
	order, err := s.orderRepo.GetByMerchantOutTradeNo(merchant.ID, outTradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CloseExpired 关闭已过期的待支付订单，worker 任务入口
func (s *TradeService) CloseExpired(orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != constants.OrderStatusPending {
		return nil
	}
	if order.ExpiresAt != nil && order.ExpiresAt.After(time.Now()) {
		return nil
	}
	closed, err := s.orderRepo.ClosePending(order.ID)
	if err != nil {
		return err
	}
	if closed {
		logger.Infow("trade_order_expired_closed", "trade_no", order.TradeNo)
	}
	return nil
}

// SweepExpired 兜底扫描并关闭过期订单。
// 定时任务丢失或队列不可用时仍能保证订单最终关闭。
func (s *TradeService) SweepExpired(limit int) (int, error) {
	orders, err := s.orderRepo.ListExpiredPending(time.Now(), limit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range orders {
		ok, err := s.orderRepo.ClosePending(orders[i].ID)
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
			logger.Infow("trade_order_expired_closed", "trade_no", orders[i].TradeNo)
		}
	}
	return closed, nil
}

func (s *TradeService) resolveChannel(merchant *models.Merchant, order *models.Order) (*models.Channel, error) {
	if order.ChannelID != nil {
		channel, err := s.channelRepo.GetByID(*order.ChannelID)
		if err != nil {
			return nil, err
		}
		if channel == nil {
			return nil, ErrChannelNotFound
		}
		if channel.Status != constants.ChannelStatusEnabled {
			return nil, ErrChannelUnavailable
		}
		return channel, nil
	}
	return s.selector.Select(merchant, SelectInput{
		PayType: order.PayType,
		Money:   order.RealMoney,
		MinAge:  order.CertMinAge(),
	})
}

func (s *TradeService) lockChannel(order *models.Order, channel *models.Channel) error {
	channelID := channel.ID
	// status 条件兜住并发结算/关单：快照里的待支付状态可能已失效
	ok, err := s.orderRepo.UpdatesPending(order.ID, map[string]interface{}{
		"channel_id": channelID,
		"fee_money":  order.FeeMoney,
		"real_money": order.RealMoney,
		"fee_payer":  order.FeePayer,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderStatusInvalid
	}
	order.ChannelID = &channelID
	return nil
}

func (s *TradeService) checkAmountBounds(channel *models.Channel, money models.Money) error {
	if !channel.MinAmount.Decimal.IsZero() && money.Decimal.LessThan(channel.MinAmount.Decimal) {
		return fmt.Errorf("%w: below channel minimum", ErrAmountOutOfRange)
	}
	if !channel.MaxAmount.Decimal.IsZero() && money.Decimal.GreaterThan(channel.MaxAmount.Decimal) {
		return fmt.Errorf("%w: above channel maximum", ErrAmountOutOfRange)
	}
	return nil
}

func (s *TradeService) orderInfo(order *models.Order) *plugin.OrderInfo {
	base := strings.TrimRight(s.gatewayCfg.BaseURL, "/")
	return &plugin.OrderInfo{
		TradeNo:   order.TradeNo,
		PayType:   order.PayType,
		Name:      order.Name,
		Money:     order.RealMoney,
		ClientIP:  order.ClientIP,
		NotifyURL: base + "/pay/notify/" + url.PathEscape(order.TradeNo),
		ReturnURL: base + "/pay/return/" + url.PathEscape(order.TradeNo),
	}
}

func (s *TradeService) orderExpire() time.Duration {
	minutes := 30
	if s.gatewayCfg != nil && s.gatewayCfg.OrderExpireMinutes > 0 {
		minutes = s.gatewayCfg.OrderExpireMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *TradeService) pluginTimeout() time.Duration {
	seconds := 10
	if s.gatewayCfg != nil && s.gatewayCfg.PluginTimeoutSeconds > 0 {
		seconds = s.gatewayCfg.PluginTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}
