package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/queue"

	"gorm.io/gorm"
)

// NotifyOutcome 异步回调处理结果
type NotifyOutcome struct {
	Ack string // 按插件约定原样返回给上游
}

// ReturnOutcome 同步跳转处理结果
type ReturnOutcome struct {
	RedirectURL string
}

// HandleNotify 处理上游异步回调：验签、落账、触发商户通知。
// 验签失败不做任何变更，按插件约定向上游应答失败。
func (s *TradeService) HandleNotify(ctx context.Context, tradeNo string, req *http.Request) (*NotifyOutcome, error) {
	order, channel, p, err := s.resolveCallback(tradeNo)
	if err != nil {
		return &NotifyOutcome{Ack: constants.CallbackAckFail}, err
	}

	result, err := p.VerifyNotify(ctx, channel.Config, req, s.orderInfo(order))
	if err != nil {
		logger.Warnw("trade_notify_verify_failed",
			"trade_no", tradeNo,
			"plugin", channel.PluginName,
			"error", err,
		)
		s.monitor.Inspect(ctx, channel, err)
		return &NotifyOutcome{Ack: p.NotifyResponse(false)}, fmt.Errorf("%w: %v", ErrCallbackVerify, err)
	}
	if !result.Paid {
		// 上游未支付状态通知，确认收到但不落账
		return &NotifyOutcome{Ack: p.NotifyResponse(true)}, nil
	}

	if err := s.settle(order.TradeNo, result); err != nil {
		return &NotifyOutcome{Ack: p.NotifyResponse(false)}, err
	}
	return &NotifyOutcome{Ack: p.NotifyResponse(true)}, nil
}

// HandleReturn 处理同步跳转：验签、落账（与异步共用幂等保护），
// 拼接签名参数后跳回商户 return_url。
func (s *TradeService) HandleReturn(ctx context.Context, tradeNo string, req *http.Request) (*ReturnOutcome, error) {
	order, channel, p, err := s.resolveCallback(tradeNo)
	if err != nil {
		return nil, err
	}

	result, err := p.VerifyReturn(ctx, channel.Config, req, s.orderInfo(order))
	if err != nil {
		logger.Warnw("trade_return_verify_failed",
			"trade_no", tradeNo,
			"plugin", channel.PluginName,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrCallbackVerify, err)
	}
	if result.Paid {
		if err := s.settle(order.TradeNo, result); err != nil {
			return nil, err
		}
	}

	merchant, err := s.merchantRepo.GetByID(order.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	// 重新读取拿到落账后的状态与买家信息
	order, err = s.orderRepo.GetByTradeNo(order.TradeNo)
	if err != nil || order == nil {
		return nil, ErrOrderNotFound
	}
	redirect, err := s.buildReturnRedirect(merchant, order)
	if err != nil {
		return nil, err
	}
	return &ReturnOutcome{RedirectURL: redirect}, nil
}

// settle 落账：一个事务内完成支付状态迁移与商户余额入账。
// 状态迁移以 status=0 为前置条件，余额入账以行锁下的
// balance_added 为前置条件，两道防线合力保证竞态回调只入账一次。
func (s *TradeService) settle(tradeNo string, result *plugin.CallbackResult) error {
	var settledOrderID uint
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		merchantRepo := s.merchantRepo.WithTx(tx)

		order, err := orderRepo.GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}

		switch order.Status {
		case constants.OrderStatusPending:
			marked, err := orderRepo.MarkPaid(order.ID, result.ApiTradeNo, result.Buyer, time.Now())
			if err != nil {
				return err
			}
			if !marked {
				// 并发回调抢先迁移，重读后走入账检查
				order, err = orderRepo.GetByTradeNoForUpdate(tradeNo)
				if err != nil {
					return err
				}
				if order == nil || order.Status != constants.OrderStatusPaid {
					return ErrOrderStatusInvalid
				}
			}
		case constants.OrderStatusPaid:
			// 已支付订单允许重复回调，仅做入账检查
		default:
			return ErrOrderStatusInvalid
		}

		if order.BalanceAdded {
			settledOrderID = order.ID
			return nil
		}
		merchant, err := merchantRepo.GetByIDForUpdate(order.MerchantID)
		if err != nil {
			return err
		}
		if merchant == nil {
			return ErrMerchantNotFound
		}
		credit := models.NewMoneyFromDecimal(order.Money.Decimal.Sub(order.FeeMoney.Decimal))
		if err := merchantRepo.AddBalance(merchant.ID, credit); err != nil {
			return err
		}
		if err := orderRepo.Updates(order.ID, map[string]interface{}{
			"balance_added": true,
		}); err != nil {
			return err
		}
		settledOrderID = order.ID
		logger.Infow("trade_settled",
			"trade_no", tradeNo,
			"merchant_id", merchant.ID,
			"credit", credit.String(),
			"api_trade_no", result.ApiTradeNo,
		)
		return nil
	})
	if err != nil {
		return err
	}

	if settledOrderID > 0 {
		if s.queueClient.Enabled() {
			if err := s.queueClient.EnqueueMerchantNotify(
				queue.MerchantNotifyPayload{OrderID: settledOrderID},
				s.notifyMaxRetry(),
			); err != nil {
				logger.Warnw("merchant_notify_enqueue_failed", "trade_no", tradeNo, "error", err)
			}
		} else if s.notify != nil {
			// 队列停用时同步投递一次，notify_status/notify_count 照常记账
			if err := s.notify.Deliver(context.Background(), settledOrderID); err != nil {
				logger.Warnw("merchant_notify_sync_failed", "trade_no", tradeNo, "error", err)
			}
		}
	}
	return nil
}

func (s *TradeService) resolveCallback(tradeNo string) (*models.Order, *models.Channel, plugin.Plugin, error) {
	order, err := s.orderRepo.GetByTradeNo(strings.TrimSpace(tradeNo))
	if err != nil {
		return nil, nil, nil, err
	}
	if order == nil {
		return nil, nil, nil, ErrOrderNotFound
	}
	if order.ChannelID == nil {
		return nil, nil, nil, ErrChannelNotFound
	}
	channel, err := s.channelRepo.GetByID(*order.ChannelID)
	if err != nil {
		return nil, nil, nil, err
	}
	if channel == nil {
		return nil, nil, nil, ErrChannelNotFound
	}
	p, err := plugin.Get(channel.PluginName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrChannelUnavailable, channel.PluginName)
	}
	return order, channel, p, nil
}

func (s *TradeService) buildReturnRedirect(merchant *models.Merchant, order *models.Order) (string, error) {
	target := strings.TrimSpace(order.ReturnURL)
	if target == "" {
		target = strings.TrimSpace(order.NotifyURL)
	}
	if target == "" {
		return strings.TrimRight(s.gatewayCfg.BaseURL, "/"), nil
	}
	params, err := s.notify.BuildParams(merchant, order)
	if err != nil {
		return "", err
	}
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	if strings.Contains(target, "?") {
		return target + "&" + query.Encode(), nil
	}
	return target + "?" + query.Encode(), nil
}

func (s *TradeService) notifyMaxRetry() int {
	if s.gatewayCfg != nil && s.gatewayCfg.NotifyMaxRetry > 0 {
		return s.gatewayCfg.NotifyMaxRetry
	}
	return 5
}
