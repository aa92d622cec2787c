package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/provider"
	"github.com/epay-next/internal/queue"
	"github.com/epay-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskMerchantNotify, c.handleMerchantNotify)
	mux.HandleFunc(queue.TaskTradeExpireClose, c.handleTradeExpireClose)
	mux.HandleFunc(queue.TaskOperatorAlert, c.handleOperatorAlert)
}

func (c *Consumer) handleMerchantNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_merchant_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.MerchantNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_merchant_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_merchant_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.NotifyService == nil {
		logger.Warnw("worker_merchant_notify_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	err := c.NotifyService.Deliver(ctx, payload.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_merchant_notify_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrMerchantNotFound):
			logger.Debugw("worker_merchant_notify_skip_merchant_not_found", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_merchant_notify_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleTradeExpireClose(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_trade_expire_close_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TradeExpireClosePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_trade_expire_close_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_trade_expire_close_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.TradeService == nil {
		logger.Warnw("worker_trade_expire_close_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.TradeService.CloseExpired(payload.OrderID); err != nil {
		logger.Warnw("worker_trade_expire_close_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOperatorAlert(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_operator_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OperatorAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_operator_alert_unmarshal_failed", "error", err)
		return err
	}
	if c.MonitorService == nil {
		logger.Warnw("worker_operator_alert_skip_service_nil", "channel_id", payload.ChannelID)
		return nil
	}
	if err := c.MonitorService.SendAlert(ctx, payload); err != nil {
		logger.Warnw("worker_operator_alert_failed", "channel_id", payload.ChannelID, "error", err)
		return err
	}
	return nil
}
