package queue

import (
	"encoding/json"

	"github.com/epay-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskMerchantNotify 商户异步通知投递任务
	TaskMerchantNotify = constants.TaskMerchantNotify
	// TaskTradeExpireClose 订单超时关闭任务
	TaskTradeExpireClose = constants.TaskTradeExpireClose
	// TaskOperatorAlert 运营告警任务
	TaskOperatorAlert = constants.TaskOperatorAlert
)

// MerchantNotifyPayload 商户通知任务载荷
type MerchantNotifyPayload struct {
	OrderID uint `json:"order_id"`
}

// TradeExpireClosePayload 超时关闭任务载荷
type TradeExpireClosePayload struct {
	OrderID uint `json:"order_id"`
}

// OperatorAlertPayload 运营告警任务载荷
type OperatorAlertPayload struct {
	ChannelID   uint   `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Keyword     string `json:"keyword"`
	Reason      string `json:"reason"`
}

// NewMerchantNotifyTask 创建商户通知任务
func NewMerchantNotifyTask(payload MerchantNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMerchantNotify, body), nil
}

// NewTradeExpireCloseTask 创建超时关闭任务
func NewTradeExpireCloseTask(payload TradeExpireClosePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTradeExpireClose, body), nil
}

// NewOperatorAlertTask 创建运营告警任务
func NewOperatorAlertTask(payload OperatorAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOperatorAlert, body), nil
}
