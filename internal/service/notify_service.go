package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/sign"
)

// NotifyService 商户异步通知：按订单下单时的签名方式构造参数并投递。
// 旧版订单用商户密钥 MD5 签名，v2 订单用平台侧商户专属私钥 RSA 签名。
type NotifyService struct {
	orderRepo    repository.OrderRepository
	merchantRepo repository.MerchantRepository
	gatewayCfg   *config.GatewayConfig
	httpClient   *http.Client
}

// NewNotifyService 创建通知服务
func NewNotifyService(
	orderRepo repository.OrderRepository,
	merchantRepo repository.MerchantRepository,
	gatewayCfg *config.GatewayConfig,
) *NotifyService {
	timeout := 10 * time.Second
	if gatewayCfg != nil && gatewayCfg.NotifyTimeoutSeconds > 0 {
		timeout = time.Duration(gatewayCfg.NotifyTimeoutSeconds) * time.Second
	}
	return &NotifyService{
		orderRepo:    orderRepo,
		merchantRepo: merchantRepo,
		gatewayCfg:   gatewayCfg,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// BuildParams 构造带签名的通知参数
func (s *NotifyService) BuildParams(merchant *models.Merchant, order *models.Order) (map[string]string, error) {
	if merchant == nil || order == nil {
		return nil, ErrParamInvalid
	}
	params := map[string]string{
		"pid":          merchant.Pid,
		"trade_no":     order.TradeNo,
		"out_trade_no": order.OutTradeNo,
		"type":         order.PayType,
		"name":         order.Name,
		"money":        order.Money.String(),
		"trade_status": "TRADE_SUCCESS",
	}
	if order.Param != "" {
		params["param"] = order.Param
	}
	if order.Buyer != "" {
		params["buyer"] = order.Buyer
	}

	content := sign.BuildContent(params)
	signType := strings.ToUpper(strings.TrimSpace(order.SignType))
	switch signType {
	case constants.SignTypeRSA:
		if strings.TrimSpace(merchant.PlatformPrivateKey) == "" {
			return nil, fmt.Errorf("%w: platform private key missing", ErrRSAKeyMissing)
		}
		signature, err := sign.RSA(content, merchant.PlatformPrivateKey)
		if err != nil {
			return nil, err
		}
		params["sign"] = signature
		params["sign_type"] = constants.SignTypeRSA
	default:
		params["sign"] = sign.MD5(content, merchant.ApiKey)
		params["sign_type"] = constants.SignTypeMD5
	}
	return params, nil
}

// Deliver 投递一次商户通知并记录结果。
// 商户应答 success 视为确认，其余情况返回错误交给队列补投。
func (s *NotifyService) Deliver(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPaid {
		return nil
	}
	if order.NotifyStatus == constants.NotifyStatusSuccess {
		return nil
	}
	if strings.TrimSpace(order.NotifyURL) == "" {
		return s.record(order, constants.NotifyStatusSuccess)
	}
	merchant, err := s.merchantRepo.GetByID(order.MerchantID)
	if err != nil {
		return err
	}
	if merchant == nil {
		return ErrMerchantNotFound
	}

	params, err := s.BuildParams(merchant, order)
	if err != nil {
		return err
	}
	body, err := s.post(ctx, order.NotifyURL, params)
	if err != nil {
		logger.Warnw("merchant_notify_failed",
			"trade_no", order.TradeNo,
			"notify_count", order.NotifyCount+1,
			"error", err,
		)
		if recErr := s.record(order, constants.NotifyStatusFailed); recErr != nil {
			return recErr
		}
		return err
	}
	ack := strings.TrimSpace(string(body))
	if !strings.EqualFold(ack, constants.CallbackAckSuccess) {
		logger.Warnw("merchant_notify_rejected",
			"trade_no", order.TradeNo,
			"notify_count", order.NotifyCount+1,
			"ack", truncate(ack, 64),
		)
		if recErr := s.record(order, constants.NotifyStatusFailed); recErr != nil {
			return recErr
		}
		return fmt.Errorf("merchant ack %q", truncate(ack, 64))
	}

	logger.Infow("merchant_notify_delivered",
		"trade_no", order.TradeNo,
		"notify_count", order.NotifyCount+1,
	)
	return s.record(order, constants.NotifyStatusSuccess)
}

func (s *NotifyService) record(order *models.Order, status int) error {
	order.NotifyStatus = status
	order.NotifyCount++
	return s.orderRepo.UpdateNotifyResult(order.ID, status, order.NotifyCount, time.Now())
}

func (s *NotifyService) post(ctx context.Context, notifyURL string, params map[string]string) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

func truncate(raw string, limit int) string {
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit]
}
