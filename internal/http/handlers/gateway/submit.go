package gateway

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/epay-next/internal/http/response"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// Submit 旧版页面下单：验签建单后 302 到收银台
// GET|POST /submit
func (h *Handler) Submit(c *gin.Context) {
	params := collectParams(c)
	merchant, signType, err := h.authenticate(params)
	if err != nil {
		response.LegacyError(c, legacyMessage(err))
		return
	}
	money, err := models.NewMoneyFromString(params["money"])
	if err != nil {
		response.LegacyError(c, "金额格式错误")
		return
	}

	order, err := h.trades.CreateOrReuseOrder(merchant, createOrderInput(c, params, money, signType))
	if err != nil {
		response.LegacyError(c, legacyMessage(err))
		return
	}
	token, err := h.cashier.IssueToken(order.TradeNo)
	if err != nil {
		logger.Errorw("cashier_token_issue_failed", "trade_no", order.TradeNo, "error", err)
		response.LegacyError(c, "系统错误")
		return
	}

	query := url.Values{}
	query.Set("trade_no", order.TradeNo)
	query.Set("token", token)
	c.Redirect(http.StatusFound, "/pay/checkout?"+query.Encode())
}

// Mapi 旧版接口下单：验签建单并直接向上游下单
// POST /mapi
func (h *Handler) Mapi(c *gin.Context) {
	params := collectParams(c)
	merchant, signType, err := h.authenticate(params)
	if err != nil {
		response.LegacyError(c, legacyMessage(err))
		return
	}
	money, err := models.NewMoneyFromString(params["money"])
	if err != nil {
		response.LegacyError(c, "金额格式错误")
		return
	}

	order, err := h.trades.CreateOrReuseOrder(merchant, createOrderInput(c, params, money, signType))
	if err != nil {
		response.LegacyError(c, legacyMessage(err))
		return
	}
	result, err := h.trades.Dispatch(c.Request.Context(), merchant, order)
	if err != nil {
		response.LegacyError(c, legacyMessage(err))
		return
	}

	fields, _ := submitFields(result)
	fields["trade_no"] = order.TradeNo
	response.LegacySuccess(c, fields)
}

// legacyMessage 对外错误文案，内部细节只进日志
func legacyMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrMerchantNotFound):
		return "商户不存在"
	case errors.Is(err, service.ErrMerchantInactive):
		return "商户未激活或已暂停"
	case errors.Is(err, service.ErrSignatureInvalid):
		return "签名校验失败"
	case errors.Is(err, service.ErrTimestampExpired):
		return "请求已过期"
	case errors.Is(err, service.ErrRSAKeyMissing):
		return "商户未配置RSA公钥"
	case errors.Is(err, service.ErrParamInvalid):
		return "参数不完整"
	case errors.Is(err, service.ErrPayTypeDisabled):
		return "该支付方式已停用"
	case errors.Is(err, service.ErrNoChannelAvailable):
		return "暂无可用支付通道"
	case errors.Is(err, service.ErrAmountOutOfRange):
		return "金额超出通道限额"
	case errors.Is(err, service.ErrOrderNotFound):
		return "订单不存在"
	case errors.Is(err, service.ErrOrderStatusInvalid):
		return "订单状态不允许此操作"
	case errors.Is(err, service.ErrChannelNotFound), errors.Is(err, service.ErrChannelUnavailable):
		return "支付通道暂不可用"
	default:
		return "系统错误"
	}
}
