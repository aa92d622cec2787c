// Package gateway 商户下单、查询、收银台与上游回调的 HTTP 入口。
package gateway

import (
	"strings"

	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler 网关处理器
type Handler struct {
	merchants *service.MerchantService
	trades    *service.TradeService
	cashier   *service.CashierService
}

// NewHandler 创建网关处理器
func NewHandler(
	merchants *service.MerchantService,
	trades *service.TradeService,
	cashier *service.CashierService,
) *Handler {
	return &Handler{
		merchants: merchants,
		trades:    trades,
		cashier:   cashier,
	}
}

// collectParams 汇总表单与查询参数，表单优先
func collectParams(c *gin.Context) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	_ = c.Request.ParseForm()
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

// authenticate 取商户并校验签名，返回生效的签名方式
func (h *Handler) authenticate(params map[string]string) (*models.Merchant, string, error) {
	merchant, err := h.merchants.Authenticate(strings.TrimSpace(params["pid"]))
	if err != nil {
		return nil, "", err
	}
	signType, err := service.VerifyRequest(merchant, params)
	if err != nil {
		return nil, "", err
	}
	return merchant, signType, nil
}

// createOrderInput 组装下单输入
func createOrderInput(c *gin.Context, params map[string]string, money models.Money, signType string) service.CreateOrderInput {
	var certInfo models.JSON
	if minAge := strings.TrimSpace(params["min_age"]); minAge != "" {
		certInfo = models.JSON{"min_age": minAge}
	}
	return service.CreateOrderInput{
		OutTradeNo: strings.TrimSpace(params["out_trade_no"]),
		PayType:    strings.TrimSpace(params["type"]),
		Name:       strings.TrimSpace(params["name"]),
		Money:      money,
		NotifyURL:  strings.TrimSpace(params["notify_url"]),
		ReturnURL:  strings.TrimSpace(params["return_url"]),
		Param:      params["param"],
		ClientIP:   c.ClientIP(),
		SignType:   signType,
		CertInfo:   certInfo,
	}
}

// submitFields 将插件下单结果映射为协议响应字段
func submitFields(result *plugin.SubmitResult) (gin.H, string) {
	fields := gin.H{}
	switch result.Type {
	case plugin.SubmitTypeQRCode:
		fields["qrcode"] = result.Content
	case plugin.SubmitTypeScheme:
		fields["urlscheme"] = result.Content
	case plugin.SubmitTypeHTML:
		fields["html"] = result.Content
	default:
		fields["payurl"] = result.Content
	}
	return fields, result.Type
}
