// Package epayup 对接上游易支付聚合网关：下单走 v1 mapi 表单接口，
// 回调按配置用 MD5 或上游平台公钥 RSA 验签。
package epayup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/sign"
)

const pluginName = "epayup"

var (
	ErrRequestFailed   = errors.New("epayup request failed")
	ErrResponseInvalid = errors.New("epayup response invalid")
)

// Config 上游易支付配置
type Config struct {
	GatewayURL  string `json:"gateway_url"`         // 上游网关地址
	MerchantID  string `json:"merchant_id"`         // 上游商户号
	MerchantKey string `json:"merchant_key"`        // 上游商户密钥（MD5）
	PublicKey   string `json:"platform_public_key"` // 上游平台公钥（RSA 验签）
	SignType    string `json:"sign_type"`           // MD5 / RSA
	APIPath     string `json:"api_path"`            // 下单接口路径
	Device      string `json:"device"`              // 设备类型
	Timeout     int    `json:"timeout"`             // 请求超时秒数
}

func init() {
	plugin.Register(&Epayup{})
}

// Epayup 上游易支付插件
type Epayup struct{}

func (p *Epayup) Name() string { return pluginName }

func (p *Epayup) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{
		PayTypes: []string{"alipay", "wxpay", "qqpay", "bank"},
		Submit:   true,
		Notify:   true,
		Return:   true,
	}
}

// Submit 向上游下单，透传本平台的回调地址
func (p *Epayup) Submit(ctx context.Context, cfg models.JSON, order *plugin.OrderInfo) (*plugin.SubmitResult, error) {
	conf, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"pid":          conf.MerchantID,
		"type":         order.PayType,
		"out_trade_no": order.TradeNo,
		"notify_url":   order.NotifyURL,
		"return_url":   order.ReturnURL,
		"name":         order.Name,
		"money":        order.Money.String(),
		"clientip":     order.ClientIP,
		"device":       conf.Device,
	}
	content := sign.BuildContent(params)
	params["sign"] = sign.MD5(content, conf.MerchantKey)
	params["sign_type"] = "MD5"

	respBytes, err := postForm(ctx, buildEndpoint(conf.GatewayURL, conf.APIPath), params, conf.timeout())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var resp struct {
		Code      int    `json:"code"`
		Msg       string `json:"msg"`
		PayURL    string `json:"payurl"`
		QRCode    string `json:"qrcode"`
		URLScheme string `json:"urlscheme"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, ErrResponseInvalid
	}
	if resp.Code != 1 {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Msg)
	}
	switch {
	case strings.TrimSpace(resp.PayURL) != "":
		return &plugin.SubmitResult{Type: plugin.SubmitTypeJump, Content: strings.TrimSpace(resp.PayURL)}, nil
	case strings.TrimSpace(resp.QRCode) != "":
		return &plugin.SubmitResult{Type: plugin.SubmitTypeQRCode, Content: strings.TrimSpace(resp.QRCode)}, nil
	case strings.TrimSpace(resp.URLScheme) != "":
		return &plugin.SubmitResult{Type: plugin.SubmitTypeScheme, Content: strings.TrimSpace(resp.URLScheme)}, nil
	}
	return nil, fmt.Errorf("%w: no pay url in response", ErrResponseInvalid)
}

// VerifyNotify 校验上游异步回调
func (p *Epayup) VerifyNotify(ctx context.Context, cfg models.JSON, req *http.Request, order *plugin.OrderInfo) (*plugin.CallbackResult, error) {
	return p.verifyCallback(cfg, callbackForm(req))
}

// VerifyReturn 校验上游同步跳转，签名规则与异步一致
func (p *Epayup) VerifyReturn(ctx context.Context, cfg models.JSON, req *http.Request, order *plugin.OrderInfo) (*plugin.CallbackResult, error) {
	return p.verifyCallback(cfg, callbackForm(req))
}

func callbackForm(req *http.Request) url.Values {
	if req == nil {
		return url.Values{}
	}
	_ = req.ParseForm()
	return req.Form
}

// NotifyResponse 上游易支付约定纯文本应答
func (p *Epayup) NotifyResponse(ok bool) string {
	if ok {
		return "success"
	}
	return "fail"
}

func (p *Epayup) verifyCallback(cfg models.JSON, form url.Values) (*plugin.CallbackResult, error) {
	conf, err := parseConfig(cfg)
	if err != nil {
		return nil, err
	}
	signature := strings.TrimSpace(form.Get("sign"))
	if signature == "" {
		return nil, sign.ErrSignatureInvalid
	}
	params := make(map[string]string, len(form))
	for key, values := range form {
		if len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}
	content := sign.BuildContent(params)
	if strings.EqualFold(conf.SignType, "RSA") {
		if err := sign.VerifyRSA(content, signature, conf.PublicKey); err != nil {
			return nil, err
		}
	} else if !sign.VerifyMD5(content, conf.MerchantKey, signature) {
		return nil, sign.ErrSignatureInvalid
	}
	return &plugin.CallbackResult{
		Paid:       form.Get("trade_status") == "TRADE_SUCCESS",
		ApiTradeNo: strings.TrimSpace(form.Get("trade_no")),
		Buyer:      strings.TrimSpace(form.Get("buyer")),
	}, nil
}

func parseConfig(raw models.JSON) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", plugin.ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", plugin.ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", plugin.ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.GatewayURL) == "" {
		return nil, fmt.Errorf("%w: gateway_url is required", plugin.ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return nil, fmt.Errorf("%w: merchant_id is required", plugin.ErrConfigInvalid)
	}
	if strings.EqualFold(cfg.SignType, "RSA") {
		if strings.TrimSpace(cfg.PublicKey) == "" {
			return nil, fmt.Errorf("%w: platform_public_key is required", plugin.ErrConfigInvalid)
		}
	} else if strings.TrimSpace(cfg.MerchantKey) == "" {
		return nil, fmt.Errorf("%w: merchant_key is required", plugin.ErrConfigInvalid)
	}
	if cfg.APIPath == "" {
		cfg.APIPath = "/mapi.php"
	}
	if cfg.Device == "" {
		cfg.Device = "pc"
	}
	return &cfg, nil
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func buildEndpoint(gatewayURL, apiPath string) string {
	base := strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	path := strings.TrimSpace(apiPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func postForm(ctx context.Context, endpoint string, params map[string]string, timeout time.Duration) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}
