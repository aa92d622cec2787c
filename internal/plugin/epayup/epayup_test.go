package epayup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/sign"
)

const testMerchantKey = "upstream-merchant-key"

func md5Config(gatewayURL string) models.JSON {
	return models.JSON(map[string]interface{}{
		"gateway_url":  gatewayURL,
		"merchant_id":  "10001",
		"merchant_key": testMerchantKey,
	})
}

func signedNotifyForm(key string, params map[string]string) url.Values {
	params["sign"] = sign.MD5(sign.BuildContent(params), key)
	params["sign_type"] = "MD5"
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	return form
}

func callbackRequest(form url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/pay/notify/x", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func testOrder() *plugin.OrderInfo {
	money, _ := models.NewMoneyFromString("9.90")
	return &plugin.OrderInfo{
		TradeNo:   "20260101120000123456",
		PayType:   "alipay",
		Name:      "测试商品",
		Money:     money,
		ClientIP:  "203.0.113.5",
		NotifyURL: "https://gateway.test/pay/notify/20260101120000123456",
		ReturnURL: "https://gateway.test/pay/return/20260101120000123456",
	}
}

func TestSubmitPostsSignedFormAndParsesPayURL(t *testing.T) {
	var received url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mapi.php" {
			t.Errorf("expected default api path /mapi.php, got %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form failed: %v", err)
		}
		received = r.PostForm
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":   1,
			"payurl": "https://upstream.example.com/pay/abc",
		})
	}))
	defer srv.Close()

	p := &Epayup{}
	result, err := p.Submit(context.Background(), md5Config(srv.URL), testOrder())
	if err != nil {
		t.Fatalf("submit error: %v", err)
	}
	if result.Type != plugin.SubmitTypeJump || result.Content != "https://upstream.example.com/pay/abc" {
		t.Fatalf("unexpected submit result: %+v", result)
	}

	if received.Get("pid") != "10001" || received.Get("money") != "9.90" {
		t.Fatalf("upstream form not carried: %v", received)
	}
	params := make(map[string]string, len(received))
	for key, values := range received {
		params[key] = values[0]
	}
	if !sign.VerifyMD5(sign.BuildContent(params), testMerchantKey, received.Get("sign")) {
		t.Fatalf("submit form signature does not verify")
	}
}

func TestSubmitSurfacesUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 0, "msg": "余额不足"})
	}))
	defer srv.Close()

	p := &Epayup{}
	_, err := p.Submit(context.Background(), md5Config(srv.URL), testOrder())
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "余额不足") {
		t.Fatalf("upstream message must surface unchanged, got %v", err)
	}
}

func TestVerifyNotifyMD5(t *testing.T) {
	form := signedNotifyForm(testMerchantKey, map[string]string{
		"pid":          "10001",
		"trade_no":     "UP20260101999",
		"out_trade_no": "20260101120000123456",
		"trade_status": "TRADE_SUCCESS",
		"money":        "9.90",
		"buyer":        "buyer@example.com",
	})

	p := &Epayup{}
	result, err := p.VerifyNotify(context.Background(), md5Config("https://upstream.example.com"), callbackRequest(form), testOrder())
	if err != nil {
		t.Fatalf("verify notify error: %v", err)
	}
	if !result.Paid || result.ApiTradeNo != "UP20260101999" || result.Buyer != "buyer@example.com" {
		t.Fatalf("unexpected callback result: %+v", result)
	}

	// 改金额后签名必须失效
	form.Set("money", "99.90")
	if _, err := p.VerifyNotify(context.Background(), md5Config("https://upstream.example.com"), callbackRequest(form), testOrder()); err == nil {
		t.Fatalf("tampered callback must fail verification")
	}
}

func TestVerifyNotifyUnpaidStatus(t *testing.T) {
	form := signedNotifyForm(testMerchantKey, map[string]string{
		"pid":          "10001",
		"trade_no":     "UP20260101999",
		"trade_status": "WAIT_BUYER_PAY",
	})

	p := &Epayup{}
	result, err := p.VerifyNotify(context.Background(), md5Config("https://upstream.example.com"), callbackRequest(form), testOrder())
	if err != nil {
		t.Fatalf("verify notify error: %v", err)
	}
	if result.Paid {
		t.Fatalf("non-success trade_status must not report paid")
	}
}

func TestVerifyNotifyRSA(t *testing.T) {
	pub, priv, err := sign.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair failed: %v", err)
	}
	params := map[string]string{
		"pid":          "10001",
		"trade_no":     "UP20260101777",
		"trade_status": "TRADE_SUCCESS",
		"money":        "9.90",
	}
	signature, err := sign.RSA(sign.BuildContent(params), priv)
	if err != nil {
		t.Fatalf("rsa sign failed: %v", err)
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", signature)
	form.Set("sign_type", "RSA")

	cfg := models.JSON(map[string]interface{}{
		"gateway_url":         "https://upstream.example.com",
		"merchant_id":         "10001",
		"sign_type":           "RSA",
		"platform_public_key": pub,
	})
	p := &Epayup{}
	result, err := p.VerifyNotify(context.Background(), cfg, callbackRequest(form), testOrder())
	if err != nil {
		t.Fatalf("verify notify error: %v", err)
	}
	if !result.Paid || result.ApiTradeNo != "UP20260101777" {
		t.Fatalf("unexpected callback result: %+v", result)
	}

	form.Set("money", "99.90")
	if _, err := p.VerifyNotify(context.Background(), cfg, callbackRequest(form), testOrder()); err == nil {
		t.Fatalf("tampered rsa callback must fail verification")
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig(md5Config("https://upstream.example.com/"))
	if err != nil {
		t.Fatalf("parse config error: %v", err)
	}
	if cfg.APIPath != "/mapi.php" || cfg.Device != "pc" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	cases := []models.JSON{
		nil,
		models.JSON(map[string]interface{}{"merchant_id": "10001", "merchant_key": "k"}),
		models.JSON(map[string]interface{}{"gateway_url": "https://u.example.com", "merchant_key": "k"}),
		models.JSON(map[string]interface{}{"gateway_url": "https://u.example.com", "merchant_id": "10001"}),
		models.JSON(map[string]interface{}{"gateway_url": "https://u.example.com", "merchant_id": "10001", "sign_type": "RSA"}),
	}
	for i, c := range cases {
		if _, err := parseConfig(c); !errors.Is(err, plugin.ErrConfigInvalid) {
			t.Fatalf("case %d: expected ErrConfigInvalid, got %v", i, err)
		}
	}
}
