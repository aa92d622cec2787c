package alipay

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
)

// 测试用裸 base64 密钥对，走 parse 的无 PEM 头分支
func generateTestKeys(t *testing.T) (publicKey, privateKey string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key failed: %v", err)
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal private key failed: %v", err)
	}
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pubBytes), base64.StdEncoding.EncodeToString(privBytes)
}

func notifyRequest(form url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/pay/notify/x", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestBuildSignContentFromForm(t *testing.T) {
	form := url.Values{}
	form.Set("trade_no", "2026010122001")
	form.Set("out_trade_no", "20260101120000123456")
	form.Set("sign", "should-be-skipped")
	form.Set("sign_type", "RSA2")
	form.Set("empty_field", "")

	got := buildSignContentFromForm(form)
	want := "out_trade_no=20260101120000123456&trade_no=2026010122001"
	if got != want {
		t.Fatalf("sign content mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestVerifyNotifyRSA2RoundTrip(t *testing.T) {
	pub, priv := generateTestKeys(t)
	cfg := models.JSON(map[string]interface{}{
		"app_id":            "2026000000000001",
		"private_key":       priv,
		"alipay_public_key": pub,
	})

	params := map[string]string{
		"trade_no":       "2026010122001430109",
		"out_trade_no":   "20260101120000123456",
		"trade_status":   "TRADE_SUCCESS",
		"total_amount":   "9.90",
		"buyer_logon_id": "buy***@example.com",
	}
	signature, err := signContent(buildSignContent(params), priv, "RSA2")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("sign", signature)
	form.Set("sign_type", "RSA2")

	p := &Alipay{}
	result, err := p.VerifyNotify(context.Background(), cfg, notifyRequest(form), nil)
	if err != nil {
		t.Fatalf("verify notify error: %v", err)
	}
	if !result.Paid || result.ApiTradeNo != "2026010122001430109" || result.Buyer != "buy***@example.com" {
		t.Fatalf("unexpected callback result: %+v", result)
	}

	// TRADE_FINISHED 同样视为已支付
	finished := url.Values{}
	params["trade_status"] = "TRADE_FINISHED"
	signature, err = signContent(buildSignContent(params), priv, "RSA2")
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	for k, v := range params {
		finished.Set(k, v)
	}
	finished.Set("sign", signature)
	finished.Set("sign_type", "RSA2")
	result, err = p.VerifyNotify(context.Background(), cfg, notifyRequest(finished), nil)
	if err != nil {
		t.Fatalf("verify notify error: %v", err)
	}
	if !result.Paid {
		t.Fatalf("TRADE_FINISHED must report paid")
	}

	// 改金额后验签必须失败
	form.Set("total_amount", "99.90")
	if _, err := p.VerifyNotify(context.Background(), cfg, notifyRequest(form), nil); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for tampered form, got %v", err)
	}
}

func TestVerifyNotifyRejectsMissingSign(t *testing.T) {
	pub, priv := generateTestKeys(t)
	cfg := models.JSON(map[string]interface{}{
		"app_id":            "2026000000000001",
		"private_key":       priv,
		"alipay_public_key": pub,
	})
	form := url.Values{}
	form.Set("trade_no", "2026010122001430109")
	form.Set("trade_status", "TRADE_SUCCESS")

	p := &Alipay{}
	if _, err := p.VerifyNotify(context.Background(), cfg, notifyRequest(form), nil); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	pub, priv := generateTestKeys(t)
	cfg, err := parseConfig(models.JSON(map[string]interface{}{
		"app_id":            "2026000000000001",
		"private_key":       priv,
		"alipay_public_key": pub,
	}))
	if err != nil {
		t.Fatalf("parse config error: %v", err)
	}
	if cfg.SignType != "RSA2" {
		t.Fatalf("expected default sign type RSA2, got %s", cfg.SignType)
	}
	if cfg.GatewayURL != "https://openapi.alipay.com/gateway.do" {
		t.Fatalf("expected default gateway, got %s", cfg.GatewayURL)
	}

	cases := []models.JSON{
		nil,
		models.JSON(map[string]interface{}{"private_key": priv, "alipay_public_key": pub}),
		models.JSON(map[string]interface{}{"app_id": "1", "alipay_public_key": pub}),
		models.JSON(map[string]interface{}{"app_id": "1", "private_key": priv}),
	}
	for i, c := range cases {
		if _, err := parseConfig(c); !errors.Is(err, plugin.ErrConfigInvalid) {
			t.Fatalf("case %d: expected ErrConfigInvalid, got %v", i, err)
		}
	}
}
