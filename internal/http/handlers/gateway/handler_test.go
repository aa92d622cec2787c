package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/plugin"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/service"
	"github.com/epay-next/internal/sign"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testApiKey = "handler-test-api-key"

// stubPlugin 固定返回二维码的测试插件
type stubPlugin struct{}

func init() {
	plugin.Register(&stubPlugin{})
}

func (p *stubPlugin) Name() string { return "stubpay" }

func (p *stubPlugin) Capabilities() plugin.Capabilities {
	return plugin.Capabilities{PayTypes: []string{"alipay", "wxpay"}, Submit: true, Notify: true}
}

func (p *stubPlugin) Submit(_ context.Context, _ models.JSON, order *plugin.OrderInfo) (*plugin.SubmitResult, error) {
	return &plugin.SubmitResult{Type: plugin.SubmitTypeQRCode, Content: "stub://" + order.TradeNo}, nil
}

func (p *stubPlugin) VerifyNotify(_ context.Context, _ models.JSON, req *http.Request, _ *plugin.OrderInfo) (*plugin.CallbackResult, error) {
	if err := req.ParseForm(); err != nil {
		return nil, err
	}
	return &plugin.CallbackResult{
		Paid:       req.Form.Get("paid") == "1",
		ApiTradeNo: req.Form.Get("api_trade_no"),
	}, nil
}

func (p *stubPlugin) VerifyReturn(_ context.Context, _ models.JSON, _ *http.Request, _ *plugin.OrderInfo) (*plugin.CallbackResult, error) {
	return nil, plugin.ErrNotSupported
}

func (p *stubPlugin) NotifyResponse(ok bool) string {
	if ok {
		return constants.CallbackAckSuccess
	}
	return constants.CallbackAckFail
}

type gatewayFixture struct {
	db       *gorm.DB
	engine   *gin.Engine
	handler  *Handler
	cashier  *service.CashierService
	merchant *models.Merchant
}

func setupGatewayTest(t *testing.T) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:gateway_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Merchant{},
		&models.Channel{},
		&models.PayGroup{},
		&models.PollingGroup{},
		&models.Order{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	models.DB = db

	merchant := &models.Merchant{
		Pid:      "100000000001",
		Name:     "测试商户",
		ApiKey:   testApiKey,
		FeePayer: constants.FeePayerMerchant,
		Status:   constants.MerchantStatusActive,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	channel := models.Channel{
		Name:       "stub通道",
		PluginName: "stubpay",
		PayTypes:   "alipay,wxpay",
		Status:     constants.ChannelStatusEnabled,
	}
	if err := db.Create(&channel).Error; err != nil {
		t.Fatalf("create channel failed: %v", err)
	}

	orderRepo := repository.NewOrderRepository(db)
	merchantRepo := repository.NewMerchantRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	payGroupRepo := repository.NewPayGroupRepository(db)
	pollingGroupRepo := repository.NewPollingGroupRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	gatewayCfg := &config.GatewayConfig{
		BaseURL:       "http://gateway.test",
		CashierSecret: "0123456789abcdef0123456789abcdef",
	}

	trades := service.NewTradeService(
		orderRepo,
		merchantRepo,
		channelRepo,
		service.NewFeeService(payGroupRepo),
		service.NewChannelSelector(channelRepo, payGroupRepo, pollingGroupRepo),
		service.NewMonitorService(settingRepo, channelRepo, nil, gatewayCfg),
		service.NewNotifyService(orderRepo, merchantRepo, gatewayCfg),
		nil,
		gatewayCfg,
	)
	cashier := service.NewCashierService(gatewayCfg)
	handler := NewHandler(service.NewMerchantService(merchantRepo), trades, cashier)

	engine := gin.New()
	engine.POST("/mapi", handler.Mapi)
	engine.GET("/submit", handler.Submit)
	engine.POST("/submit", handler.Submit)
	engine.POST("/api/pay/create", handler.CreateV2)
	engine.GET("/api/pay/query", handler.Query)
	engine.Any("/pay/notify/:trade_no", handler.Notify)

	return &gatewayFixture{db: db, engine: engine, handler: handler, cashier: cashier, merchant: merchant}
}

func signLegacy(params map[string]string) url.Values {
	params["sign"] = sign.MD5(sign.BuildContent(params), testApiKey)
	params["sign_type"] = constants.SignTypeMD5
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	return form
}

func postForm(engine *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response failed: %v: %s", err, w.Body.String())
	}
	return body
}

func TestMapiCreatesAndDispatches(t *testing.T) {
	f := setupGatewayTest(t)
	form := signLegacy(map[string]string{
		"pid":          f.merchant.Pid,
		"type":         "alipay",
		"out_trade_no": "M001",
		"name":         "测试商品",
		"money":        "9.90",
		"notify_url":   "https://shop.example.com/notify",
	})

	w := postForm(f.engine, "/mapi", form)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected http status %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["code"].(float64) != 1 {
		t.Fatalf("expected code 1, got %v: %s", body["code"], w.Body.String())
	}
	tradeNo, _ := body["trade_no"].(string)
	if len(tradeNo) != 20 {
		t.Fatalf("expected trade_no in response, got %v", body)
	}
	if qr, _ := body["qrcode"].(string); qr != "stub://"+tradeNo {
		t.Fatalf("expected stub qrcode, got %v", body["qrcode"])
	}
}

func TestMapiRejectsTamperedSign(t *testing.T) {
	f := setupGatewayTest(t)
	form := signLegacy(map[string]string{
		"pid":          f.merchant.Pid,
		"type":         "alipay",
		"out_trade_no": "M001",
		"money":        "9.90",
	})
	form.Set("money", "0.01")

	body := decodeBody(t, postForm(f.engine, "/mapi", form))
	if body["code"].(float64) != -1 {
		t.Fatalf("expected code -1, got %v", body["code"])
	}
	if body["msg"] != "签名校验失败" {
		t.Fatalf("unexpected message: %v", body["msg"])
	}
}

func TestMapiRejectsUnknownMerchant(t *testing.T) {
	f := setupGatewayTest(t)
	form := signLegacy(map[string]string{
		"pid":          "999999999999",
		"type":         "alipay",
		"out_trade_no": "M001",
		"money":        "9.90",
	})

	body := decodeBody(t, postForm(f.engine, "/mapi", form))
	if body["msg"] != "商户不存在" {
		t.Fatalf("unexpected message: %v", body["msg"])
	}
}

func TestSubmitRedirectsToCashier(t *testing.T) {
	f := setupGatewayTest(t)
	form := signLegacy(map[string]string{
		"pid":          f.merchant.Pid,
		"type":         "alipay",
		"out_trade_no": "M001",
		"name":         "测试商品",
		"money":        "9.90",
		"return_url":   "https://shop.example.com/done",
	})

	w := postForm(f.engine, "/submit", form)
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d: %s", w.Code, w.Body.String())
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "/pay/checkout?") {
		t.Fatalf("unexpected redirect target: %s", location)
	}
	parsed, err := url.Parse(location)
	if err != nil {
		t.Fatalf("parse redirect failed: %v", err)
	}
	tradeNo, err := f.cashier.ParseToken(parsed.Query().Get("token"))
	if err != nil {
		t.Fatalf("cashier token invalid: %v", err)
	}
	if tradeNo != parsed.Query().Get("trade_no") {
		t.Fatalf("token trade no mismatch: %s vs %s", tradeNo, parsed.Query().Get("trade_no"))
	}
}

func TestCreateV2WithTimestamp(t *testing.T) {
	f := setupGatewayTest(t)
	params := map[string]string{
		"pid":          f.merchant.Pid,
		"type":         "wxpay",
		"out_trade_no": "M002",
		"name":         "测试商品",
		"money":        "19.90",
		"timestamp":    fmt.Sprintf("%d", time.Now().Unix()),
	}
	form := signLegacy(params)

	body := decodeBody(t, postForm(f.engine, "/api/pay/create", form))
	if body["code"].(float64) != 0 {
		t.Fatalf("expected code 0, got %v: %v", body["code"], body)
	}
	if body["pay_info"] == nil || body["trade_no"] == nil {
		t.Fatalf("missing pay_info/trade_no: %v", body)
	}
}

func TestQueryReturnsOrder(t *testing.T) {
	f := setupGatewayTest(t)
	order, err := f.handler.trades.CreateOrReuseOrder(f.merchant, service.CreateOrderInput{
		OutTradeNo: "M003",
		PayType:    "alipay",
		Name:       "测试商品",
		Money:      models.NewMoneyFromDecimal(decimal.NewFromInt(25)),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	params := map[string]string{
		"pid":          f.merchant.Pid,
		"out_trade_no": "M003",
	}
	form := signLegacy(params)
	req := httptest.NewRequest("GET", "/api/pay/query?"+form.Encode(), nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	body := decodeBody(t, w)
	if body["code"].(float64) != 0 {
		t.Fatalf("expected code 0, got %v: %s", body["code"], w.Body.String())
	}
	data, _ := body["data"].(map[string]interface{})
	if data == nil || data["trade_no"] != order.TradeNo {
		t.Fatalf("unexpected query payload: %v", body)
	}
	if data["status"].(float64) != float64(constants.OrderStatusPending) {
		t.Fatalf("expected pending status, got %v", data["status"])
	}
}

func TestNotifyEndpointSettles(t *testing.T) {
	f := setupGatewayTest(t)
	order, err := f.handler.trades.CreateOrReuseOrder(f.merchant, service.CreateOrderInput{
		OutTradeNo: "M004",
		PayType:    "alipay",
		Name:       "测试商品",
		Money:      models.NewMoneyFromDecimal(decimal.NewFromInt(30)),
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if _, err := f.handler.trades.Dispatch(context.Background(), f.merchant, order); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	form := url.Values{}
	form.Set("paid", "1")
	form.Set("api_trade_no", "UP888")
	w := postForm(f.engine, "/pay/notify/"+order.TradeNo, form)
	if w.Code != http.StatusOK || w.Body.String() != constants.CallbackAckSuccess {
		t.Fatalf("expected success ack, got %d %q", w.Code, w.Body.String())
	}

	var got models.Order
	if err := f.db.First(&got, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.Status != constants.OrderStatusPaid || got.ApiTradeNo != "UP888" {
		t.Fatalf("order not settled: %+v", got)
	}
}
