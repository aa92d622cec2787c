package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/sign"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupNotifyTest(t *testing.T) (*gorm.DB, *NotifyService, *models.Merchant) {
	t.Helper()
	dsn := fmt.Sprintf("file:notify_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Merchant{}, &models.Order{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	merchant := &models.Merchant{
		Pid:    "100000000001",
		Name:   "测试商户",
		ApiKey: "test-api-key",
		Status: constants.MerchantStatusActive,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	svc := NewNotifyService(
		repository.NewOrderRepository(db),
		repository.NewMerchantRepository(db),
		&config.GatewayConfig{NotifyTimeoutSeconds: 5},
	)
	return db, svc, merchant
}

func paidOrder(t *testing.T, db *gorm.DB, merchantID uint, notifyURL string) *models.Order {
	t.Helper()
	now := time.Now()
	order := &models.Order{
		TradeNo:    GenerateTradeNo(),
		OutTradeNo: "M001",
		MerchantID: merchantID,
		PayType:    "alipay",
		Name:       "测试商品",
		Money:      models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		RealMoney:  models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		SignType:   constants.SignTypeMD5,
		Status:     constants.OrderStatusPaid,
		Buyer:      "buyer@example.com",
		NotifyURL:  notifyURL,
		Param:      "attach",
		PaidAt:     &now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestBuildParamsMD5Signature(t *testing.T) {
	db, svc, merchant := setupNotifyTest(t)
	order := paidOrder(t, db, merchant.ID, "https://shop.example.com/notify")

	params, err := svc.BuildParams(merchant, order)
	if err != nil {
		t.Fatalf("BuildParams error: %v", err)
	}
	if params["trade_status"] != "TRADE_SUCCESS" {
		t.Fatalf("expected TRADE_SUCCESS, got %s", params["trade_status"])
	}
	if params["sign_type"] != constants.SignTypeMD5 {
		t.Fatalf("expected MD5 sign type, got %s", params["sign_type"])
	}
	if !sign.VerifyMD5(sign.BuildContent(params), merchant.ApiKey, params["sign"]) {
		t.Fatalf("notify signature must verify with merchant api key")
	}
}

func TestBuildParamsRSASignature(t *testing.T) {
	db, svc, merchant := setupNotifyTest(t)
	pub, priv, err := sign.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair error: %v", err)
	}
	merchant.PlatformPublicKey = pub
	merchant.PlatformPrivateKey = priv
	if err := db.Save(merchant).Error; err != nil {
		t.Fatalf("save merchant failed: %v", err)
	}

	order := paidOrder(t, db, merchant.ID, "https://shop.example.com/notify")
	order.SignType = constants.SignTypeRSA

	params, err := svc.BuildParams(merchant, order)
	if err != nil {
		t.Fatalf("BuildParams error: %v", err)
	}
	if params["sign_type"] != constants.SignTypeRSA {
		t.Fatalf("expected RSA sign type, got %s", params["sign_type"])
	}
	if err := sign.VerifyRSA(sign.BuildContent(params), params["sign"], pub); err != nil {
		t.Fatalf("notify signature must verify with platform public key: %v", err)
	}
}

func TestDeliverAckSuccess(t *testing.T) {
	received := make(chan map[string][]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		received <- r.PostForm
		fmt.Fprint(w, "success")
	}))
	defer server.Close()

	db, svc, merchant := setupNotifyTest(t)
	order := paidOrder(t, db, merchant.ID, server.URL)

	if err := svc.Deliver(context.Background(), order.ID); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	form := <-received
	if got := form["out_trade_no"]; len(got) == 0 || got[0] != "M001" {
		t.Fatalf("notify form missing out_trade_no: %v", form)
	}

	var got models.Order
	if err := db.First(&got, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.NotifyStatus != constants.NotifyStatusSuccess {
		t.Fatalf("expected success notify status, got %d", got.NotifyStatus)
	}
	if got.NotifyCount != 1 || got.NotifyTime == nil {
		t.Fatalf("notify bookkeeping missing: count=%d", got.NotifyCount)
	}

	// 已确认的订单不再重复投递
	if err := svc.Deliver(context.Background(), order.ID); err != nil {
		t.Fatalf("second Deliver error: %v", err)
	}
	select {
	case <-received:
		t.Fatalf("confirmed order must not be re-notified")
	default:
	}
}

func TestDeliverRejectedAck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "fail")
	}))
	defer server.Close()

	db, svc, merchant := setupNotifyTest(t)
	order := paidOrder(t, db, merchant.ID, server.URL)

	if err := svc.Deliver(context.Background(), order.ID); err == nil {
		t.Fatalf("rejected ack must surface an error for retry")
	}

	var got models.Order
	if err := db.First(&got, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.NotifyStatus != constants.NotifyStatusFailed {
		t.Fatalf("expected failed notify status, got %d", got.NotifyStatus)
	}
	if got.NotifyCount != 1 {
		t.Fatalf("expected notify count 1, got %d", got.NotifyCount)
	}
}

func TestDeliverSkipsPendingOrder(t *testing.T) {
	db, svc, merchant := setupNotifyTest(t)
	order := paidOrder(t, db, merchant.ID, "https://unreachable.invalid/notify")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", constants.OrderStatusPending).Error; err != nil {
		t.Fatalf("reset status failed: %v", err)
	}

	if err := svc.Deliver(context.Background(), order.ID); err != nil {
		t.Fatalf("pending order must be skipped silently, got %v", err)
	}
}

func TestDeliverEmptyURLMarksSuccess(t *testing.T) {
	db, svc, merchant := setupNotifyTest(t)
	order := paidOrder(t, db, merchant.ID, "")

	if err := svc.Deliver(context.Background(), order.ID); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}
	var got models.Order
	if err := db.First(&got, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if got.NotifyStatus != constants.NotifyStatusSuccess {
		t.Fatalf("empty notify url should record success, got %d", got.NotifyStatus)
	}
}
