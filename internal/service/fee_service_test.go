package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupFeeTest(t *testing.T) *FeeService {
	t.Helper()
	dsn := fmt.Sprintf("file:fee_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PayGroup{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	group := models.PayGroup{
		Name:      "默认分组",
		IsDefault: true,
		Config: models.JSON(map[string]interface{}{
			"1": map[string]interface{}{
				"channel_mode": constants.ChannelModeDefault,
				"rate":         2.5,
			},
		}),
	}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("create pay group failed: %v", err)
	}
	return NewFeeService(repository.NewPayGroupRepository(db))
}

func TestNormalizeRate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2.5", "0.025"},
		{"0.025", "0.025"},
		{"1", "0.01"},
		{"0", "0"},
	}
	for _, c := range cases {
		raw, _ := decimal.NewFromString(c.raw)
		got := NormalizeRate(raw)
		want, _ := decimal.NewFromString(c.want)
		if !got.Equal(want) {
			t.Fatalf("NormalizeRate(%s) = %s, want %s", c.raw, got, want)
		}
	}
}

func TestResolveFeeRateCascade(t *testing.T) {
	svc := setupFeeTest(t)

	// 分方式费率优先
	merchant := &models.Merchant{
		FeeRates: models.JSON(map[string]interface{}{"1": 1.5}),
	}
	uniform := decimal.NewFromFloat(0.02)
	merchant.FeeRate = &uniform
	rate, err := svc.ResolveFeeRate(merchant, "alipay")
	if err != nil {
		t.Fatalf("ResolveFeeRate error: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.015)) {
		t.Fatalf("expected per-type rate 0.015, got %s", rate)
	}

	// 分方式未配置时回落统一费率
	rate, err = svc.ResolveFeeRate(merchant, "wxpay")
	if err != nil {
		t.Fatalf("ResolveFeeRate error: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("expected uniform rate 0.02, got %s", rate)
	}

	// 商户无费率配置时取支付组费率
	rate, err = svc.ResolveFeeRate(&models.Merchant{}, "alipay")
	if err != nil {
		t.Fatalf("ResolveFeeRate error: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(0.025)) {
		t.Fatalf("expected group rate 0.025, got %s", rate)
	}

	// 支付组也未配置则为 0
	rate, err = svc.ResolveFeeRate(&models.Merchant{}, "wxpay")
	if err != nil {
		t.Fatalf("ResolveFeeRate error: %v", err)
	}
	if !rate.IsZero() {
		t.Fatalf("expected zero rate, got %s", rate)
	}
}

func TestResolveFeeRateSubPercentSurvivesStorage(t *testing.T) {
	dsn := fmt.Sprintf("file:fee_rate_storage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Merchant{}, &models.PayGroup{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	// 千分之五费率入库再读出，decimal(10,4) 不得被舍入成 0.01
	rate := decimal.NewFromFloat(0.005)
	merchant := &models.Merchant{
		Pid:      "100000000009",
		Name:     "低费率商户",
		FeeRate:  &rate,
		FeePayer: constants.FeePayerMerchant,
		Status:   constants.MerchantStatusActive,
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("create merchant failed: %v", err)
	}
	var loaded models.Merchant
	if err := db.First(&loaded, merchant.ID).Error; err != nil {
		t.Fatalf("reload merchant failed: %v", err)
	}

	svc := NewFeeService(repository.NewPayGroupRepository(db))
	got, err := svc.ResolveFeeRate(&loaded, "alipay")
	if err != nil {
		t.Fatalf("ResolveFeeRate error: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(0.005)) {
		t.Fatalf("expected fee rate 0.005, got %s", got)
	}

	result := svc.ComputeFee(models.NewMoneyFromDecimal(decimal.NewFromInt(100)), got, constants.FeePayerMerchant)
	if result.FeeMoney.String() != "0.50" {
		t.Fatalf("expected fee 0.50, got %s", result.FeeMoney.String())
	}
}

func TestComputeFee(t *testing.T) {
	svc := setupFeeTest(t)
	money := models.NewMoneyFromDecimal(decimal.NewFromInt(100))
	rate := decimal.NewFromFloat(0.02)

	result := svc.ComputeFee(money, rate, constants.FeePayerMerchant)
	if result.FeeMoney.String() != "2.00" {
		t.Fatalf("expected fee 2.00, got %s", result.FeeMoney.String())
	}
	if result.RealMoney.String() != "100.00" {
		t.Fatalf("merchant payer should not inflate real money, got %s", result.RealMoney.String())
	}

	result = svc.ComputeFee(money, rate, constants.FeePayerBuyer)
	if result.RealMoney.String() != "102.00" {
		t.Fatalf("buyer payer should pay money+fee, got %s", result.RealMoney.String())
	}
}
