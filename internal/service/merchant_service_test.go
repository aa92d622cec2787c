package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/sign"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMerchantTest(t *testing.T) *MerchantService {
	t.Helper()
	dsn := fmt.Sprintf("file:merchant_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Merchant{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return NewMerchantService(repository.NewMerchantRepository(db))
}

func TestMerchantRegisterAndActivate(t *testing.T) {
	svc := setupMerchantTest(t)

	merchant, err := svc.Register("测试商户", "m@example.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if merchant.Status != constants.MerchantStatusPending {
		t.Fatalf("new merchant must be pending, got %s", merchant.Status)
	}
	if merchant.Pid != "" || merchant.ApiKey != "" {
		t.Fatalf("credentials must not exist before activation")
	}

	activated, err := svc.Activate(merchant.ID)
	if err != nil {
		t.Fatalf("Activate error: %v", err)
	}
	if activated.Status != constants.MerchantStatusActive {
		t.Fatalf("expected active status, got %s", activated.Status)
	}
	if len(activated.Pid) != 12 || activated.Pid[0] == '0' {
		t.Fatalf("pid must be 12 digits with nonzero lead: %s", activated.Pid)
	}
	if len(activated.ApiKey) != 32 {
		t.Fatalf("api key must be 32 hex chars, got %d", len(activated.ApiKey))
	}
	if activated.PlatformPublicKey == "" || activated.PlatformPrivateKey == "" {
		t.Fatalf("platform key pair must be generated on activation")
	}
	// 平台密钥对必须可用于签名验签
	signature, err := sign.RSA("probe", activated.PlatformPrivateKey)
	if err != nil {
		t.Fatalf("platform private key unusable: %v", err)
	}
	if err := sign.VerifyRSA("probe", signature, activated.PlatformPublicKey); err != nil {
		t.Fatalf("platform public key unusable: %v", err)
	}
}

func TestMerchantAuthenticate(t *testing.T) {
	svc := setupMerchantTest(t)

	merchant, err := svc.Register("测试商户", "m@example.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	activated, err := svc.Activate(merchant.ID)
	if err != nil {
		t.Fatalf("Activate error: %v", err)
	}

	got, err := svc.Authenticate(activated.Pid)
	if err != nil || got.ID != merchant.ID {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if _, err := svc.Authenticate("999999999999"); !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("expected ErrMerchantNotFound, got %v", err)
	}

	if err := svc.Pause(merchant.ID); err != nil {
		t.Fatalf("Pause error: %v", err)
	}
	if _, err := svc.Authenticate(activated.Pid); !errors.Is(err, ErrMerchantInactive) {
		t.Fatalf("paused merchant must be rejected, got %v", err)
	}

	if err := svc.Resume(merchant.ID); err != nil {
		t.Fatalf("Resume error: %v", err)
	}
	if _, err := svc.Authenticate(activated.Pid); err != nil {
		t.Fatalf("resumed merchant must authenticate: %v", err)
	}
}
