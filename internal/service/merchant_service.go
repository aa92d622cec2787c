package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"
	"github.com/epay-next/internal/sign"
)

// MerchantService 商户开户、启停与鉴权
type MerchantService struct {
	merchantRepo repository.MerchantRepository
}

// NewMerchantService 创建商户服务
func NewMerchantService(merchantRepo repository.MerchantRepository) *MerchantService {
	return &MerchantService{merchantRepo: merchantRepo}
}

// Register 登记待激活商户
func (s *MerchantService) Register(name, email string) (*models.Merchant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrParamInvalid)
	}
	merchant := &models.Merchant{
		Name:     name,
		Email:    strings.TrimSpace(email),
		FeePayer: constants.FeePayerMerchant,
		Status:   constants.MerchantStatusPending,
	}
	if err := s.merchantRepo.Create(merchant); err != nil {
		return nil, err
	}
	return merchant, nil
}

// Activate 激活商户：分配商户号、接口密钥和平台侧密钥对
func (s *MerchantService) Activate(id uint) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if merchant.Status == constants.MerchantStatusActive {
		return merchant, nil
	}

	if merchant.Pid == "" {
		pid, err := s.generatePid()
		if err != nil {
			return nil, err
		}
		merchant.Pid = pid
	}
	if merchant.ApiKey == "" {
		apiKey, err := generateApiKey()
		if err != nil {
			return nil, err
		}
		merchant.ApiKey = apiKey
	}
	if merchant.PlatformPrivateKey == "" {
		publicKey, privateKey, err := sign.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		merchant.PlatformPublicKey = publicKey
		merchant.PlatformPrivateKey = privateKey
	}
	merchant.Status = constants.MerchantStatusActive
	if err := s.merchantRepo.Update(merchant); err != nil {
		return nil, err
	}
	logger.Infow("merchant_activated", "merchant_id", merchant.ID, "pid", merchant.Pid)
	return merchant, nil
}

// Pause 暂停商户，暂停后拒绝新下单
func (s *MerchantService) Pause(id uint) error {
	return s.setStatus(id, constants.MerchantStatusPaused)
}

// Resume 恢复商户
func (s *MerchantService) Resume(id uint) error {
	return s.setStatus(id, constants.MerchantStatusActive)
}

// GetActiveByID 按 ID 取可用商户
func (s *MerchantService) GetActiveByID(id uint) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if merchant.Status != constants.MerchantStatusActive {
		return nil, ErrMerchantInactive
	}
	return merchant, nil
}

// Authenticate 按商户号取可用商户
func (s *MerchantService) Authenticate(pid string) (*models.Merchant, error) {
	merchant, err := s.merchantRepo.GetByPid(pid)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	if merchant.Status != constants.MerchantStatusActive {
		return nil, ErrMerchantInactive
	}
	return merchant, nil
}

func (s *MerchantService) setStatus(id uint, status string) error {
	merchant, err := s.merchantRepo.GetByID(id)
	if err != nil {
		return err
	}
	if merchant == nil {
		return ErrMerchantNotFound
	}
	merchant.Status = status
	if err := s.merchantRepo.Update(merchant); err != nil {
		return err
	}
	logger.Infow("merchant_status_changed", "merchant_id", id, "status", status)
	return nil
}

// generatePid 生成 12 位数字商户号，冲突重试
func (s *MerchantService) generatePid() (string, error) {
	for i := 0; i < 5; i++ {
		pid, err := randomDigits(12)
		if err != nil {
			return "", err
		}
		existing, err := s.merchantRepo.GetByPid(pid)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return pid, nil
		}
	}
	return "", fmt.Errorf("generate pid: retries exhausted")
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		if i == 0 && digit.Int64() == 0 {
			digit = big.NewInt(1)
		}
		fmt.Fprintf(&b, "%d", digit.Int64())
	}
	return b.String(), nil
}

func generateApiKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
