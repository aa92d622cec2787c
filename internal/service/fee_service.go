package service

import (
	"strconv"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"

	"github.com/shopspring/decimal"
)

// FeeService 费率解析与手续费计算。
// 费率按 商户分方式费率 → 商户统一费率 → 支付组配置费率 → 0 级联取值。
type FeeService struct {
	payGroupRepo repository.PayGroupRepository
}

// NewFeeService 创建费率服务
func NewFeeService(payGroupRepo repository.PayGroupRepository) *FeeService {
	return &FeeService{payGroupRepo: payGroupRepo}
}

// FeeResult 费率解析结果
type FeeResult struct {
	Rate      decimal.Decimal // 小数形式费率
	FeeMoney  models.Money    // 手续费，保留两位
	RealMoney models.Money    // 买家实付
}

// NormalizeRate 归一化费率：大于等于 1 视为百分数（除以 100），小于 1 视为小数，幂等
func NormalizeRate(raw decimal.Decimal) decimal.Decimal {
	if raw.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return raw.Div(decimal.NewFromInt(100))
	}
	return raw
}

// ResolveFeeRate 解析商户在指定支付方式下的费率
func (s *FeeService) ResolveFeeRate(merchant *models.Merchant, payType string) (decimal.Decimal, error) {
	if merchant == nil {
		return decimal.Zero, ErrMerchantNotFound
	}
	payTypeID := constants.PayTypeID(payType)

	// 商户分方式费率表
	if merchant.FeeRates != nil {
		if raw, ok := merchant.FeeRates[strconv.Itoa(payTypeID)]; ok {
			if rate, ok := toDecimal(raw); ok {
				return NormalizeRate(rate), nil
			}
		}
		if raw, ok := merchant.FeeRates[payType]; ok {
			if rate, ok := toDecimal(raw); ok {
				return NormalizeRate(rate), nil
			}
		}
	}

	// 商户统一费率
	if merchant.FeeRate != nil {
		return NormalizeRate(*merchant.FeeRate), nil
	}

	// 支付组配置费率，配置值恒为百分数
	group, err := s.resolvePayGroup(merchant)
	if err != nil {
		return decimal.Zero, err
	}
	if group != nil {
		if rule, ok := group.Rule(payTypeID); ok && rule.Rate != nil {
			return decimal.NewFromFloat(*rule.Rate).Div(decimal.NewFromInt(100)), nil
		}
	}
	return decimal.Zero, nil
}

// ComputeFee 按费率计算手续费与买家实付
func (s *FeeService) ComputeFee(money models.Money, rate decimal.Decimal, feePayer string) FeeResult {
	feeMoney := models.NewMoneyFromDecimal(money.Decimal.Mul(rate))
	realMoney := money
	if feePayer == constants.FeePayerBuyer {
		realMoney = models.NewMoneyFromDecimal(money.Decimal.Add(feeMoney.Decimal))
	}
	return FeeResult{
		Rate:      rate,
		FeeMoney:  feeMoney,
		RealMoney: realMoney,
	}
}

// Resolve 一步完成费率解析与计算
func (s *FeeService) Resolve(merchant *models.Merchant, payType string, money models.Money) (FeeResult, error) {
	rate, err := s.ResolveFeeRate(merchant, payType)
	if err != nil {
		return FeeResult{}, err
	}
	return s.ComputeFee(money, rate, merchant.FeePayer), nil
}

func (s *FeeService) resolvePayGroup(merchant *models.Merchant) (*models.PayGroup, error) {
	if merchant.PayGroupID != nil {
		group, err := s.payGroupRepo.GetByID(*merchant.PayGroupID)
		if err != nil {
			return nil, err
		}
		if group != nil {
			return group, nil
		}
	}
	return s.payGroupRepo.GetDefault()
}

func toDecimal(raw interface{}) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return rate, true
	default:
		return decimal.Zero, false
	}
}
