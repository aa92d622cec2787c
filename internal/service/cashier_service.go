package service

import (
	"fmt"
	"time"

	"github.com/epay-next/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// CashierService 收银台会话令牌。
// 旧版页面流下单后 302 到收银台，订单号通过短期 JWT 防篡改。
type CashierService struct {
	secret []byte
	expire time.Duration
}

// NewCashierService 创建收银台服务
func NewCashierService(gatewayCfg *config.GatewayConfig) *CashierService {
	secret := "change-me-in-production"
	expireMinutes := 30
	if gatewayCfg != nil {
		if gatewayCfg.CashierSecret != "" {
			secret = gatewayCfg.CashierSecret
		}
		if gatewayCfg.CashierExpireMinutes > 0 {
			expireMinutes = gatewayCfg.CashierExpireMinutes
		}
	}
	return &CashierService{
		secret: []byte(secret),
		expire: time.Duration(expireMinutes) * time.Minute,
	}
}

type cashierClaims struct {
	TradeNo string `json:"trade_no"`
	jwt.RegisteredClaims
}

// IssueToken 为订单签发收银台令牌
func (s *CashierService) IssueToken(tradeNo string) (string, error) {
	now := time.Now()
	claims := cashierClaims{
		TradeNo: tradeNo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expire)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken 校验令牌并取回订单号
func (s *CashierService) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &cashierClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", ErrCashierTokenInvalid
	}
	claims, ok := parsed.Claims.(*cashierClaims)
	if !ok || !parsed.Valid || claims.TradeNo == "" {
		return "", ErrCashierTokenInvalid
	}
	return claims.TradeNo, nil
}
