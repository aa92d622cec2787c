package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/sign"
)

// VerifyRequest 校验商户请求签名并返回生效的签名方式。
// 不带 timestamp 视为旧版请求，默认 MD5；带 timestamp 视为 v2 请求，
// 默认 RSA 并校验防重放窗口。显式 sign_type 可覆盖默认值，
// 但请求 RSA 而商户未上传公钥时直接报错，不回退 MD5。
func VerifyRequest(merchant *models.Merchant, params map[string]string) (string, error) {
	if merchant == nil {
		return "", ErrMerchantNotFound
	}
	signature := strings.TrimSpace(params["sign"])
	if signature == "" {
		return "", fmt.Errorf("%w: sign is required", ErrSignatureInvalid)
	}

	timestamp := strings.TrimSpace(params["timestamp"])
	isV2 := timestamp != ""
	if isV2 {
		if err := checkTimestamp(timestamp); err != nil {
			return "", err
		}
	}

	signType := strings.ToUpper(strings.TrimSpace(params["sign_type"]))
	if signType == "" {
		if isV2 {
			signType = constants.SignTypeRSA
		} else {
			signType = constants.SignTypeMD5
		}
	}

	content := sign.BuildContent(params)
	switch signType {
	case constants.SignTypeRSA:
		if strings.TrimSpace(merchant.RsaPublicKey) == "" {
			return "", ErrRSAKeyMissing
		}
		if err := sign.VerifyRSA(content, signature, merchant.RsaPublicKey); err != nil {
			return "", ErrSignatureInvalid
		}
	case constants.SignTypeMD5:
		if !sign.VerifyMD5(content, merchant.ApiKey, signature) {
			return "", ErrSignatureInvalid
		}
	default:
		return "", fmt.Errorf("%w: sign_type %s", ErrParamInvalid, signType)
	}
	return signType, nil
}

func checkTimestamp(raw string) error {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp malformed", ErrParamInvalid)
	}
	diff := time.Now().Unix() - ts
	if diff < 0 {
		diff = -diff
	}
	if diff > constants.TimestampWindowSeconds {
		return ErrTimestampExpired
	}
	return nil
}
