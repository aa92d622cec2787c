package service

import "errors"

var (
	ErrMerchantNotFound    = errors.New("merchant not found")
	ErrMerchantInactive    = errors.New("merchant inactive")
	ErrSignatureInvalid    = errors.New("signature invalid")
	ErrTimestampExpired    = errors.New("timestamp expired")
	ErrRSAKeyMissing       = errors.New("merchant rsa public key missing")
	ErrParamInvalid        = errors.New("param invalid")
	ErrPayTypeDisabled     = errors.New("pay type disabled")
	ErrNoChannelAvailable  = errors.New("no channel available")
	ErrAmountOutOfRange    = errors.New("amount out of range")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusInvalid  = errors.New("order status invalid")
	ErrChannelNotFound     = errors.New("channel not found")
	ErrChannelUnavailable  = errors.New("channel unavailable")
	ErrCallbackVerify      = errors.New("callback verify failed")
	ErrCashierTokenInvalid = errors.New("cashier token invalid")
)
