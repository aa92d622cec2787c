// Package plugin 定义支付通道插件契约与注册表。
// 每个插件对接一种上游收款方式，通道表通过 plugin_name 绑定插件，
// 通道的 config JSON 作为插件配置传入。
package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/epay-next/internal/models"
)

var (
	ErrPluginNotFound = errors.New("plugin not found")
	ErrConfigInvalid  = errors.New("plugin config invalid")
	ErrNotSupported   = errors.New("operation not supported by plugin")
)

// 下单结果类型
const (
	SubmitTypeJump   = "jump"   // 跳转支付页
	SubmitTypeQRCode = "qrcode" // 返回二维码内容
	SubmitTypeHTML   = "html"   // 返回自渲染 HTML
	SubmitTypeScheme = "scheme" // 拉起客户端 scheme
)

// Capabilities 插件能力声明
type Capabilities struct {
	PayTypes []string // 支持的支付方式
	Submit   bool     // 支持主动下单
	Notify   bool     // 支持异步回调
	Return   bool     // 支持同步跳转回调
}

// OrderInfo 传给插件的订单视图，金额为买家实付
type OrderInfo struct {
	TradeNo   string
	PayType   string
	Name      string
	Money     models.Money
	ClientIP  string
	NotifyURL string // 平台回调地址，含 trade_no
	ReturnURL string // 平台同步跳转地址，含 trade_no
}

// SubmitResult 下单结果
type SubmitResult struct {
	Type    string // jump/qrcode/html/scheme
	Content string // 跳转地址、二维码内容或 HTML
}

// CallbackResult 回调校验结果
type CallbackResult struct {
	Paid       bool   // 上游确认已支付
	ApiTradeNo string // 上游交易号
	Buyer      string // 买家标识
}

// Plugin 支付插件契约。回调校验直接收原始请求：
// 表单类上游读 req.Form，APIv3 类上游读请求体与签名头。
type Plugin interface {
	Name() string
	Capabilities() Capabilities
	Submit(ctx context.Context, cfg models.JSON, order *OrderInfo) (*SubmitResult, error)
	VerifyNotify(ctx context.Context, cfg models.JSON, req *http.Request, order *OrderInfo) (*CallbackResult, error)
	VerifyReturn(ctx context.Context, cfg models.JSON, req *http.Request, order *OrderInfo) (*CallbackResult, error)
	NotifyResponse(ok bool) string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Plugin)
)

// Register 注册插件，重名注册为编程错误
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := p.Name()
	if name == "" {
		panic("plugin: register with empty name")
	}
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration %q", name))
	}
	registry[name] = p
}

// Get 按名称获取插件
func Get(name string) (Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return p, nil
}

// Names 返回已注册插件名，升序
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
