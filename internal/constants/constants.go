package constants

// 订单状态常量
const (
	OrderStatusPending = 0 // 待支付
	OrderStatusPaid    = 1 // 已支付
	OrderStatusClosed  = 2 // 已关闭
)

// 商户状态常量
const (
	MerchantStatusPending = "pending"
	MerchantStatusActive  = "active"
	MerchantStatusPaused  = "paused"
)

// 签名方式常量
const (
	SignTypeMD5 = "MD5"
	SignTypeRSA = "RSA"
)

// 手续费承担方常量
const (
	FeePayerMerchant = "merchant"
	FeePayerBuyer    = "buyer"
)

// 渠道状态常量
const (
	ChannelStatusDisabled = 0
	ChannelStatusEnabled  = 1
)

// 支付类型选择模式常量（pay_group 配置中的 channel_mode）
const (
	ChannelModeDisabled   = 0  // 该支付类型停用
	ChannelModeDefault    = -1 // 随机选择
	ChannelModePolling    = -3 // 走轮询组
	ChannelModeSequential = -4 // 顺序模式（当前实现为随机代替）
	ChannelModeFirst      = -5 // 取第一个可用渠道
)

// 轮询组模式常量
const (
	PollingModeSequential     = "sequential"
	PollingModeWeightedRandom = "weighted_random"
	PollingModeFirstAvailable = "first_available"
)

// 异步通知应答常量
const (
	CallbackAckSuccess = "success"
	CallbackAckFail    = "fail"
)

// 商户通知状态常量
const (
	NotifyStatusPending = 0
	NotifyStatusSuccess = 1
	NotifyStatusFailed  = 2
)

// 插件下单结果类型常量
const (
	SubmitTypeJump   = "jump"
	SubmitTypeQRCode = "qrcode"
	SubmitTypeHTML   = "html"
	SubmitTypeScheme = "scheme"
	SubmitTypeError  = "error"
)

// 队列与任务常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskMerchantNotify   = "trade:merchant_notify"
	TaskTradeExpireClose = "trade:expire_close"
	TaskOperatorAlert    = "monitor:operator_alert"
)

// 系统设置键常量
const (
	SettingKeyMonitorKeywords = "monitor_keywords"
	SettingKeyMonitorAlert    = "monitor_alert"
)

// TimestampWindowSeconds v2 协议时间戳允许偏差（防重放窗口）
const TimestampWindowSeconds = 300

// 支付类型编号（pay_group 配置按编号索引）
var payTypeIDs = map[string]int{
	"alipay": 1,
	"wxpay":  2,
	"qqpay":  3,
	"bank":   4,
	"usdt":   5,
}

// PayTypeID 返回支付类型对应的数字编号，未知类型返回 0
func PayTypeID(payType string) int {
	return payTypeIDs[payType]
}
