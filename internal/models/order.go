package models

import (
	"time"
)

// Order 支付订单表
type Order struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                    // 主键
	TradeNo      string     `gorm:"uniqueIndex;type:varchar(32);not null" json:"trade_no"`   // 平台订单号
	OutTradeNo   string     `gorm:"index:idx_merchant_out,priority:2;index:uniq_pending_out_trade,unique,priority:2,where:status = 0;not null" json:"out_trade_no"` // 商户订单号
	MerchantID   uint       `gorm:"index:idx_merchant_out,priority:1;index:uniq_pending_out_trade,unique,priority:1,where:status = 0;index;not null" json:"merchant_id"` // 商户ID（同商户同订单号至多一笔待支付，部分唯一索引兜底）
	ChannelID    *uint      `gorm:"index" json:"channel_id,omitempty"`                       // 渠道ID（首次调起时锁定）
	PayType      string     `gorm:"index;not null" json:"pay_type"`                          // 支付类型
	Name         string     `gorm:"not null" json:"name"`                                    // 商品名称
	Money        Money      `gorm:"type:decimal(20,2);not null" json:"money"`                // 订单金额
	FeeMoney     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"fee_money"`  // 手续费
	RealMoney    Money      `gorm:"type:decimal(20,2);not null" json:"real_money"`           // 实收金额
	FeePayer     string     `gorm:"type:varchar(16);not null;default:merchant" json:"fee_payer"` // 手续费承担方
	SignType     string     `gorm:"type:varchar(8);not null;default:MD5" json:"sign_type"`   // 下单时使用的签名方式
	Status       int        `gorm:"index;not null;default:0" json:"status"`                  // 状态（0 待支付 1 已支付 2 已关闭）
	CertInfo     JSON       `gorm:"type:json" json:"cert_info,omitempty"`                    // 买家证件约束（含 min_age）
	ApiTradeNo   string     `gorm:"index" json:"api_trade_no,omitempty"`                     // 上游流水号
	Buyer        string     `json:"buyer,omitempty"`                                         // 买家标识
	NotifyURL    string     `gorm:"type:text" json:"notify_url"`                             // 商户异步通知地址
	ReturnURL    string     `gorm:"type:text" json:"return_url,omitempty"`                   // 商户同步跳转地址
	Param        string     `gorm:"type:text" json:"param,omitempty"`                        // 商户透传参数
	ClientIP     string     `gorm:"type:varchar(64)" json:"client_ip,omitempty"`             // 下单客户端IP
	BalanceAdded bool       `gorm:"not null;default:false" json:"balance_added"`             // 结算幂等标记
	NotifyStatus int        `gorm:"not null;default:0" json:"notify_status"`                 // 商户通知状态
	NotifyCount  int        `gorm:"not null;default:0" json:"notify_count"`                  // 商户通知次数
	NotifyTime   *time.Time `json:"notify_time,omitempty"`                                   // 最近通知时间
	PaidAt       *time.Time `gorm:"index" json:"paid_at,omitempty"`                          // 支付时间
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at,omitempty"`                       // 过期时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt    time.Time  `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// CertMinAge 读取证件约束中的最低年龄要求，未设置返回 0
func (o *Order) CertMinAge() int {
	if o == nil || o.CertInfo == nil {
		return 0
	}
	age, ok := toInt(o.CertInfo["min_age"])
	if !ok || age < 0 {
		return 0
	}
	return age
}
