package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Merchant 商户表
type Merchant struct {
	ID                 uint             `gorm:"primarykey" json:"id"`                                 // 主键
	Pid                string           `gorm:"uniqueIndex;type:varchar(12)" json:"pid"`              // 商户号（12 位，激活时生成）
	Name               string           `gorm:"not null" json:"name"`                                 // 商户名称
	Email              string           `gorm:"index" json:"email,omitempty"`                         // 联系邮箱
	ApiKey             string           `gorm:"type:varchar(64)" json:"-"`                            // MD5 协议密钥
	RsaPublicKey       string           `gorm:"type:text" json:"-"`                                   // 商户公钥（验证 v2 请求签名）
	PlatformPublicKey  string           `gorm:"type:text" json:"-"`                                   // 平台公钥（下发商户验签通知）
	PlatformPrivateKey string           `gorm:"type:text" json:"-"`                                   // 平台私钥（签名商户通知）
	FeeRate            *decimal.Decimal `gorm:"type:decimal(10,4)" json:"fee_rate,omitempty"`         // 统一费率（小数形式，不做金额舍入，可空）
	FeeRates           JSON             `gorm:"type:json" json:"fee_rates,omitempty"`                 // 按支付类型费率表
	FeePayer           string           `gorm:"type:varchar(16);default:merchant" json:"fee_payer"`   // 手续费承担方
	PayGroupID         *uint            `gorm:"index" json:"pay_group_id,omitempty"`                  // 支付分组ID（可空）
	Balance            Money            `gorm:"type:decimal(20,2);not null;default:0" json:"balance"` // 可用余额
	Status             string           `gorm:"index;not null;default:pending" json:"status"`         // 商户状态
	NotifyDomain       string           `gorm:"type:varchar(255)" json:"notify_domain,omitempty"`     // 通知域名白名单（可空）
	CreatedAt          time.Time        `gorm:"index" json:"created_at"`                              // 创建时间
	UpdatedAt          time.Time        `gorm:"index" json:"updated_at"`                              // 更新时间
	DeletedAt          gorm.DeletedAt   `gorm:"index" json:"-"`                                       // 软删除时间
}

// TableName 指定表名
func (Merchant) TableName() string {
	return "merchants"
}
