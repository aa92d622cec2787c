package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Channel 上游支付渠道表
type Channel struct {
	ID         uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name       string         `gorm:"not null" json:"name"`                                  // 渠道名称
	PluginName string         `gorm:"index;not null" json:"plugin_name"`                     // 插件名称
	PayTypes   string         `gorm:"not null" json:"pay_types"`                             // 支持的支付类型（逗号分隔）
	MinAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"min_amount"` // 单笔最小金额
	MaxAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"max_amount"` // 单笔最大金额（0 不限）
	Status     int            `gorm:"index;not null;default:1" json:"status"`                // 状态（1 启用 0 停用）
	Priority   int            `gorm:"not null;default:0" json:"priority"`                    // 排序权重
	Config     JSON           `gorm:"type:json" json:"config"`                               // 插件参数（含 force_min_age）
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (Channel) TableName() string {
	return "channels"
}

// SupportsPayType 判断渠道是否支持指定支付类型
func (c *Channel) SupportsPayType(payType string) bool {
	payType = strings.TrimSpace(payType)
	if payType == "" {
		return false
	}
	for _, item := range strings.Split(c.PayTypes, ",") {
		if strings.EqualFold(strings.TrimSpace(item), payType) {
			return true
		}
	}
	return false
}

// ForceMinAge 读取渠道配置中的最低年龄限制，未配置返回 0
func (c *Channel) ForceMinAge() int {
	if c.Config == nil {
		return 0
	}
	switch v := c.Config["force_min_age"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0
		}
		age := 0
		for _, r := range trimmed {
			if r < '0' || r > '9' {
				return 0
			}
			age = age*10 + int(r-'0')
		}
		return age
	default:
		return 0
	}
}
