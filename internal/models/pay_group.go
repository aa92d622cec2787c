package models

import (
	"strconv"
	"time"
)

// PayGroup 支付分组表：按支付类型编号配置选择策略
type PayGroup struct {
	ID        uint      `gorm:"primarykey" json:"id"`                    // 主键
	Name      string    `gorm:"not null" json:"name"`                    // 分组名称
	IsDefault bool      `gorm:"index;not null;default:false" json:"is_default"` // 是否默认分组
	Config    JSON      `gorm:"type:json" json:"config"`                 // {"1": {"channel_mode": -3, "group_id": 2, "rate": 2.5}}
	CreatedAt time.Time `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                 // 更新时间
}

// TableName 指定表名
func (PayGroup) TableName() string {
	return "pay_groups"
}

// PayTypeRule 支付分组中单个支付类型的策略
type PayTypeRule struct {
	ChannelMode int      // 选择模式或指定渠道ID
	GroupID     uint     // 轮询组ID（channel_mode = -3 时生效）
	Rate        *float64 // 分组费率（百分比存储）
}

// Rule 读取指定支付类型编号的策略，未配置返回 false
func (g *PayGroup) Rule(payTypeID int) (PayTypeRule, bool) {
	if g == nil || g.Config == nil || payTypeID <= 0 {
		return PayTypeRule{}, false
	}
	raw, ok := g.Config[strconv.Itoa(payTypeID)]
	if !ok {
		return PayTypeRule{}, false
	}
	entry, ok := raw.(map[string]interface{})
	if !ok {
		return PayTypeRule{}, false
	}
	rule := PayTypeRule{}
	if mode, ok := toInt(entry["channel_mode"]); ok {
		rule.ChannelMode = mode
	}
	if groupID, ok := toInt(entry["group_id"]); ok && groupID > 0 {
		rule.GroupID = uint(groupID)
	}
	if rate, ok := toFloat(entry["rate"]); ok {
		rule.Rate = &rate
	}
	return rule, true
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
