package models

import (
	"time"
)

// PollingGroup 轮询组表：带权重的有序渠道列表
type PollingGroup struct {
	ID        uint      `gorm:"primarykey" json:"id"`                   // 主键
	Name      string    `gorm:"not null" json:"name"`                   // 轮询组名称
	Mode      string    `gorm:"not null" json:"mode"`                   // 选择模式（sequential/weighted_random/first_available）
	Status    int       `gorm:"index;not null;default:1" json:"status"` // 状态（1 启用 0 停用）
	Members   JSONArray `gorm:"type:json" json:"members"`               // [{"channel_id": 1, "weight": 3}]
	CreatedAt time.Time `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                // 更新时间
}

// TableName 指定表名
func (PollingGroup) TableName() string {
	return "polling_groups"
}

// PollingMember 轮询组成员
type PollingMember struct {
	ChannelID uint
	Weight    int
}

// MemberList 解析成员列表，保持配置顺序，权重缺省为 1
func (g *PollingGroup) MemberList() []PollingMember {
	if g == nil || len(g.Members) == 0 {
		return nil
	}
	members := make([]PollingMember, 0, len(g.Members))
	for _, entry := range g.Members {
		channelID, ok := toInt(entry["channel_id"])
		if !ok || channelID <= 0 {
			continue
		}
		weight := 1
		if w, ok := toInt(entry["weight"]); ok && w > 0 {
			weight = w
		}
		members = append(members, PollingMember{ChannelID: uint(channelID), Weight: weight})
	}
	return members
}
