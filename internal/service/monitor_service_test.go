package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupMonitorTest(t *testing.T) (*gorm.DB, *MonitorService) {
	t.Helper()
	dsn := fmt.Sprintf("file:monitor_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Channel{}, &models.Setting{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	setting := models.Setting{
		Key: constants.SettingKeyMonitorKeywords,
		ValueJSON: models.JSON(map[string]interface{}{
			"keywords": "余额不足|商户未开通|risk",
		}),
	}
	if err := db.Create(&setting).Error; err != nil {
		t.Fatalf("create setting failed: %v", err)
	}
	svc := NewMonitorService(
		repository.NewSettingRepository(db),
		repository.NewChannelRepository(db),
		nil,
		nil,
	)
	return db, svc
}

func TestMatchKeyword(t *testing.T) {
	cases := []struct {
		keywords string
		message  string
		want     string
	}{
		{"余额不足|risk", "上游返回: 商户余额不足，请充值", "余额不足"},
		{"余额不足|risk", "risk control triggered", "risk"},
		{"余额不足|risk", "正常失败", ""},
		{"", "余额不足", ""},
		{" | ", "anything", ""},
	}
	for _, c := range cases {
		if got := matchKeyword(c.keywords, c.message); got != c.want {
			t.Fatalf("matchKeyword(%q, %q) = %q, want %q", c.keywords, c.message, got, c.want)
		}
	}
}

func TestInspectDisablesChannelOnKeyword(t *testing.T) {
	db, svc := setupMonitorTest(t)
	channel := models.Channel{
		Name:       "测试通道",
		PluginName: "epayup",
		PayTypes:   "alipay",
		Status:     constants.ChannelStatusEnabled,
	}
	if err := db.Create(&channel).Error; err != nil {
		t.Fatalf("create channel failed: %v", err)
	}

	svc.Inspect(context.Background(), &channel, errors.New("上游返回: 商户余额不足"))

	var got models.Channel
	if err := db.First(&got, channel.ID).Error; err != nil {
		t.Fatalf("reload channel failed: %v", err)
	}
	if got.Status != constants.ChannelStatusDisabled {
		t.Fatalf("expected channel disabled, got status %d", got.Status)
	}
}

func TestInspectIgnoresUnmatchedError(t *testing.T) {
	db, svc := setupMonitorTest(t)
	channel := models.Channel{
		Name:       "测试通道",
		PluginName: "epayup",
		PayTypes:   "alipay",
		Status:     constants.ChannelStatusEnabled,
	}
	if err := db.Create(&channel).Error; err != nil {
		t.Fatalf("create channel failed: %v", err)
	}

	svc.Inspect(context.Background(), &channel, errors.New("net timeout"))

	var got models.Channel
	if err := db.First(&got, channel.ID).Error; err != nil {
		t.Fatalf("reload channel failed: %v", err)
	}
	if got.Status != constants.ChannelStatusEnabled {
		t.Fatalf("unmatched error must not disable channel, got status %d", got.Status)
	}
}
