package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/epay-next/internal/cache"
	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/queue"
	"github.com/epay-next/internal/repository"
)

const monitorSnapshotCacheKey = "monitor:snapshot"

// MonitorService 通道健康监控。
// 上游返回的错误信息命中运营配置的关键字时停用通道并发出告警。
type MonitorService struct {
	settingRepo repository.SettingRepository
	channelRepo repository.ChannelRepository
	queueClient *queue.Client
	gatewayCfg  *config.GatewayConfig
	httpClient  *http.Client
}

// NewMonitorService 创建监控服务
func NewMonitorService(
	settingRepo repository.SettingRepository,
	channelRepo repository.ChannelRepository,
	queueClient *queue.Client,
	gatewayCfg *config.GatewayConfig,
) *MonitorService {
	return &MonitorService{
		settingRepo: settingRepo,
		channelRepo: channelRepo,
		queueClient: queueClient,
		gatewayCfg:  gatewayCfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// monitorSnapshot 运营配置快照，带 TTL 缓存避免每笔请求查库
type monitorSnapshot struct {
	Keywords   string `json:"keywords"`    // 竖线分隔关键字
	WebhookURL string `json:"webhook_url"` // 告警 webhook，可为空
}

// Inspect 检查上游错误，命中关键字则停用通道并发告警
func (s *MonitorService) Inspect(ctx context.Context, channel *models.Channel, upstreamErr error) {
	if channel == nil || upstreamErr == nil {
		return
	}
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		logger.Warnw("monitor_snapshot_load_failed", "error", err)
		return
	}
	keyword := matchKeyword(snapshot.Keywords, upstreamErr.Error())
	if keyword == "" {
		return
	}

	if err := s.channelRepo.Disable(channel.ID); err != nil {
		logger.Errorw("monitor_channel_disable_failed",
			"channel_id", channel.ID,
			"keyword", keyword,
			"error", err,
		)
		return
	}
	logger.Warnw("monitor_channel_disabled",
		"channel_id", channel.ID,
		"channel_name", channel.Name,
		"keyword", keyword,
		"reason", upstreamErr.Error(),
	)
	if err := s.queueClient.EnqueueOperatorAlert(queue.OperatorAlertPayload{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Keyword:     keyword,
		Reason:      upstreamErr.Error(),
	}); err != nil {
		logger.Warnw("monitor_alert_enqueue_failed", "channel_id", channel.ID, "error", err)
	}
}

// SendAlert 投递运营告警 webhook，worker 任务入口
func (s *MonitorService) SendAlert(ctx context.Context, payload queue.OperatorAlertPayload) error {
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return err
	}
	webhook := strings.TrimSpace(snapshot.WebhookURL)
	if webhook == "" {
		logger.Infow("monitor_alert_skipped", "channel_id", payload.ChannelID, "reason", "no_webhook")
		return nil
	}
	body, err := json.Marshal(map[string]interface{}{
		"event":        "channel_disabled",
		"channel_id":   payload.ChannelID,
		"channel_name": payload.ChannelName,
		"keyword":      payload.Keyword,
		"reason":       payload.Reason,
		"time":         time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	logger.Infow("monitor_alert_sent",
		"channel_id", payload.ChannelID,
		"keyword", payload.Keyword,
		"status", resp.StatusCode,
	)
	return nil
}

func (s *MonitorService) loadSnapshot(ctx context.Context) (*monitorSnapshot, error) {
	var snapshot monitorSnapshot
	if hit, err := cache.GetJSON(ctx, monitorSnapshotCacheKey, &snapshot); err == nil && hit {
		return &snapshot, nil
	}

	if keywords, err := s.settingRepo.Get(constants.SettingKeyMonitorKeywords); err != nil {
		return nil, err
	} else if keywords != nil && keywords.ValueJSON != nil {
		if raw, ok := keywords.ValueJSON["keywords"].(string); ok {
			snapshot.Keywords = raw
		}
	}
	if alert, err := s.settingRepo.Get(constants.SettingKeyMonitorAlert); err != nil {
		return nil, err
	} else if alert != nil && alert.ValueJSON != nil {
		if raw, ok := alert.ValueJSON["webhook_url"].(string); ok {
			snapshot.WebhookURL = raw
		}
	}

	ttl := 60
	if s.gatewayCfg != nil && s.gatewayCfg.SnapshotTTLSeconds > 0 {
		ttl = s.gatewayCfg.SnapshotTTLSeconds
	}
	if err := cache.SetJSON(ctx, monitorSnapshotCacheKey, &snapshot, time.Duration(ttl)*time.Second); err != nil {
		logger.Warnw("monitor_snapshot_cache_failed", "error", err)
	}
	return &snapshot, nil
}

func matchKeyword(keywords, message string) string {
	if strings.TrimSpace(keywords) == "" || message == "" {
		return ""
	}
	for _, keyword := range strings.Split(keywords, "|") {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(message, keyword) {
			return keyword
		}
	}
	return ""
}
