package main

import (
	"github.com/epay-next/internal/config"
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/logger"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/sign"

	"github.com/shopspring/decimal"
)

const (
	demoPid    = "100000000001"
	demoApiKey = "5e8d2f6c4b7a49b0a1d3c2e4f6a8b0c2"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库连接失败: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	seedMerchant(stdLog.Printf)
	channelIDs := seedChannels(stdLog.Printf)
	pollingGroupID := seedPollingGroup(stdLog.Printf, channelIDs)
	seedPayGroup(stdLog.Printf, pollingGroupID)
	seedSettings(stdLog.Printf)

	stdLog.Printf("演示数据初始化完成，商户号: %s", demoPid)
}

func seedMerchant(printf func(string, ...interface{})) {
	var existing models.Merchant
	if err := models.DB.Where("pid = ?", demoPid).First(&existing).Error; err == nil {
		printf("演示商户已存在: %s", demoPid)
		return
	}

	pub, priv, err := sign.GenerateKeyPair()
	if err != nil {
		printf("生成平台密钥对失败: %v", err)
		return
	}
	rate := decimal.NewFromFloat(0.02)
	merchant := models.Merchant{
		Pid:                demoPid,
		Name:               "演示商户",
		Email:              "demo@example.com",
		ApiKey:             demoApiKey,
		PlatformPublicKey:  pub,
		PlatformPrivateKey: priv,
		FeeRate:            &rate,
		FeePayer:           constants.FeePayerMerchant,
		Status:             constants.MerchantStatusActive,
	}
	if err := models.DB.Create(&merchant).Error; err != nil {
		printf("创建演示商户失败: %v", err)
		return
	}
	printf("创建演示商户: %s (api key: %s)", demoPid, demoApiKey)
}

func seedChannels(printf func(string, ...interface{})) map[string]uint {
	channels := []models.Channel{
		{
			Name:       "演示上游-支付宝",
			PluginName: "epayup",
			PayTypes:   "alipay",
			MinAmount:  models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			Status:     constants.ChannelStatusEnabled,
			Priority:   10,
			Config: models.JSON(map[string]interface{}{
				"gateway_url":  "https://upstream.example.com",
				"merchant_id":  "1000",
				"merchant_key": "demo-upstream-key",
				"sign_type":    constants.SignTypeMD5,
			}),
		},
		{
			Name:       "演示上游-微信",
			PluginName: "epayup",
			PayTypes:   "wxpay",
			MinAmount:  models.NewMoneyFromDecimal(decimal.NewFromFloat(0.01)),
			MaxAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(5000)),
			Status:     constants.ChannelStatusEnabled,
			Priority:   5,
			Config: models.JSON(map[string]interface{}{
				"gateway_url":  "https://upstream.example.com",
				"merchant_id":  "1000",
				"merchant_key": "demo-upstream-key",
				"sign_type":    constants.SignTypeMD5,
			}),
		},
		{
			Name:       "支付宝当面付",
			PluginName: "alipay",
			PayTypes:   "alipay",
			Status:     constants.ChannelStatusDisabled,
			Config: models.JSON(map[string]interface{}{
				"app_id":      "填写应用APPID",
				"private_key": "填写应用私钥",
				"public_key":  "填写支付宝公钥",
			}),
		},
	}

	ids := map[string]uint{}
	for i := range channels {
		ch := channels[i]
		var existing models.Channel
		if err := models.DB.Where("name = ?", ch.Name).First(&existing).Error; err == nil {
			printf("渠道已存在: %s", ch.Name)
			ids[ch.Name] = existing.ID
			continue
		}
		if err := models.DB.Create(&ch).Error; err != nil {
			printf("创建渠道失败 %s: %v", ch.Name, err)
			continue
		}
		printf("创建渠道: %s", ch.Name)
		ids[ch.Name] = ch.ID
	}
	return ids
}

func seedPollingGroup(printf func(string, ...interface{}), channelIDs map[string]uint) uint {
	var existing models.PollingGroup
	if err := models.DB.Where("name = ?", "支付宝轮询组").First(&existing).Error; err == nil {
		printf("轮询组已存在: %s", existing.Name)
		return existing.ID
	}
	members := models.JSONArray{}
	if id, ok := channelIDs["演示上游-支付宝"]; ok {
		members = append(members, map[string]interface{}{"channel_id": id, "weight": 3})
	}
	if id, ok := channelIDs["支付宝当面付"]; ok {
		members = append(members, map[string]interface{}{"channel_id": id, "weight": 1})
	}
	group := models.PollingGroup{
		Name:    "支付宝轮询组",
		Mode:    constants.PollingModeWeightedRandom,
		Status:  constants.ChannelStatusEnabled,
		Members: members,
	}
	if err := models.DB.Create(&group).Error; err != nil {
		printf("创建轮询组失败: %v", err)
		return 0
	}
	printf("创建轮询组: %s", group.Name)
	return group.ID
}

func seedPayGroup(printf func(string, ...interface{}), pollingGroupID uint) {
	var existing models.PayGroup
	if err := models.DB.Where("is_default = ?", true).First(&existing).Error; err == nil {
		printf("默认支付分组已存在: %s", existing.Name)
		return
	}
	group := models.PayGroup{
		Name:      "默认分组",
		IsDefault: true,
		Config: models.JSON(map[string]interface{}{
			// 支付宝走轮询组，微信随机可用渠道
			"1": map[string]interface{}{
				"channel_mode": constants.ChannelModePolling,
				"group_id":     pollingGroupID,
				"rate":         2.0,
			},
			"2": map[string]interface{}{
				"channel_mode": constants.ChannelModeDefault,
			},
		}),
	}
	if err := models.DB.Create(&group).Error; err != nil {
		printf("创建默认支付分组失败: %v", err)
		return
	}
	printf("创建默认支付分组: %s", group.Name)
}

func seedSettings(printf func(string, ...interface{})) {
	settings := []models.Setting{
		{
			Key: constants.SettingKeyMonitorKeywords,
			ValueJSON: models.JSON(map[string]interface{}{
				"keywords": "余额不足|商户未开通|签约已失效|risk",
			}),
		},
		{
			Key: constants.SettingKeyMonitorAlert,
			ValueJSON: models.JSON(map[string]interface{}{
				"webhook_url": "",
			}),
		},
	}
	for i := range settings {
		setting := settings[i]
		var existing models.Setting
		if err := models.DB.Where("key = ?", setting.Key).First(&existing).Error; err == nil {
			printf("设置已存在: %s", setting.Key)
			continue
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			printf("创建设置失败 %s: %v", setting.Key, err)
			continue
		}
		printf("创建设置: %s", setting.Key)
	}
}
