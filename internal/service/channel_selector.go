package service

import (
	"fmt"
	"math/rand"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/repository"
)

// ChannelSelector 按商户支付组配置为订单挑选支付通道。
// 支付组对每个支付方式配置 channel_mode：0 停用、-3 走轮询组、
// -5 取第一个、正数指定通道，其余情况在可用通道中随机。
type ChannelSelector struct {
	channelRepo      repository.ChannelRepository
	payGroupRepo     repository.PayGroupRepository
	pollingGroupRepo repository.PollingGroupRepository
}

// NewChannelSelector 创建通道选择器
func NewChannelSelector(
	channelRepo repository.ChannelRepository,
	payGroupRepo repository.PayGroupRepository,
	pollingGroupRepo repository.PollingGroupRepository,
) *ChannelSelector {
	return &ChannelSelector{
		channelRepo:      channelRepo,
		payGroupRepo:     payGroupRepo,
		pollingGroupRepo: pollingGroupRepo,
	}
}

// SelectInput 选择条件
type SelectInput struct {
	PayType string
	Money   models.Money
	MinAge  int // 订单实名年龄要求，0 表示无要求
}

// Select 为商户选择支付通道
func (s *ChannelSelector) Select(merchant *models.Merchant, input SelectInput) (*models.Channel, error) {
	if merchant == nil {
		return nil, ErrMerchantNotFound
	}
	group, err := s.resolvePayGroup(merchant)
	if err != nil {
		return nil, err
	}

	channelMode := constants.ChannelModeDefault
	pollingGroupID := uint(0)
	if group != nil {
		if rule, ok := group.Rule(constants.PayTypeID(input.PayType)); ok {
			channelMode = rule.ChannelMode
			pollingGroupID = rule.GroupID
		}
	}
	if channelMode == constants.ChannelModeDisabled {
		return nil, fmt.Errorf("%w: %s", ErrPayTypeDisabled, input.PayType)
	}

	if channelMode == constants.ChannelModePolling && pollingGroupID > 0 {
		channel, err := s.selectFromPollingGroup(pollingGroupID, input)
		if err != nil {
			return nil, err
		}
		if channel != nil {
			return channel, nil
		}
		// 轮询组无可用成员时退回直查
	}

	channels, err := s.channelRepo.ListEnabledByPayType(input.PayType)
	if err != nil {
		return nil, err
	}
	eligible := filterEligible(channels, input)
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChannelAvailable, input.PayType)
	}
	if len(eligible) == 1 {
		return &eligible[0], nil
	}

	switch {
	case channelMode > 0:
		for i := range eligible {
			if eligible[i].ID == uint(channelMode) {
				return &eligible[i], nil
			}
		}
		return &eligible[0], nil
	case channelMode == constants.ChannelModeFirst:
		return &eligible[0], nil
	default:
		// -1 / -4 及未配置均做均匀随机
		return &eligible[rand.Intn(len(eligible))], nil
	}
}

func (s *ChannelSelector) selectFromPollingGroup(groupID uint, input SelectInput) (*models.Channel, error) {
	group, err := s.pollingGroupRepo.GetByID(groupID)
	if err != nil {
		return nil, err
	}
	if group == nil || group.Status != constants.ChannelStatusEnabled {
		return nil, nil
	}

	type candidate struct {
		channel models.Channel
		weight  int
	}
	var candidates []candidate
	for _, member := range group.MemberList() {
		channel, err := s.channelRepo.GetByID(member.ChannelID)
		if err != nil {
			return nil, err
		}
		if channel == nil || channel.Status != constants.ChannelStatusEnabled {
			continue
		}
		if !channel.SupportsPayType(input.PayType) || !eligibleChannel(channel, input) {
			continue
		}
		candidates = append(candidates, candidate{channel: *channel, weight: member.Weight})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	switch group.Mode {
	case constants.PollingModeFirstAvailable:
		return &candidates[0].channel, nil
	case constants.PollingModeWeightedRandom:
		total := 0
		for _, c := range candidates {
			if c.weight > 0 {
				total += c.weight
			}
		}
		if total <= 0 {
			return &candidates[rand.Intn(len(candidates))].channel, nil
		}
		pick := rand.Intn(total)
		for _, c := range candidates {
			if c.weight <= 0 {
				continue
			}
			pick -= c.weight
			if pick < 0 {
				return &c.channel, nil
			}
		}
		return &candidates[len(candidates)-1].channel, nil
	default:
		// 顺序模式无状态实现为均匀随机
		return &candidates[rand.Intn(len(candidates))].channel, nil
	}
}

func (s *ChannelSelector) resolvePayGroup(merchant *models.Merchant) (*models.PayGroup, error) {
	if merchant.PayGroupID != nil {
		group, err := s.payGroupRepo.GetByID(*merchant.PayGroupID)
		if err != nil {
			return nil, err
		}
		if group != nil {
			return group, nil
		}
	}
	return s.payGroupRepo.GetDefault()
}

func filterEligible(channels []models.Channel, input SelectInput) []models.Channel {
	eligible := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if eligibleChannel(&ch, input) {
			eligible = append(eligible, ch)
		}
	}
	return eligible
}

func eligibleChannel(channel *models.Channel, input SelectInput) bool {
	if minAge := channel.ForceMinAge(); minAge > 0 && minAge > input.MinAge {
		return false
	}
	money := input.Money.Decimal
	if !channel.MinAmount.Decimal.IsZero() && money.LessThan(channel.MinAmount.Decimal) {
		return false
	}
	if !channel.MaxAmount.Decimal.IsZero() && money.GreaterThan(channel.MaxAmount.Decimal) {
		return false
	}
	return true
}
