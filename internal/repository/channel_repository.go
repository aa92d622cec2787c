package repository

import (
	"errors"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"

	"gorm.io/gorm"
)

// ChannelRepository 支付通道数据访问接口
type ChannelRepository interface {
	Create(channel *models.Channel) error
	Update(channel *models.Channel) error
	GetByID(id uint) (*models.Channel, error)
	ListEnabled() ([]models.Channel, error)
	ListEnabledByPayType(payType string) ([]models.Channel, error)
	Disable(id uint) error
	WithTx(tx *gorm.DB) *GormChannelRepository
}

// GormChannelRepository GORM 实现
type GormChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository 创建通道仓储
func NewChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// WithTx 绑定事务
func (r *GormChannelRepository) WithTx(tx *gorm.DB) *GormChannelRepository {
	if tx == nil {
		return r
	}
	return &GormChannelRepository{db: tx}
}

// Create 创建通道
func (r *GormChannelRepository) Create(channel *models.Channel) error {
	return r.db.Create(channel).Error
}

// Update 更新通道
func (r *GormChannelRepository) Update(channel *models.Channel) error {
	return r.db.Save(channel).Error
}

// GetByID 根据 ID 获取通道
func (r *GormChannelRepository) GetByID(id uint) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// ListEnabled 列出全部启用通道
func (r *GormChannelRepository) ListEnabled() ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.Where("status = ?", constants.ChannelStatusEnabled).
		Order("priority DESC, id ASC").
		Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// ListEnabledByPayType 列出支持指定支付方式的启用通道
// pay_types 为逗号分隔集合，过滤在应用层完成
func (r *GormChannelRepository) ListEnabledByPayType(payType string) ([]models.Channel, error) {
	channels, err := r.ListEnabled()
	if err != nil {
		return nil, err
	}
	matched := make([]models.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.SupportsPayType(payType) {
			matched = append(matched, ch)
		}
	}
	return matched, nil
}

// Disable 停用通道
func (r *GormChannelRepository) Disable(id uint) error {
	return r.db.Model(&models.Channel{}).
		Where("id = ?", id).
		Update("status", constants.ChannelStatusDisabled).Error
}
