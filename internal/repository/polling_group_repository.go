package repository

import (
	"errors"

	"github.com/epay-next/internal/models"

	"gorm.io/gorm"
)

// PollingGroupRepository 轮询组数据访问接口
type PollingGroupRepository interface {
	Create(group *models.PollingGroup) error
	Update(group *models.PollingGroup) error
	GetByID(id uint) (*models.PollingGroup, error)
	WithTx(tx *gorm.DB) *GormPollingGroupRepository
}

// GormPollingGroupRepository GORM 实现
type GormPollingGroupRepository struct {
	db *gorm.DB
}

// NewPollingGroupRepository 创建轮询组仓储
func NewPollingGroupRepository(db *gorm.DB) *GormPollingGroupRepository {
	return &GormPollingGroupRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPollingGroupRepository) WithTx(tx *gorm.DB) *GormPollingGroupRepository {
	if tx == nil {
		return r
	}
	return &GormPollingGroupRepository{db: tx}
}

// Create 创建轮询组
func (r *GormPollingGroupRepository) Create(group *models.PollingGroup) error {
	return r.db.Create(group).Error
}

// Update 更新轮询组
func (r *GormPollingGroupRepository) Update(group *models.PollingGroup) error {
	return r.db.Save(group).Error
}

// GetByID 根据 ID 获取轮询组
func (r *GormPollingGroupRepository) GetByID(id uint) (*models.PollingGroup, error) {
	var group models.PollingGroup
	if err := r.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}
