package repository

import (
	"errors"

	"github.com/epay-next/internal/models"

	"gorm.io/gorm"
)

// PayGroupRepository 支付组数据访问接口
type PayGroupRepository interface {
	Create(group *models.PayGroup) error
	Update(group *models.PayGroup) error
	GetByID(id uint) (*models.PayGroup, error)
	GetDefault() (*models.PayGroup, error)
	WithTx(tx *gorm.DB) *GormPayGroupRepository
}

// GormPayGroupRepository GORM 实现
type GormPayGroupRepository struct {
	db *gorm.DB
}

// NewPayGroupRepository 创建支付组仓储
func NewPayGroupRepository(db *gorm.DB) *GormPayGroupRepository {
	return &GormPayGroupRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayGroupRepository) WithTx(tx *gorm.DB) *GormPayGroupRepository {
	if tx == nil {
		return r
	}
	return &GormPayGroupRepository{db: tx}
}

// Create 创建支付组
func (r *GormPayGroupRepository) Create(group *models.PayGroup) error {
	return r.db.Create(group).Error
}

// Update 更新支付组
func (r *GormPayGroupRepository) Update(group *models.PayGroup) error {
	return r.db.Save(group).Error
}

// GetByID 根据 ID 获取支付组
func (r *GormPayGroupRepository) GetByID(id uint) (*models.PayGroup, error) {
	var group models.PayGroup
	if err := r.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// GetDefault 获取默认支付组，未标记默认时取最早创建的一个
func (r *GormPayGroupRepository) GetDefault() (*models.PayGroup, error) {
	var group models.PayGroup
	err := r.db.Where("is_default = ?", true).Order("id ASC").First(&group).Error
	if err == nil {
		return &group, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.db.Order("id ASC").First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}
