package repository

import (
	"errors"
	"strings"

	"github.com/epay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MerchantRepository 商户数据访问接口
type MerchantRepository interface {
	Create(merchant *models.Merchant) error
	Update(merchant *models.Merchant) error
	GetByID(id uint) (*models.Merchant, error)
	GetByPid(pid string) (*models.Merchant, error)
	GetByIDForUpdate(id uint) (*models.Merchant, error)
	AddBalance(id uint, amount models.Money) error
	WithTx(tx *gorm.DB) *GormMerchantRepository
}

// GormMerchantRepository GORM 实现
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewMerchantRepository 创建商户仓储
func NewMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMerchantRepository) WithTx(tx *gorm.DB) *GormMerchantRepository {
	if tx == nil {
		return r
	}
	return &GormMerchantRepository{db: tx}
}

// Create 创建商户
func (r *GormMerchantRepository) Create(merchant *models.Merchant) error {
	return r.db.Create(merchant).Error
}

// Update 更新商户
func (r *GormMerchantRepository) Update(merchant *models.Merchant) error {
	return r.db.Save(merchant).Error
}

// GetByID 根据 ID 获取商户
func (r *GormMerchantRepository) GetByID(id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByPid 根据商户号获取商户
func (r *GormMerchantRepository) GetByPid(pid string) (*models.Merchant, error) {
	pid = strings.TrimSpace(pid)
	if pid == "" {
		return nil, nil
	}
	var merchant models.Merchant
	if err := r.db.Where("pid = ?", pid).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// GetByIDForUpdate 加行锁获取商户（结算加款前必须持有）
func (r *GormMerchantRepository) GetByIDForUpdate(id uint) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&merchant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &merchant, nil
}

// AddBalance 增加商户余额
func (r *GormMerchantRepository) AddBalance(id uint, amount models.Money) error {
	return r.db.Model(&models.Merchant{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}
