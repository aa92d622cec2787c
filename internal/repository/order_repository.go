package repository

import (
	"errors"
	"time"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	Update(order *models.Order) error
	Updates(id uint, values map[string]interface{}) error
	UpdatesPending(id uint, values map[string]interface{}) (bool, error)
	GetByID(id uint) (*models.Order, error)
	GetByTradeNo(tradeNo string) (*models.Order, error)
	GetByTradeNoForUpdate(tradeNo string) (*models.Order, error)
	GetByMerchantOutTradeNo(merchantID uint, outTradeNo string) (*models.Order, error)
	GetPendingByMerchantOutTradeNo(merchantID uint, outTradeNo string) (*models.Order, error)
	MarkPaid(id uint, apiTradeNo, buyer string, paidAt time.Time) (bool, error)
	ClosePending(id uint) (bool, error)
	ListExpiredPending(now time.Time, limit int) ([]models.Order, error)
	UpdateNotifyResult(id uint, status int, count int, notifiedAt time.Time) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// Update 更新订单
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

// Updates 按字段更新订单
func (r *GormOrderRepository) Updates(id uint, values map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("id = ?", id).Updates(values).Error
}

// UpdatesPending 仅更新仍处于待支付状态的订单，status 条件保证已支付/已关闭订单不被改写
func (r *GormOrderRepository) UpdatesPending(id uint, values map[string]interface{}) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, constants.OrderStatusPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTradeNo 根据平台订单号获取订单
func (r *GormOrderRepository) GetByTradeNo(tradeNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("trade_no = ?", tradeNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTradeNoForUpdate 加行锁获取订单（结算事务内使用）
func (r *GormOrderRepository) GetByTradeNoForUpdate(tradeNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_no = ?", tradeNo).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByMerchantOutTradeNo 根据商户订单号获取最新一笔订单
func (r *GormOrderRepository) GetByMerchantOutTradeNo(merchantID uint, outTradeNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("merchant_id = ? AND out_trade_no = ?", merchantID, outTradeNo).
		Order("id DESC").
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetPendingByMerchantOutTradeNo 获取商户订单号对应的待支付订单
func (r *GormOrderRepository) GetPendingByMerchantOutTradeNo(merchantID uint, outTradeNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("merchant_id = ? AND out_trade_no = ? AND status = ?",
		merchantID, outTradeNo, constants.OrderStatusPending).
		Order("id DESC").
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkPaid 将待支付订单置为已支付，status 条件保证只生效一次
func (r *GormOrderRepository) MarkPaid(id uint, apiTradeNo, buyer string, paidAt time.Time) (bool, error) {
	values := map[string]interface{}{
		"status":  constants.OrderStatusPaid,
		"paid_at": paidAt,
	}
	if apiTradeNo != "" {
		values["api_trade_no"] = apiTradeNo
	}
	if buyer != "" {
		values["buyer"] = buyer
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, constants.OrderStatusPending).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClosePending 关闭待支付订单，已支付订单不受影响
func (r *GormOrderRepository) ClosePending(id uint) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", id, constants.OrderStatusPending).
		Update("status", constants.OrderStatusClosed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListExpiredPending 列出已过期的待支付订单
func (r *GormOrderRepository) ListExpiredPending(now time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	if err := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?",
		constants.OrderStatusPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateNotifyResult 记录商户通知结果
func (r *GormOrderRepository) UpdateNotifyResult(id uint, status int, count int, notifiedAt time.Time) error {
	return r.db.Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"notify_status": status,
			"notify_count":  count,
			"notify_time":   notifiedAt,
		}).Error
}
