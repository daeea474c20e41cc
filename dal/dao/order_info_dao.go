package dao

import (
	"context"
	"errors"
	"time"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type OrderInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.OrderInfo) (*do.OrderInfo, error)
	Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.OrderInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error)
	GetByStatus(ctx context.Context, tx *gorm.DB, statuses []string) ([]*do.OrderInfo, error)
	GetByContactID(ctx context.Context, tx *gorm.DB, contactID uint64) ([]*do.OrderInfo, error)
	GetExpiredPending(ctx context.Context, tx *gorm.DB, now time.Time) ([]*do.OrderInfo, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, from []string, to string, fields map[string]interface{}) (int64, error)
}

type OrderInfoDAOImpl struct{}

var orderInfoDAO OrderInfoDAO = &OrderInfoDAOImpl{}

func GetOrderInfoDAOImpl() OrderInfoDAO {
	return orderInfoDAO
}

func (o *OrderInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.OrderInfo) (*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil order info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (o *OrderInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.OrderInfo{}).Offset((page - 1) * num).Limit(num)
	if !positiveOrder {
		query = query.Order("id desc")
	}
	query = query.Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.OrderInfo{}
	query := tx.Model(&do.OrderInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

func (o *OrderInfoDAOImpl) GetByStatus(ctx context.Context, tx *gorm.DB, statuses []string) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).Where("status IN ?", statuses).Order("id asc").Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetByContactID(ctx context.Context, tx *gorm.DB, contactID uint64) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).Where("contact_id = ?", contactID).Order("id desc").Find(&res)
	return res, query.Error
}

func (o *OrderInfoDAOImpl) GetExpiredPending(ctx context.Context, tx *gorm.DB, now time.Time) ([]*do.OrderInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderInfo, 0)
	query := tx.Model(&do.OrderInfo{}).
		Where("status = ? AND expires_at <= ?", "pending", now).Find(&res)
	return res, query.Error
}

// TransitionStatus performs a guarded status update: the row is only
// touched while its status is still one of from. The affected row count is
// returned; zero means a concurrent writer moved the order first.
func (o *OrderInfoDAOImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, id uint64, from []string, to string, fields map[string]interface{}) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	query := tx.Model(&do.OrderInfo{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return query.RowsAffected, query.Error
}
