package dao

import (
	"context"
	"errors"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type ProductInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.ProductInfo) (*do.ProductInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.ProductInfo, error)
	Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.ProductInfo, error)
	GetActive(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error)
	GetProductNum(ctx context.Context, tx *gorm.DB) (int64, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error
	SetActive(ctx context.Context, tx *gorm.DB, id uint64, active bool) error
	DecrementStock(ctx context.Context, tx *gorm.DB, id uint64, quantity int) (int64, error)
	IncrementStock(ctx context.Context, tx *gorm.DB, id uint64, quantity int) error
}

type ProductInfoDAOImpl struct{}

var productInfoDAO ProductInfoDAO = &ProductInfoDAOImpl{}

func GetProductInfoDAOImpl() ProductInfoDAO {
	return productInfoDAO
}

func (p *ProductInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.ProductInfo) (*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil product info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (p *ProductInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.ProductInfo{}
	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

func (p *ProductInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.ProductInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.ProductInfo{}).Offset((page - 1) * num).Limit(num)
	if !positiveOrder {
		query = query.Order("id desc")
	}
	query = query.Find(&res)
	return res, query.Error
}

func (p *ProductInfoDAOImpl) GetActive(ctx context.Context, tx *gorm.DB) ([]*do.ProductInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.ProductInfo, 0)
	query := tx.Model(&do.ProductInfo{}).Where("active = ?", true).Order("id asc").Find(&res)
	return res, query.Error
}

func (p *ProductInfoDAOImpl) GetProductNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var res int64
	query := tx.Model(&do.ProductInfo{}).Count(&res)
	return res, query.Error
}

func (p *ProductInfoDAOImpl) UpdateFields(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).Updates(fields)
	return query.Error
}

func (p *ProductInfoDAOImpl) SetActive(ctx context.Context, tx *gorm.DB, id uint64, active bool) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).Update("active", active)
	return query.Error
}

// DecrementStock subtracts quantity from the product's stock only when
// enough stock remains, and returns the number of rows affected so the
// caller can tell a short-stock refusal from success.
func (p *ProductInfoDAOImpl) DecrementStock(ctx context.Context, tx *gorm.DB, id uint64, quantity int) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ProductInfo{}).
		Where("id = ? AND stock >= ?", id, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	return query.RowsAffected, query.Error
}

func (p *ProductInfoDAOImpl) IncrementStock(ctx context.Context, tx *gorm.DB, id uint64, quantity int) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ProductInfo{}).Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	return query.Error
}
