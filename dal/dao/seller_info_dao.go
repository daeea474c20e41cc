package dao

import (
	"context"
	"errors"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type SellerInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.SellerInfo) (*do.SellerInfo, error)
	Get(ctx context.Context, tx *gorm.DB) (*do.SellerInfo, error)
	Update(ctx context.Context, tx *gorm.DB, info *do.SellerInfo) error
	UpdateFields(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error
}

type SellerInfoDAOImpl struct{}

var sellerInfoDAO SellerInfoDAO = &SellerInfoDAOImpl{}

func GetSellerInfoDAOImpl() SellerInfoDAO {
	return sellerInfoDAO
}

func (s *SellerInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.SellerInfo) (*do.SellerInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil seller info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

// Get returns the single seller row, or nil without error when the setup
// has never run.
func (s *SellerInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB) (*do.SellerInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.SellerInfo{}
	query := tx.Model(&do.SellerInfo{}).Order("id asc").Take(&res)
	if errors.Is(query.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, query.Error
}

func (s *SellerInfoDAOImpl) Update(ctx context.Context, tx *gorm.DB, info *do.SellerInfo) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Save(info)
	return query.Error
}

func (s *SellerInfoDAOImpl) UpdateFields(ctx context.Context, tx *gorm.DB, id uint64, fields map[string]interface{}) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.SellerInfo{}).Where("id = ?", id).Updates(fields)
	return query.Error
}
