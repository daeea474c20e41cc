package dao

import (
	"context"
	"errors"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderTxInfoDAO interface {
	Upsert(ctx context.Context, tx *gorm.DB, info *do.OrderTxInfo) error
	GetByOrderID(ctx context.Context, tx *gorm.DB, orderID uint64) ([]*do.OrderTxInfo, error)
}

type OrderTxInfoDAOImpl struct{}

var orderTxInfoDAO OrderTxInfoDAO = &OrderTxInfoDAOImpl{}

func GetOrderTxInfoDAOImpl() OrderTxInfoDAO {
	return orderTxInfoDAO
}

// Upsert records one observed transfer for an order, updating the amount,
// height and confirmation count when the (order, txid) pair already exists.
func (o *OrderTxInfoDAOImpl) Upsert(ctx context.Context, tx *gorm.DB, info *do.OrderTxInfo) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	if info == nil {
		return errors.New("nil order tx info when upserting")
	}

	query := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}, {Name: "tx_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"atomic_amount", "height", "confirmations", "updated_at",
		}),
	}).Create(info)
	return query.Error
}

func (o *OrderTxInfoDAOImpl) GetByOrderID(ctx context.Context, tx *gorm.DB, orderID uint64) ([]*do.OrderTxInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.OrderTxInfo, 0)
	query := tx.Model(&do.OrderTxInfo{}).Where("order_id = ?", orderID).
		Order("confirmations desc").Find(&res)
	return res, query.Error
}
