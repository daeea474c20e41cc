package dao

import (
	"context"
	"errors"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type MessageInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.MessageInfo) (*do.MessageInfo, error)
	GetByContactID(ctx context.Context, tx *gorm.DB, contactID uint64, page int, num int) ([]*do.MessageInfo, error)
	Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.MessageInfo, error)
	GetMessageNum(ctx context.Context, tx *gorm.DB) (int64, error)
}

type MessageInfoDAOImpl struct{}

var messageInfoDAO MessageInfoDAO = &MessageInfoDAOImpl{}

func GetMessageInfoDAOImpl() MessageInfoDAO {
	return messageInfoDAO
}

func (m *MessageInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.MessageInfo) (*do.MessageInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil message info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (m *MessageInfoDAOImpl) GetByContactID(ctx context.Context, tx *gorm.DB, contactID uint64, page int, num int) ([]*do.MessageInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.MessageInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.MessageInfo{}).Where("contact_id = ?", contactID).
		Order("timestamp desc").Offset((page - 1) * num).Limit(num).Find(&res)
	return res, query.Error
}

func (m *MessageInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.MessageInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.MessageInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.MessageInfo{}).Offset((page - 1) * num).Limit(num)
	if !positiveOrder {
		query = query.Order("id desc")
	}
	query = query.Find(&res)
	return res, query.Error
}

func (m *MessageInfoDAOImpl) GetMessageNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var res int64
	query := tx.Model(&do.MessageInfo{}).Count(&res)
	return res, query.Error
}
