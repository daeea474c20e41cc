package dao

import (
	"context"
	"errors"
	"time"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type ContactInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.ContactInfo) (*do.ContactInfo, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.ContactInfo, error)
	GetByDigest(ctx context.Context, tx *gorm.DB, digest string) (*do.ContactInfo, error)
	Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.ContactInfo, error)
	GetContactNum(ctx context.Context, tx *gorm.DB) (int64, error)
	SetTrusted(ctx context.Context, tx *gorm.DB, id uint64, trusted bool) error
	UpdateLastSeen(ctx context.Context, tx *gorm.DB, id uint64, seenAt time.Time) error
}

type ContactInfoDAOImpl struct{}

var contactInfoDAO ContactInfoDAO = &ContactInfoDAOImpl{}

func GetContactInfoDAOImpl() ContactInfoDAO {
	return contactInfoDAO
}

func (c *ContactInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.ContactInfo) (*do.ContactInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil contact info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

func (c *ContactInfoDAOImpl) GetByID(ctx context.Context, tx *gorm.DB, id uint64) (*do.ContactInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.ContactInfo{}
	query := tx.Model(&do.ContactInfo{}).Where("id = ?", id).Take(&res)
	return &res, query.Error
}

// GetByDigest looks a contact up by the keyed digest of its plaintext
// address. Returns nil without error when no such contact exists.
func (c *ContactInfoDAOImpl) GetByDigest(ctx context.Context, tx *gorm.DB, digest string) (*do.ContactInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.ContactInfo{}
	query := tx.Model(&do.ContactInfo{}).Where("address_digest = ?", digest).Take(&res)
	if errors.Is(query.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, query.Error
}

func (c *ContactInfoDAOImpl) Get(ctx context.Context, tx *gorm.DB, page int, num int, positiveOrder bool) ([]*do.ContactInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.ContactInfo, 0)
	if page <= 0 || num <= 0 {
		return res, nil
	}
	query := tx.Model(&do.ContactInfo{}).Offset((page - 1) * num).Limit(num)
	if !positiveOrder {
		query = query.Order("id desc")
	}
	query = query.Find(&res)
	return res, query.Error
}

func (c *ContactInfoDAOImpl) GetContactNum(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		return 0, errcode.ErrNilGormDB
	}

	var res int64
	query := tx.Model(&do.ContactInfo{}).Count(&res)
	return res, query.Error
}

func (c *ContactInfoDAOImpl) SetTrusted(ctx context.Context, tx *gorm.DB, id uint64, trusted bool) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ContactInfo{}).Where("id = ?", id).Update("trusted", trusted)
	return query.Error
}

func (c *ContactInfoDAOImpl) UpdateLastSeen(ctx context.Context, tx *gorm.DB, id uint64, seenAt time.Time) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.ContactInfo{}).Where("id = ?", id).Update("last_seen_at", seenAt)
	return query.Error
}
