package dao

import (
	"context"
	"errors"
	"time"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"

	"gorm.io/gorm"
)

type NodeInfoDAO interface {
	Create(ctx context.Context, tx *gorm.DB, info *do.NodeInfo) (*do.NodeInfo, error)
	GetActive(ctx context.Context, tx *gorm.DB) (*do.NodeInfo, error)
	GetAll(ctx context.Context, tx *gorm.DB) ([]*do.NodeInfo, error)
	UpdateHealth(ctx context.Context, tx *gorm.DB, id uint64, height uint64, reachableAt time.Time) error
	SetActive(ctx context.Context, tx *gorm.DB, id uint64, active bool) error
}

type NodeInfoDAOImpl struct{}

var nodeInfoDAO NodeInfoDAO = &NodeInfoDAOImpl{}

func GetNodeInfoDAOImpl() NodeInfoDAO {
	return nodeInfoDAO
}

func (n *NodeInfoDAOImpl) Create(ctx context.Context, tx *gorm.DB, info *do.NodeInfo) (*do.NodeInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	if info == nil {
		return nil, errors.New("nil node info when creating")
	}

	query := tx.Create(info)
	return info, query.Error
}

// GetActive returns the first active node row, or nil without error when
// none is configured.
func (n *NodeInfoDAOImpl) GetActive(ctx context.Context, tx *gorm.DB) (*do.NodeInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := do.NodeInfo{}
	query := tx.Model(&do.NodeInfo{}).Where("active = ?", true).Order("id asc").Take(&res)
	if errors.Is(query.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, query.Error
}

func (n *NodeInfoDAOImpl) GetAll(ctx context.Context, tx *gorm.DB) ([]*do.NodeInfo, error) {
	if tx == nil {
		return nil, errcode.ErrNilGormDB
	}

	res := make([]*do.NodeInfo, 0)
	query := tx.Model(&do.NodeInfo{}).Order("id asc").Find(&res)
	return res, query.Error
}

func (n *NodeInfoDAOImpl) UpdateHealth(ctx context.Context, tx *gorm.DB, id uint64, height uint64, reachableAt time.Time) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.NodeInfo{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_height":       height,
		"last_reachable_at": reachableAt,
	})
	return query.Error
}

func (n *NodeInfoDAOImpl) SetActive(ctx context.Context, tx *gorm.DB, id uint64, active bool) error {
	if tx == nil {
		return errcode.ErrNilGormDB
	}

	query := tx.Model(&do.NodeInfo{}).Where("id = ?", id).Update("active", active)
	return query.Error
}
