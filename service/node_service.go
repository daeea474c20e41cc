package service

import (
	"context"
	"time"

	"github.com/sigvend/sigvend-server/dal/dao"
	"github.com/sigvend/sigvend-server/dal/do"

	"gorm.io/gorm"
)

type NodeService interface {
	EnsureNode(ctx context.Context, tx *gorm.DB, address string, port int, useProxy bool) (*do.NodeInfo, error)
	GetActiveNode(ctx context.Context, tx *gorm.DB) (*do.NodeInfo, error)
	RecordHealth(ctx context.Context, tx *gorm.DB, id uint64, height uint64) error
}

type NodeServiceImpl struct {
	nodeInfoDAO dao.NodeInfoDAO
}

var nodeService NodeService = &NodeServiceImpl{
	nodeInfoDAO: dao.GetNodeInfoDAOImpl(),
}

func GetNodeService() NodeService {
	return nodeService
}

// EnsureNode returns the active node row matching the configured endpoint,
// creating it on first start. A configured endpoint that differs from the
// stored active one deactivates the old row.
func (n *NodeServiceImpl) EnsureNode(ctx context.Context, tx *gorm.DB, address string, port int, useProxy bool) (*do.NodeInfo, error) {
	active, err := n.nodeInfoDAO.GetActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		if active.Address == address && active.Port == port {
			return active, nil
		}
		if err := n.nodeInfoDAO.SetActive(ctx, tx, active.ID, false); err != nil {
			return nil, err
		}
	}

	info := do.NodeInfo{
		Address:  address,
		Port:     port,
		UseProxy: useProxy,
		Active:   true,
	}
	return n.nodeInfoDAO.Create(ctx, tx, &info)
}

func (n *NodeServiceImpl) GetActiveNode(ctx context.Context, tx *gorm.DB) (*do.NodeInfo, error) {
	return n.nodeInfoDAO.GetActive(ctx, tx)
}

func (n *NodeServiceImpl) RecordHealth(ctx context.Context, tx *gorm.DB, id uint64, height uint64) error {
	return n.nodeInfoDAO.UpdateHealth(ctx, tx, id, height, time.Now())
}
