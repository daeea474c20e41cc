package service

import (
	"context"
	"errors"
	"time"

	"github.com/sigvend/sigvend-server/dal/dao"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/model"

	"gorm.io/gorm"
)

type OrderService interface {
	CreateOrder(ctx context.Context, tx *gorm.DB, contactID uint64, productID uint64, quantity int, atomicExpected uint64, subaddress string, subaddressIndex uint32, expiry time.Duration) (*do.OrderInfo, error)
	GetOrder(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error)
	GetOrders(ctx context.Context, tx *gorm.DB, page int, num int) ([]*do.OrderInfo, error)
	GetOrdersByStatus(ctx context.Context, tx *gorm.DB, statuses []model.OrderStatus) ([]*do.OrderInfo, error)
	GetOrdersByContact(ctx context.Context, tx *gorm.DB, contactID uint64) ([]*do.OrderInfo, error)
	GetExpiredPendingOrders(ctx context.Context, tx *gorm.DB, now time.Time) ([]*do.OrderInfo, error)
	GetOrderTransfers(ctx context.Context, tx *gorm.DB, orderID uint64) ([]*model.OrderTransferDetails, error)
	RecordTransfers(ctx context.Context, tx *gorm.DB, orderID uint64, transfers []*model.OrderTransferDetails) error
	UpdateProgress(ctx context.Context, tx *gorm.DB, orderID uint64, status model.OrderStatus, received uint64, txid string, confirmations uint64) error
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint64, received uint64, txid string, confirmations uint64, fee uint64, paidAt time.Time) error
	MarkExpired(ctx context.Context, tx *gorm.DB, orderID uint64) error
	MarkShipped(ctx context.Context, tx *gorm.DB, orderID uint64) error
	CancelOrder(ctx context.Context, tx *gorm.DB, orderID uint64) error
}

type OrderServiceImpl struct {
	orderInfoDAO   dao.OrderInfoDAO
	orderTxInfoDAO dao.OrderTxInfoDAO
	productInfoDAO dao.ProductInfoDAO
}

var orderService OrderService = &OrderServiceImpl{
	orderInfoDAO:   dao.GetOrderInfoDAOImpl(),
	orderTxInfoDAO: dao.GetOrderTxInfoDAOImpl(),
	productInfoDAO: dao.GetProductInfoDAOImpl(),
}

func GetOrderService() OrderService {
	return orderService
}

// CreateOrder creates a pending order and decrements product stock in one
// transaction. A product without enough stock refuses the order.
func (o *OrderServiceImpl) CreateOrder(ctx context.Context, tx *gorm.DB, contactID uint64, productID uint64, quantity int, atomicExpected uint64, subaddress string, subaddressIndex uint32, expiry time.Duration) (*do.OrderInfo, error) {
	if quantity <= 0 {
		return nil, errors.New("invalid order quantity")
	}
	if atomicExpected == 0 {
		return nil, errors.New("invalid order amount")
	}

	var created *do.OrderInfo
	err := tx.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		product, err := o.productInfoDAO.GetByID(ctx, txn, productID)
		if err != nil {
			return err
		}
		if !product.Active {
			return errors.New("product is not active")
		}

		affected, err := o.productInfoDAO.DecrementStock(ctx, txn, productID, quantity)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errcode.ErrInsufficientStock
		}

		info := do.OrderInfo{
			ContactID:       contactID,
			ProductID:       productID,
			Quantity:        quantity,
			FiatPrice:       product.FiatPrice * float64(quantity),
			Currency:        product.Currency,
			AtomicExpected:  atomicExpected,
			Subaddress:      subaddress,
			SubaddressIndex: subaddressIndex,
			Status:          string(model.OrderStatusPending),
			ExpiresAt:       time.Now().Add(expiry),
		}
		created, err = o.orderInfoDAO.Create(ctx, txn, &info)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (o *OrderServiceImpl) GetOrder(ctx context.Context, tx *gorm.DB, id uint64) (*do.OrderInfo, error) {
	return o.orderInfoDAO.GetByID(ctx, tx, id)
}

func (o *OrderServiceImpl) GetOrders(ctx context.Context, tx *gorm.DB, page int, num int) ([]*do.OrderInfo, error) {
	return o.orderInfoDAO.Get(ctx, tx, page, num, false)
}

func (o *OrderServiceImpl) GetOrdersByStatus(ctx context.Context, tx *gorm.DB, statuses []model.OrderStatus) ([]*do.OrderInfo, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}
	return o.orderInfoDAO.GetByStatus(ctx, tx, raw)
}

func (o *OrderServiceImpl) GetOrdersByContact(ctx context.Context, tx *gorm.DB, contactID uint64) ([]*do.OrderInfo, error) {
	return o.orderInfoDAO.GetByContactID(ctx, tx, contactID)
}

// GetExpiredPendingOrders returns the pending orders whose payment window
// has lapsed. The window comparison runs in the store so the sweep only
// loads the rows it will touch. Orders without a window (zero expiry) are
// filtered out here rather than in SQL, where the zero time would compare
// below any real clock.
func (o *OrderServiceImpl) GetExpiredPendingOrders(ctx context.Context, tx *gorm.DB, now time.Time) ([]*do.OrderInfo, error) {
	lapsed, err := o.orderInfoDAO.GetExpiredPending(ctx, tx, now)
	if err != nil {
		return nil, err
	}
	res := make([]*do.OrderInfo, 0, len(lapsed))
	for _, order := range lapsed {
		if order.ExpiresAt.IsZero() {
			continue
		}
		res = append(res, order)
	}
	return res, nil
}

func (o *OrderServiceImpl) GetOrderTransfers(ctx context.Context, tx *gorm.DB, orderID uint64) ([]*model.OrderTransferDetails, error) {
	infos, err := o.orderTxInfoDAO.GetByOrderID(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	res := make([]*model.OrderTransferDetails, 0, len(infos))
	for _, info := range infos {
		res = append(res, &model.OrderTransferDetails{
			TxID:          info.TxID,
			AtomicAmount:  info.AtomicAmount,
			Height:        info.Height,
			Confirmations: info.Confirmations,
		})
	}
	return res, nil
}

// RecordTransfers upserts the full observed transfer list for an order so
// per-transaction auditability is preserved.
func (o *OrderServiceImpl) RecordTransfers(ctx context.Context, tx *gorm.DB, orderID uint64, transfers []*model.OrderTransferDetails) error {
	for _, t := range transfers {
		err := o.orderTxInfoDAO.Upsert(ctx, tx, &do.OrderTxInfo{
			OrderID:       orderID,
			TxID:          t.TxID,
			AtomicAmount:  t.AtomicAmount,
			Height:        t.Height,
			Confirmations: t.Confirmations,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateProgress persists an intermediate classification (partial or
// unconfirmed) together with the observed amounts. The transition is
// guarded so a terminal order is never dragged back to an open state.
func (o *OrderServiceImpl) UpdateProgress(ctx context.Context, tx *gorm.DB, orderID uint64, status model.OrderStatus, received uint64, txid string, confirmations uint64) error {
	affected, err := o.orderInfoDAO.TransitionStatus(ctx, tx, orderID,
		openStatuses(), string(status), map[string]interface{}{
			"atomic_received": received,
			"last_tx_id":      txid,
			"confirmations":   confirmations,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return errcode.ErrStaleTransition
	}
	return nil
}

func (o *OrderServiceImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID uint64, received uint64, txid string, confirmations uint64, fee uint64, paidAt time.Time) error {
	affected, err := o.orderInfoDAO.TransitionStatus(ctx, tx, orderID,
		openStatuses(), string(model.OrderStatusPaid), map[string]interface{}{
			"atomic_received": received,
			"last_tx_id":      txid,
			"confirmations":   confirmations,
			"atomic_fee":      fee,
			"paid_at":         paidAt,
		})
	if err != nil {
		return err
	}
	if affected == 0 {
		return errcode.ErrStaleTransition
	}
	return nil
}

// MarkExpired expires a pending order past its payment window and returns
// the reserved stock. Orders that already received funds never expire.
func (o *OrderServiceImpl) MarkExpired(ctx context.Context, tx *gorm.DB, orderID uint64) error {
	return tx.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		order, err := o.orderInfoDAO.GetByID(ctx, txn, orderID)
		if err != nil {
			return err
		}

		affected, err := o.orderInfoDAO.TransitionStatus(ctx, txn, orderID,
			[]string{string(model.OrderStatusPending)}, string(model.OrderStatusExpired), nil)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errcode.ErrStaleTransition
		}

		return o.productInfoDAO.IncrementStock(ctx, txn, order.ProductID, order.Quantity)
	})
}

func (o *OrderServiceImpl) MarkShipped(ctx context.Context, tx *gorm.DB, orderID uint64) error {
	affected, err := o.orderInfoDAO.TransitionStatus(ctx, tx, orderID,
		[]string{string(model.OrderStatusPaid)}, string(model.OrderStatusShipped), nil)
	if err != nil {
		return err
	}
	if affected == 0 {
		return errcode.ErrStaleTransition
	}
	return nil
}

// CancelOrder cancels an order that has not been paid and restores the
// product stock it reserved.
func (o *OrderServiceImpl) CancelOrder(ctx context.Context, tx *gorm.DB, orderID uint64) error {
	return tx.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		order, err := o.orderInfoDAO.GetByID(ctx, txn, orderID)
		if err != nil {
			return err
		}

		affected, err := o.orderInfoDAO.TransitionStatus(ctx, txn, orderID,
			openStatuses(), string(model.OrderStatusCancelled), nil)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errcode.ErrStaleTransition
		}

		return o.productInfoDAO.IncrementStock(ctx, txn, order.ProductID, order.Quantity)
	})
}

// openStatuses are the states the payment poller may still act on.
func openStatuses() []string {
	return []string{
		string(model.OrderStatusPending),
		string(model.OrderStatusUnconfirmed),
		string(model.OrderStatusPartial),
	}
}
