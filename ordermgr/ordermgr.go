package ordermgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/errcode"
	"github.com/sigvend/sigvend-server/feemgr"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/monerojson"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/utils"
	"github.com/sigvend/sigvend-server/walletclient"

	"gorm.io/gorm"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various order events.
type NotificationCallback func(*Notification)

const (
	// NTOrderPaid is sent when an order reaches the paid state. Data is the
	// *do.OrderInfo after the update.
	NTOrderPaid NotificationType = iota
	// NTOrderExpired is sent when a pending order passes its payment window
	// with no funds observed. Data is the *do.OrderInfo.
	NTOrderExpired
	// NTOrderProgress is sent when an open order moves between the pending,
	// partial and unconfirmed states. Data is the *do.OrderInfo.
	NTOrderProgress
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTOrderPaid:     "NTOrderPaid",
	NTOrderExpired:  "NTOrderExpired",
	NTOrderProgress: "NTOrderProgress",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification defines a notification that is sent to the caller via the
// callback functions registered with Subscribe.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// OrderManager is the payment poller. On a fixed interval it walks every
// open order, fetches the transfers addressed to the order's subaddress,
// persists them, classifies the payment state and applies the resulting
// status transition. All transitions are guarded updates, so a concurrent
// writer (seller cancelling, another sweep) silently wins and the loop
// moves on.
type OrderManager struct {
	cfg    model.PaymentPollConfig
	db     *gorm.DB
	wallet *walletclient.RPCClient
	fees   *feemgr.FeeManager

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback

	// walletReady gates polling while the wallet RPC is away; messaging
	// keeps running, payment progress simply pauses.
	walletReady int32

	checkingFlag int32
	wg           sync.WaitGroup
	shutdown     int32
	quit         chan struct{}
}

// NewOrderManager creates the payment poller.
func NewOrderManager(cfg model.PaymentPollConfig, db *gorm.DB, wallet *walletclient.RPCClient, fees *feemgr.FeeManager) *OrderManager {
	m := &OrderManager{
		cfg:    cfg,
		db:     db,
		wallet: wallet,
		fees:   fees,
		quit:   make(chan struct{}),
	}
	// Track wallet connectivity so a dead endpoint pauses polling instead
	// of producing an error per order per tick.
	wallet.Subscribe(func(n *walletclient.Notification) {
		switch n.Type {
		case walletclient.NTClientConnected:
			m.SetWalletAvailable(true)
		case walletclient.NTClientDisconnected:
			m.SetWalletAvailable(false)
		}
	})
	return m
}

// Subscribe registers a callback to be executed when order events take
// place.
func (m *OrderManager) Subscribe(callback NotificationCallback) {
	m.notificationsLock.Lock()
	m.notifications = append(m.notifications, callback)
	m.notificationsLock.Unlock()
}

// sendNotification sends a notification with the passed type and data to
// every registered callback.
func (m *OrderManager) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	m.notificationsLock.RLock()
	for _, callback := range m.notifications {
		callback(&n)
	}
	m.notificationsLock.RUnlock()
}

// SetWalletAvailable toggles the polling gate.
func (m *OrderManager) SetWalletAvailable(ok bool) {
	if ok {
		atomic.StoreInt32(&m.walletReady, 1)
	} else {
		atomic.StoreInt32(&m.walletReady, 0)
	}
}

// WalletAvailable reports whether payment polling is currently active.
func (m *OrderManager) WalletAvailable() bool {
	return atomic.LoadInt32(&m.walletReady) == 1
}

// Start launches the payment poll loop.
func (m *OrderManager) Start() {
	log.Infof("Starting payment poller (interval %v, required confirmations %d)",
		m.cfg.Interval, m.cfg.RequiredConfirmations)
	m.wg.Add(1)
	go m.paymentHandler()
}

// Stop signals the loop to exit and waits for it.
func (m *OrderManager) Stop() {
	if atomic.AddInt32(&m.shutdown, 1) != 1 {
		log.Warnf("Payment poller is already in the process of shutting down")
		return
	}
	log.Infof("Payment poller shutting down")
	close(m.quit)
	m.wg.Wait()
	log.Infof("Payment poller shutdown complete")
}

func (m *OrderManager) paymentHandler() {
	defer m.wg.Done()
	defer utils.MyRecover()

	timer := time.NewTicker(m.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Skip the tick when the previous sweep is still running.
			if !atomic.CompareAndSwapInt32(&m.checkingFlag, 0, 1) {
				log.Debugf("Previous payment sweep still in flight, skipping tick")
				continue
			}
			m.checkOpenOrders()
			atomic.StoreInt32(&m.checkingFlag, 0)
		case <-m.quit:
			return
		}
	}
}

// checkOpenOrders runs one sweep: the payment pass over every open order
// while the wallet is up, then the expiry pass. Expiry runs last so an
// order funded in this very pass has already left the pending state, and
// it runs even while the wallet is away so stale orders do not pile up.
func (m *OrderManager) checkOpenOrders() {
	ctx := context.Background()

	if m.WalletAvailable() {
		orders, err := service.GetOrderService().GetOrdersByStatus(ctx, m.db, []model.OrderStatus{
			model.OrderStatusPending,
			model.OrderStatusUnconfirmed,
			model.OrderStatusPartial,
		})
		if err != nil {
			log.Errorf("Unable to list open orders: %v", err)
		}
		for _, order := range orders {
			if err := m.checkOrder(ctx, order); err != nil {
				log.Errorf("Order %d poll failed: %v", order.ID, err)
			}
		}
	}

	m.sweepExpired(ctx)
}

// checkOrder polls and advances a single order.
func (m *OrderManager) checkOrder(ctx context.Context, order *do.OrderInfo) error {
	transfers, err := m.wallet.TransfersBySubaddress(ctx, order.SubaddressIndex)
	if err != nil {
		// One failed fetch is not fatal; the connectivity watcher pauses
		// polling if the wallet actually went away.
		log.Debugf("Unable to fetch transfers for order %d (subaddress index %d): %v",
			order.ID, order.SubaddressIndex, err)
		return nil
	}

	received, confirmations, bestTxID, details := aggregateTransfers(transfers)
	if len(details) > 0 {
		if err := service.GetOrderService().RecordTransfers(ctx, m.db, order.ID, details); err != nil {
			return err
		}
	}

	class := Classify(received, order.AtomicExpected, confirmations, m.cfg.RequiredConfirmations)
	switch class {
	case model.PaymentPending:
		// Nothing observed yet; the expiry pass decides whether the
		// payment window has lapsed.
		return nil

	case model.PaymentComplete:
		return m.completeOrder(ctx, order, received, bestTxID, confirmations)

	case model.PaymentPartial, model.PaymentUnconfirmed:
		status := model.OrderStatusPartial
		if class == model.PaymentUnconfirmed {
			status = model.OrderStatusUnconfirmed
		}
		if string(status) == order.Status &&
			received == order.AtomicReceived &&
			confirmations == order.Confirmations {
			// Nothing moved since the last sweep.
			return nil
		}
		err := service.GetOrderService().UpdateProgress(ctx, m.db, order.ID,
			status, received, bestTxID, confirmations)
		if errors.Is(err, errcode.ErrStaleTransition) {
			log.Debugf("Order %d moved concurrently, skipping progress update", order.ID)
			return nil
		}
		if err != nil {
			return err
		}
		log.Infof("Order %d is %s: received %s of %s, %d/%d confirmations",
			order.ID, status, utils.FormatXMR(received),
			utils.FormatXMR(order.AtomicExpected), confirmations,
			m.cfg.RequiredConfirmations)
		m.notifyUpdated(ctx, NTOrderProgress, order.ID)
		return nil
	}
	return nil
}

// completeOrder pays the commission and marks the order paid. The payout
// runs first so a crash between the two steps re-runs on an order that is
// still open; the guarded transition keeps the paid state applied once.
func (m *OrderManager) completeOrder(ctx context.Context, order *do.OrderInfo, received uint64, txid string, confirmations uint64) error {
	commission, err := m.fees.PayCommission(ctx, order.ID, received)
	if err != nil {
		// Leave the order open and retry the payout next sweep.
		return err
	}

	err = service.GetOrderService().MarkPaid(ctx, m.db, order.ID, received,
		txid, confirmations, commission, time.Now())
	if errors.Is(err, errcode.ErrStaleTransition) {
		log.Debugf("Order %d moved concurrently, skipping paid transition", order.ID)
		return nil
	}
	if err != nil {
		return err
	}

	log.Infof("Order %d is paid: %s received (tx %s, %d confirmations)",
		order.ID, utils.FormatXMR(received), txid, confirmations)
	m.notifyUpdated(ctx, NTOrderPaid, order.ID)
	return nil
}

// sweepExpired expires pending orders past their payment window. Only
// pending orders expire; anything holding funds has already moved to
// partial or unconfirmed and stays open.
func (m *OrderManager) sweepExpired(ctx context.Context) {
	lapsed, err := service.GetOrderService().GetExpiredPendingOrders(ctx, m.db, time.Now())
	if err != nil {
		log.Errorf("Unable to list lapsed orders: %v", err)
		return
	}
	for _, order := range lapsed {
		err := service.GetOrderService().MarkExpired(ctx, m.db, order.ID)
		if errors.Is(err, errcode.ErrStaleTransition) {
			log.Debugf("Order %d moved concurrently, skipping expiry", order.ID)
			continue
		}
		if err != nil {
			log.Errorf("Unable to expire order %d: %v", order.ID, err)
			continue
		}
		log.Infof("Order %d expired with no payment observed", order.ID)
		m.notifyUpdated(ctx, NTOrderExpired, order.ID)
	}
}

// notifyUpdated reloads the order row and publishes it.
func (m *OrderManager) notifyUpdated(ctx context.Context, typ NotificationType, orderID uint64) {
	order, err := service.GetOrderService().GetOrder(ctx, m.db, orderID)
	if err != nil {
		log.Errorf("Unable to reload order %d for notification: %v", orderID, err)
		return
	}
	m.sendNotification(typ, order)
}

// aggregateTransfers reduces the raw transfer list to the totals the
// classifier consumes: the summed amount, the maximum confirmation count
// and the txid of the most-confirmed transfer as the representative one.
func aggregateTransfers(transfers []*monerojson.Transfer) (received uint64, confirmations uint64, bestTxID string, details []*model.OrderTransferDetails) {
	details = make([]*model.OrderTransferDetails, 0, len(transfers))
	for _, t := range transfers {
		received += t.Amount
		if bestTxID == "" || t.Confirmations > confirmations {
			confirmations = t.Confirmations
			bestTxID = t.TxID
		}
		details = append(details, &model.OrderTransferDetails{
			TxID:          t.TxID,
			AtomicAmount:  t.Amount,
			Height:        t.Height,
			Confirmations: t.Confirmations,
		})
	}
	return received, confirmations, bestTxID, details
}
