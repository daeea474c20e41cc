package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sigvend/sigvend-server/adminserver"
	"github.com/sigvend/sigvend-server/chainclient"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/feemgr"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/ordermgr"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/signalmgr"
	"github.com/sigvend/sigvend-server/utils"
	"github.com/sigvend/sigvend-server/walletclient"
	"github.com/sigvend/sigvend-server/walletmgr"

	"gorm.io/gorm"
)

// server ties the long-running components together and owns their
// start/stop ordering.
type server struct {
	cfg            *config
	masterPassword string
	db             *gorm.DB

	wallet     *walletclient.RPCClient
	supervisor *walletmgr.Supervisor
	monitor    *chainclient.HealthMonitor
	gateway    *signalmgr.Gateway
	fees       *feemgr.FeeManager
	orders     *ordermgr.OrderManager
	admin      *adminserver.AdminServer

	started  int32
	shutdown int32
}

// newServer wires the managers around the already-initialized database,
// wallet client and supervisor.
func newServer(cfg *config, masterPassword string, db *gorm.DB,
	wallet *walletclient.RPCClient, supervisor *walletmgr.Supervisor,
	monitor *chainclient.HealthMonitor, commissionAddr string) (*server, error) {

	runner := signalmgr.NewRunner(signalmgr.RunnerConfig{
		BinaryPath: cfg.SignalCLIBin,
		Account:    cfg.SignalAccount,
		ConfigDir:  cfg.SignalConfigDir,
	})
	gateway, err := signalmgr.NewGateway(signalmgr.GatewayConfig{
		OwnAccount:         cfg.SignalAccount,
		MasterPassword:     masterPassword,
		MinReceiveInterval: time.Duration(cfg.MinReceiveSec) * time.Second,
		MaxReceiveInterval: time.Duration(cfg.MaxReceiveSec) * time.Second,
		AutoTrust:          !cfg.DisableTrust,
	}, runner, db)
	if err != nil {
		return nil, err
	}

	fees := feemgr.NewFeeManager(feemgr.Config{
		CommissionAddress: commissionAddr,
		CommissionPercent: cfg.CommissionPercent,
		MinAtomicPayout:   cfg.MinCommission,
	}, wallet)

	orders := ordermgr.NewOrderManager(model.PaymentPollConfig{
		Interval:              cfg.pollInterval(),
		RequiredConfirmations: cfg.Confirmations,
		OrderExpiry:           cfg.orderExpiry(),
	}, db, wallet, fees)

	admin, err := adminserver.NewAdminServer(adminserver.Config{
		Listen:         cfg.AdminListen,
		RPCUser:        cfg.RPCUser,
		RPCPass:        cfg.RPCPass,
		MasterPassword: masterPassword,
		OrderExpiry:    cfg.orderExpiry(),
	}, adminserver.Deps{
		DB:         db,
		Gateway:    gateway,
		Orders:     orders,
		Wallet:     wallet,
		Supervisor: supervisor,
		Chain:      monitor,
	})
	if err != nil {
		return nil, err
	}

	s := &server{
		cfg:            cfg,
		masterPassword: masterPassword,
		db:             db,
		wallet:         wallet,
		supervisor:     supervisor,
		monitor:        monitor,
		gateway:        gateway,
		fees:           fees,
		orders:         orders,
		admin:          admin,
	}

	// Incoming buyer messages are persisted by the gateway; surface them
	// in the log for an operator tailing it.
	gateway.RegisterHandler(func(msg *model.IncomingMessage) {
		vendLog.Infof("Message from %s (%d bytes)", msg.Sender, len(msg.Text))
	})

	// Tell the buyer when their order settles or runs out of time.
	orders.Subscribe(s.orderNotificationHandler)

	return s, nil
}

// orderNotificationHandler messages the buyer about terminal payment events.
func (s *server) orderNotificationHandler(n *ordermgr.Notification) {
	order, ok := n.Data.(*do.OrderInfo)
	if !ok {
		return
	}

	var text string
	switch n.Type {
	case ordermgr.NTOrderPaid:
		text = "Payment received (" + utils.FormatXMR(order.AtomicReceived) +
			" XMR). Your order is confirmed and will ship shortly."
	case ordermgr.NTOrderExpired:
		text = "Your order expired before payment arrived. Place a new order if you are still interested."
	default:
		return
	}

	ctx := context.Background()
	contact, err := service.GetMessageService().GetContact(ctx, s.db,
		s.masterPassword, order.ContactID)
	if err != nil || contact.Address == "" {
		vendLog.Errorf("Unable to resolve contact %d for order %d notification: %v",
			order.ContactID, order.ID, err)
		return
	}
	if err := s.gateway.SendText(ctx, contact.Address, text); err != nil {
		vendLog.Errorf("Unable to notify buyer about order %d: %v", order.ID, err)
	}
}

// Start launches every long-running component.
func (s *server) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}
	vendLog.Trace("Starting server...")

	if s.monitor != nil {
		s.monitor.Start()
	}
	s.gateway.Start()
	s.orders.Start()
	return s.admin.Start()
}

// Stop shuts the components down in reverse start order.
func (s *server) Stop() {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		vendLog.Infof("Server is already in the process of shutting down")
		return
	}
	vendLog.Warnf("Server shutting down...")

	s.admin.Stop()
	s.orders.Stop()
	s.gateway.Stop()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	vendLog.Infof("Server shutdown complete")
}
