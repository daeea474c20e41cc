package adminserver

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sigvend/sigvend-server/chainclient"
	"github.com/sigvend/sigvend-server/dal/do"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/monerojson"
	"github.com/sigvend/sigvend-server/ordermgr"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/signalmgr"
	"github.com/sigvend/sigvend-server/utils"
	"github.com/sigvend/sigvend-server/walletclient"
	"github.com/sigvend/sigvend-server/walletmgr"

	"gorm.io/gorm"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// admin server is allowed to stay open without authenticating before it
	// is closed.
	rpcAuthTimeoutSeconds = 10

	// websocketSendBufferSize is the number of events the per-client send
	// channel can queue before the client is considered stalled.
	websocketSendBufferSize = 50
)

// Config carries the admin endpoint settings. The listen address defaults
// to localhost only; exposing the endpoint is a deliberate operator
// decision.
type Config struct {
	Listen         string
	RPCUser        string
	RPCPass        string
	MasterPassword string
	OrderExpiry    time.Duration
}

// Deps are the running components the admin methods operate on.
type Deps struct {
	DB         *gorm.DB
	Gateway    *signalmgr.Gateway
	Orders     *ordermgr.OrderManager
	Wallet     *walletclient.RPCClient
	Supervisor *walletmgr.Supervisor
	Chain      *chainclient.HealthMonitor
}

// commandHandler executes one admin method.
type commandHandler func(*AdminServer, context.Context, json.RawMessage) (interface{}, error)

// handlers maps every admin method to its handler.
var handlers = map[string]commandHandler{
	MethodListProducts:    handleListProducts,
	MethodCreateProduct:   handleCreateProduct,
	MethodUpdateProduct:   handleUpdateProduct,
	MethodDeleteProduct:   handleDeleteProduct,
	MethodCreateOrder:     handleCreateOrder,
	MethodListOrders:      handleListOrders,
	MethodGetOrder:        handleGetOrder,
	MethodShipOrder:       handleShipOrder,
	MethodCancelOrder:     handleCancelOrder,
	MethodListContacts:    handleListContacts,
	MethodListMessages:    handleListMessages,
	MethodSendMessage:     handleSendMessage,
	MethodGetWalletStatus: handleGetWalletStatus,
	MethodGetNodeStatus:   handleGetNodeStatus,
}

// AdminServer is the operator RPC endpoint: HTTP basic-auth JSON-RPC on /
// and a websocket on /ws pushing order events.
type AdminServer struct {
	cfg     Config
	deps    Deps
	authsha [sha256.Size]byte

	listener net.Listener

	wsLock    sync.Mutex
	wsClients map[*wsClient]struct{}

	started  int32
	shutdown int32
	wg       sync.WaitGroup
	quit     chan struct{}
}

// NewAdminServer returns a new instance of the AdminServer struct.
func NewAdminServer(cfg Config, deps Deps) (*AdminServer, error) {
	if cfg.RPCUser == "" || cfg.RPCPass == "" {
		return nil, errors.New("admin server requires rpcuser and rpcpass")
	}
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:18483"
	}

	s := &AdminServer{
		cfg:       cfg,
		deps:      deps,
		wsClients: make(map[*wsClient]struct{}),
		quit:      make(chan struct{}),
	}
	login := cfg.RPCUser + ":" + cfg.RPCPass
	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
	s.authsha = sha256.Sum256([]byte(auth))

	// Push order lifecycle events to websocket subscribers.
	deps.Orders.Subscribe(func(n *ordermgr.Notification) {
		order, ok := n.Data.(*do.OrderInfo)
		if !ok {
			return
		}
		switch n.Type {
		case ordermgr.NTOrderPaid:
			s.broadcastEvent("order-paid", order)
		case ordermgr.NTOrderExpired:
			s.broadcastEvent("order-expired", order)
		}
	})
	return s, nil
}

// Start is used by server.go to start the admin listener.
func (s *AdminServer) Start() error {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	s.listener = listener

	rpcServeMux := http.NewServeMux()
	httpServer := &http.Server{
		Handler: rpcServeMux,

		// Timeout connections which don't complete the initial handshake
		// within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,
	}

	rpcServeMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Content-Type", "application/json")
		r.Close = true

		if err := s.checkAuth(r); err != nil {
			jsonAuthFail(w)
			return
		}
		s.jsonRPCRead(w, r)
	})

	rpcServeMux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := s.checkAuth(r); err != nil {
			jsonAuthFail(w)
			return
		}

		// Attempt to upgrade the connection to a websocket connection
		// using the default size for read/write buffers.
		ws, err := websocket.Upgrade(w, r, nil, 0, 0)
		if err != nil {
			if _, ok := err.(websocket.HandshakeError); !ok {
				log.Errorf("Unexpected websocket error: %v", err)
			}
			http.Error(w, "400 Bad Request.", http.StatusBadRequest)
			return
		}
		s.websocketHandler(ws, r.RemoteAddr)
	})

	s.wg.Add(1)
	go func() {
		log.Infof("Admin RPC server listening on %s", listener.Addr())
		httpServer.Serve(listener)
		log.Tracef("Admin RPC listener done for %s", listener.Addr())
		s.wg.Done()
	}()
	return nil
}

// Stop is used by server.go to stop the admin listener.
func (s *AdminServer) Stop() {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		log.Infof("Admin RPC server is already in the process of shutting down")
		return
	}
	log.Warnf("Admin RPC server shutting down")
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}

	s.wsLock.Lock()
	for client := range s.wsClients {
		client.close()
	}
	s.wsClients = make(map[*wsClient]struct{})
	s.wsLock.Unlock()

	s.wg.Wait()
	log.Infof("Admin RPC server shutdown complete")
}

// checkAuth checks the HTTP Basic authentication supplied by a client
// against the configured credentials. The check is time-constant.
func (s *AdminServer) checkAuth(r *http.Request) error {
	authhdr := r.Header["Authorization"]
	if len(authhdr) <= 0 {
		log.Warnf("RPC authentication failure from %s", r.RemoteAddr)
		return errors.New("auth failure")
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))
	if subtle.ConstantTimeCompare(authsha[:], s.authsha[:]) != 1 {
		log.Warnf("RPC authentication failure from %s", r.RemoteAddr)
		return errors.New("auth failure")
	}
	return nil
}

// jsonAuthFail sends a message back to the client if the http auth is
// rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="sigvend admin"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// jsonRPCRead handles reading and responding to RPC messages.
func (s *AdminServer) jsonRPCRead(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.shutdown) != 0 {
		return
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		http.Error(w, "400 error reading JSON message", http.StatusBadRequest)
		return
	}

	var request monerojson.Request
	if err := json.Unmarshal(body, &request); err != nil {
		writeResponse(w, &request, nil,
			monerojson.NewRPCError(ErrCodeInvalidRequest, "malformed request"))
		return
	}

	handler, ok := handlers[request.Method]
	if !ok {
		writeResponse(w, &request, nil,
			monerojson.NewRPCError(ErrCodeUnknownMethod, "unknown method "+request.Method))
		return
	}

	result, err := handler(s, r.Context(), request.Params)
	if err != nil {
		log.Debugf("Admin method %s failed: %v", request.Method, err)
		writeResponse(w, &request, nil,
			monerojson.NewRPCError(ErrCodeInternal, err.Error()))
		return
	}
	writeResponse(w, &request, result, nil)
}

func writeResponse(w http.ResponseWriter, request *monerojson.Request, result interface{}, rpcErr *monerojson.RPCError) {
	response := monerojson.Response{
		JSONRPC: monerojson.JSONRPCVersion,
		ID:      request.ID,
		Error:   rpcErr,
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			response.Error = monerojson.NewRPCError(ErrCodeInternal, "unable to marshal result")
		} else {
			response.Result = raw
		}
	}
	if err := json.NewEncoder(w).Encode(&response); err != nil {
		log.Errorf("Failed to write admin response: %v", err)
	}
}

// unmarshalCmd decodes the params of a request into the given command
// struct. Nil params leave the command at its zero value.
func unmarshalCmd(params json.RawMessage, cmd interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, cmd); err != nil {
		return monerojson.NewRPCError(ErrCodeInvalidParams, err.Error())
	}
	return nil
}

func handleListProducts(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd ListProductsCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	products, err := service.GetProductService().GetProducts(ctx, s.deps.DB,
		s.cfg.MasterPassword, cmd.Page, cmd.Num)
	if err != nil {
		return nil, err
	}
	res := make([]*ProductResult, 0, len(products))
	for _, p := range products {
		res = append(res, &ProductResult{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.FiatPrice,
			Currency:    p.Currency,
			Stock:       p.Stock,
			Active:      p.Active,
			ImagePath:   p.ImagePath,
		})
	}
	return res, nil
}

func handleCreateProduct(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd CreateProductCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	info, err := service.GetProductService().CreateProduct(ctx, s.deps.DB,
		s.cfg.MasterPassword, cmd.Name, cmd.Description, cmd.Price, cmd.Currency,
		cmd.Stock, cmd.ImagePath)
	if err != nil {
		return nil, err
	}
	log.Infof("Product %d (%s) created", info.ID, info.Name)
	return &ProductResult{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		Price:       info.FiatPrice,
		Currency:    info.Currency,
		Stock:       info.Stock,
		Active:      info.Active,
	}, nil
}

func handleUpdateProduct(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd UpdateProductCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	fields := make(map[string]interface{})
	if cmd.Name != nil {
		fields["name"] = *cmd.Name
	}
	if cmd.Description != nil {
		fields["description"] = *cmd.Description
	}
	if cmd.Price != nil {
		fields["fiat_price"] = *cmd.Price
	}
	if cmd.Currency != nil {
		fields["currency"] = *cmd.Currency
	}
	if cmd.Stock != nil {
		fields["stock"] = *cmd.Stock
	}
	if cmd.Active != nil {
		fields["active"] = *cmd.Active
	}
	if len(fields) == 0 {
		return nil, monerojson.NewRPCError(ErrCodeInvalidParams, "no fields to update")
	}
	if err := service.GetProductService().UpdateProduct(ctx, s.deps.DB, cmd.ID, fields); err != nil {
		return nil, err
	}
	return true, nil
}

func handleDeleteProduct(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd DeleteProductCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	// Soft delete: orders keep their product reference.
	if err := service.GetProductService().DeactivateProduct(ctx, s.deps.DB, cmd.ID); err != nil {
		return nil, err
	}
	log.Infof("Product %d deactivated", cmd.ID)
	return true, nil
}

func handleCreateOrder(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd CreateOrderCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}

	label := utils.GenerateOrderReference()
	subaddress, index, err := s.deps.Wallet.CreateSubaddress(ctx, label)
	if err != nil {
		return nil, err
	}

	order, err := service.GetOrderService().CreateOrder(ctx, s.deps.DB, cmd.ContactID,
		cmd.ProductID, cmd.Quantity, cmd.AtomicExpected, subaddress, index,
		s.cfg.OrderExpiry)
	if err != nil {
		return nil, err
	}
	log.Infof("Order %d created for contact %d: %d x product %d, expecting %s",
		order.ID, order.ContactID, order.Quantity, order.ProductID,
		utils.FormatXMR(order.AtomicExpected))
	return toOrderResult(order, nil), nil
}

func handleListOrders(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd ListOrdersCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}

	var orders []*do.OrderInfo
	var err error
	if cmd.ContactID != 0 {
		orders, err = service.GetOrderService().GetOrdersByContact(ctx, s.deps.DB, cmd.ContactID)
	} else if len(cmd.Status) > 0 {
		statuses := make([]model.OrderStatus, 0, len(cmd.Status))
		for _, raw := range cmd.Status {
			statuses = append(statuses, model.OrderStatus(raw))
		}
		orders, err = service.GetOrderService().GetOrdersByStatus(ctx, s.deps.DB, statuses)
	} else {
		orders, err = service.GetOrderService().GetOrders(ctx, s.deps.DB, cmd.Page, cmd.Num)
	}
	if err != nil {
		return nil, err
	}

	res := make([]*OrderResult, 0, len(orders))
	for _, order := range orders {
		res = append(res, toOrderResult(order, nil))
	}
	return res, nil
}

func handleGetOrder(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd GetOrderCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	order, err := service.GetOrderService().GetOrder(ctx, s.deps.DB, cmd.ID)
	if err != nil {
		return nil, err
	}
	transfers, err := service.GetOrderService().GetOrderTransfers(ctx, s.deps.DB, cmd.ID)
	if err != nil {
		return nil, err
	}
	return toOrderResult(order, transfers), nil
}

func handleShipOrder(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd ShipOrderCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	if err := service.GetOrderService().MarkShipped(ctx, s.deps.DB, cmd.ID); err != nil {
		return nil, err
	}
	log.Infof("Order %d marked shipped", cmd.ID)
	return true, nil
}

func handleCancelOrder(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd CancelOrderCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	if err := service.GetOrderService().CancelOrder(ctx, s.deps.DB, cmd.ID); err != nil {
		return nil, err
	}
	log.Infof("Order %d cancelled", cmd.ID)
	return true, nil
}

func handleListContacts(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd ListContactsCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	contacts, err := service.GetMessageService().GetContacts(ctx, s.deps.DB,
		s.cfg.MasterPassword, cmd.Page, cmd.Num)
	if err != nil {
		return nil, err
	}
	res := make([]*ContactResult, 0, len(contacts))
	for _, c := range contacts {
		res = append(res, &ContactResult{
			ID:         c.ID,
			Address:    c.Address,
			Alias:      c.Alias,
			Trusted:    c.Trusted,
			LastSeenAt: c.LastSeenAt,
		})
	}
	return res, nil
}

func handleListMessages(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd ListMessagesCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	messages, err := service.GetMessageService().GetConversation(ctx, s.deps.DB,
		s.cfg.MasterPassword, cmd.ContactID, cmd.Page, cmd.Num)
	if err != nil {
		return nil, err
	}
	res := make([]*MessageResult, 0, len(messages))
	for _, m := range messages {
		res = append(res, &MessageResult{
			ID:        m.ID,
			ContactID: m.ContactID,
			Direction: m.Direction,
			Body:      m.Body,
			Timestamp: m.Timestamp,
			Delivered: m.Delivered,
		})
	}
	return res, nil
}

func handleSendMessage(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	var cmd SendMessageCmd
	if err := unmarshalCmd(params, &cmd); err != nil {
		return nil, err
	}
	if utils.IsBlank(cmd.Recipient) || cmd.Message == "" {
		return nil, monerojson.NewRPCError(ErrCodeInvalidParams, "recipient and message are required")
	}
	if err := s.deps.Gateway.SendText(ctx, cmd.Recipient, cmd.Message, cmd.Attachments...); err != nil {
		return nil, err
	}
	return true, nil
}

func handleGetWalletStatus(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	res := &WalletStatusResult{
		State: s.deps.Supervisor.State().String(),
	}
	if s.deps.Supervisor.State() != walletmgr.StateReady {
		return res, nil
	}

	height, err := s.deps.Wallet.Height(ctx)
	if err != nil {
		return res, nil
	}
	res.Height = height

	if balance, err := s.deps.Wallet.Balance(ctx); err == nil {
		res.Balance = balance.Balance
		res.UnlockedBalance = balance.UnlockedBalance
	}
	if address, err := s.deps.Wallet.PrimaryAddress(ctx); err == nil {
		res.Address = address
	}
	if viewOnly, err := s.deps.Wallet.IsViewOnly(ctx); err == nil {
		res.ViewOnly = viewOnly
	}
	return res, nil
}

func handleGetNodeStatus(s *AdminServer, ctx context.Context, params json.RawMessage) (interface{}, error) {
	node, err := service.GetNodeService().GetActiveNode(ctx, s.deps.DB)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, errors.New("no active node configured")
	}
	res := &NodeStatusResult{
		Address:         node.Address,
		Port:            node.Port,
		UseProxy:        node.UseProxy,
		LastHeight:      node.LastHeight,
		LastReachableAt: node.LastReachableAt,
	}
	if s.deps.Chain != nil {
		if height := s.deps.Chain.LastHeight(); height > res.LastHeight {
			res.LastHeight = height
		}
	}
	return res, nil
}

func toOrderResult(order *do.OrderInfo, transfers []*model.OrderTransferDetails) *OrderResult {
	res := &OrderResult{
		ID:              order.ID,
		ContactID:       order.ContactID,
		ProductID:       order.ProductID,
		Quantity:        order.Quantity,
		FiatPrice:       order.FiatPrice,
		Currency:        order.Currency,
		AtomicExpected:  order.AtomicExpected,
		Subaddress:      order.Subaddress,
		SubaddressIndex: order.SubaddressIndex,
		Status:          order.Status,
		AtomicReceived:  order.AtomicReceived,
		LastTxID:        order.LastTxID,
		Confirmations:   order.Confirmations,
		AtomicFee:       order.AtomicFee,
		PaidAt:          order.PaidAt,
		ExpiresAt:       order.ExpiresAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, t := range transfers {
		res.Transfers = append(res.Transfers, &OrderTransferResult{
			TxID:          t.TxID,
			AtomicAmount:  t.AtomicAmount,
			Height:        t.Height,
			Confirmations: t.Confirmations,
		})
	}
	return res
}

// wsClient is one connected websocket subscriber.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	quit chan struct{}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.quit)
		c.conn.Close()
	})
}

// websocketHandler registers the connection and runs its pumps until the
// peer goes away.
func (s *AdminServer) websocketHandler(conn *websocket.Conn, remoteAddr string) {
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, websocketSendBufferSize),
		quit: make(chan struct{}),
	}
	s.wsLock.Lock()
	s.wsClients[client] = struct{}{}
	s.wsLock.Unlock()
	log.Infof("New admin websocket client %s", remoteAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg := <-client.send:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.close()
					return
				}
			case <-client.quit:
				return
			case <-s.quit:
				return
			}
		}
	}()

	// Inbound frames are not part of the protocol; the read loop only
	// detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	client.close()

	s.wsLock.Lock()
	delete(s.wsClients, client)
	s.wsLock.Unlock()
	log.Infof("Admin websocket client %s disconnected", remoteAddr)
}

// broadcastEvent pushes one order event to every connected subscriber. A
// stalled client drops events rather than blocking the poller.
func (s *AdminServer) broadcastEvent(event string, order *do.OrderInfo) {
	msg, err := json.Marshal(&Event{Event: event, Order: toOrderResult(order, nil)})
	if err != nil {
		log.Errorf("Unable to marshal %s event: %v", event, err)
		return
	}

	s.wsLock.Lock()
	defer s.wsLock.Unlock()
	for client := range s.wsClients {
		select {
		case client.send <- msg:
		default:
			log.Warnf("Dropping %s event for a stalled websocket client", event)
		}
	}
}
