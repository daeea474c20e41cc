package signalmgr

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sigvend/sigvend-server/constdef"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/utils"

	"gorm.io/gorm"
)

// MessageHandler receives every dispatched incoming message exactly once.
type MessageHandler func(*model.IncomingMessage)

// GatewayConfig carries the message-gateway settings. It is built once at
// startup and never mutated.
type GatewayConfig struct {
	// OwnAccount is the bot's own number, used to suppress sync copies
	// addressed back to itself.
	OwnAccount string
	// MasterPassword keys the encrypted contact and message columns.
	MasterPassword string

	// MinReceiveInterval and MaxReceiveInterval bound the adaptive receive
	// cadence. A productive drain halves the wait, an idle one grows it.
	MinReceiveInterval time.Duration
	MaxReceiveInterval time.Duration

	// AutoTrust retries a changed safety number once per contact so a
	// reinstalling buyer does not go silent.
	AutoTrust bool
}

// Gateway owns all signal-cli traffic: it drains incoming envelopes on an
// adaptive cadence, persists contacts and message bodies encrypted, and
// dispatches each text message to the registered handlers exactly once.
type Gateway struct {
	cfg    GatewayConfig
	runner *Runner
	db     *gorm.DB

	handlersLock sync.RWMutex
	handlers     []MessageHandler

	// trustAttempted remembers senders already given their single
	// auto-trust attempt. Bounded so a flood of one-off senders cannot
	// grow it without limit.
	trustAttempted *lru.Cache

	receivingFlag int32
	wg            sync.WaitGroup
	shutdown      int32
	quit          chan struct{}
}

// NewGateway creates the message gateway.
func NewGateway(cfg GatewayConfig, runner *Runner, db *gorm.DB) (*Gateway, error) {
	if cfg.MinReceiveInterval <= 0 {
		cfg.MinReceiveInterval = 2 * time.Second
	}
	if cfg.MaxReceiveInterval < cfg.MinReceiveInterval {
		cfg.MaxReceiveInterval = 60 * time.Second
	}
	cache, err := lru.New(constdef.TrustCacheSize)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		cfg:            cfg,
		runner:         runner,
		db:             db,
		trustAttempted: cache,
		quit:           make(chan struct{}),
	}, nil
}

// RegisterHandler adds a handler for incoming messages. Handlers must be
// registered before Start.
func (g *Gateway) RegisterHandler(handler MessageHandler) {
	g.handlersLock.Lock()
	g.handlers = append(g.handlers, handler)
	g.handlersLock.Unlock()
}

// dispatch hands one message to every handler. A panicking handler is
// isolated so it cannot take the receive loop down with it.
func (g *Gateway) dispatch(msg *model.IncomingMessage) {
	g.handlersLock.RLock()
	handlers := g.handlers
	g.handlersLock.RUnlock()
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Criticalf("Message handler panicked on message from %s: %v",
						msg.Sender, r)
				}
			}()
			handler(msg)
		}()
	}
}

// Start launches the receive loop.
func (g *Gateway) Start() {
	log.Infof("Starting message gateway (receive cadence %v..%v)",
		g.cfg.MinReceiveInterval, g.cfg.MaxReceiveInterval)
	g.wg.Add(1)
	go g.receiveHandler()
}

// Stop signals the loop to exit and waits for it.
func (g *Gateway) Stop() {
	if atomic.AddInt32(&g.shutdown, 1) != 1 {
		log.Warnf("Message gateway is already in the process of shutting down")
		return
	}
	log.Infof("Message gateway shutting down")
	close(g.quit)
	g.wg.Wait()
	log.Infof("Message gateway shutdown complete")
}

// receiveHandler drains envelopes on an adaptive cadence: each productive
// drain halves the wait down to the minimum, each idle one grows it by
// half up to the maximum. A busy conversation is answered promptly while
// an idle account costs one subprocess a minute.
func (g *Gateway) receiveHandler() {
	defer g.wg.Done()
	defer utils.MyRecover()

	interval := g.cfg.MinReceiveInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			productive := g.drainOnce()
			interval = nextInterval(interval, productive,
				g.cfg.MinReceiveInterval, g.cfg.MaxReceiveInterval)
			timer.Reset(interval)
		case <-g.quit:
			return
		}
	}
}

// nextInterval computes the adaptive cadence step.
func nextInterval(current time.Duration, productive bool, min, max time.Duration) time.Duration {
	if productive {
		current /= 2
	} else {
		current += current / 2
	}
	if current < min {
		current = min
	}
	if current > max {
		current = max
	}
	return current
}

// drainOnce runs one receive invocation and dispatches everything it
// returned. It reports whether any message was dispatched.
func (g *Gateway) drainOnce() bool {
	if !atomic.CompareAndSwapInt32(&g.receivingFlag, 0, 1) {
		return false
	}
	defer atomic.StoreInt32(&g.receivingFlag, 0)

	ctx := context.Background()
	raw, err := g.runner.Receive(ctx)
	if err != nil {
		log.Errorf("Receive failed: %v", err)
		// An exit with partial output still yields whatever envelopes
		// made it to stdout.
	}

	productive := false
	for _, envelope := range parseEnvelopes(raw) {
		if isOwnSync(envelope, g.cfg.OwnAccount) {
			log.Tracef("Suppressing sync copy of own message")
			continue
		}
		msg := toIncoming(envelope)
		if msg == nil {
			continue
		}
		if err := g.handleIncoming(ctx, msg); err != nil {
			log.Errorf("Unable to process message from %s: %v", msg.Sender, err)
			continue
		}
		productive = true
	}
	return productive
}

// handleIncoming persists the contact and message, runs the single
// auto-trust attempt for new senders, then dispatches to the handlers.
func (g *Gateway) handleIncoming(ctx context.Context, msg *model.IncomingMessage) error {
	// A sync copy carries a message this account sent from a linked
	// device. It belongs to the destination's conversation as an outgoing
	// entry and must never trigger a trust attempt against the own number.
	if msg.Destination != "" {
		contact, _, err := service.GetMessageService().UpsertContact(ctx, g.db,
			g.cfg.MasterPassword, msg.Destination)
		if err != nil {
			return err
		}
		_, err = service.GetMessageService().RecordOutgoing(ctx, g.db,
			g.cfg.MasterPassword, contact.ID, msg.Text, true)
		if err != nil {
			return err
		}
		g.dispatch(msg)
		return nil
	}

	contact, created, err := service.GetMessageService().UpsertContact(ctx, g.db,
		g.cfg.MasterPassword, msg.Sender)
	if err != nil {
		return err
	}
	if created {
		log.Infof("First contact from a new buyer (contact %d)", contact.ID)
	}

	g.maybeTrust(ctx, msg.Sender, contact.ID)

	_, err = service.GetMessageService().RecordIncoming(ctx, g.db,
		g.cfg.MasterPassword, contact.ID, msg.Text, msg.Timestamp)
	if err != nil {
		return err
	}

	g.dispatch(msg)
	return nil
}

// maybeTrust runs at most one trust attempt per sender per process
// lifetime. Trust failures are logged, never fatal.
func (g *Gateway) maybeTrust(ctx context.Context, sender string, contactID uint64) {
	if !g.cfg.AutoTrust {
		return
	}
	if _, seen := g.trustAttempted.Get(sender); seen {
		return
	}
	g.trustAttempted.Add(sender, struct{}{})

	if _, err := g.runner.Trust(ctx, sender); err != nil {
		log.Warnf("Trust attempt for contact %d failed: %v", contactID, err)
		return
	}
	if err := service.GetMessageService().SetContactTrusted(ctx, g.db, contactID, true); err != nil {
		log.Errorf("Unable to persist trusted flag for contact %d: %v", contactID, err)
	}
}

// SendText delivers a message to one recipient and records it in the
// encrypted message log. The recipient may be a phone number, a UUID, a
// u:name username form, or a group:GROUPID form.
func (g *Gateway) SendText(ctx context.Context, recipient, message string, attachments ...string) error {
	_, sendErr := g.runner.Send(ctx, recipientArgs(recipient), message, attachments)
	delivered := sendErr == nil
	if sendErr != nil {
		log.Errorf("Send to %s failed: %v", recipient, sendErr)
	}

	// Group destinations are not contacts; only direct recipients get a
	// message-log row.
	if !strings.HasPrefix(recipient, "group:") {
		contact, _, err := service.GetMessageService().UpsertContact(ctx, g.db,
			g.cfg.MasterPassword, recipient)
		if err != nil {
			log.Errorf("Unable to upsert contact for outgoing message: %v", err)
		} else {
			_, err = service.GetMessageService().RecordOutgoing(ctx, g.db,
				g.cfg.MasterPassword, contact.ID, message, delivered)
			if err != nil {
				log.Errorf("Unable to record outgoing message: %v", err)
			}
		}
	}
	return sendErr
}

// recipientArgs maps the recipient notation to signal-cli flags. Phone
// numbers and UUIDs are positional; u:name selects the username flag form
// and group:GROUPID the group flag form.
func recipientArgs(recipient string) []string {
	if strings.HasPrefix(recipient, "group:") {
		return []string{"-g", strings.TrimPrefix(recipient, "group:")}
	}
	if strings.HasPrefix(recipient, "u:") {
		return []string{"--username", recipient}
	}
	return []string{recipient}
}

// ListGroups returns the raw group list JSON for the admin surface.
func (g *Gateway) ListGroups(ctx context.Context) ([]byte, error) {
	return g.runner.ListGroups(ctx)
}
