package chainclient

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigvend/sigvend-server/service"
	"github.com/sigvend/sigvend-server/utils"

	"gorm.io/gorm"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// NotificationCallback is used for a caller to provide a callback for
// notifications about various events.
type NotificationCallback func(*Notification)

const (
	// NTHeightChanged is sent when the daemon reports a new chain height.
	// Data is the uint64 height.
	NTHeightChanged NotificationType = iota
	// NTNodeUnreachable is sent when a previously reachable daemon stops
	// answering.
	NTNodeUnreachable
	// NTNodeReachable is sent when the daemon answers again after being
	// unreachable.
	NTNodeReachable
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTHeightChanged:   "NTHeightChanged",
	NTNodeUnreachable: "NTNodeUnreachable",
	NTNodeReachable:   "NTNodeReachable",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown Notification Type (%d)", int(n))
}

// Notification is delivered to every subscribed callback.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// HealthMonitor polls the daemon on a fixed interval, persists the
// observed height through the node service and publishes reachability and
// height notifications. Messaging does not depend on it; payment features
// degrade when the daemon is away.
type HealthMonitor struct {
	client   *RPCClient
	interval time.Duration
	nodeID   uint64
	db       *gorm.DB

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback

	lastHeight uint64
	reachable  bool

	wg       sync.WaitGroup
	shutdown int32
	quit     chan struct{}
}

// NewHealthMonitor creates a monitor for the given daemon client. nodeID
// is the node_infos row health observations are recorded against.
func NewHealthMonitor(client *RPCClient, db *gorm.DB, nodeID uint64, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{
		client:   client,
		interval: interval,
		nodeID:   nodeID,
		db:       db,
		quit:     make(chan struct{}),
	}
}

// Subscribe registers a callback to be executed when node events take
// place.
func (m *HealthMonitor) Subscribe(callback NotificationCallback) {
	m.notificationsLock.Lock()
	m.notifications = append(m.notifications, callback)
	m.notificationsLock.Unlock()
}

func (m *HealthMonitor) sendNotification(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}
	m.notificationsLock.RLock()
	for _, callback := range m.notifications {
		callback(&n)
	}
	m.notificationsLock.RUnlock()
}

// Start launches the health-check loop.
func (m *HealthMonitor) Start() {
	log.Infof("Starting node health monitor (interval %v)", m.interval)
	m.wg.Add(1)
	go m.healthHandler()
}

// Stop signals the loop to exit and waits for it.
func (m *HealthMonitor) Stop() {
	if atomic.AddInt32(&m.shutdown, 1) != 1 {
		log.Warnf("Node health monitor is already in the process of shutting down")
		return
	}
	log.Infof("Node health monitor shutting down")
	close(m.quit)
	m.wg.Wait()
	log.Infof("Node health monitor shutdown complete")
}

// LastHeight returns the most recent height observed, zero before the
// first successful poll.
func (m *HealthMonitor) LastHeight() uint64 {
	return atomic.LoadUint64(&m.lastHeight)
}

func (m *HealthMonitor) healthHandler() {
	defer m.wg.Done()
	defer utils.MyRecover()

	timer := time.NewTicker(m.interval)
	defer timer.Stop()

	// Probe once immediately so startup does not wait a full interval.
	m.checkOnce()
	for {
		select {
		case <-timer.C:
			m.checkOnce()
		case <-m.quit:
			return
		}
	}
}

func (m *HealthMonitor) checkOnce() {
	ctx := context.Background()
	info, err := m.client.GetInfo(ctx)
	if err != nil {
		log.Debugf("Node health check failed: %v", err)
		if m.reachable {
			m.reachable = false
			log.Warnf("Monero daemon is unreachable, payment features degraded")
			m.sendNotification(NTNodeUnreachable, nil)
		}
		return
	}

	if !m.reachable {
		m.reachable = true
		log.Infof("Monero daemon is reachable (height %d, synchronized %v)",
			info.Height, info.Synchronized)
		m.sendNotification(NTNodeReachable, nil)
	}

	prev := atomic.SwapUint64(&m.lastHeight, info.Height)
	if prev != info.Height {
		m.sendNotification(NTHeightChanged, info.Height)
	}

	err = service.GetNodeService().RecordHealth(ctx, m.db, m.nodeID, info.Height)
	if err != nil {
		log.Errorf("Unable to record node health: %v", err)
	}
}
