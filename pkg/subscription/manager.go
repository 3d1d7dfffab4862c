package subscription

import (
	"fmt"
	"sync"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
)

// Notification represents a subscription notification to send.
type Notification struct {
	// SubscriptionID identifies the subscription.
	SubscriptionID uint32

	// Values maps monitored items to their reported values.
	Values map[ItemKey]*datavalue.DataValue

	// IsPriming indicates this is the initial priming notification.
	IsPriming bool

	// IsHeartbeat indicates this is a heartbeat notification.
	IsHeartbeat bool

	// Timestamp is when the notification was generated.
	Timestamp time.Time
}

// Manager manages subscriptions for a server.
type Manager struct {
	mu sync.RWMutex

	config Config

	// Active subscriptions by ID
	subscriptions map[uint32]*Subscription

	// Index by monitored item for efficient change dispatch
	itemIndex map[ItemKey][]*Subscription

	onNotification func(Notification)
}

// NewManager creates a new subscription manager with default configuration.
func NewManager() *Manager {
	return NewManagerWithConfig(DefaultConfig())
}

// NewManagerWithConfig creates a new subscription manager with custom configuration.
func NewManagerWithConfig(config Config) *Manager {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if config.MaxItemsPerSub <= 0 {
		config.MaxItemsPerSub = DefaultMaxItemsPerSub
	}

	return &Manager{
		config:        config,
		subscriptions: make(map[uint32]*Subscription),
		itemIndex:     make(map[ItemKey][]*Subscription),
	}
}

// Subscribe creates a new subscription and returns the subscription ID.
// It sends a priming notification with all current values via the callback.
func (m *Manager) Subscribe(
	items []MonitoredItem,
	ttr datavalue.TimestampsToReturn,
	minInterval, maxInterval time.Duration,
	currentValues map[ItemKey]*datavalue.DataValue,
) (uint32, error) {
	if maxInterval == 0 {
		return 0, ErrInvalidInterval
	}
	if minInterval > maxInterval {
		if m.config.AutoCorrectIntervals {
			minInterval, maxInterval = maxInterval, minInterval
		} else {
			return 0, ErrInvalidInterval
		}
	}
	if !ttr.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTimestamps, ttr)
	}

	if len(items) == 0 || len(items) > m.config.MaxItemsPerSub {
		return 0, ErrInvalidItem
	}
	for _, it := range items {
		if it.NodeID == "" || !it.Attribute.IsValid() || it.Trigger > TriggerStatusValueTimestamp {
			return 0, fmt.Errorf("%w: %s", ErrInvalidItem, it.ItemKey)
		}
	}

	m.mu.Lock()

	if len(m.subscriptions) >= m.config.MaxSubscriptions {
		m.mu.Unlock()
		return 0, ErrResourceExhausted
	}

	id := nextID()
	sub := NewSubscription(id, items, ttr, minInterval, maxInterval)
	sub.detector = m.config.Detector
	if m.config.Clock != nil {
		sub.clock = m.config.Clock
	}

	primingValues := sub.SetPrimingValues(currentValues)

	m.subscriptions[id] = sub
	for _, key := range sub.order {
		m.itemIndex[key] = append(m.itemIndex[key], sub)
	}

	// Capture callback for use outside lock
	onNotify := m.onNotification

	m.mu.Unlock()

	// Send priming notification outside lock
	if onNotify != nil && len(primingValues) > 0 {
		onNotify(Notification{
			SubscriptionID: id,
			Values:         primingValues,
			IsPriming:      true,
			Timestamp:      time.Now(),
		})
	}

	return id, nil
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, exists := m.subscriptions[subscriptionID]
	if !exists {
		return ErrSubscriptionNotFound
	}

	sub.Deactivate()
	delete(m.subscriptions, subscriptionID)

	for _, key := range sub.order {
		subs := m.itemIndex[key]
		for i, s := range subs {
			if s.ID == subscriptionID {
				m.itemIndex[key] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(m.itemIndex[key]) == 0 {
			delete(m.itemIndex, key)
		}
	}

	return nil
}

// NotifyChange records a new sample for dispatch to relevant subscriptions.
// Changes are coalesced and notifications sent according to subscription intervals.
func (m *Manager) NotifyChange(key ItemKey, dv *datavalue.DataValue) {
	m.mu.RLock()
	subs := m.itemIndex[key]
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.RecordChange(key, dv)
	}
}

// NotifyChanges records multiple samples at once.
func (m *Manager) NotifyChanges(changes map[ItemKey]*datavalue.DataValue) {
	for key, dv := range changes {
		m.NotifyChange(key, dv)
	}
}

// ProcessNotifications checks all subscriptions and sends pending notifications.
// This should be called periodically (e.g., every second).
func (m *Manager) ProcessNotifications() {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	onNotify := m.onNotification
	config := m.config
	m.mu.RUnlock()

	if onNotify == nil {
		return
	}

	for _, sub := range subs {
		if values := sub.GetPendingNotification(config.SuppressBounceBack); values != nil {
			onNotify(Notification{
				SubscriptionID: sub.ID,
				Values:         values,
				Timestamp:      time.Now(),
			})
		}

		if sub.NeedsHeartbeat() {
			notification := Notification{
				SubscriptionID: sub.ID,
				IsHeartbeat:    true,
				Timestamp:      time.Now(),
			}
			if config.HeartbeatMode == HeartbeatFull {
				notification.Values = sub.LastValues()
			}

			sub.RecordHeartbeat()
			onNotify(notification)
		}
	}
}

// ClearAll removes all subscriptions (e.g., on session loss).
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subscriptions {
		sub.Deactivate()
	}
	m.subscriptions = make(map[uint32]*Subscription)
	m.itemIndex = make(map[ItemKey][]*Subscription)
}

// Count returns the number of active subscriptions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Get returns a subscription by ID.
func (m *Manager) Get(subscriptionID uint32) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, exists := m.subscriptions[subscriptionID]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// OnNotification sets the callback for notifications.
func (m *Manager) OnNotification(fn func(Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotification = fn
}
