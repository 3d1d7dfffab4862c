package subscription

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/numrange"
	"github.com/mash-protocol/opcua-go/pkg/status"
)

// Subscription errors.
var (
	ErrInvalidInterval      = errors.New("invalid subscription interval")
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidItem          = errors.New("invalid monitored item")
	ErrInvalidTimestamps    = errors.New("invalid timestamps to return")
)

// Default subscription limits.
const (
	DefaultMinInterval      = 1 * time.Second
	DefaultMaxInterval      = 60 * time.Second
	DefaultMaxSubscriptions = 50
	DefaultMaxItemsPerSub   = 100
)

// HeartbeatMode specifies what content is sent in heartbeat notifications.
type HeartbeatMode uint8

const (
	// HeartbeatEmpty sends only subscriptionId and timestamp.
	HeartbeatEmpty HeartbeatMode = iota

	// HeartbeatFull sends all monitored items with their last values.
	HeartbeatFull
)

// String returns a human-readable heartbeat mode name.
func (m HeartbeatMode) String() string {
	switch m {
	case HeartbeatEmpty:
		return "EMPTY"
	case HeartbeatFull:
		return "FULL"
	default:
		return "UNKNOWN"
	}
}

// Trigger selects which differences between samples are reported.
type Trigger uint8

// Data change triggers, numbered as on the wire.
const (
	TriggerStatus               Trigger = 0
	TriggerStatusValue          Trigger = 1
	TriggerStatusValueTimestamp Trigger = 2
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerStatus:
		return "Status"
	case TriggerStatusValue:
		return "StatusValue"
	case TriggerStatusValueTimestamp:
		return "StatusValueTimestamp"
	default:
		return fmt.Sprintf("Trigger(%d)", uint8(t))
	}
}

// Changed reports whether b differs from a under the trigger, using d for
// payload comparison.
func (t Trigger) Changed(d datavalue.ChangeDetector, a, b *datavalue.DataValue) bool {
	if a == nil || b == nil {
		return a != b
	}
	switch t {
	case TriggerStatus:
		return a.StatusCode != b.StatusCode
	case TriggerStatusValueTimestamp:
		return !d.SameValue(a, b, datavalue.TimestampsSource)
	default:
		return !d.SameValue(a, b, datavalue.TimestampsNeither)
	}
}

// Config holds subscription manager configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of subscriptions allowed.
	MaxSubscriptions int

	// MaxItemsPerSub is the maximum monitored items per subscription.
	MaxItemsPerSub int

	// HeartbeatMode specifies heartbeat content (empty or full).
	HeartbeatMode HeartbeatMode

	// SuppressBounceBack enables bounce-back suppression.
	SuppressBounceBack bool

	// AutoCorrectIntervals swaps min/max if min > max.
	AutoCorrectIntervals bool

	// Detector compares samples.
	Detector datavalue.ChangeDetector

	// Clock supplies server timestamps for values that lack one.
	// nil selects the process-wide clock.
	Clock datetime.Clock
}

// DefaultConfig returns the default subscription configuration.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions:     DefaultMaxSubscriptions,
		MaxItemsPerSub:       DefaultMaxItemsPerSub,
		HeartbeatMode:        HeartbeatFull,
		SuppressBounceBack:   true,
		AutoCorrectIntervals: false,
	}
}

// ItemKey identifies one attribute of one node.
type ItemKey struct {
	NodeID    string
	Attribute attribute.ID
}

func (k ItemKey) String() string {
	return k.NodeID + "/" + k.Attribute.String()
}

// MonitoredItem describes what to watch and how to report it.
type MonitoredItem struct {
	ItemKey

	// IndexRange limits reported values to a sub-range. nil reports the
	// whole value.
	IndexRange *numrange.NumericRange

	// Trigger selects what counts as a change.
	Trigger Trigger
}

type itemState struct {
	item    MonitoredItem
	last    *datavalue.DataValue
	pending *datavalue.DataValue
}

// Subscription represents an active subscription.
type Subscription struct {
	mu sync.RWMutex

	// ID is the unique subscription identifier.
	ID uint32

	// TimestampsToReturn selects the timestamps of reported values.
	TimestampsToReturn datavalue.TimestampsToReturn

	// MinInterval is the minimum time between notifications.
	MinInterval time.Duration

	// MaxInterval is the maximum time without notification (heartbeat).
	MaxInterval time.Duration

	detector datavalue.ChangeDetector
	clock    datetime.Clock

	// items holds per-item state in subscription order.
	items map[ItemKey]*itemState
	order []ItemKey

	// lastNotified is when the last notification was sent.
	lastNotified time.Time

	// changeWindowStart is when the first change occurred in current window.
	changeWindowStart time.Time

	// hasChanges indicates pending changes exist.
	hasChanges bool

	// active indicates if subscription is active.
	active bool
}

// NewSubscription creates a new subscription. Duplicate items keep the
// last definition.
func NewSubscription(id uint32, items []MonitoredItem, ttr datavalue.TimestampsToReturn, minInterval, maxInterval time.Duration) *Subscription {
	s := &Subscription{
		ID:                 id,
		TimestampsToReturn: ttr,
		MinInterval:        minInterval,
		MaxInterval:        maxInterval,
		clock:              datetime.Default(),
		items:              make(map[ItemKey]*itemState, len(items)),
		lastNotified:       time.Now(),
		active:             true,
	}
	for _, it := range items {
		if _, dup := s.items[it.ItemKey]; !dup {
			s.order = append(s.order, it.ItemKey)
		}
		s.items[it.ItemKey] = &itemState{item: it}
	}
	return s
}

// Items returns the monitored items in subscription order.
func (s *Subscription) Items() []MonitoredItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MonitoredItem, len(s.order))
	for i, k := range s.order {
		out[i] = s.items[k].item
	}
	return out
}

// IsActive returns whether the subscription is active.
func (s *Subscription) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Deactivate marks the subscription as inactive.
func (s *Subscription) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// RecordChange records a new sample for an item. Samples that do not differ
// from the latest known sample under the item's trigger are dropped.
// Returns true if this is a new change that starts the coalescing window.
func (s *Subscription) RecordChange(key ItemKey, dv *datavalue.DataValue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	st, ok := s.items[key]
	if !ok {
		return false
	}

	latest := st.pending
	if latest == nil {
		latest = st.last
	}
	if latest != nil && !st.item.Trigger.Changed(s.detector, latest, dv) {
		return false
	}

	isNewWindow := !s.hasChanges
	if isNewWindow {
		s.changeWindowStart = time.Now()
	}

	st.pending = dv.Clone()
	s.hasChanges = true

	return isNewWindow
}

// GetPendingNotification returns the values that should be notified,
// prepared with the item's index range and the subscription's timestamps.
// It implements bounce-back suppression and clears pending changes.
// Returns nil if no notification is needed.
func (s *Subscription) GetPendingNotification(suppressBounceBack bool) map[ItemKey]*datavalue.DataValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.hasChanges {
		return nil
	}
	if time.Since(s.changeWindowStart) < s.MinInterval {
		return nil
	}

	notification := make(map[ItemKey]*datavalue.DataValue)
	for key, st := range s.items {
		if st.pending == nil {
			continue
		}
		dv := st.pending
		st.pending = nil

		if suppressBounceBack && st.last != nil && !st.item.Trigger.Changed(s.detector, st.last, dv) {
			continue
		}
		st.last = dv
		notification[key] = s.report(st.item, dv)
	}

	s.hasChanges = false
	s.lastNotified = time.Now()

	if len(notification) == 0 {
		return nil
	}
	return notification
}

// report prepares dv for delivery. An index range that selects nothing is
// reported as a value-less DataValue carrying the range status.
func (s *Subscription) report(item MonitoredItem, dv *datavalue.DataValue) *datavalue.DataValue {
	ranged, err := datavalue.ExtractRange(dv, item.IndexRange)
	if err != nil {
		var re *numrange.RangeError
		code := status.BadInternalError
		if errors.As(err, &re) {
			code = re.StatusCode
		}
		ranged = &datavalue.DataValue{
			StatusCode:        code,
			SourceTimestamp:   dv.SourceTimestamp,
			SourcePicoseconds: dv.SourcePicoseconds,
			ServerTimestamp:   dv.ServerTimestamp,
			ServerPicoseconds: dv.ServerPicoseconds,
		}
	}
	return datavalue.ApplyTimestampsWithClock(ranged, s.TimestampsToReturn, item.Attribute, s.clock)
}

// NeedsHeartbeat returns true if maxInterval has elapsed since last notification.
func (s *Subscription) NeedsHeartbeat() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.active {
		return false
	}
	return time.Since(s.lastNotified) >= s.MaxInterval
}

// RecordHeartbeat records that a heartbeat was sent.
func (s *Subscription) RecordHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastNotified = time.Now()
}

// LastValues returns the last notified value of every item, prepared for
// delivery.
func (s *Subscription) LastValues() map[ItemKey]*datavalue.DataValue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[ItemKey]*datavalue.DataValue, len(s.items))
	for key, st := range s.items {
		if st.last != nil {
			out[key] = s.report(st.item, st.last)
		}
	}
	return out
}

// SetPrimingValues sets the initial values and returns them prepared for
// the priming notification. Values for unmonitored items are ignored.
func (s *Subscription) SetPrimingValues(values map[ItemKey]*datavalue.DataValue) map[ItemKey]*datavalue.DataValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[ItemKey]*datavalue.DataValue)
	for key, dv := range values {
		st, ok := s.items[key]
		if !ok || dv == nil {
			continue
		}
		st.last = dv.Clone()
		out[key] = s.report(st.item, st.last)
	}
	s.lastNotified = time.Now()
	return out
}

// TimeSinceLastNotification returns time since the last notification.
func (s *Subscription) TimeSinceLastNotification() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastNotified)
}

// TimeUntilCoalesceExpiry returns time until coalescing window expires.
// Returns 0 if no changes are pending.
func (s *Subscription) TimeUntilCoalesceExpiry() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasChanges {
		return 0
	}

	elapsed := time.Since(s.changeWindowStart)
	if elapsed >= s.MinInterval {
		return 0
	}
	return s.MinInterval - elapsed
}

// idGenerator generates unique subscription IDs.
var idGenerator atomic.Uint32

// nextID returns the next unique subscription ID.
func nextID() uint32 {
	return idGenerator.Add(1)
}
