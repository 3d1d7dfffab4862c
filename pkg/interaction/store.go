package interaction

import (
	"sort"
	"sync"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/subscription"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// Store holds the current attribute values of a set of nodes.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]map[attribute.ID]*datavalue.DataValue
	clock datetime.Clock

	onWrite func(subscription.ItemKey, *datavalue.DataValue)
}

// NewStore creates an empty store. clock stamps written values that carry
// no server timestamp; nil selects the process-wide clock.
func NewStore(clock datetime.Clock) *Store {
	if clock == nil {
		clock = datetime.Default()
	}
	return &Store{
		nodes: make(map[string]map[attribute.ID]*datavalue.DataValue),
		clock: clock,
	}
}

// AddNode adds or replaces a node with the given attributes. Every node has
// a NodeId attribute holding its identifier. Nil values and attribute ids
// outside the defined set are skipped.
func (s *Store) AddNode(nodeID string, attrs map[attribute.ID]*datavalue.DataValue) {
	node := make(map[attribute.ID]*datavalue.DataValue, len(attrs)+1)
	for id, dv := range attrs {
		if dv != nil && id.IsValid() {
			node[id] = dv.Clone()
		}
	}
	if _, ok := node[attribute.NodeID]; !ok {
		node[attribute.NodeID] = datavalue.New(variant.String(nodeID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID] = node
}

// RemoveNode deletes a node. Removing an unknown node is a no-op.
func (s *Store) RemoveNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, nodeID)
}

// NodeIDs returns the identifiers of all nodes, sorted.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns a copy of the stored value. A missing node or attribute is
// reported through the status code and a nil value.
func (s *Store) Get(key subscription.ItemKey) (*datavalue.DataValue, status.Code) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[key.NodeID]
	if !ok {
		return nil, status.BadNodeIdUnknown
	}
	dv, ok := node[key.Attribute]
	if !ok {
		return nil, status.BadAttributeIdInvalid
	}
	return dv.Clone(), status.Good
}

// Snapshot returns copies of the stored values for keys. Missing entries
// are left out.
func (s *Store) Snapshot(keys []subscription.ItemKey) map[subscription.ItemKey]*datavalue.DataValue {
	out := make(map[subscription.ItemKey]*datavalue.DataValue, len(keys))
	for _, key := range keys {
		if dv, code := s.Get(key); code == status.Good {
			out[key] = dv
		}
	}
	return out
}

// Write replaces a stored value and reports the result as a status code.
//
// The identity attributes NodeId and NodeClass are not writable. A value
// whose payload type differs from a non-null stored payload is rejected
// with BadTypeMismatch. A value without server timestamp is stamped from
// the store clock.
func (s *Store) Write(key subscription.ItemKey, dv *datavalue.DataValue) status.Code {
	if dv == nil || !dv.IsValid() {
		return status.BadTypeMismatch
	}
	if key.Attribute == attribute.NodeID || key.Attribute == attribute.NodeClass {
		return status.BadNotWritable
	}

	s.mu.Lock()
	node, ok := s.nodes[key.NodeID]
	if !ok {
		s.mu.Unlock()
		return status.BadNodeIdUnknown
	}
	old, ok := node[key.Attribute]
	if !ok {
		s.mu.Unlock()
		return status.BadAttributeIdInvalid
	}
	if !sameType(old, dv) {
		s.mu.Unlock()
		return status.BadTypeMismatch
	}

	stored := dv.Clone()
	if stored.ServerTimestamp == nil {
		stored.SetServerTimestamp(s.clock.Now())
	}
	node[key.Attribute] = stored
	onWrite := s.onWrite
	s.mu.Unlock()

	if onWrite != nil {
		onWrite(key, stored.Clone())
	}
	return status.Good
}

// OnWrite sets the callback invoked after every successful write, outside
// the store lock.
func (s *Store) OnWrite(fn func(subscription.ItemKey, *datavalue.DataValue)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = fn
}

// sameType reports whether next may replace old. A null payload on either
// side matches anything.
func sameType(old, next *datavalue.DataValue) bool {
	if old.Value.IsNull() || next.Value.IsNull() {
		return true
	}
	return old.Value.Type == next.Value.Type && old.Value.ArrayType == next.Value.ArrayType
}
