package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/log"
	"github.com/mash-protocol/opcua-go/pkg/numrange"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/subscription"
)

// DefaultMaxNodesPerRead is the default per-request operation limit.
const DefaultMaxNodesPerRead = 1000

// Config configures a Server.
type Config struct {
	// MaxNodesPerRead limits the operations of one Read or Write request.
	MaxNodesPerRead int

	// Subscriptions configures the subscription manager.
	Subscriptions subscription.Config

	// Clock supplies server timestamps. nil selects the process-wide clock.
	Clock datetime.Clock

	// Lenient accepts reserved encoding mask bits in written values.
	Lenient bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Tracer receives decode trace events for incoming messages.
	// If nil, tracing is disabled.
	Tracer log.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		MaxNodesPerRead: DefaultMaxNodesPerRead,
		Subscriptions:   subscription.DefaultConfig(),
	}
}

// Server answers Read and Write requests from a Store and reports value
// changes to subscriptions.
type Server struct {
	store  *Store
	subs   *subscription.Manager
	config Config
	clock  datetime.Clock
}

// NewServer creates a server over store. Writes to the store, including
// those made directly through Store.Write, are dispatched to subscriptions.
func NewServer(store *Store, config Config) *Server {
	if config.MaxNodesPerRead <= 0 {
		config.MaxNodesPerRead = DefaultMaxNodesPerRead
	}
	if config.Clock == nil {
		config.Clock = datetime.Default()
	}
	if config.Subscriptions.Clock == nil {
		config.Subscriptions.Clock = config.Clock
	}

	s := &Server{
		store:  store,
		subs:   subscription.NewManagerWithConfig(config.Subscriptions),
		config: config,
		clock:  config.Clock,
	}
	store.OnWrite(s.subs.NotifyChange)
	return s
}

// Store returns the value store.
func (s *Server) Store() *Store {
	return s.store
}

// Subscriptions returns the subscription manager.
func (s *Server) Subscriptions() *subscription.Manager {
	return s.subs
}

// Read returns the requested attribute values.
//
// Each result is the stored value reduced to the requested index range and
// then given the requested timestamps. Operation failures are reported as
// value-less results with a bad status; request-level failures set the
// service result and return no results.
func (s *Server) Read(req *ReadRequest) *ReadResponse {
	resp := &ReadResponse{RequestHandle: req.RequestHandle}

	switch {
	case req.MaxAge < 0:
		resp.ServiceResult = status.BadMaxAgeInvalid
	case !req.TimestampsToReturn.IsValid():
		resp.ServiceResult = status.BadTimestampsToReturnInvalid
	case len(req.NodesToRead) == 0:
		resp.ServiceResult = status.BadNothingToDo
	case len(req.NodesToRead) > s.config.MaxNodesPerRead:
		resp.ServiceResult = status.BadTooManyOperations
	}
	if resp.ServiceResult != status.Good {
		s.debugLog("read rejected", "handle", req.RequestHandle, "status", resp.ServiceResult)
		return resp
	}

	resp.Results = make([]*datavalue.DataValue, len(req.NodesToRead))
	for i, id := range req.NodesToRead {
		resp.Results[i] = s.readValue(id, req.TimestampsToReturn)
	}
	s.debugLog("read", "handle", req.RequestHandle, "nodes", len(req.NodesToRead))
	return resp
}

func (s *Server) readValue(id ReadValueID, ttr datavalue.TimestampsToReturn) *datavalue.DataValue {
	if !id.AttributeID.IsValid() {
		return datavalue.NewBad(status.BadAttributeIdInvalid)
	}
	dv, code := s.store.Get(subscription.ItemKey{NodeID: id.NodeID, Attribute: id.AttributeID})
	if code != status.Good {
		return datavalue.NewBad(code)
	}

	var nr *numrange.NumericRange
	if id.IndexRange != "" {
		var err error
		if nr, err = numrange.Parse(id.IndexRange); err != nil {
			return datavalue.NewBad(status.BadIndexRangeInvalid)
		}
	}

	ranged, err := datavalue.ExtractRange(dv, nr)
	if err != nil {
		var re *numrange.RangeError
		if errors.As(err, &re) {
			return datavalue.NewBad(re.StatusCode)
		}
		return datavalue.NewBad(status.BadInternalError)
	}
	return datavalue.ApplyTimestampsWithClock(ranged, ttr, id.AttributeID, s.clock)
}

// Write stores the given values and returns one status per value.
func (s *Server) Write(req *WriteRequest) *WriteResponse {
	resp := &WriteResponse{RequestHandle: req.RequestHandle}

	switch {
	case len(req.NodesToWrite) == 0:
		resp.ServiceResult = status.BadNothingToDo
		return resp
	case len(req.NodesToWrite) > s.config.MaxNodesPerRead:
		resp.ServiceResult = status.BadTooManyOperations
		return resp
	}

	resp.Results = make([]status.Code, len(req.NodesToWrite))
	for i, wv := range req.NodesToWrite {
		resp.Results[i] = s.store.Write(subscription.ItemKey{NodeID: wv.NodeID, Attribute: wv.AttributeID}, wv.Value)
	}
	s.debugLog("write", "handle", req.RequestHandle, "nodes", len(req.NodesToWrite))
	return resp
}

// HandleRequest decodes an encoded request, processes it and returns the
// encoded response. Malformed requests return an error and no response.
func (s *Server) HandleRequest(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, _, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	switch t {
	case MessageReadRequest:
		req, err := UnmarshalReadRequest(data)
		if err != nil {
			return nil, err
		}
		return s.Read(req).Marshal()
	case MessageWriteRequest:
		req, err := UnmarshalWriteRequest(data, datavalue.DecodeOptions{
			Strict: !s.config.Lenient,
			Tracer: s.config.Tracer,
			Source: t.String(),
		})
		if err != nil {
			return nil, err
		}
		return s.Write(req).Marshal(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, t)
	}
}

// Subscribe creates a subscription primed with the current store values.
func (s *Server) Subscribe(items []subscription.MonitoredItem, ttr datavalue.TimestampsToReturn, minInterval, maxInterval time.Duration) (uint32, error) {
	keys := make([]subscription.ItemKey, len(items))
	for i, it := range items {
		keys[i] = it.ItemKey
	}
	id, err := s.subs.Subscribe(items, ttr, minInterval, maxInterval, s.store.Snapshot(keys))
	if err != nil {
		return 0, err
	}
	s.debugLog("subscribed", "subscription", id, "items", len(items), "ttr", ttr)
	return id, nil
}

// Unsubscribe removes a subscription.
func (s *Server) Unsubscribe(subscriptionID uint32) error {
	return s.subs.Unsubscribe(subscriptionID)
}

// SetNotificationHandler sets the handler for outgoing notifications.
func (s *Server) SetNotificationHandler(handler func(subscription.Notification)) {
	s.subs.OnNotification(handler)
}

// Run processes subscription notifications every interval until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.subs.ClearAll()
			return ctx.Err()
		case <-ticker.C:
			s.subs.ProcessNotifications()
		}
	}
}

// debugLog logs a debug message if a logger is configured.
func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
