package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/log"
	"github.com/mash-protocol/opcua-go/pkg/numrange"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/subscription"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

func createTestServer(t *testing.T, config Config) (*Server, *datetime.FakeClock) {
	t.Helper()
	clock := datetime.NewFakeClock(testNow)
	config.Clock = clock
	return NewServer(createTestStore(clock), config), clock
}

func readOne(t *testing.T, s *Server, ttr datavalue.TimestampsToReturn, id ReadValueID) *datavalue.DataValue {
	t.Helper()
	resp := s.Read(&ReadRequest{RequestHandle: 1, TimestampsToReturn: ttr, NodesToRead: []ReadValueID{id}})
	if resp.ServiceResult != status.Good {
		t.Fatalf("ServiceResult = %s, want Good", resp.ServiceResult)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	return resp.Results[0]
}

func TestServerRead(t *testing.T) {
	server, _ := createTestServer(t, DefaultConfig())

	t.Run("ValueBoth", func(t *testing.T) {
		dv := readOne(t, server, datavalue.TimestampsBoth, ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value})

		if !variant.Equal(dv.Value, variant.Double(11.5)) {
			t.Errorf("value = %v, want 11.5", dv.Value)
		}
		if dv.SourceTimestamp == nil || !dv.SourceTimestamp.Equal(testSource.Time) || dv.SourcePicoseconds != 1230 {
			t.Errorf("source = %v/%d, want %v/1230", dv.SourceTimestamp, dv.SourcePicoseconds, testSource.Time)
		}
		if dv.ServerTimestamp == nil || !dv.ServerTimestamp.Equal(testNow) {
			t.Errorf("server = %v, want %v", dv.ServerTimestamp, testNow)
		}
	})

	t.Run("ValueNeither", func(t *testing.T) {
		dv := readOne(t, server, datavalue.TimestampsNeither, ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value})
		if dv.SourceTimestamp != nil || dv.ServerTimestamp != nil {
			t.Errorf("timestamps present: %v", dv)
		}
	})

	t.Run("ValueSource", func(t *testing.T) {
		dv := readOne(t, server, datavalue.TimestampsSource, ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value})
		if dv.SourceTimestamp == nil || dv.ServerTimestamp != nil {
			t.Errorf("want source only, got %v", dv)
		}
	})

	t.Run("NonValueAttribute", func(t *testing.T) {
		dv := readOne(t, server, datavalue.TimestampsBoth, ReadValueID{NodeID: powerName.NodeID, AttributeID: attribute.DisplayName})
		if !variant.Equal(dv.Value, variant.String("Power")) {
			t.Errorf("value = %v, want Power", dv.Value)
		}
		if dv.SourceTimestamp != nil || dv.SourcePicoseconds != 0 {
			t.Errorf("source timestamp = %v/%d, want none", dv.SourceTimestamp, dv.SourcePicoseconds)
		}
		if dv.ServerTimestamp == nil {
			t.Error("server timestamp missing")
		}
	})

	t.Run("IndexRange", func(t *testing.T) {
		dv := readOne(t, server, datavalue.TimestampsNeither, ReadValueID{NodeID: phaseValue.NodeID, AttributeID: attribute.Value, IndexRange: "1:2"})
		if want := variant.Int32Array(231, 229); !variant.Equal(dv.Value, want) {
			t.Errorf("value = %v, want %v", dv.Value, want)
		}
		if dv.StatusCode != status.Good {
			t.Errorf("status = %s, want Good", dv.StatusCode)
		}
	})

	t.Run("ReadStoredIsUnchanged", func(t *testing.T) {
		readOne(t, server, datavalue.TimestampsBoth, ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value})
		stored, _ := server.Store().Get(powerValue)
		if stored.ServerTimestamp != nil {
			t.Error("Read modified the stored value")
		}
	})
}

func TestServerReadFailures(t *testing.T) {
	server, _ := createTestServer(t, DefaultConfig())

	tests := []struct {
		name string
		id   ReadValueID
		want status.Code
	}{
		{"UnknownNode", ReadValueID{NodeID: "ns=2;s=Missing", AttributeID: attribute.Value}, status.BadNodeIdUnknown},
		{"MissingAttribute", ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Description}, status.BadAttributeIdInvalid},
		{"ZeroAttribute", ReadValueID{NodeID: powerValue.NodeID}, status.BadAttributeIdInvalid},
		{"UndefinedAttribute", ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.ID(200)}, status.BadAttributeIdInvalid},
		{"MalformedRange", ReadValueID{NodeID: phaseValue.NodeID, AttributeID: attribute.Value, IndexRange: "2:1"}, status.BadIndexRangeInvalid},
		{"RangeBeyondEnd", ReadValueID{NodeID: phaseValue.NodeID, AttributeID: attribute.Value, IndexRange: "5:6"}, status.BadIndexRangeNoData},
		{"RangeDimensions", ReadValueID{NodeID: phaseValue.NodeID, AttributeID: attribute.Value, IndexRange: "0,1"}, status.BadIndexRangeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dv := readOne(t, server, datavalue.TimestampsBoth, tt.id)
			if dv.StatusCode != tt.want {
				t.Errorf("status = %s, want %s", dv.StatusCode, tt.want)
			}
			if dv.Value != nil || dv.SourceTimestamp != nil || dv.ServerTimestamp != nil {
				t.Errorf("failed read carries data: %v", dv)
			}
		})
	}
}

func TestServerReadServiceResult(t *testing.T) {
	config := DefaultConfig()
	config.MaxNodesPerRead = 2
	server, _ := createTestServer(t, config)

	id := ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value}
	tests := []struct {
		name string
		req  *ReadRequest
		want status.Code
	}{
		{"NegativeMaxAge", &ReadRequest{MaxAge: -1, NodesToRead: []ReadValueID{id}}, status.BadMaxAgeInvalid},
		{"InvalidTimestamps", &ReadRequest{TimestampsToReturn: 4, NodesToRead: []ReadValueID{id}}, status.BadTimestampsToReturnInvalid},
		{"NothingToDo", &ReadRequest{}, status.BadNothingToDo},
		{"TooMany", &ReadRequest{NodesToRead: []ReadValueID{id, id, id}}, status.BadTooManyOperations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.RequestHandle = 42
			resp := server.Read(tt.req)
			if resp.ServiceResult != tt.want {
				t.Errorf("ServiceResult = %s, want %s", resp.ServiceResult, tt.want)
			}
			if resp.RequestHandle != 42 {
				t.Errorf("RequestHandle = %d, want 42", resp.RequestHandle)
			}
			if resp.Results != nil {
				t.Errorf("Results = %v, want nil", resp.Results)
			}
		})
	}
}

func TestServerWrite(t *testing.T) {
	server, _ := createTestServer(t, DefaultConfig())

	resp := server.Write(&WriteRequest{
		RequestHandle: 7,
		NodesToWrite: []WriteValue{
			{NodeID: powerValue.NodeID, AttributeID: attribute.Value, Value: datavalue.New(variant.Double(3))},
			{NodeID: powerValue.NodeID, AttributeID: attribute.Value, Value: datavalue.New(variant.Int32(3))},
			{NodeID: "ns=2;s=Missing", AttributeID: attribute.Value, Value: datavalue.New(variant.Double(3))},
		},
	})

	want := []status.Code{status.Good, status.BadTypeMismatch, status.BadNodeIdUnknown}
	if len(resp.Results) != len(want) {
		t.Fatalf("got %d results, want %d", len(resp.Results), len(want))
	}
	for i := range want {
		if resp.Results[i] != want[i] {
			t.Errorf("Results[%d] = %s, want %s", i, resp.Results[i], want[i])
		}
	}

	dv := readOne(t, server, datavalue.TimestampsNeither, ReadValueID{NodeID: powerValue.NodeID, AttributeID: attribute.Value})
	if !variant.Equal(dv.Value, variant.Double(3)) {
		t.Errorf("value after write = %v, want 3", dv.Value)
	}

	if got := server.Write(&WriteRequest{}); got.ServiceResult != status.BadNothingToDo {
		t.Errorf("empty Write ServiceResult = %s, want BadNothingToDo", got.ServiceResult)
	}
}

func TestServerSubscribe(t *testing.T) {
	server, clock := createTestServer(t, DefaultConfig())

	var (
		mu            sync.Mutex
		notifications []subscription.Notification
	)
	server.SetNotificationHandler(func(n subscription.Notification) {
		mu.Lock()
		defer mu.Unlock()
		notifications = append(notifications, n)
	})

	id, err := server.Subscribe([]subscription.MonitoredItem{
		{ItemKey: powerValue, Trigger: subscription.TriggerStatusValue},
		{ItemKey: phaseValue, Trigger: subscription.TriggerStatusValue, IndexRange: numrange.MustParse("0")},
	}, datavalue.TimestampsBoth, 0, time.Minute)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	mu.Lock()
	if len(notifications) != 1 || !notifications[0].IsPriming {
		t.Fatalf("want one priming notification, got %+v", notifications)
	}
	priming := notifications[0].Values
	mu.Unlock()

	if want := variant.Int32Array(230); !variant.Equal(priming[phaseValue].Value, want) {
		t.Errorf("primed phases = %v, want %v", priming[phaseValue].Value, want)
	}

	clock.Advance(time.Second)
	server.Write(&WriteRequest{NodesToWrite: []WriteValue{
		{NodeID: powerValue.NodeID, AttributeID: attribute.Value, Value: datavalue.New(variant.Double(9))},
	}})
	server.Subscriptions().ProcessNotifications()

	mu.Lock()
	defer mu.Unlock()
	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifications))
	}
	change := notifications[1]
	if change.SubscriptionID != id {
		t.Errorf("SubscriptionID = %d, want %d", change.SubscriptionID, id)
	}
	dv := change.Values[powerValue]
	if dv == nil || !variant.Equal(dv.Value, variant.Double(9)) {
		t.Fatalf("notified value = %v, want 9", dv)
	}
	if want := testNow.Add(time.Second); dv.ServerTimestamp == nil || !dv.ServerTimestamp.Equal(want) {
		t.Errorf("server timestamp = %v, want %v", dv.ServerTimestamp, want)
	}

	if err := server.Unsubscribe(id); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
}

func TestServerHandleRequest(t *testing.T) {
	rec := &log.Recorder{}
	config := DefaultConfig()
	config.Tracer = rec
	server, _ := createTestServer(t, config)
	ctx := context.Background()

	t.Run("Read", func(t *testing.T) {
		req := &ReadRequest{
			RequestHandle:      5,
			TimestampsToReturn: datavalue.TimestampsSource,
			NodesToRead: []ReadValueID{
				{NodeID: powerValue.NodeID, AttributeID: attribute.Value},
				{NodeID: "ns=2;s=Missing", AttributeID: attribute.Value},
			},
		}
		out, err := server.HandleRequest(ctx, req.Marshal())
		if err != nil {
			t.Fatalf("HandleRequest() error = %v", err)
		}
		resp, err := UnmarshalReadResponse(out, datavalue.DefaultDecodeOptions())
		if err != nil {
			t.Fatalf("UnmarshalReadResponse() error = %v", err)
		}
		if resp.RequestHandle != 5 || len(resp.Results) != 2 {
			t.Fatalf("response = %+v", resp)
		}
		if !resp.Results[0].SourceTimestamp.Equal(testSource.Time) || resp.Results[0].SourcePicoseconds != 1230 {
			t.Errorf("source timestamp lost on the wire: %v", resp.Results[0])
		}
		if resp.Results[1].StatusCode != status.BadNodeIdUnknown {
			t.Errorf("Results[1] status = %s", resp.Results[1].StatusCode)
		}
	})

	t.Run("ReadUndefinedAttribute", func(t *testing.T) {
		req := &ReadRequest{
			RequestHandle:      7,
			TimestampsToReturn: datavalue.TimestampsBoth,
			NodesToRead: []ReadValueID{
				{NodeID: powerValue.NodeID, AttributeID: attribute.Invalid},
				{NodeID: powerValue.NodeID, AttributeID: attribute.ID(0xFFFFFFFF)},
			},
		}
		out, err := server.HandleRequest(ctx, req.Marshal())
		if err != nil {
			t.Fatalf("HandleRequest() error = %v", err)
		}
		resp, err := UnmarshalReadResponse(out, datavalue.DefaultDecodeOptions())
		if err != nil {
			t.Fatalf("UnmarshalReadResponse() error = %v", err)
		}
		for i, dv := range resp.Results {
			if dv.StatusCode != status.BadAttributeIdInvalid || dv.ServerTimestamp != nil {
				t.Errorf("Results[%d] = %v, want BadAttributeIdInvalid", i, dv)
			}
		}
	})

	t.Run("WriteTraced", func(t *testing.T) {
		req := &WriteRequest{RequestHandle: 6, NodesToWrite: []WriteValue{
			{NodeID: powerValue.NodeID, AttributeID: attribute.Value, Value: datavalue.New(variant.Double(1))},
		}}
		data, err := req.Marshal()
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		out, err := server.HandleRequest(ctx, data)
		if err != nil {
			t.Fatalf("HandleRequest() error = %v", err)
		}
		resp, err := UnmarshalWriteResponse(out)
		if err != nil {
			t.Fatalf("UnmarshalWriteResponse() error = %v", err)
		}
		if len(resp.Results) != 1 || resp.Results[0] != status.Good {
			t.Errorf("Results = %v", resp.Results)
		}
		if len(rec.Events) == 0 || rec.Events[0].Source != "WriteRequest" {
			t.Errorf("trace events = %v", rec.Events)
		}
	})

	t.Run("ReservedMaskBits", func(t *testing.T) {
		req := &WriteRequest{NodesToWrite: []WriteValue{
			{NodeID: powerValue.NodeID, AttributeID: attribute.Value, Value: datavalue.New(variant.Double(2))},
		}}
		data, _ := req.Marshal()
		// header, count, node id string, attribute id
		data[6+4+4+len(powerValue.NodeID)+4] |= 0x40

		_, err := server.HandleRequest(ctx, data)
		if !errors.Is(err, datavalue.ErrReservedBits) {
			t.Errorf("HandleRequest() error = %v, want ErrReservedBits", err)
		}

		lenient := DefaultConfig()
		lenient.Lenient = true
		s2, _ := createTestServer(t, lenient)
		if _, err := s2.HandleRequest(ctx, data); err != nil {
			t.Errorf("lenient HandleRequest() error = %v", err)
		}
	})

	t.Run("UnknownMessage", func(t *testing.T) {
		resp := (&WriteResponse{}).Marshal()
		if _, err := server.HandleRequest(ctx, resp); !errors.Is(err, ErrUnknownMessage) {
			t.Errorf("HandleRequest() error = %v, want ErrUnknownMessage", err)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		req := &ReadRequest{NodesToRead: []ReadValueID{{NodeID: powerValue.NodeID, AttributeID: attribute.Value}}}
		if _, err := server.HandleRequest(cctx, req.Marshal()); !errors.Is(err, context.Canceled) {
			t.Errorf("HandleRequest() error = %v, want context.Canceled", err)
		}
	})
}

func TestServerRun(t *testing.T) {
	server, _ := createTestServer(t, DefaultConfig())

	got := make(chan subscription.Notification, 4)
	server.SetNotificationHandler(func(n subscription.Notification) {
		if !n.IsPriming {
			got <- n
		}
	})
	if _, err := server.Subscribe([]subscription.MonitoredItem{{ItemKey: powerValue, Trigger: subscription.TriggerStatusValue}},
		datavalue.TimestampsNeither, 0, time.Minute); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Run(ctx, 5*time.Millisecond) }()

	server.Store().Write(powerValue, datavalue.New(variant.Double(12)))

	select {
	case n := <-got:
		if !variant.Equal(n.Values[powerValue].Value, variant.Double(12)) {
			t.Errorf("notified %v, want 12", n.Values[powerValue])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification from Run")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if server.Subscriptions().Count() != 0 {
		t.Error("subscriptions survived Run")
	}
}
