package interaction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/status"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// RequestSender is the interface for sending requests over a connection.
type RequestSender interface {
	// Send transmits an encoded request. The response arrives through
	// Client.HandleResponse.
	Send(data []byte) error
}

// Client issues Read and Write requests and matches responses to them by
// request handle.
type Client struct {
	mu sync.RWMutex

	sender  RequestSender
	timeout time.Duration
	decode  datavalue.DecodeOptions

	nextHandle uint32

	// Pending requests awaiting responses
	pending   map[uint32]chan []byte
	pendingMu sync.Mutex

	// done is closed by Close. Response channels are never closed, so a
	// late HandleResponse cannot send on a closed channel.
	done   chan struct{}
	closed bool
}

// NewClient creates a new interaction client.
func NewClient(sender RequestSender) *Client {
	return &Client{
		sender:  sender,
		timeout: 30 * time.Second,
		decode:  datavalue.DefaultDecodeOptions(),
		pending: make(map[uint32]chan []byte),
		done:    make(chan struct{}),
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetDecodeOptions sets the options used to decode values in responses.
func (c *Client) SetDecodeOptions(opts datavalue.DecodeOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decode = opts
}

// Close closes the client and fails all pending requests.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	c.pendingMu.Lock()
	c.pending = make(map[uint32]chan []byte)
	c.pendingMu.Unlock()

	return nil
}

func (c *Client) nextRequestHandle() uint32 {
	return atomic.AddUint32(&c.nextHandle, 1)
}

// roundTrip sends an encoded request and waits for the matching response.
func (c *Client) roundTrip(ctx context.Context, handle uint32, data []byte) ([]byte, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	timeout := c.timeout
	c.mu.RUnlock()

	respCh := make(chan []byte, 1)

	c.pendingMu.Lock()
	c.pending[handle] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, handle)
		c.pendingMu.Unlock()
	}()

	if err := c.sender.Send(data); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, ErrRequestTimeout
	case <-c.done:
		return nil, ErrClientClosed
	case resp := <-respCh:
		return resp, nil
	}
}

// HandleResponse should be called when an encoded response is received.
func (c *Client) HandleResponse(data []byte) error {
	_, handle, err := ReadHeader(data)
	if err != nil {
		return err
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	ch, exists := c.pending[handle]
	if !exists {
		return fmt.Errorf("%w: handle %d", ErrUnexpectedReply, handle)
	}

	select {
	case ch <- data:
	default:
		// Duplicate response; the first one is already buffered.
	}
	return nil
}

// Read reads attribute values. The results are in the order of nodes.
func (c *Client) Read(ctx context.Context, ttr datavalue.TimestampsToReturn, nodes ...ReadValueID) ([]*datavalue.DataValue, error) {
	req := &ReadRequest{
		RequestHandle:      c.nextRequestHandle(),
		TimestampsToReturn: ttr,
		NodesToRead:        nodes,
	}

	data, err := c.roundTrip(ctx, req.RequestHandle, req.Marshal())
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	opts := c.decode
	c.mu.RUnlock()

	resp, err := UnmarshalReadResponse(data, opts)
	if err != nil {
		return nil, err
	}
	if resp.ServiceResult != status.Good {
		return nil, &StatusError{Status: resp.ServiceResult, Operation: "Read"}
	}
	if len(resp.Results) != len(nodes) {
		return nil, fmt.Errorf("%w: %d results for %d nodes", ErrUnexpectedReply, len(resp.Results), len(nodes))
	}
	return resp.Results, nil
}

// Write writes attribute values and returns one status per value.
func (c *Client) Write(ctx context.Context, values ...WriteValue) ([]status.Code, error) {
	req := &WriteRequest{
		RequestHandle: c.nextRequestHandle(),
		NodesToWrite:  values,
	}
	out, err := req.Marshal()
	if err != nil {
		return nil, err
	}

	data, err := c.roundTrip(ctx, req.RequestHandle, out)
	if err != nil {
		return nil, err
	}

	resp, err := UnmarshalWriteResponse(data)
	if err != nil {
		return nil, err
	}
	if resp.ServiceResult != status.Good {
		return nil, &StatusError{Status: resp.ServiceResult, Operation: "Write"}
	}
	if len(resp.Results) != len(values) {
		return nil, fmt.Errorf("%w: %d results for %d values", ErrUnexpectedReply, len(resp.Results), len(values))
	}
	return resp.Results, nil
}

// StatusError represents a request rejected by the server as a whole.
type StatusError struct {
	Status    status.Code
	Operation string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Status)
}
