package interaction

import (
	"errors"
	"fmt"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/binary"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/status"
)

// MessageType identifies the body of a service message. The values are the
// DefaultBinary encoding ids of the OPC-UA service types.
type MessageType uint16

// Message types.
const (
	MessageReadRequest   MessageType = 631
	MessageReadResponse  MessageType = 634
	MessageWriteRequest  MessageType = 673
	MessageWriteResponse MessageType = 676
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageReadRequest:
		return "ReadRequest"
	case MessageReadResponse:
		return "ReadResponse"
	case MessageWriteRequest:
		return "WriteRequest"
	case MessageWriteResponse:
		return "WriteResponse"
	default:
		return fmt.Sprintf("MessageType(%d)", uint16(t))
	}
}

// MaxOperations bounds the array lengths accepted when decoding a message.
const MaxOperations = 10000

// Message errors.
var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrTooManyItems   = errors.New("too many operations")
)

// ReadValueID names one attribute to read.
type ReadValueID struct {
	NodeID      string
	AttributeID attribute.ID

	// IndexRange is the text form of a numeric range; empty reads the
	// whole value.
	IndexRange string
}

// ReadRequest asks for the current values of attributes.
type ReadRequest struct {
	RequestHandle uint32

	// MaxAge is the maximum age of cached values in milliseconds. The store
	// always holds current values, so only negative values are rejected.
	MaxAge float64

	TimestampsToReturn datavalue.TimestampsToReturn
	NodesToRead        []ReadValueID
}

// ReadResponse carries one result per requested attribute, in request order.
type ReadResponse struct {
	RequestHandle uint32
	ServiceResult status.Code
	Results       []*datavalue.DataValue
}

// WriteValue assigns a new value to one attribute.
type WriteValue struct {
	NodeID      string
	AttributeID attribute.ID
	Value       *datavalue.DataValue
}

// WriteRequest asks to update attribute values.
type WriteRequest struct {
	RequestHandle uint32
	NodesToWrite  []WriteValue
}

// WriteResponse carries one status per written attribute, in request order.
type WriteResponse struct {
	RequestHandle uint32
	ServiceResult status.Code
	Results       []status.Code
}

// writeHeader writes the type and handle that prefix every message.
func writeHeader(w *binary.Writer, t MessageType, handle uint32) {
	w.WriteUint16(uint16(t))
	w.WriteUint32(handle)
}

// ReadHeader returns the message type and request handle of an encoded
// message without decoding the body.
func ReadHeader(data []byte) (MessageType, uint32, error) {
	return readHeader(binary.NewReader(data))
}

func readHeader(r *binary.Reader) (MessageType, uint32, error) {
	t, err := r.ReadUint16()
	if err != nil {
		return 0, 0, fmt.Errorf("read message type: %w", err)
	}
	h, err := r.ReadUint32()
	if err != nil {
		return 0, 0, fmt.Errorf("read request handle: %w", err)
	}
	return MessageType(t), h, nil
}

func readCount(r *binary.Reader, what string) (int, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return 0, fmt.Errorf("read %s count: %w", what, err)
	}
	if n == -1 {
		return 0, nil
	}
	if n < -1 {
		return 0, fmt.Errorf("%s count %d: %w", what, n, binary.ErrInvalidLength)
	}
	if n > MaxOperations {
		return 0, fmt.Errorf("%s count %d: %w", what, n, ErrTooManyItems)
	}
	return int(n), nil
}

// openBody checks the header and returns a reader positioned at the body.
func openBody(data []byte, want MessageType) (*binary.Reader, uint32, error) {
	r := binary.NewReader(data)
	t, handle, err := readHeader(r)
	if err != nil {
		return nil, 0, err
	}
	if t != want {
		return nil, 0, fmt.Errorf("%w: got %s, want %s", ErrUnknownMessage, t, want)
	}
	return r, handle, nil
}

func closeBody(r *binary.Reader, t MessageType) error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%s: %d trailing bytes", t, r.Remaining())
	}
	return nil
}

// Marshal encodes the request.
func (req *ReadRequest) Marshal() []byte {
	w := binary.NewWriter(64)
	writeHeader(w, MessageReadRequest, req.RequestHandle)
	w.WriteFloat64(req.MaxAge)
	w.WriteUint32(uint32(req.TimestampsToReturn))
	w.WriteInt32(int32(len(req.NodesToRead)))
	for _, id := range req.NodesToRead {
		w.WriteString(id.NodeID)
		w.WriteUint32(uint32(id.AttributeID))
		w.WriteString(id.IndexRange)
	}
	return w.Bytes()
}

// UnmarshalReadRequest decodes a request written by ReadRequest.Marshal.
func UnmarshalReadRequest(data []byte) (*ReadRequest, error) {
	r, handle, err := openBody(data, MessageReadRequest)
	if err != nil {
		return nil, err
	}
	req := &ReadRequest{RequestHandle: handle}
	if req.MaxAge, err = r.ReadFloat64(); err != nil {
		return nil, fmt.Errorf("read maxAge: %w", err)
	}
	ttr, err := r.ReadUint32()
	if err != nil {
		return nil, fmt.Errorf("read timestampsToReturn: %w", err)
	}
	req.TimestampsToReturn = datavalue.TimestampsToReturn(ttr)

	n, err := readCount(r, "nodesToRead")
	if err != nil {
		return nil, err
	}
	req.NodesToRead = make([]ReadValueID, n)
	for i := range req.NodesToRead {
		id := &req.NodesToRead[i]
		if id.NodeID, err = r.ReadString(); err != nil {
			return nil, fmt.Errorf("read nodesToRead[%d]: %w", i, err)
		}
		a, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("read nodesToRead[%d]: %w", i, err)
		}
		id.AttributeID = attribute.ID(a)
		if id.IndexRange, err = r.ReadString(); err != nil {
			return nil, fmt.Errorf("read nodesToRead[%d]: %w", i, err)
		}
	}
	return req, closeBody(r, MessageReadRequest)
}

// Marshal encodes the response.
func (resp *ReadResponse) Marshal() ([]byte, error) {
	w := binary.NewWriter(64)
	writeHeader(w, MessageReadResponse, resp.RequestHandle)
	resp.ServiceResult.Encode(w)
	if resp.Results == nil {
		w.WriteInt32(-1)
	} else {
		w.WriteInt32(int32(len(resp.Results)))
	}
	for i, dv := range resp.Results {
		if err := dv.Encode(w); err != nil {
			return nil, fmt.Errorf("encode results[%d]: %w", i, err)
		}
	}
	// No diagnostic infos.
	w.WriteInt32(-1)
	return w.Bytes(), nil
}

// UnmarshalReadResponse decodes a response written by ReadResponse.Marshal.
func UnmarshalReadResponse(data []byte, opts datavalue.DecodeOptions) (*ReadResponse, error) {
	r, handle, err := openBody(data, MessageReadResponse)
	if err != nil {
		return nil, err
	}
	resp := &ReadResponse{RequestHandle: handle}
	if resp.ServiceResult, err = status.Decode(r); err != nil {
		return nil, fmt.Errorf("read serviceResult: %w", err)
	}
	n, err := readCount(r, "results")
	if err != nil {
		return nil, err
	}
	if n > 0 {
		resp.Results = make([]*datavalue.DataValue, n)
	}
	for i := range resp.Results {
		if resp.Results[i], err = datavalue.DecodeWithOptions(r, opts); err != nil {
			return nil, fmt.Errorf("read results[%d]: %w", i, err)
		}
	}
	if _, err := readCount(r, "diagnosticInfos"); err != nil {
		return nil, err
	}
	return resp, closeBody(r, MessageReadResponse)
}

// Marshal encodes the request.
func (req *WriteRequest) Marshal() ([]byte, error) {
	w := binary.NewWriter(64)
	writeHeader(w, MessageWriteRequest, req.RequestHandle)
	w.WriteInt32(int32(len(req.NodesToWrite)))
	for i, wv := range req.NodesToWrite {
		w.WriteString(wv.NodeID)
		w.WriteUint32(uint32(wv.AttributeID))
		if err := wv.Value.Encode(w); err != nil {
			return nil, fmt.Errorf("encode nodesToWrite[%d]: %w", i, err)
		}
	}
	return w.Bytes(), nil
}

// UnmarshalWriteRequest decodes a request written by WriteRequest.Marshal.
func UnmarshalWriteRequest(data []byte, opts datavalue.DecodeOptions) (*WriteRequest, error) {
	r, handle, err := openBody(data, MessageWriteRequest)
	if err != nil {
		return nil, err
	}
	req := &WriteRequest{RequestHandle: handle}
	n, err := readCount(r, "nodesToWrite")
	if err != nil {
		return nil, err
	}
	req.NodesToWrite = make([]WriteValue, n)
	for i := range req.NodesToWrite {
		wv := &req.NodesToWrite[i]
		if wv.NodeID, err = r.ReadString(); err != nil {
			return nil, fmt.Errorf("read nodesToWrite[%d]: %w", i, err)
		}
		a, err := r.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("read nodesToWrite[%d]: %w", i, err)
		}
		wv.AttributeID = attribute.ID(a)
		if wv.Value, err = datavalue.DecodeWithOptions(r, opts); err != nil {
			return nil, fmt.Errorf("read nodesToWrite[%d]: %w", i, err)
		}
	}
	return req, closeBody(r, MessageWriteRequest)
}

// Marshal encodes the response.
func (resp *WriteResponse) Marshal() []byte {
	w := binary.NewWriter(32)
	writeHeader(w, MessageWriteResponse, resp.RequestHandle)
	resp.ServiceResult.Encode(w)
	if resp.Results == nil {
		w.WriteInt32(-1)
	} else {
		w.WriteInt32(int32(len(resp.Results)))
	}
	for _, c := range resp.Results {
		c.Encode(w)
	}
	w.WriteInt32(-1)
	return w.Bytes()
}

// UnmarshalWriteResponse decodes a response written by WriteResponse.Marshal.
func UnmarshalWriteResponse(data []byte) (*WriteResponse, error) {
	r, handle, err := openBody(data, MessageWriteResponse)
	if err != nil {
		return nil, err
	}
	resp := &WriteResponse{RequestHandle: handle}
	if resp.ServiceResult, err = status.Decode(r); err != nil {
		return nil, fmt.Errorf("read serviceResult: %w", err)
	}
	n, err := readCount(r, "results")
	if err != nil {
		return nil, err
	}
	if n > 0 {
		resp.Results = make([]status.Code, n)
	}
	for i := range resp.Results {
		if resp.Results[i], err = status.Decode(r); err != nil {
			return nil, fmt.Errorf("read results[%d]: %w", i, err)
		}
	}
	if _, err := readCount(r, "diagnosticInfos"); err != nil {
		return nil, err
	}
	return resp, closeBody(r, MessageWriteResponse)
}
