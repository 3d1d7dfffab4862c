package log

import (
	"fmt"
	"sync"
	"time"
)

// Event records one step of a tracing decode.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Source labels the input being decoded (file name, message number).
	Source string `cbor:"2,keyasint,omitempty"`

	// Kind classifies the event.
	Kind Kind `cbor:"3,keyasint"`

	// Field is the decoded member name (e.g. "sourceTimestamp").
	Field string `cbor:"4,keyasint,omitempty"`

	// Start is the byte offset where the field begins.
	Start int `cbor:"5,keyasint"`

	// End is the byte offset just past the field.
	End int `cbor:"6,keyasint"`

	// WireType is the encoding of the field (e.g. "DateTime", "UInt16").
	WireType string `cbor:"7,keyasint,omitempty"`

	// Value is the rendered decoded value.
	Value string `cbor:"8,keyasint,omitempty"`

	// Raw holds the bytes of the field (may be truncated for large fields).
	Raw []byte `cbor:"9,keyasint,omitempty"`

	// Truncated indicates if Raw was truncated.
	Truncated bool `cbor:"10,keyasint,omitempty"`

	// Bits lists the names of the set bits of an encoding byte.
	Bits []string `cbor:"11,keyasint,omitempty"`

	// Error is the failure message for KindError events.
	Error string `cbor:"12,keyasint,omitempty"`
}

// MaxRawSize is the maximum field size copied into Raw.
// Larger fields are truncated to avoid excessive memory usage.
const MaxRawSize = 256

// Size returns the number of bytes the event covers.
func (e Event) Size() int {
	return e.End - e.Start
}

// String returns a one-line human readable rendering.
func (e Event) String() string {
	switch e.Kind {
	case KindEncodingByte:
		return fmt.Sprintf("[%4d..%4d] %-18s %-10s %s %v", e.Start, e.End, e.Field, e.WireType, e.Value, e.Bits)
	case KindError:
		return fmt.Sprintf("[%4d..%4d] %-18s ERROR %s", e.Start, e.End, e.Field, e.Error)
	default:
		return fmt.Sprintf("[%4d..%4d] %-18s %-10s %s", e.Start, e.End, e.Field, e.WireType, e.Value)
	}
}

// Kind classifies trace events.
type Kind uint8

const (
	// KindMember indicates a decoded field.
	KindMember Kind = 0
	// KindEncodingByte indicates a presence mask.
	KindEncodingByte Kind = 1
	// KindError indicates a decode failure.
	KindError Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindMember:
		return "MEMBER"
	case KindEncodingByte:
		return "ENCODING_BYTE"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseKind parses a kind name as used on the command line.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "member", "MEMBER":
		return KindMember, nil
	case "encoding", "encoding_byte", "ENCODING_BYTE":
		return KindEncodingByte, nil
	case "error", "ERROR":
		return KindError, nil
	default:
		return 0, fmt.Errorf("unknown event kind: %q", s)
	}
}

// Recorder is a Logger that keeps events in memory.
// Read Events only after decoding has finished.
type Recorder struct {
	mu     sync.Mutex
	Events []Event
}

// Log appends the event.
func (r *Recorder) Log(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
}

// Fields returns the Field of every recorded event, in order.
func (r *Recorder) Fields() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Field
	}
	return out
}

// Compile-time interface satisfaction check.
var _ Logger = (*Recorder)(nil)
