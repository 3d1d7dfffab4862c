package datavalue

import (
	"fmt"
	"strings"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
)

// TimestampsToReturn selects the timestamps a client asked for.
type TimestampsToReturn uint32

// TimestampsToReturn values, numbered as on the wire.
const (
	TimestampsSource  TimestampsToReturn = 0
	TimestampsServer  TimestampsToReturn = 1
	TimestampsBoth    TimestampsToReturn = 2
	TimestampsNeither TimestampsToReturn = 3
)

// String returns the disposition name.
func (t TimestampsToReturn) String() string {
	switch t {
	case TimestampsSource:
		return "Source"
	case TimestampsServer:
		return "Server"
	case TimestampsBoth:
		return "Both"
	case TimestampsNeither:
		return "Neither"
	default:
		return fmt.Sprintf("TimestampsToReturn(%d)", uint32(t))
	}
}

// IsValid returns true for the four defined dispositions.
func (t TimestampsToReturn) IsValid() bool {
	return t <= TimestampsNeither
}

// ParseTimestampsToReturn parses a disposition name, case-insensitively.
func ParseTimestampsToReturn(s string) (TimestampsToReturn, error) {
	switch strings.ToLower(s) {
	case "source":
		return TimestampsSource, nil
	case "server":
		return TimestampsServer, nil
	case "both":
		return TimestampsBoth, nil
	case "neither":
		return TimestampsNeither, nil
	default:
		return 0, fmt.Errorf("invalid timestamps to return: %q", s)
	}
}

// PreconditionError is the panic value for calls that violate an API
// precondition. It indicates a bug in the caller, not a data condition.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return "datavalue: " + e.Op + ": " + e.Reason
}

func precondition(op, format string, args ...any) {
	panic(&PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// ApplyTimestamps returns the copy of dv to report for attr under ttr, using
// the process-wide clock to synthesize a missing server timestamp.
//
// It panics with a *PreconditionError if dv is nil, attr is zero or ttr is
// not a defined disposition.
func ApplyTimestamps(dv *DataValue, ttr TimestampsToReturn, attr attribute.ID) *DataValue {
	return ApplyTimestampsWithClock(dv, ttr, attr, datetime.Default())
}

// ApplyTimestampsWithClock is ApplyTimestamps with an explicit clock.
//
// The result starts from the value and status of dv only. Source and Server
// copy the matching timestamp; Server and Both synthesize the server
// timestamp from clock when dv has none. For any attribute other than Value
// the source timestamp is removed.
func ApplyTimestampsWithClock(dv *DataValue, ttr TimestampsToReturn, attr attribute.ID, clock datetime.Clock) *DataValue {
	const op = "ApplyTimestamps"
	if dv == nil {
		precondition(op, "nil DataValue")
	}
	if attr == attribute.Invalid {
		precondition(op, "attribute id must be positive")
	}
	if !ttr.IsValid() {
		precondition(op, "unknown %s", ttr)
	}

	out := &DataValue{
		Value:      dv.Value.Clone(),
		StatusCode: dv.StatusCode,
	}

	if ttr == TimestampsSource || ttr == TimestampsBoth {
		out.SourceTimestamp = copyTime(dv.SourceTimestamp)
		out.SourcePicoseconds = dv.SourcePicoseconds
	}
	if ttr == TimestampsServer || ttr == TimestampsBoth {
		if dv.ServerTimestamp != nil {
			out.ServerTimestamp = copyTime(dv.ServerTimestamp)
			out.ServerPicoseconds = dv.ServerPicoseconds
		} else {
			out.SetServerTimestamp(clock.Now())
		}
	}

	if attr != attribute.Value {
		out.SourceTimestamp = nil
		out.SourcePicoseconds = 0
	}
	return out
}
