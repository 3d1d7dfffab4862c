package datavalue

import (
	"time"

	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// ChangeDetector decides whether two samples of an attribute are the same
// observation. The zero value is ready to use.
type ChangeDetector struct {
	// VerifyPayload disables the source timestamp shortcut of SameValue, so
	// payloads are always compared. Set it when source clocks at an origin
	// may go backwards or repeat a timestamp for a new value.
	VerifyPayload bool
}

// SourceTimestampChanged reports whether the source timestamp or its
// picoseconds differ. Two absent timestamps are equal.
func SourceTimestampChanged(a, b *DataValue) bool {
	return !sameTime(a.SourceTimestamp, b.SourceTimestamp) || a.SourcePicoseconds != b.SourcePicoseconds
}

// ServerTimestampChanged reports whether the server timestamp or its
// picoseconds differ. Two absent timestamps are equal.
func ServerTimestampChanged(a, b *DataValue) bool {
	return !sameTime(a.ServerTimestamp, b.ServerTimestamp) || a.ServerPicoseconds != b.ServerPicoseconds
}

// TimestampChanged reports whether a timestamp selected by ttr differs.
// Without ttr both timestamps are considered.
//
// It panics with a *PreconditionError for an undefined disposition.
func TimestampChanged(a, b *DataValue, ttr ...TimestampsToReturn) bool {
	switch disposition(ttr) {
	case TimestampsNeither:
		return false
	case TimestampsSource:
		return SourceTimestampChanged(a, b)
	case TimestampsServer:
		return ServerTimestampChanged(a, b)
	default:
		return SourceTimestampChanged(a, b) || ServerTimestampChanged(a, b)
	}
}

// SameValue reports whether a and b are the same observation, using the
// zero ChangeDetector.
func SameValue(a, b *DataValue, ttr ...TimestampsToReturn) bool {
	return ChangeDetector{}.SameValue(a, b, ttr...)
}

// SameValue reports whether a and b are the same observation.
//
// Samples with different status codes differ. When both carry the same
// source timestamp and picoseconds they are the same observation and the
// payloads are not compared, unless VerifyPayload is set. Otherwise a change
// of a timestamp selected by ttr (both when omitted) makes them differ, and
// finally the payloads are compared element by element.
func (c ChangeDetector) SameValue(a, b *DataValue, ttr ...TimestampsToReturn) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.StatusCode != b.StatusCode {
		return false
	}
	if !c.VerifyPayload && a.SourceTimestamp != nil && b.SourceTimestamp != nil && !SourceTimestampChanged(a, b) {
		return true
	}
	if TimestampChanged(a, b, ttr...) {
		return false
	}
	return variant.Equal(a.Value, b.Value)
}

func disposition(ttr []TimestampsToReturn) TimestampsToReturn {
	if len(ttr) == 0 {
		return TimestampsBoth
	}
	if !ttr[0].IsValid() {
		precondition("TimestampChanged", "unknown %s", ttr[0])
	}
	return ttr[0]
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
