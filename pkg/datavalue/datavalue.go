package datavalue

import (
	"fmt"
	"strings"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// MaxPicoseconds is the largest picosecond count below one tick that the
// encoding can carry.
const MaxPicoseconds = datetime.PicosecondsPerTick - 10

// DataValue is a single observation of one node attribute.
type DataValue struct {
	// Value is the payload. nil means absent, which is distinct from a
	// present variant of type Null.
	Value *variant.Variant

	// StatusCode is the quality of the value. The zero value is Good.
	StatusCode status.Code

	// SourceTimestamp is when the value was acquired at its origin.
	SourceTimestamp *time.Time

	// SourcePicoseconds adds precision below the SourceTimestamp tick.
	SourcePicoseconds uint32

	// ServerTimestamp is when the server read or served the value.
	ServerTimestamp *time.Time

	// ServerPicoseconds adds precision below the ServerTimestamp tick.
	ServerPicoseconds uint32
}

// New creates a DataValue carrying v with status Good and no timestamps.
func New(v *variant.Variant) *DataValue {
	return &DataValue{Value: v, StatusCode: status.Good}
}

// NewBad creates a DataValue without a value, reporting code.
func NewBad(code status.Code) *DataValue {
	return &DataValue{StatusCode: code}
}

// IsValid reports whether the DataValue is consistent: a present value must
// itself be valid, and an absent value must not be reported Good.
func (dv *DataValue) IsValid() bool {
	if dv == nil {
		return false
	}
	if dv.Value != nil {
		return dv.Value.IsValid()
	}
	return dv.StatusCode != status.Good
}

// Clone returns a deep copy.
func (dv *DataValue) Clone() *DataValue {
	if dv == nil {
		return nil
	}
	return &DataValue{
		Value:             dv.Value.Clone(),
		StatusCode:        dv.StatusCode,
		SourceTimestamp:   copyTime(dv.SourceTimestamp),
		SourcePicoseconds: dv.SourcePicoseconds,
		ServerTimestamp:   copyTime(dv.ServerTimestamp),
		ServerPicoseconds: dv.ServerPicoseconds,
	}
}

// SetSourceTimestamp sets the source timestamp from ts.
func (dv *DataValue) SetSourceTimestamp(ts datetime.Timestamp) {
	t := ts.Time
	dv.SourceTimestamp = &t
	dv.SourcePicoseconds = ts.Picoseconds
}

// SetServerTimestamp sets the server timestamp from ts.
func (dv *DataValue) SetServerTimestamp(ts datetime.Timestamp) {
	t := ts.Time
	dv.ServerTimestamp = &t
	dv.ServerPicoseconds = ts.Picoseconds
}

// String renders the multi-line diagnostic form.
func (dv *DataValue) String() string {
	if dv == nil {
		return "DataValue: <nil>"
	}
	var sb strings.Builder
	sb.WriteString("DataValue:")
	fmt.Fprintf(&sb, "\n   value:           %s", dv.Value)
	fmt.Fprintf(&sb, "\n   statusCode:      %s", dv.StatusCode)
	fmt.Fprintf(&sb, "\n   serverTimestamp: %s", formatTimestamp(dv.ServerTimestamp, dv.ServerPicoseconds))
	fmt.Fprintf(&sb, "\n   sourceTimestamp: %s", formatTimestamp(dv.SourceTimestamp, dv.SourcePicoseconds))
	return sb.String()
}

// tickLayout shows the full 100 ns resolution of a DateTime.
const tickLayout = "2006-01-02T15:04:05.0000000Z07:00"

func formatTimestamp(t *time.Time, ps uint32) string {
	if t == nil {
		return "null"
	}
	return t.UTC().Format(tickLayout) + " $ " + microNanoPico(ps)
}

// microNanoPico splits a picosecond count into zero-padded
// micro.nano.pico groups.
func microNanoPico(ps uint32) string {
	return fmt.Sprintf("%03d.%03d.%03d", ps/1000000%1000, ps%1000000/1000, ps%1000)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
