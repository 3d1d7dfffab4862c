package datavalue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/binary"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/log"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// EncodingMask is the presence byte that starts an encoded DataValue.
type EncodingMask uint8

// Encoding mask bits, in wire order.
const (
	MaskValue             EncodingMask = 0x01
	MaskStatusCode        EncodingMask = 0x02
	MaskSourceTimestamp   EncodingMask = 0x04
	MaskSourcePicoseconds EncodingMask = 0x08
	MaskServerTimestamp   EncodingMask = 0x10
	MaskServerPicoseconds EncodingMask = 0x20

	// MaskReserved covers the bits that must be zero.
	MaskReserved EncodingMask = 0xC0
)

var maskNames = [...]string{
	"value", "statusCode", "sourceTimestamp", "sourcePicoseconds",
	"serverTimestamp", "serverPicoseconds", "reserved6", "reserved7",
}

// Has reports whether every bit of bits is set.
func (m EncodingMask) Has(bits EncodingMask) bool {
	return m&bits == bits
}

// Names returns the names of the set bits in wire order.
func (m EncodingMask) Names() []string {
	var names []string
	for i, name := range maskNames {
		if m&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	return names
}

// String returns the hex value followed by the set bit names.
func (m EncodingMask) String() string {
	return fmt.Sprintf("0x%02X[%s]", uint8(m), strings.Join(m.Names(), "|"))
}

// Codec errors.
var (
	// ErrReservedBits indicates a mask with bit 6 or 7 set in strict mode.
	ErrReservedBits = errors.New("reserved encoding mask bits set")

	// ErrPicosecondsRange indicates a picoseconds field of 100000 ps or more
	// in strict mode.
	ErrPicosecondsRange = errors.New("picoseconds out of range")

	// ErrTrailingBytes indicates input left over after a complete DataValue.
	ErrTrailingBytes = errors.New("trailing bytes after DataValue")
)

// DecodeError reports a malformed DataValue. It wraps the cause, so
// errors.Is(err, binary.ErrUnexpectedEndOfStream) holds for truncated input.
type DecodeError struct {
	// Field is the member being decoded ("encodingMask", "value", ...).
	Field string

	// Offset is the byte offset where the field starts.
	Offset int

	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode DataValue %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeOptions controls decoding.
type DecodeOptions struct {
	// Strict rejects reserved mask bits and out-of-range picoseconds.
	// When false, reserved bits are ignored.
	Strict bool

	// Tracer receives one event per decoded field. nil disables tracing.
	Tracer log.Logger

	// Source labels trace events, e.g. with the input file name.
	Source string
}

// DefaultDecodeOptions returns strict decoding without tracing.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{Strict: true}
}

// EncodingMask computes the presence mask for dv.
func (dv *DataValue) EncodingMask() EncodingMask {
	var m EncodingMask
	if dv.Value != nil && dv.Value.Type != variant.TypeNull {
		m |= MaskValue
	}
	if dv.StatusCode != status.Good {
		m |= MaskStatusCode
	}
	if dv.SourceTimestamp != nil {
		m |= MaskSourceTimestamp
	}
	if dv.SourcePicoseconds%datetime.PicosecondsPerTick != 0 {
		m |= MaskSourcePicoseconds
	}
	if dv.ServerTimestamp != nil {
		m |= MaskServerTimestamp
	}
	if dv.ServerPicoseconds%datetime.PicosecondsPerTick != 0 {
		m |= MaskServerPicoseconds
	}
	return m
}

// Encode writes dv to w. Only fields announced by the mask are written.
func (dv *DataValue) Encode(w *binary.Writer) error {
	m := dv.EncodingMask()
	w.WriteUint8(uint8(m))

	if m.Has(MaskValue) {
		if err := dv.Value.Encode(w); err != nil {
			return fmt.Errorf("encode DataValue value: %w", err)
		}
	}
	if m.Has(MaskStatusCode) {
		dv.StatusCode.Encode(w)
	}
	if m.Has(MaskSourceTimestamp) {
		datetime.EncodeHighAccuracy(w, *dv.SourceTimestamp, dv.SourcePicoseconds)
	}
	if m.Has(MaskSourcePicoseconds) {
		w.WriteUint16(tenPicoUnits(dv.SourcePicoseconds))
	}
	if m.Has(MaskServerTimestamp) {
		datetime.EncodeHighAccuracy(w, *dv.ServerTimestamp, dv.ServerPicoseconds)
	}
	if m.Has(MaskServerPicoseconds) {
		w.WriteUint16(tenPicoUnits(dv.ServerPicoseconds))
	}
	return nil
}

// tenPicoUnits returns the sub-tick remainder of ps in 10 ps units.
func tenPicoUnits(ps uint32) uint16 {
	return uint16(ps % datetime.PicosecondsPerTick / 10)
}

// Marshal encodes dv into a new byte slice.
func Marshal(dv *DataValue) ([]byte, error) {
	w := binary.NewWriter(32)
	if err := dv.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal strictly decodes a DataValue that spans all of data.
func Unmarshal(data []byte) (*DataValue, error) {
	return UnmarshalWithOptions(data, DefaultDecodeOptions())
}

// UnmarshalWithOptions decodes a DataValue that spans all of data.
func UnmarshalWithOptions(data []byte, opts DecodeOptions) (*DataValue, error) {
	r := binary.NewReader(data)
	dv, err := DecodeWithOptions(r, opts)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, &DecodeError{
			Field:  "end",
			Offset: r.Offset(),
			Err:    fmt.Errorf("%d bytes: %w", r.Remaining(), ErrTrailingBytes),
		}
	}
	return dv, nil
}

// Decode strictly reads one DataValue from r.
func Decode(r *binary.Reader) (*DataValue, error) {
	return DecodeWithOptions(r, DefaultDecodeOptions())
}

// DecodeWithOptions reads one DataValue from r.
func DecodeWithOptions(r *binary.Reader, opts DecodeOptions) (*DataValue, error) {
	dv := &DataValue{}
	if err := dv.DecodeFrom(r, opts); err != nil {
		return nil, err
	}
	return dv, nil
}

// DecodeFrom fills dv from r, discarding its previous contents. It is the
// only in-place operation of this package: dv must not be shared with other
// goroutines until DecodeFrom returns. On error dv is left partially filled.
func (dv *DataValue) DecodeFrom(r *binary.Reader, opts DecodeOptions) error {
	*dv = DataValue{StatusCode: status.Good}
	d := decoder{r: r, opts: opts}

	start := r.Offset()
	b, err := r.ReadUint8()
	if err != nil {
		return d.fail("encodingMask", start, err)
	}
	m := EncodingMask(b)
	d.traceMask(m, start)
	if opts.Strict && m&MaskReserved != 0 {
		return d.fail("encodingMask", start, fmt.Errorf("mask 0x%02X: %w", b, ErrReservedBits))
	}

	if m.Has(MaskValue) {
		start = r.Offset()
		v, err := variant.Decode(r)
		if err != nil {
			return d.fail("value", start, err)
		}
		dv.Value = v
		d.trace("value", "Variant", start, v.String())
	}
	if m.Has(MaskStatusCode) {
		start = r.Offset()
		c, err := status.Decode(r)
		if err != nil {
			return d.fail("statusCode", start, err)
		}
		dv.StatusCode = c
		d.trace("statusCode", "StatusCode", start, c.String())
	}
	if m.Has(MaskSourceTimestamp) {
		if dv.SourceTimestamp, err = d.timestamp("sourceTimestamp"); err != nil {
			return err
		}
	}
	if m.Has(MaskSourcePicoseconds) {
		if err := d.picoseconds("sourcePicoseconds", &dv.SourcePicoseconds); err != nil {
			return err
		}
	}
	if m.Has(MaskServerTimestamp) {
		if dv.ServerTimestamp, err = d.timestamp("serverTimestamp"); err != nil {
			return err
		}
	}
	if m.Has(MaskServerPicoseconds) {
		if err := d.picoseconds("serverPicoseconds", &dv.ServerPicoseconds); err != nil {
			return err
		}
	}
	return nil
}

// decoder carries the reader and the optional trace hook through one
// DataValue. Tracing shares the decode path; with a nil Tracer the trace
// calls return immediately.
type decoder struct {
	r    *binary.Reader
	opts DecodeOptions
}

func (d *decoder) timestamp(field string) (*time.Time, error) {
	start := d.r.Offset()
	t, err := datetime.DecodeHighAccuracy(d.r)
	if err != nil {
		return nil, d.fail(field, start, err)
	}
	d.trace(field, "DateTime", start, t.Format(tickLayout))
	return &t, nil
}

// picoseconds adds the decoded 10 ps units to *ps. The sum keeps any
// precision already attributed to the field.
func (d *decoder) picoseconds(field string, ps *uint32) error {
	start := d.r.Offset()
	units, err := d.r.ReadUint16()
	if err != nil {
		return d.fail(field, start, err)
	}
	if d.opts.Strict && uint32(units)*10 > MaxPicoseconds {
		return d.fail(field, start, fmt.Errorf("%d units: %w", units, ErrPicosecondsRange))
	}
	*ps += uint32(units) * 10
	d.trace(field, "UInt16", start, strconv.FormatUint(uint64(*ps), 10))
	return nil
}

func (d *decoder) fail(field string, start int, err error) error {
	if d.opts.Tracer != nil {
		d.opts.Tracer.Log(log.Event{
			Timestamp: time.Now(),
			Source:    d.opts.Source,
			Kind:      log.KindError,
			Field:     field,
			Start:     start,
			End:       d.r.Offset(),
			Error:     err.Error(),
		})
	}
	return &DecodeError{Field: field, Offset: start, Err: err}
}

func (d *decoder) trace(field, wireType string, start int, value string) {
	if d.opts.Tracer == nil {
		return
	}
	event := d.event(field, start)
	event.Kind = log.KindMember
	event.WireType = wireType
	event.Value = value
	d.opts.Tracer.Log(event)
}

func (d *decoder) traceMask(m EncodingMask, start int) {
	if d.opts.Tracer == nil {
		return
	}
	event := d.event("encodingMask", start)
	event.Kind = log.KindEncodingByte
	event.WireType = "Byte"
	event.Value = fmt.Sprintf("0x%02X", uint8(m))
	event.Bits = m.Names()
	d.opts.Tracer.Log(event)
}

func (d *decoder) event(field string, start int) log.Event {
	end := d.r.Offset()
	raw := d.r.Slice(start, end)
	truncated := len(raw) > log.MaxRawSize
	if truncated {
		raw = raw[:log.MaxRawSize]
	}
	return log.Event{
		Timestamp: time.Now(),
		Source:    d.opts.Source,
		Field:     field,
		Start:     start,
		End:       end,
		Raw:       append([]byte(nil), raw...),
		Truncated: truncated,
	}
}
