package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Stream errors.
var (
	// ErrUnexpectedEndOfStream indicates a read ran past the end of the input.
	ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")

	// ErrInvalidLength indicates a negative or oversized length prefix.
	ErrInvalidLength = errors.New("invalid length prefix")
)

// MaxByteStringLength bounds the length prefix accepted for strings and byte
// strings. Larger prefixes are rejected before any allocation happens.
const MaxByteStringLength = 16 * 1024 * 1024

// GuidSize is the encoded size of a Guid.
const GuidSize = 16

// Writer appends little-endian primitives to an in-memory buffer.
// The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset discards all written bytes, keeping the allocated capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteUint8 writes a single byte.
func (w *Writer) WriteUint8(v uint8) { w.buf = append(w.buf, v) }

// WriteBool writes a Boolean as one byte (0 or 1).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
		return
	}
	w.WriteUint8(0)
}

// WriteInt8 writes an SByte.
func (w *Writer) WriteInt8(v int8) { w.WriteUint8(uint8(v)) }

// WriteUint16 writes a little-endian UInt16.
func (w *Writer) WriteUint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// WriteInt16 writes a little-endian Int16.
func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }

// WriteUint32 writes a little-endian UInt32.
func (w *Writer) WriteUint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// WriteInt32 writes a little-endian Int32.
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }

// WriteUint64 writes a little-endian UInt64.
func (w *Writer) WriteUint64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// WriteInt64 writes a little-endian Int64.
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

// WriteFloat32 writes an IEEE 754 single precision Float.
func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 writes an IEEE 754 double precision Double.
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteString writes a length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteByteString writes a length-prefixed byte string. A nil slice is
// written as a null ByteString (length -1).
func (w *Writer) WriteByteString(b []byte) {
	if b == nil {
		w.WriteInt32(-1)
		return
	}
	w.WriteInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteGuid writes a Guid in OPC-UA layout: Data1 (UInt32), Data2 (UInt16)
// and Data3 (UInt16) little-endian, followed by the 8 bytes of Data4.
func (w *Writer) WriteGuid(g uuid.UUID) {
	w.WriteUint32(binary.BigEndian.Uint32(g[0:4]))
	w.WriteUint16(binary.BigEndian.Uint16(g[4:6]))
	w.WriteUint16(binary.BigEndian.Uint16(g[6:8]))
	w.buf = append(w.buf, g[8:16]...)
}

// WriteRaw appends bytes without a length prefix.
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// Reader consumes little-endian primitives from a byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data. The Reader does not copy data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

// Len returns the total length of the underlying input.
func (r *Reader) Len() int { return len(r.data) }

// Slice returns the input bytes in [start, end). It is used to attribute raw
// bytes to decoded fields.
func (r *Reader) Slice(start, end int) []byte {
	if start < 0 || end > len(r.data) || start > end {
		return nil
	}
	return r.data[start:end]
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("need %d bytes at offset %d, have %d: %w",
			n, r.pos, r.Remaining(), ErrUnexpectedEndOfStream)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a Boolean. Any non-zero byte is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	return v != 0, err
}

// ReadInt8 reads an SByte.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a little-endian UInt16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian Int16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian UInt32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt32 reads a little-endian Int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

// ReadUint64 reads a little-endian UInt64.
func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadInt64 reads a little-endian Int64.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat32 reads a Float.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads a Double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadByteString reads a length-prefixed byte string. A null ByteString
// decodes to nil; an empty one decodes to a non-nil empty slice.
// The returned slice is a copy.
func (r *Reader) ReadByteString() ([]byte, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	if n < -1 || n > MaxByteStringLength {
		return nil, fmt.Errorf("length %d at offset %d: %w", n, r.pos-4, ErrInvalidLength)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadString reads a length-prefixed string. Null strings decode to "".
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	if n == -1 {
		return "", nil
	}
	if n < -1 || n > MaxByteStringLength {
		return "", fmt.Errorf("length %d at offset %d: %w", n, r.pos-4, ErrInvalidLength)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadGuid reads a Guid written by WriteGuid.
func (r *Reader) ReadGuid() (uuid.UUID, error) {
	var g uuid.UUID
	b, err := r.take(GuidSize)
	if err != nil {
		return g, err
	}
	binary.BigEndian.PutUint32(g[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(g[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(g[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(g[8:16], b[8:16])
	return g, nil
}
