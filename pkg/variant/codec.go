package variant

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/opcua-go/pkg/binary"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/status"
)

// Encoding byte flags.
const (
	typeMask       = 0x3F
	flagDimensions = 0x40
	flagArray      = 0x80
)

// MaxArrayLength bounds the element count accepted when decoding.
const MaxArrayLength = 1 << 20

// Encode writes v in its self-describing binary form. A nil variant is
// encoded as Null.
func (v *Variant) Encode(w *binary.Writer) error {
	if v.IsNull() {
		w.WriteUint8(uint8(TypeNull))
		return nil
	}
	if !v.Type.Supported() {
		return fmt.Errorf("encode %s: %w", v.Type, ErrUnsupportedType)
	}
	if !v.IsValid() {
		return fmt.Errorf("encode %s %s from %T: %w", v.ArrayType, v.Type, v.Value, ErrTypeMismatch)
	}

	mask := uint8(v.Type)
	array := v.ArrayType != Scalar
	if array {
		mask |= flagArray
	}
	if v.ArrayType == Matrix {
		mask |= flagDimensions
	}
	w.WriteUint8(mask)

	if err := encodeValue(w, v.Type, array, v.Value); err != nil {
		return err
	}
	if v.ArrayType == Matrix {
		w.WriteInt32(int32(len(v.Dimensions)))
		for _, d := range v.Dimensions {
			w.WriteInt32(d)
		}
	}
	return nil
}

// Decode reads a variant written by Encode.
func Decode(r *binary.Reader) (*Variant, error) {
	mask, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	t := DataType(mask & typeMask)
	if t == TypeNull {
		return Null(), nil
	}
	if !t.Supported() {
		return nil, fmt.Errorf("decode type %d at offset %d: %w", mask&typeMask, r.Offset()-1, ErrUnsupportedType)
	}

	array := mask&flagArray != 0
	v := &Variant{Type: t}
	if array {
		v.ArrayType = Array
	}
	if v.Value, err = decodeValue(r, t, array); err != nil {
		return nil, err
	}

	if mask&flagDimensions != 0 {
		n, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 32 {
			return nil, fmt.Errorf("dimension count %d: %w", n, ErrInvalidDimensions)
		}
		dims := make([]int32, n)
		for i := range dims {
			if dims[i], err = r.ReadInt32(); err != nil {
				return nil, err
			}
		}
		if array && n > 1 {
			v.ArrayType = Matrix
			v.Dimensions = dims
			if !v.IsValid() {
				return nil, fmt.Errorf("dimensions %v for %d elements: %w", dims, v.Len(), ErrInvalidDimensions)
			}
		}
	}
	return v, nil
}

func encodeAs[T any](w *binary.Writer, array bool, v any, write func(*binary.Writer, T)) error {
	if !array {
		x, ok := v.(T)
		if !ok {
			return ErrTypeMismatch
		}
		write(w, x)
		return nil
	}
	xs, ok := v.([]T)
	if !ok {
		return ErrTypeMismatch
	}
	if xs == nil {
		w.WriteInt32(-1)
		return nil
	}
	w.WriteInt32(int32(len(xs)))
	for _, x := range xs {
		write(w, x)
	}
	return nil
}

func decodeAs[T any](r *binary.Reader, array bool, read func(*binary.Reader) (T, error)) (any, error) {
	if !array {
		return read(r)
	}
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return []T(nil), nil
	}
	if n < -1 || n > MaxArrayLength {
		return nil, fmt.Errorf("array length %d: %w", n, binary.ErrInvalidLength)
	}
	xs := make([]T, 0, min(int(n), r.Remaining()))
	for i := int32(0); i < n; i++ {
		x, err := read(r)
		if err != nil {
			return nil, err
		}
		xs = append(xs, x)
	}
	return xs, nil
}

func writeStatus(w *binary.Writer, c status.Code) { c.Encode(w) }

func writeQualifiedName(w *binary.Writer, q QualifiedName) {
	w.WriteUint16(q.NamespaceIndex)
	w.WriteString(q.Name)
}

func readQualifiedName(r *binary.Reader) (QualifiedName, error) {
	var q QualifiedName
	var err error
	if q.NamespaceIndex, err = r.ReadUint16(); err != nil {
		return q, err
	}
	q.Name, err = r.ReadString()
	return q, err
}

// LocalizedText encoding mask bits.
const (
	ltLocale = 0x01
	ltText   = 0x02
)

func writeLocalizedText(w *binary.Writer, l LocalizedText) {
	var mask uint8
	if l.Locale != "" {
		mask |= ltLocale
	}
	if l.Text != "" {
		mask |= ltText
	}
	w.WriteUint8(mask)
	if mask&ltLocale != 0 {
		w.WriteString(l.Locale)
	}
	if mask&ltText != 0 {
		w.WriteString(l.Text)
	}
}

func readLocalizedText(r *binary.Reader) (LocalizedText, error) {
	var l LocalizedText
	mask, err := r.ReadUint8()
	if err != nil {
		return l, err
	}
	if mask&ltLocale != 0 {
		if l.Locale, err = r.ReadString(); err != nil {
			return l, err
		}
	}
	if mask&ltText != 0 {
		if l.Text, err = r.ReadString(); err != nil {
			return l, err
		}
	}
	return l, nil
}

func encodeValue(w *binary.Writer, t DataType, array bool, v any) error {
	var err error
	switch t {
	case TypeBoolean:
		err = encodeAs(w, array, v, (*binary.Writer).WriteBool)
	case TypeSByte:
		err = encodeAs(w, array, v, (*binary.Writer).WriteInt8)
	case TypeByte:
		err = encodeAs(w, array, v, (*binary.Writer).WriteUint8)
	case TypeInt16:
		err = encodeAs(w, array, v, (*binary.Writer).WriteInt16)
	case TypeUInt16:
		err = encodeAs(w, array, v, (*binary.Writer).WriteUint16)
	case TypeInt32:
		err = encodeAs(w, array, v, (*binary.Writer).WriteInt32)
	case TypeUInt32:
		err = encodeAs(w, array, v, (*binary.Writer).WriteUint32)
	case TypeInt64:
		err = encodeAs(w, array, v, (*binary.Writer).WriteInt64)
	case TypeUInt64:
		err = encodeAs(w, array, v, (*binary.Writer).WriteUint64)
	case TypeFloat:
		err = encodeAs(w, array, v, (*binary.Writer).WriteFloat32)
	case TypeDouble:
		err = encodeAs(w, array, v, (*binary.Writer).WriteFloat64)
	case TypeString, TypeXmlElement:
		err = encodeAs(w, array, v, (*binary.Writer).WriteString)
	case TypeDateTime:
		err = encodeAs(w, array, v, datetime.Encode)
	case TypeGuid:
		err = encodeAs(w, array, v, (*binary.Writer).WriteGuid)
	case TypeByteString:
		err = encodeAs(w, array, v, (*binary.Writer).WriteByteString)
	case TypeStatusCode:
		err = encodeAs(w, array, v, writeStatus)
	case TypeQualifiedName:
		err = encodeAs(w, array, v, writeQualifiedName)
	case TypeLocalizedText:
		err = encodeAs(w, array, v, writeLocalizedText)
	default:
		return fmt.Errorf("encode %s: %w", t, ErrUnsupportedType)
	}
	if err != nil {
		return fmt.Errorf("encode %s from %T: %w", t, v, err)
	}
	return nil
}

func decodeValue(r *binary.Reader, t DataType, array bool) (any, error) {
	switch t {
	case TypeBoolean:
		return decodeAs(r, array, (*binary.Reader).ReadBool)
	case TypeSByte:
		return decodeAs(r, array, (*binary.Reader).ReadInt8)
	case TypeByte:
		return decodeAs(r, array, (*binary.Reader).ReadUint8)
	case TypeInt16:
		return decodeAs(r, array, (*binary.Reader).ReadInt16)
	case TypeUInt16:
		return decodeAs(r, array, (*binary.Reader).ReadUint16)
	case TypeInt32:
		return decodeAs(r, array, (*binary.Reader).ReadInt32)
	case TypeUInt32:
		return decodeAs(r, array, (*binary.Reader).ReadUint32)
	case TypeInt64:
		return decodeAs(r, array, (*binary.Reader).ReadInt64)
	case TypeUInt64:
		return decodeAs(r, array, (*binary.Reader).ReadUint64)
	case TypeFloat:
		return decodeAs(r, array, (*binary.Reader).ReadFloat32)
	case TypeDouble:
		return decodeAs(r, array, (*binary.Reader).ReadFloat64)
	case TypeString, TypeXmlElement:
		return decodeAs(r, array, (*binary.Reader).ReadString)
	case TypeDateTime:
		return decodeAs[time.Time](r, array, datetime.Decode)
	case TypeGuid:
		return decodeAs[uuid.UUID](r, array, (*binary.Reader).ReadGuid)
	case TypeByteString:
		return decodeAs(r, array, (*binary.Reader).ReadByteString)
	case TypeStatusCode:
		return decodeAs(r, array, status.Decode)
	case TypeQualifiedName:
		return decodeAs(r, array, readQualifiedName)
	case TypeLocalizedText:
		return decodeAs(r, array, readLocalizedText)
	default:
		return nil, fmt.Errorf("decode %s: %w", t, ErrUnsupportedType)
	}
}
