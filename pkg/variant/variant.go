package variant

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mash-protocol/opcua-go/pkg/status"
)

// Variant errors.
var (
	// ErrTypeMismatch indicates the Go value does not match the declared type.
	ErrTypeMismatch = errors.New("value does not match data type")

	// ErrUnsupportedType indicates a data type this package cannot handle.
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrInvalidDimensions indicates matrix dimensions that do not match the
	// number of elements.
	ErrInvalidDimensions = errors.New("invalid matrix dimensions")
)

// Variant is a typed payload.
type Variant struct {
	// Type is the built-in data type of every element.
	Type DataType

	// ArrayType selects scalar, array or matrix shape.
	ArrayType ArrayType

	// Value holds the Go value (see package documentation).
	Value any

	// Dimensions holds the matrix extents. Empty for scalars and arrays.
	Dimensions []int32
}

// Null returns a variant of type Null.
func Null() *Variant {
	return &Variant{Type: TypeNull}
}

// NewScalar creates a scalar variant. It returns ErrTypeMismatch if v does
// not have the Go type required by t.
func NewScalar(t DataType, v any) (*Variant, error) {
	vr := &Variant{Type: t, ArrayType: Scalar, Value: v}
	if !vr.IsValid() {
		return nil, fmt.Errorf("%s scalar from %T: %w", t, v, ErrTypeMismatch)
	}
	return vr, nil
}

// NewArray creates a one-dimensional array variant.
func NewArray(t DataType, v any) (*Variant, error) {
	vr := &Variant{Type: t, ArrayType: Array, Value: v}
	if !vr.IsValid() {
		return nil, fmt.Errorf("%s array from %T: %w", t, v, ErrTypeMismatch)
	}
	return vr, nil
}

// NewMatrix creates a matrix variant from a flat row-major slice.
func NewMatrix(t DataType, v any, dims []int32) (*Variant, error) {
	vr := &Variant{Type: t, ArrayType: Matrix, Value: v, Dimensions: dims}
	if !vr.IsValid() {
		return nil, fmt.Errorf("%s matrix %v from %T: %w", t, dims, v, ErrInvalidDimensions)
	}
	return vr, nil
}

// Convenience constructors for common scalars.

// Boolean returns a Boolean scalar.
func Boolean(v bool) *Variant { return &Variant{Type: TypeBoolean, Value: v} }

// Int32 returns an Int32 scalar.
func Int32(v int32) *Variant { return &Variant{Type: TypeInt32, Value: v} }

// UInt32 returns a UInt32 scalar.
func UInt32(v uint32) *Variant { return &Variant{Type: TypeUInt32, Value: v} }

// Int64 returns an Int64 scalar.
func Int64(v int64) *Variant { return &Variant{Type: TypeInt64, Value: v} }

// Double returns a Double scalar.
func Double(v float64) *Variant { return &Variant{Type: TypeDouble, Value: v} }

// String returns a String scalar.
func String(v string) *Variant { return &Variant{Type: TypeString, Value: v} }

// ByteString returns a ByteString scalar.
func ByteString(v []byte) *Variant { return &Variant{Type: TypeByteString, Value: v} }

// DateTime returns a DateTime scalar.
func DateTime(v time.Time) *Variant { return &Variant{Type: TypeDateTime, Value: v} }

// Int32Array returns an Int32 array.
func Int32Array(v ...int32) *Variant { return &Variant{Type: TypeInt32, ArrayType: Array, Value: v} }

// DoubleArray returns a Double array.
func DoubleArray(v ...float64) *Variant {
	return &Variant{Type: TypeDouble, ArrayType: Array, Value: v}
}

// StringArray returns a String array.
func StringArray(v ...string) *Variant {
	return &Variant{Type: TypeString, ArrayType: Array, Value: v}
}

// IsNull returns true if the variant carries no value.
func (v *Variant) IsNull() bool {
	return v == nil || v.Type == TypeNull
}

// IsScalar returns true for scalar variants.
func (v *Variant) IsScalar() bool {
	return v.ArrayType == Scalar
}

// Len returns the number of elements of an array or matrix, 1 for non-null
// scalars and 0 for null.
func (v *Variant) Len() int {
	if v.IsNull() {
		return 0
	}
	if v.ArrayType == Scalar {
		return 1
	}
	rv := reflect.ValueOf(v.Value)
	if rv.Kind() != reflect.Slice {
		return 0
	}
	return rv.Len()
}

// IsValid reports whether the Go value matches Type and ArrayType and, for
// matrices, whether Dimensions describe exactly the number of elements.
func (v *Variant) IsValid() bool {
	if v == nil {
		return false
	}
	if v.Type == TypeNull {
		return v.Value == nil
	}
	if !v.Type.Supported() {
		return false
	}
	switch v.ArrayType {
	case Scalar:
		return len(v.Dimensions) == 0 && hasGoType(v.Type, false, v.Value)
	case Array:
		return len(v.Dimensions) == 0 && hasGoType(v.Type, true, v.Value)
	case Matrix:
		if !hasGoType(v.Type, true, v.Value) || len(v.Dimensions) == 0 {
			return false
		}
		n := 1
		for _, d := range v.Dimensions {
			if d < 0 {
				return false
			}
			n *= int(d)
		}
		return n == v.Len()
	default:
		return false
	}
}

func is[T any](v any, array bool) bool {
	if array {
		_, ok := v.([]T)
		return ok
	}
	_, ok := v.(T)
	return ok
}

func hasGoType(t DataType, array bool, v any) bool {
	switch t {
	case TypeBoolean:
		return is[bool](v, array)
	case TypeSByte:
		return is[int8](v, array)
	case TypeByte:
		return is[uint8](v, array)
	case TypeInt16:
		return is[int16](v, array)
	case TypeUInt16:
		return is[uint16](v, array)
	case TypeInt32:
		return is[int32](v, array)
	case TypeUInt32:
		return is[uint32](v, array)
	case TypeInt64:
		return is[int64](v, array)
	case TypeUInt64:
		return is[uint64](v, array)
	case TypeFloat:
		return is[float32](v, array)
	case TypeDouble:
		return is[float64](v, array)
	case TypeString, TypeXmlElement:
		return is[string](v, array)
	case TypeDateTime:
		return is[time.Time](v, array)
	case TypeGuid:
		return is[uuid.UUID](v, array)
	case TypeByteString:
		return is[[]byte](v, array)
	case TypeStatusCode:
		return is[status.Code](v, array)
	case TypeQualifiedName:
		return is[QualifiedName](v, array)
	case TypeLocalizedText:
		return is[LocalizedText](v, array)
	default:
		return false
	}
}

// Clone returns a deep copy. Slices and byte strings are copied; the clone
// shares no mutable memory with v.
func (v *Variant) Clone() *Variant {
	if v == nil {
		return nil
	}
	c := &Variant{
		Type:      v.Type,
		ArrayType: v.ArrayType,
		Value:     cloneValue(v.Value),
	}
	if v.Dimensions != nil {
		c.Dimensions = append([]int32(nil), v.Dimensions...)
	}
	return c
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if x == nil {
			return x
		}
		return append([]byte{}, x...)
	case [][]byte:
		if x == nil {
			return x
		}
		out := make([][]byte, len(x))
		for i, b := range x {
			if b != nil {
				out[i] = append([]byte{}, b...)
			}
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}

// Equal reports whether a and b carry the same type, shape and elements.
// Two nil variants are equal; DateTime values compare by instant.
func Equal(a, b *Variant) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Type != b.Type || a.ArrayType != b.ArrayType {
		return false
	}
	if len(a.Dimensions) != len(b.Dimensions) {
		return false
	}
	for i := range a.Dimensions {
		if a.Dimensions[i] != b.Dimensions[i] {
			return false
		}
	}
	if a.Type == TypeNull {
		return true
	}
	if a.Type == TypeDateTime {
		return timesEqual(a.Value, b.Value)
	}
	return reflect.DeepEqual(a.Value, b.Value)
}

func timesEqual(a, b any) bool {
	switch x := a.(type) {
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []time.Time:
		y, ok := b.([]time.Time)
		if !ok || len(x) != len(y) || (x == nil) != (y == nil) {
			return false
		}
		for i := range x {
			if !x[i].Equal(y[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String returns a compact human readable form.
func (v *Variant) String() string {
	if v == nil {
		return "<absent>"
	}
	if v.Type == TypeNull {
		return "Variant(Null)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Variant(%s<%s>", v.ArrayType, v.Type)
	if v.ArrayType == Matrix {
		fmt.Fprintf(&sb, ", dims: %v", v.Dimensions)
	}
	sb.WriteString(", value: ")
	sb.WriteString(formatValue(v.Type, v.Value))
	sb.WriteString(")")
	return sb.String()
}

func formatValue(t DataType, v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		if t == TypeByteString {
			return fmt.Sprintf("0x%X", x)
		}
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}
