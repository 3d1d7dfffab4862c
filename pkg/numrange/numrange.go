// Package numrange implements OPC-UA NumericRange index ranges.
//
// A NumericRange selects a contiguous sub-range of an array, a matrix, a
// String or a ByteString. Its text form lists one range per dimension,
// separated by commas; each range is either a single index or "low:high"
// with low strictly below high:
//
//	"3"       element 3
//	"1:2"     elements 1 and 2
//	"0:1,2:4" rows 0-1, columns 2-4 of a matrix
//
// Extraction never aliases the input; the returned slice is freshly
// allocated.
package numrange

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mash-protocol/opcua-go/pkg/status"
)

// ErrInvalidRange is matched by every *RangeError through errors.Is.
var ErrInvalidRange = errors.New("invalid index range")

// RangeError reports a malformed or out-of-bounds index range.
type RangeError struct {
	// Range is the text form of the offending range.
	Range string

	// StatusCode is BadIndexRangeInvalid for malformed ranges and
	// BadIndexRangeNoData when the range selects no elements.
	StatusCode status.Code

	// Reason describes the failure.
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("index range %q: %s (%s)", e.Range, e.Reason, e.StatusCode)
}

// Is makes errors.Is(err, ErrInvalidRange) true for every RangeError.
func (e *RangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// Dimension is an inclusive index interval along one dimension.
type Dimension struct {
	Low  int
	High int
}

// NumericRange is a parsed index range, one Dimension per array dimension.
type NumericRange struct {
	Dims []Dimension
}

// Parse parses the text form of a NumericRange.
func Parse(s string) (*NumericRange, error) {
	if s == "" {
		return nil, &RangeError{Range: s, StatusCode: status.BadIndexRangeInvalid, Reason: "empty range"}
	}
	parts := strings.Split(s, ",")
	nr := &NumericRange{Dims: make([]Dimension, 0, len(parts))}
	for _, part := range parts {
		d, err := parseDimension(part)
		if err != nil {
			return nil, &RangeError{Range: s, StatusCode: status.BadIndexRangeInvalid, Reason: err.Error()}
		}
		nr.Dims = append(nr.Dims, d)
	}
	return nr, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constant ranges.
func MustParse(s string) *NumericRange {
	nr, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return nr
}

func parseIndex(s string) (int, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return 0, fmt.Errorf("bad index %q", s)
	}
	n, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	return int(n), nil
}

func parseDimension(s string) (Dimension, error) {
	lo, hi, isRange := strings.Cut(s, ":")
	low, err := parseIndex(lo)
	if err != nil {
		return Dimension{}, err
	}
	if !isRange {
		return Dimension{Low: low, High: low}, nil
	}
	high, err := parseIndex(hi)
	if err != nil {
		return Dimension{}, err
	}
	if low >= high {
		return Dimension{}, fmt.Errorf("low %d not below high %d", low, high)
	}
	return Dimension{Low: low, High: high}, nil
}

// String returns the text form.
func (nr *NumericRange) String() string {
	if nr == nil {
		return ""
	}
	parts := make([]string, len(nr.Dims))
	for i, d := range nr.Dims {
		if d.Low == d.High {
			parts[i] = strconv.Itoa(d.Low)
		} else {
			parts[i] = fmt.Sprintf("%d:%d", d.Low, d.High)
		}
	}
	return strings.Join(parts, ",")
}

// Result is the outcome of an extraction.
type Result struct {
	// Values holds the extracted elements, with the Go type of the input.
	Values any

	// Dimensions holds the extents of an extracted matrix; nil otherwise.
	Dimensions []int32

	// StatusCode is the status to report with the extracted value.
	StatusCode status.Code
}

func (nr *NumericRange) invalid(reason string) *RangeError {
	return &RangeError{Range: nr.String(), StatusCode: status.BadIndexRangeInvalid, Reason: reason}
}

func (nr *NumericRange) noData(reason string) *RangeError {
	return &RangeError{Range: nr.String(), StatusCode: status.BadIndexRangeNoData, Reason: reason}
}

// clamp bounds d to a dimension of length n. The upper bound is reduced to
// the last element; a lower bound past the end selects nothing.
func (nr *NumericRange) clamp(d Dimension, n int) (Dimension, error) {
	if d.Low >= n {
		return d, nr.noData(fmt.Sprintf("low index %d beyond length %d", d.Low, n))
	}
	if d.High >= n {
		d.High = n - 1
	}
	return d, nil
}

// Extract selects the elements described by the range from values.
//
// values is a string, a []byte, or any slice. dims holds matrix extents for
// a flat row-major slice; nil or a single extent means one-dimensional. The
// number of range dimensions must match the number of value dimensions.
func (nr *NumericRange) Extract(values any, dims []int32) (Result, error) {
	if nr == nil || len(nr.Dims) == 0 {
		return Result{}, &RangeError{StatusCode: status.BadIndexRangeInvalid, Reason: "empty range"}
	}
	if len(dims) > 1 {
		return nr.extractMatrix(values, dims)
	}
	if len(nr.Dims) != 1 {
		return Result{}, nr.invalid(fmt.Sprintf("%d range dimensions for one-dimensional value", len(nr.Dims)))
	}

	switch v := values.(type) {
	case string:
		runes := []rune(v)
		d, err := nr.clamp(nr.Dims[0], len(runes))
		if err != nil {
			return Result{}, err
		}
		return Result{Values: string(runes[d.Low : d.High+1]), StatusCode: status.Good}, nil
	case nil:
		return Result{}, nr.noData("no value")
	}

	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return Result{}, nr.invalid(fmt.Sprintf("%T is not rangeable", values))
	}
	d, err := nr.clamp(nr.Dims[0], rv.Len())
	if err != nil {
		return Result{}, err
	}
	return Result{Values: copySlice(rv.Slice(d.Low, d.High+1)), StatusCode: status.Good}, nil
}

func (nr *NumericRange) extractMatrix(values any, dims []int32) (Result, error) {
	if len(nr.Dims) != len(dims) {
		return Result{}, nr.invalid(fmt.Sprintf("%d range dimensions for %d matrix dimensions", len(nr.Dims), len(dims)))
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return Result{}, nr.invalid(fmt.Sprintf("%T is not rangeable", values))
	}

	total := 1
	for _, n := range dims {
		total *= int(n)
	}
	if total != rv.Len() {
		return Result{}, nr.invalid(fmt.Sprintf("dimensions %v do not match %d elements", dims, rv.Len()))
	}

	sel := make([]Dimension, len(dims))
	outDims := make([]int32, len(dims))
	count := 1
	for i, n := range dims {
		d, err := nr.clamp(nr.Dims[i], int(n))
		if err != nil {
			return Result{}, err
		}
		sel[i] = d
		outDims[i] = int32(d.High - d.Low + 1)
		count *= int(outDims[i])
	}

	// Row-major strides of the source.
	strides := make([]int, len(dims))
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= int(dims[i])
	}

	out := reflect.MakeSlice(rv.Type(), 0, count)
	idx := make([]int, len(dims))
	for i, d := range sel {
		idx[i] = d.Low
	}
	for {
		off := 0
		for i, x := range idx {
			off += x * strides[i]
		}
		out = reflect.Append(out, rv.Index(off))

		// Advance the odometer, last dimension fastest.
		k := len(idx) - 1
		for ; k >= 0; k-- {
			idx[k]++
			if idx[k] <= sel[k].High {
				break
			}
			idx[k] = sel[k].Low
		}
		if k < 0 {
			break
		}
	}
	return Result{Values: out.Interface(), Dimensions: outDims, StatusCode: status.Good}, nil
}

func copySlice(rv reflect.Value) any {
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}
