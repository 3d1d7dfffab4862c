package datavalue

import (
	"github.com/mash-protocol/opcua-go/pkg/numrange"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// CanRange reports whether the payload of dv accepts an index range: any
// array or matrix, and String or ByteString scalars.
func CanRange(dv *DataValue) bool {
	if dv == nil || dv.Value.IsNull() {
		return false
	}
	v := dv.Value
	if !v.IsScalar() {
		return true
	}
	return v.Type == variant.TypeString || v.Type == variant.TypeByteString
}

// ExtractRange returns a copy of dv whose payload holds only the elements
// selected by nr. The data type and array kind are kept, the dimensions and
// status come from the extraction, and the timestamps are copied.
//
// With a nil range or a payload that cannot be ranged, ExtractRange returns
// a deep copy of dv. An out-of-bounds or malformed range is returned as a
// *numrange.RangeError.
func ExtractRange(dv *DataValue, nr *numrange.NumericRange) (*DataValue, error) {
	if nr == nil || !CanRange(dv) {
		return dv.Clone(), nil
	}

	v := dv.Value
	res, err := nr.Extract(v.Value, v.Dimensions)
	if err != nil {
		return nil, err
	}
	out := &variant.Variant{
		Type:       v.Type,
		ArrayType:  v.ArrayType,
		Value:      res.Values,
		Dimensions: res.Dimensions,
	}
	if out.ArrayType == variant.Matrix && out.Dimensions == nil {
		// A one-dimensional matrix keeps its single extent.
		out.Dimensions = []int32{int32(out.Len())}
	}
	return &DataValue{
		Value:             out,
		StatusCode:        res.StatusCode,
		SourceTimestamp:   copyTime(dv.SourceTimestamp),
		SourcePicoseconds: dv.SourcePicoseconds,
		ServerTimestamp:   copyTime(dv.ServerTimestamp),
		ServerPicoseconds: dv.ServerPicoseconds,
	}, nil
}
