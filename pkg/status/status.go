// Package status defines OPC-UA status codes.
//
// A status code is a 32-bit value. The two most significant bits hold the
// severity (Good, Uncertain, Bad), the next 14 bits the sub-code, and the
// low 16 bits structure-changed/semantics-changed flags and info bits.
// Code is a plain value type; equality is by value.
package status

import (
	"fmt"

	"github.com/mash-protocol/opcua-go/pkg/binary"
)

// Code is an OPC-UA StatusCode.
type Code uint32

const (
	// Good indicates the operation succeeded. It is the default status of
	// every attribute value and is never transmitted explicitly inside one.
	Good Code = 0x00000000

	// GoodNoData indicates no data exists for the requested time range.
	GoodNoData Code = 0x00A50000

	// Uncertain is the generic uncertain severity.
	Uncertain Code = 0x40000000

	// UncertainLastUsableValue indicates the value is the last usable one.
	UncertainLastUsableValue Code = 0x40900000

	// UncertainInitialValue indicates the value is an initial value.
	UncertainInitialValue Code = 0x40920000

	// Bad is the generic bad severity.
	Bad Code = 0x80000000

	// BadUnexpectedError indicates an unexpected error occurred.
	BadUnexpectedError Code = 0x80010000

	// BadInternalError indicates an internal error occurred.
	BadInternalError Code = 0x80020000

	// BadEncodingError indicates encoding halted because of invalid data.
	BadEncodingError Code = 0x80060000

	// BadDecodingError indicates decoding halted because of invalid data.
	BadDecodingError Code = 0x80070000

	// BadNothingToDo indicates there was nothing to do because the request
	// had no operations.
	BadNothingToDo Code = 0x800F0000

	// BadTooManyOperations indicates the request has too many operations.
	BadTooManyOperations Code = 0x80100000

	// BadTimestampsToReturnInvalid indicates an invalid timestamps-to-return value.
	BadTimestampsToReturnInvalid Code = 0x802B0000

	// BadWaitingForInitialData indicates no value has been produced yet.
	BadWaitingForInitialData Code = 0x80320000

	// BadNodeIdUnknown indicates the node does not exist.
	BadNodeIdUnknown Code = 0x80340000

	// BadAttributeIdInvalid indicates the attribute is not supported.
	BadAttributeIdInvalid Code = 0x80350000

	// BadIndexRangeInvalid indicates the index range syntax is invalid.
	BadIndexRangeInvalid Code = 0x80360000

	// BadIndexRangeNoData indicates no data exists within the index range.
	BadIndexRangeNoData Code = 0x80370000

	// BadDataEncodingInvalid indicates the data encoding is invalid.
	BadDataEncodingInvalid Code = 0x80380000

	// BadNotReadable indicates the access level does not allow reading.
	BadNotReadable Code = 0x803A0000

	// BadNotWritable indicates the access level does not allow writing.
	BadNotWritable Code = 0x803B0000

	// BadOutOfRange indicates a value was outside the allowed range.
	BadOutOfRange Code = 0x803C0000

	// BadMaxAgeInvalid indicates the max age parameter is invalid.
	BadMaxAgeInvalid Code = 0x80700000

	// BadTypeMismatch indicates the value does not have the data type of
	// the attribute.
	BadTypeMismatch Code = 0x80740000

	// BadNoData indicates no data is available.
	BadNoData Code = 0x809B0000
)

const severityMask Code = 0xC0000000

var names = map[Code]string{
	Good:                         "Good",
	GoodNoData:                   "GoodNoData",
	Uncertain:                    "Uncertain",
	UncertainLastUsableValue:     "UncertainLastUsableValue",
	UncertainInitialValue:        "UncertainInitialValue",
	Bad:                          "Bad",
	BadUnexpectedError:           "BadUnexpectedError",
	BadInternalError:             "BadInternalError",
	BadEncodingError:             "BadEncodingError",
	BadDecodingError:             "BadDecodingError",
	BadNothingToDo:               "BadNothingToDo",
	BadTooManyOperations:         "BadTooManyOperations",
	BadTimestampsToReturnInvalid: "BadTimestampsToReturnInvalid",
	BadWaitingForInitialData:     "BadWaitingForInitialData",
	BadNodeIdUnknown:             "BadNodeIdUnknown",
	BadAttributeIdInvalid:        "BadAttributeIdInvalid",
	BadIndexRangeInvalid:         "BadIndexRangeInvalid",
	BadIndexRangeNoData:          "BadIndexRangeNoData",
	BadDataEncodingInvalid:       "BadDataEncodingInvalid",
	BadNotReadable:               "BadNotReadable",
	BadNotWritable:               "BadNotWritable",
	BadOutOfRange:                "BadOutOfRange",
	BadMaxAgeInvalid:             "BadMaxAgeInvalid",
	BadTypeMismatch:              "BadTypeMismatch",
	BadNoData:                    "BadNoData",
}

// String returns the symbolic name, or the hex value for unknown codes.
func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(c))
}

// Parse looks up a status code by symbolic name.
func Parse(name string) (Code, error) {
	for c, n := range names {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown status code: %q", name)
}

// IsGood returns true if the severity is Good.
func (c Code) IsGood() bool { return c&severityMask == 0 }

// IsUncertain returns true if the severity is Uncertain.
func (c Code) IsUncertain() bool { return c&severityMask == 0x40000000 }

// IsBad returns true if the severity is Bad.
func (c Code) IsBad() bool { return c&0x80000000 != 0 }

// Encode writes the code as a UInt32.
func (c Code) Encode(w *binary.Writer) { w.WriteUint32(uint32(c)) }

// Decode reads a code written by Encode.
func Decode(r *binary.Reader) (Code, error) {
	v, err := r.ReadUint32()
	return Code(v), err
}
