package variant

import (
	"fmt"
)

// DataType identifies a built-in OPC-UA data type.
type DataType uint8

// Built-in data types (OPC-UA Part 6, 5.1.2).
const (
	TypeNull            DataType = 0
	TypeBoolean         DataType = 1
	TypeSByte           DataType = 2
	TypeByte            DataType = 3
	TypeInt16           DataType = 4
	TypeUInt16          DataType = 5
	TypeInt32           DataType = 6
	TypeUInt32          DataType = 7
	TypeInt64           DataType = 8
	TypeUInt64          DataType = 9
	TypeFloat           DataType = 10
	TypeDouble          DataType = 11
	TypeString          DataType = 12
	TypeDateTime        DataType = 13
	TypeGuid            DataType = 14
	TypeByteString      DataType = 15
	TypeXmlElement      DataType = 16
	TypeNodeId          DataType = 17
	TypeExpandedNodeId  DataType = 18
	TypeStatusCode      DataType = 19
	TypeQualifiedName   DataType = 20
	TypeLocalizedText   DataType = 21
	TypeExtensionObject DataType = 22
	TypeDataValue       DataType = 23
	TypeVariant         DataType = 24
	TypeDiagnosticInfo  DataType = 25
)

var dataTypeNames = []string{
	"Null", "Boolean", "SByte", "Byte", "Int16", "UInt16", "Int32", "UInt32",
	"Int64", "UInt64", "Float", "Double", "String", "DateTime", "Guid",
	"ByteString", "XmlElement", "NodeId", "ExpandedNodeId", "StatusCode",
	"QualifiedName", "LocalizedText", "ExtensionObject", "DataValue",
	"Variant", "DiagnosticInfo",
}

// String returns the data type name.
func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint8(t))
}

// Supported returns true if this package can encode, decode and compare
// values of the type.
func (t DataType) Supported() bool {
	switch t {
	case TypeNodeId, TypeExpandedNodeId, TypeExtensionObject,
		TypeDataValue, TypeVariant, TypeDiagnosticInfo:
		return false
	}
	return t <= TypeLocalizedText
}

// ParseDataType looks up a data type by name.
func ParseDataType(name string) (DataType, error) {
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), nil
		}
	}
	return TypeNull, fmt.Errorf("unknown data type: %q", name)
}

// ArrayType distinguishes scalars, arrays and matrices.
type ArrayType uint8

const (
	// Scalar holds a single value.
	Scalar ArrayType = iota
	// Array holds a one-dimensional slice.
	Array
	// Matrix holds a flat slice with Dimensions.
	Matrix
)

// String returns the array type name.
func (a ArrayType) String() string {
	switch a {
	case Scalar:
		return "Scalar"
	case Array:
		return "Array"
	case Matrix:
		return "Matrix"
	default:
		return "UNKNOWN"
	}
}

// QualifiedName is a name qualified by a namespace index.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

// String returns "ns:name", or just the name in namespace 0.
func (q QualifiedName) String() string {
	if q.NamespaceIndex == 0 {
		return q.Name
	}
	return fmt.Sprintf("%d:%s", q.NamespaceIndex, q.Name)
}

// LocalizedText is human readable text with an optional locale.
type LocalizedText struct {
	Locale string
	Text   string
}

// String returns the text, prefixed with the locale when present.
func (l LocalizedText) String() string {
	if l.Locale == "" {
		return l.Text
	}
	return "[" + l.Locale + "] " + l.Text
}
