// Package variant implements the self-describing typed payload carried by
// attribute values.
//
// A Variant holds a scalar, a one-dimensional array, or a multi-dimensional
// matrix of one built-in data type. The set of data types is closed: every
// operation dispatches on DataType with a switch, there is no runtime
// registry.
//
// # Go Representation
//
// Scalars use the natural Go type (bool, int8 ... float64, string,
// time.Time, uuid.UUID, []byte, status.Code, QualifiedName, LocalizedText).
// Arrays and matrices use a slice of that type. Matrices are stored flat in
// row-major order with their extents in Dimensions.
//
// Byte arrays and ByteString scalars share the []byte Go type; the DataType
// and ArrayType fields disambiguate them.
//
// # Binary Encoding
//
// The first byte carries the type identifier in bits 0-5, bit 6 when array
// dimensions follow, and bit 7 for array values:
//
//	scalar Int32 42   -> 06 2A 00 00 00
//	array Int32 [1,2] -> 86 02 00 00 00 01 00 00 00 02 00 00 00
//	null              -> 00
package variant
