// Package binary implements the byte cursor used by the OPC-UA binary
// encoding.
//
// All multi-byte primitives are little-endian. A Writer appends to an
// in-memory buffer; a Reader consumes a byte slice sequentially and reports
// its position so callers can attribute byte ranges to decoded fields.
//
// # Strings and ByteStrings
//
// Strings and ByteStrings are prefixed with an Int32 length. A length of -1
// denotes a null value, which is distinct from an empty value:
//
//	null   -> FF FF FF FF
//	empty  -> 00 00 00 00
//
// Reading past the end of the input returns ErrUnexpectedEndOfStream.
package binary
