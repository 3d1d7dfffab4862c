// Package datavalue implements the OPC-UA DataValue: a typed attribute value
// together with its status code and its source and server timestamps.
//
// The package covers four concerns that operate on the same container:
//
//   - Codec: the presence-mask driven binary encoding (Encode, Decode,
//     Marshal, Unmarshal), with an optional trace hook for diagnostics.
//   - Timestamp policy: ApplyTimestamps derives the copy returned to a
//     client for a given TimestampsToReturn.
//   - Change detection: SameValue and the TimestampChanged family decide
//     whether a new sample must be reported.
//   - Range extraction: ExtractRange selects an index range of an array,
//     matrix, String or ByteString payload.
//
// # Wire Layout
//
// A DataValue starts with one encoding mask byte. Each set bit announces one
// field, and present fields follow in bit order:
//
//	bit 0  0x01  Value              Variant
//	bit 1  0x02  StatusCode         UInt32
//	bit 2  0x04  SourceTimestamp    DateTime
//	bit 3  0x08  SourcePicoseconds  UInt16 (10 ps units)
//	bit 4  0x10  ServerTimestamp    DateTime
//	bit 5  0x20  ServerPicoseconds  UInt16 (10 ps units)
//
// Bits 6 and 7 are reserved. A Good status code is never written.
//
// # Picoseconds
//
// Timestamps are held as time.Time values aligned to the 100 ns DateTime
// tick. SourcePicoseconds and ServerPicoseconds add precision below the
// tick. When a picosecond count of one tick or more is encoded, the whole
// ticks are carried into the DateTime and only the remainder is written as
// 10 ps units, so a decoded value reports the carried ticks in its
// timestamp and the remainder in its picoseconds field.
//
// # Ownership
//
// Every function returns a freshly allocated DataValue that shares no
// mutable memory with its inputs. DecodeFrom is the only operation that
// fills an existing DataValue; the caller must own it exclusively.
package datavalue
