// Package capture stores sequences of encoded DataValues in files.
//
// A capture file starts with a six byte header:
//
//	"UADV"  magic
//	0x01    format version
//	flags   bit 0 set when the body is zstd compressed
//
// The body is a sequence of frames, each a 4-byte big-endian length prefix
// followed by one binary-encoded DataValue. A compressed body is a series of
// zstd frames; appending to a compressed file adds one more zstd frame, so
// files can be extended without rewriting them.
package capture
