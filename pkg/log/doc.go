// Package log provides structured decode tracing for attribute values.
//
// This package defines the Logger interface and Event type used by the
// tracing decode path. Each event attributes a byte range of the input to
// one decoded field. It is separate from operational logging (slog): a
// decode trace is a machine-readable record for debugging wire captures.
//
// # Basic Usage
//
// Callers enable tracing by passing a Logger to the decoder:
//
//	// For development: trace to console via slog
//	opts.Tracer = log.NewSlogAdapter(slog.Default())
//
//	// For offline analysis: write to a binary trace file
//	opts.Tracer, _ = log.NewFileLogger("capture.dvtrace", "capture")
//
//	// Both: use MultiLogger
//	opts.Tracer = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Kinds
//
//   - EncodingByte: the presence mask, with the names of its set bits
//   - Member: one decoded field with its byte offsets and value
//   - Error: a decode failure and the offset where it happened
//
// # File Format
//
// Trace files (.dvtrace) start with a Header naming the format version and
// the source label, followed by a sequence of CBOR-encoded events. The
// Reader also accepts files without a header. The uadv CLI provides
// viewing and filtering.
package log
