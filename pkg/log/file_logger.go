package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Trace file identification written in the Header.
const (
	TraceFormat  = "dvtrace"
	TraceVersion = 1
)

// Header is the first item of a trace file. It is encoded as a CBOR array,
// which keeps it apart from the map-encoded events that follow.
type Header struct {
	_       struct{} `cbor:",toarray"`
	Format  string
	Version uint8
	Created time.Time

	// Source is the label of the logger that created the file.
	Source string
}

// FileLogger writes trace events to a file in CBOR format.
// It is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	source  string
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger opens the trace file at path for appending, creating it
// with permissions 0644 if needed. A new or empty file starts with a
// Header. Events logged without a Source are stamped with source.
func NewFileLogger(path, source string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	l := &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
		source:  source,
	}
	if info.Size() == 0 {
		h := Header{Format: TraceFormat, Version: TraceVersion, Created: time.Now(), Source: source}
		if err := l.encoder.Encode(h); err != nil {
			f.Close()
			return nil, fmt.Errorf("write trace header: %w", err)
		}
	}
	return l, nil
}

// Log writes an event to the trace file.
// This method is safe for concurrent use.
func (l *FileLogger) Log(event Event) {
	if event.Source == "" {
		event.Source = l.source
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// Encoding errors are dropped; tracing never fails a decode.
	_ = l.encoder.Encode(event)
}

// Close closes the trace file. Later Log calls are ignored and further
// Close calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
