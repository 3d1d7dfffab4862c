package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering trace events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// Source filters by exact source label.
	Source string

	// Kind filters by event kind.
	Kind *Kind

	// Field filters by exact field name.
	Field string

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.Source != "" && event.Source != f.Source {
		return false
	}
	if f.Kind != nil && event.Kind != *f.Kind {
		return false
	}
	if f.Field != "" && event.Field != f.Field {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	return true
}

// Reader reads trace events from a CBOR-encoded file.
// It provides an iterator interface for streaming large files.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
	header  *Header

	// first holds an event read while looking for the header.
	first cbor.RawMessage
}

// ErrUnsupportedTrace indicates a trace file header of another format or
// a newer version.
var ErrUnsupportedTrace = errors.New("unsupported trace file")

// NewReader creates a Reader that reads all events from the specified trace file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader creates a Reader that reads events matching the filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		file:    f,
		decoder: NewDecoder(f),
		filter:  filter,
	}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// readHeader consumes the leading Header if there is one. Files written
// without a header start directly with an event.
func (r *Reader) readHeader() error {
	var raw cbor.RawMessage
	if err := r.decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if len(raw) == 0 || raw[0]>>5 != cborArray {
		r.first = raw
		return nil
	}

	var h Header
	if err := logDecMode.Unmarshal(raw, &h); err != nil {
		return fmt.Errorf("trace header: %w", err)
	}
	if h.Format != TraceFormat || h.Version > TraceVersion {
		return fmt.Errorf("%w: %s version %d", ErrUnsupportedTrace, h.Format, h.Version)
	}
	r.header = &h
	return nil
}

// cborArray is the CBOR major type of arrays.
const cborArray = 4

// Header returns the file header, or nil for a file without one.
func (r *Reader) Header() *Header {
	return r.header
}

// Next returns the next event that matches the filter.
// Returns io.EOF when no more events are available.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if r.first != nil {
			raw := r.first
			r.first = nil
			if err := logDecMode.Unmarshal(raw, &event); err != nil {
				return Event{}, err
			}
		} else if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}

		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
