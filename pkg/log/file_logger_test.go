package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dvtrace")

	logger, err := NewFileLogger(path, "")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("trace file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.dvtrace")

	logger, err := NewFileLogger(path, "")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := Event{
		Timestamp: time.Now(),
		Kind:      KindMember,
		Field:     "sourceTimestamp",
		Start:     6,
		End:       14,
		WireType:  "DateTime",
		Raw:       []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	logger.Log(event)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var header Header
	rest, err := logDecMode.UnmarshalFirst(data, &header)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if header.Format != TraceFormat || header.Version != TraceVersion {
		t.Errorf("header = %+v", header)
	}
	got, err := DecodeEvent(rest)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if got.Field != "sourceTimestamp" || got.Start != 6 || got.End != 14 {
		t.Errorf("got %+v", got)
	}
	if len(got.Raw) != 8 {
		t.Errorf("Raw length = %d, want 8", len(got.Raw))
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dvtrace")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path, "")
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), Field: "value"})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	if n := countEvents(t, reader); n != 2 {
		t.Errorf("got %d events, want 2", n)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "test.dvtrace"), "")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Ignored after close.
	logger.Log(Event{Field: "late"})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dvtrace")
	logger, err := NewFileLogger(path, "")
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				logger.Log(Event{Timestamp: time.Now(), Kind: KindMember, Field: "value", Start: i, End: i + 1})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	if n := countEvents(t, reader); n != 200 {
		t.Errorf("got %d events, want 200", n)
	}
}

func TestFileLoggerHeaderAndSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.dvtrace")

	// Reopening appends events without a second header.
	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path, "meter.bin")
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), Field: "value"})
		logger.Log(Event{Timestamp: time.Now(), Field: "statusCode", Source: "msg 7"})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	h := reader.Header()
	if h == nil {
		t.Fatal("expected a header")
	}
	if h.Format != TraceFormat || h.Version != TraceVersion || h.Source != "meter.bin" {
		t.Errorf("header = %+v", h)
	}
	if h.Created.IsZero() {
		t.Error("header has no creation time")
	}

	var sources []string
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		sources = append(sources, event.Source)
	}
	want := []string{"meter.bin", "msg 7", "meter.bin", "msg 7"}
	if len(sources) != len(want) {
		t.Fatalf("got %d events, want %d", len(sources), len(want))
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("event %d source = %q, want %q", i, sources[i], want[i])
		}
	}
}

func TestReaderWithoutHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.dvtrace")
	var data []byte
	for _, field := range []string{"encodingMask", "value"} {
		b, err := EncodeEvent(Event{Timestamp: time.Now(), Field: field})
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		data = append(data, b...)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()
	if reader.Header() != nil {
		t.Error("expected no header")
	}
	event, err := reader.Next()
	if err != nil || event.Field != "encodingMask" {
		t.Fatalf("first event = %+v, %v", event, err)
	}
	if n := countEvents(t, reader); n != 1 {
		t.Errorf("got %d remaining events, want 1", n)
	}
}

func TestReaderRejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.dvtrace")
	data, err := logEncMode.Marshal(Header{Format: "pcap", Version: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewReader(path); !errors.Is(err, ErrUnsupportedTrace) {
		t.Errorf("NewReader = %v, want ErrUnsupportedTrace", err)
	}
}
