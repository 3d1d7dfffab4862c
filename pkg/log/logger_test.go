package log

import (
	"sync"
	"testing"
)

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{Field: "value"})
}

func TestMultiLoggerFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{Field: "value"})
	m.Log(Event{Field: "statusCode"})

	for i, r := range []*Recorder{a, b} {
		got := r.Fields()
		if len(got) != 2 || got[0] != "value" || got[1] != "statusCode" {
			t.Errorf("logger %d got %v", i, got)
		}
	}
}

func TestMultiLoggerEmpty(t *testing.T) {
	NewMultiLogger().Log(Event{})
	NewMultiLogger(nil, nil).Log(Event{})
}

func TestRecorderConcurrent(t *testing.T) {
	r := &Recorder{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Log(Event{Field: "value"})
		}()
	}
	wg.Wait()
	if len(r.Events) != 10 {
		t.Errorf("got %d events, want 10", len(r.Events))
	}
}
