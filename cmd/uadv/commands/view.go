package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/mash-protocol/opcua-go/pkg/log"
)

// RunView prints the events of a trace file that match filter.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	if h := reader.Header(); h != nil {
		fmt.Fprintf(w, "# %s version %d, source %q, created %s\n",
			h.Format, h.Version, h.Source, h.Created.UTC().Format(time.RFC3339))
	}

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
		count++
	}
	fmt.Fprintf(w, "%d events\n", count)
	return nil
}

// formatEvent writes the event timestamp and source followed by its
// one-line rendering.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s %-12s %s\n", ts, event.Source, event.String())
	if len(event.Raw) > 0 {
		suffix := ""
		if event.Truncated {
			suffix = " ..."
		}
		fmt.Fprintf(w, "    raw: %x%s\n", event.Raw, suffix)
	}
}
