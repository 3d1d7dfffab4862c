package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/log"
)

// eventPrinter writes one line per trace event.
type eventPrinter struct {
	w io.Writer
}

func (p eventPrinter) Log(event log.Event) {
	fmt.Fprintln(p.w, event.String())
}

// TraceParams configures a tracing decode.
type TraceParams struct {
	Options datavalue.DecodeOptions

	// Logger receives the events as debug records. May be nil.
	Logger *slog.Logger

	// OutPath names a CBOR trace file the events are appended to.
	OutPath string

	// Source labels the events.
	Source string
}

// RunTrace decodes a hex encoded DataValue, printing a line for every field
// read from the input. A decode failure is returned after the events up to
// the failure have been printed.
func RunTrace(input string, params TraceParams, w io.Writer) error {
	data, err := ParseHex(input)
	if err != nil {
		return err
	}

	source := params.Source
	if source == "" {
		source = "hex"
	}

	sinks := []log.Logger{eventPrinter{w: w}}
	if params.Logger != nil {
		sinks = append(sinks, log.NewSlogAdapter(params.Logger))
	}
	if params.OutPath != "" {
		fl, err := log.NewFileLogger(params.OutPath, source)
		if err != nil {
			return err
		}
		defer fl.Close()
		sinks = append(sinks, fl)
	}

	opts := params.Options
	opts.Tracer = log.NewMultiLogger(sinks...)
	opts.Source = source

	dv, err := datavalue.UnmarshalWithOptions(data, opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, dv)
	return nil
}
