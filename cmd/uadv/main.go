// Command uadv encodes, decodes and inspects OPC-UA DataValues.
//
// Usage:
//
//	uadv <command> [flags] <args>
//
// Commands:
//
//	encode   Encode a DataValue described in YAML
//	decode   Decode a hex encoded DataValue
//	trace    Decode and print every field read from the input
//	view     Print the events of a trace file
//	capture  Append values to or dump a capture file
//	shell    Interactive decoder
//
// Examples:
//
//	# Encode a value
//	uadv encode power.yaml
//
//	# Decode, keeping only the server timestamp
//	uadv decode --ttr server 07062a000000...
//
//	# Trace a decode into a file, then view the value events
//	uadv trace -o run.dvtrace 01062a000000
//	uadv view --field value run.dvtrace
//
//	# Record values into a compressed capture
//	uadv capture append --zstd power.uadv 01062a000000 0200009b80
//	uadv capture dump power.uadv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/mash-protocol/opcua-go/cmd/uadv/commands"
	"github.com/mash-protocol/opcua-go/pkg/capture"
	"github.com/mash-protocol/opcua-go/pkg/log"
)

const usage = `uadv - OPC-UA DataValue tool

Usage:
  uadv <command> [flags] <args>

Commands:
  encode   Encode a DataValue described in YAML
  decode   Decode a hex encoded DataValue
  trace    Decode and print every field read from the input
  view     Print the events of a trace file
  capture  Append values to or dump a capture file
  shell    Interactive decoder

Use "uadv <command> --help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "encode":
		runEncode(args)
	case "decode":
		runDecode(args)
	case "trace":
		runTrace(args)
	case "view":
		runView(args)
	case "capture":
		runCapture(args)
	case "shell":
		runShell(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	config   *string
	logLevel *string
	lenient  *bool
}

func newFlagSet(name, synopsis string) (*pflag.FlagSet, *commonFlags) {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "uadv %s\n\nUsage:\n  uadv %s\n\nFlags:\n", name, synopsis)
		fs.PrintDefaults()
	}
	cf := &commonFlags{
		config:   fs.String("config", "", "YAML configuration file"),
		logLevel: fs.String("log-level", "", "Log level (debug, info, warn, error)"),
		lenient:  fs.Bool("lenient", false, "Ignore reserved encoding mask bits"),
	}
	return fs, cf
}

// load reads the configuration and applies flag overrides.
func (cf *commonFlags) load() commands.Config {
	cfg, err := commands.LoadConfig(*cf.config)
	if err != nil {
		fatal(err)
	}
	if *cf.logLevel != "" {
		cfg.LogLevel = *cf.logLevel
		if _, err := cfg.Level(); err != nil {
			fatal(err)
		}
	}
	if *cf.lenient {
		cfg.Strict = false
	}
	return cfg
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requireArgs(fs *pflag.FlagSet, n int, what string) {
	if fs.NArg() < n {
		fmt.Fprintf(os.Stderr, "Error: %s required\n", what)
		fs.Usage()
		os.Exit(1)
	}
}

func runEncode(args []string) {
	fs, cf := newFlagSet("encode", "encode [flags] <value.yaml>")
	out := fs.StringP("output", "o", "", "Also write the binary encoding to this file")
	_ = fs.Parse(args)
	requireArgs(fs, 1, "value file")
	cf.load()

	if err := commands.RunEncode(fs.Arg(0), *out, os.Stdout); err != nil {
		fatal(err)
	}
}

func runDecode(args []string) {
	fs, cf := newFlagSet("decode", "decode [flags] <hex>")
	ttr := fs.String("ttr", "", "Timestamps to return (source, server, both, neither)")
	attr := fs.String("attr", "Value", "Attribute the value was read from")
	rng := fs.String("range", "", "Index range, e.g. 1:2 or 0:1,2:3")
	_ = fs.Parse(args)
	requireArgs(fs, 1, "hex input")
	cfg := cf.load()

	params := commands.DecodeParams{
		Options:    cfg.DecodeOptions(),
		Timestamps: cfg.TimestampsToReturn,
		Attribute:  *attr,
		Range:      *rng,
	}
	if *ttr != "" {
		params.Timestamps = *ttr
	}
	if err := commands.RunDecode(strings.Join(fs.Args(), ""), params, os.Stdout); err != nil {
		fatal(err)
	}
}

func runTrace(args []string) {
	fs, cf := newFlagSet("trace", "trace [flags] <hex>")
	out := fs.StringP("output", "o", "", "Append CBOR trace events to this file")
	source := fs.String("source", "", "Source label recorded with each event")
	_ = fs.Parse(args)
	requireArgs(fs, 1, "hex input")
	cfg := cf.load()

	params := commands.TraceParams{
		Options: cfg.DecodeOptions(),
		Logger:  cfg.NewLogger(os.Stderr),
		OutPath: *out,
		Source:  *source,
	}
	if err := commands.RunTrace(strings.Join(fs.Args(), ""), params, os.Stdout); err != nil {
		fatal(err)
	}
}

func runView(args []string) {
	fs, cf := newFlagSet("view", "view [flags] <file.dvtrace>")
	field := fs.String("field", "", "Show only events for this field")
	kind := fs.String("kind", "", "Show only events of this kind (member, encoding, error)")
	source := fs.String("source", "", "Show only events with this source label")
	since := fs.String("since", "", "Show only events at or after this RFC3339 time")
	_ = fs.Parse(args)
	requireArgs(fs, 1, "trace file path")
	cf.load()

	filter := log.Filter{Field: *field, Source: *source}
	if *kind != "" {
		k, err := log.ParseKind(*kind)
		if err != nil {
			fatal(err)
		}
		filter.Kind = &k
	}
	if *since != "" {
		t, err := time.Parse(time.RFC3339Nano, *since)
		if err != nil {
			fatal(err)
		}
		filter.TimeStart = &t
	}
	if err := commands.RunView(fs.Arg(0), filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runCapture(args []string) {
	fs, cf := newFlagSet("capture", "capture append|dump [flags] <file> [hex...]")
	zstd := fs.Bool("zstd", false, "Compress a newly created capture file")
	_ = fs.Parse(args)
	requireArgs(fs, 2, "action and capture file")
	cfg := cf.load()

	path := fs.Arg(1)
	var err error
	switch fs.Arg(0) {
	case "append":
		requireArgs(fs, 3, "hex values")
		opts := capture.Options{Compress: cfg.Compress || *zstd}
		err = commands.RunCaptureAppend(path, fs.Args()[2:], opts, cfg.DecodeOptions(), os.Stdout)
	case "dump":
		err = commands.RunCaptureDump(path, cfg.DecodeOptions(), os.Stdout)
	default:
		err = fmt.Errorf("unknown capture action: %s", fs.Arg(0))
	}
	if err != nil {
		fatal(err)
	}
}

func runShell(args []string) {
	fs, cf := newFlagSet("shell", "shell [flags]")
	_ = fs.Parse(args)
	cfg := cf.load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := commands.RunShell(ctx, cfg); err != nil {
		fatal(err)
	}
}
