package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
)

// Session holds the state of an interactive shell.
type Session struct {
	Params DecodeParams
}

// NewSession creates a session with the decode settings of cfg.
func NewSession(cfg Config) *Session {
	return &Session{Params: DecodeParams{
		Options:    cfg.DecodeOptions(),
		Timestamps: cfg.TimestampsToReturn,
	}}
}

// Exec runs one command line, writing its output to w. quit is true when
// the line ends the session.
func (s *Session) Exec(line string, w io.Writer) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp(w)
	case "decode", "d":
		if len(args) == 0 {
			return false, errors.New("usage: decode <hex>")
		}
		return false, RunDecode(strings.Join(args, ""), s.Params, w)
	case "mask", "m":
		return false, s.cmdMask(args, w)
	case "ttr":
		return false, s.cmdTimestamps(args, w)
	case "range":
		return false, s.cmdRange(args, w)
	case "attr":
		if len(args) != 1 {
			return false, errors.New("usage: attr <name|id>")
		}
		s.Params.Attribute = args[0]
		fmt.Fprintf(w, "attribute: %s\n", args[0])
	case "strict":
		return false, s.cmdStrict(args, w)
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return false, nil
}

func (s *Session) printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  decode <hex>        Decode a DataValue
  mask <hex>          Explain an encoding mask byte
  ttr <mode|off>      Timestamps to return (source, server, both, neither)
  range <range|off>   Index range applied to decoded values
  attr <name|id>      Attribute the decoded values belong to
  strict <on|off>     Reject reserved mask bits
  quit                Leave the shell
`)
}

func (s *Session) cmdMask(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: mask <hex>")
	}
	b, err := ParseHex(args[0])
	if err != nil {
		return err
	}
	if len(b) != 1 {
		return fmt.Errorf("mask is one byte, got %d", len(b))
	}
	m := datavalue.EncodingMask(b[0])
	fmt.Fprintln(w, m)
	if m&datavalue.MaskReserved != 0 {
		fmt.Fprintln(w, "reserved bits set: rejected by strict decoding")
	}
	return nil
}

func (s *Session) cmdTimestamps(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: ttr <source|server|both|neither|off>")
	}
	if args[0] == "off" {
		s.Params.Timestamps = ""
		fmt.Fprintln(w, "timestamps: as decoded")
		return nil
	}
	ttr, err := datavalue.ParseTimestampsToReturn(args[0])
	if err != nil {
		return err
	}
	s.Params.Timestamps = args[0]
	fmt.Fprintf(w, "timestamps: %s\n", ttr)
	return nil
}

func (s *Session) cmdRange(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: range <range|off>")
	}
	if args[0] == "off" {
		s.Params.Range = ""
		fmt.Fprintln(w, "range: off")
		return nil
	}
	s.Params.Range = args[0]
	fmt.Fprintf(w, "range: %s\n", args[0])
	return nil
}

func (s *Session) cmdStrict(args []string, w io.Writer) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return errors.New("usage: strict <on|off>")
	}
	s.Params.Options.Strict = args[0] == "on"
	fmt.Fprintf(w, "strict: %s\n", args[0])
	return nil
}

// RunShell runs the interactive command loop until quit, end of input or
// cancellation of ctx.
func RunShell(ctx context.Context, cfg Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "uadv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s := NewSession(cfg)
	s.printHelp(rl.Stdout())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}

		quit, err := s.Exec(line, rl.Stdout())
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}
