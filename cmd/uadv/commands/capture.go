package commands

import (
	"fmt"
	"io"

	"github.com/mash-protocol/opcua-go/pkg/capture"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
)

// RunCaptureAppend validates each hex encoded value and appends it to the
// capture file at path, creating the file with opts if needed.
func RunCaptureAppend(path string, inputs []string, opts capture.Options, decode datavalue.DecodeOptions, w io.Writer) error {
	values := make([]*datavalue.DataValue, 0, len(inputs))
	for i, in := range inputs {
		data, err := ParseHex(in)
		if err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		dv, err := datavalue.UnmarshalWithOptions(data, decode)
		if err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		values = append(values, dv)
	}

	cw, err := capture.OpenAppend(path, opts)
	if err != nil {
		return err
	}
	for _, dv := range values {
		if err := cw.Append(dv); err != nil {
			cw.Close()
			return err
		}
	}
	if err := cw.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "appended %d values to %s\n", len(values), path)
	return nil
}

// RunCaptureDump prints every value of the capture file at path.
func RunCaptureDump(path string, decode datavalue.DecodeOptions, w io.Writer) error {
	r, err := capture.Open(path, decode)
	if err != nil {
		return err
	}
	defer r.Close()

	h := r.Header()
	compression := "none"
	if h.Compressed {
		compression = "zstd"
	}
	fmt.Fprintf(w, "# capture version %d, compression %s\n", h.Version, compression)

	for i := 0; ; i++ {
		dv, err := r.Next()
		if err == io.EOF {
			fmt.Fprintf(w, "# %d values\n", i)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[%d] %s\n", i, dv)
	}
}
