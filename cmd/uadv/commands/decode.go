package commands

import (
	"fmt"
	"io"

	"github.com/mash-protocol/opcua-go/pkg/attribute"
	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/datetime"
	"github.com/mash-protocol/opcua-go/pkg/numrange"
)

// DecodeParams controls how decode post-processes a value.
type DecodeParams struct {
	// Options are passed to the codec.
	Options datavalue.DecodeOptions

	// Timestamps is applied when set; empty keeps the decoded timestamps.
	Timestamps string

	// Attribute is the attribute the value was read from. Defaults to Value.
	Attribute string

	// Range selects a sub-range of the value when set.
	Range string

	// Clock synthesizes missing server timestamps. nil means the system
	// clock.
	Clock datetime.Clock
}

// Process decodes data and applies the range and timestamp selection.
func (p DecodeParams) Process(data []byte) (*datavalue.DataValue, error) {
	dv, err := datavalue.UnmarshalWithOptions(data, p.Options)
	if err != nil {
		return nil, err
	}

	if p.Range != "" {
		nr, err := numrange.Parse(p.Range)
		if err != nil {
			return nil, err
		}
		if dv, err = datavalue.ExtractRange(dv, nr); err != nil {
			return nil, err
		}
	}

	if p.Timestamps == "" {
		return dv, nil
	}
	ttr, err := datavalue.ParseTimestampsToReturn(p.Timestamps)
	if err != nil {
		return nil, err
	}
	attr := attribute.Value
	if p.Attribute != "" {
		if attr, err = attribute.Parse(p.Attribute); err != nil {
			return nil, err
		}
		if !attr.IsValid() {
			return nil, fmt.Errorf("unknown attribute %s", p.Attribute)
		}
	}
	clock := p.Clock
	if clock == nil {
		clock = datetime.Default()
	}
	return datavalue.ApplyTimestampsWithClock(dv, ttr, attr, clock), nil
}

// RunDecode decodes a hex encoded DataValue and prints it.
func RunDecode(input string, params DecodeParams, w io.Writer) error {
	data, err := ParseHex(input)
	if err != nil {
		return err
	}
	dv, err := params.Process(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "mask: %s\n", datavalue.EncodingMask(data[0]))
	fmt.Fprintln(w, dv)
	return nil
}
