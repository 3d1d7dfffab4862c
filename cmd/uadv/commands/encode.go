package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

// ValueSpec is the YAML description of a DataValue accepted by encode.
//
//	type: Int32
//	array: true
//	value: [1, 2, 3]
//	status: UncertainLastUsableValue
//	sourceTimestamp: 2026-06-01T12:00:00.1234567Z
//	sourcePicoseconds: 1230
//
// A missing value key leaves the value absent. Type Null builds a Null
// variant, which encodes like an absent value.
type ValueSpec struct {
	Type              string    `yaml:"type"`
	Array             bool      `yaml:"array"`
	Dimensions        []int32   `yaml:"dimensions"`
	Value             yaml.Node `yaml:"value"`
	Status            string    `yaml:"status"`
	SourceTimestamp   string    `yaml:"sourceTimestamp"`
	SourcePicoseconds uint32    `yaml:"sourcePicoseconds"`
	ServerTimestamp   string    `yaml:"serverTimestamp"`
	ServerPicoseconds uint32    `yaml:"serverPicoseconds"`
}

// ParseValueSpec parses a YAML value description.
func ParseValueSpec(data []byte) (*ValueSpec, error) {
	var spec ValueSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse value spec: %w", err)
	}
	return &spec, nil
}

// DataValue builds the DataValue described by the spec.
func (s *ValueSpec) DataValue() (*datavalue.DataValue, error) {
	dv := &datavalue.DataValue{
		SourcePicoseconds: s.SourcePicoseconds,
		ServerPicoseconds: s.ServerPicoseconds,
	}
	for _, ps := range []uint32{s.SourcePicoseconds, s.ServerPicoseconds} {
		if ps > datavalue.MaxPicoseconds {
			return nil, fmt.Errorf("picoseconds %d above %d", ps, datavalue.MaxPicoseconds)
		}
	}

	if s.Status != "" {
		code, err := parseStatus(s.Status)
		if err != nil {
			return nil, err
		}
		dv.StatusCode = code
	}

	var err error
	if dv.SourceTimestamp, err = parseTimestamp("sourceTimestamp", s.SourceTimestamp); err != nil {
		return nil, err
	}
	if dv.ServerTimestamp, err = parseTimestamp("serverTimestamp", s.ServerTimestamp); err != nil {
		return nil, err
	}

	if s.Value.Kind == 0 {
		if s.Type != "" && s.Type != "Null" {
			return nil, fmt.Errorf("type %s given without a value", s.Type)
		}
		if s.Type == "Null" {
			dv.Value = variant.Null()
		}
		return dv, nil
	}
	if dv.Value, err = s.variant(); err != nil {
		return nil, err
	}
	return dv, nil
}

func (s *ValueSpec) variant() (*variant.Variant, error) {
	t, err := variant.ParseDataType(s.Type)
	if err != nil {
		return nil, err
	}
	if t == variant.TypeNull {
		return variant.Null(), nil
	}
	array := s.Array || len(s.Dimensions) > 0
	value, err := nodeValue(&s.Value, t, array)
	if err != nil {
		return nil, fmt.Errorf("value (line %d): %w", s.Value.Line, err)
	}
	switch {
	case len(s.Dimensions) > 0:
		return variant.NewMatrix(t, value, s.Dimensions)
	case array:
		return variant.NewArray(t, value)
	default:
		return variant.NewScalar(t, value)
	}
}

func parseStatus(s string) (status.Code, error) {
	if code, err := status.Parse(s); err == nil {
		return code, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown status code: %q", s)
	}
	return status.Code(n), nil
}

func parseTimestamp(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &t, nil
}

type qualifiedNameSpec struct {
	NamespaceIndex uint16 `yaml:"ns"`
	Name           string `yaml:"name"`
}

type localizedTextSpec struct {
	Locale string `yaml:"locale"`
	Text   string `yaml:"text"`
}

func nodeValue(n *yaml.Node, t variant.DataType, array bool) (any, error) {
	switch t {
	case variant.TypeBoolean:
		return nodeAs(n, array, plain[bool])
	case variant.TypeSByte:
		return nodeAs(n, array, plain[int8])
	case variant.TypeByte:
		return nodeAs(n, array, plain[uint8])
	case variant.TypeInt16:
		return nodeAs(n, array, plain[int16])
	case variant.TypeUInt16:
		return nodeAs(n, array, plain[uint16])
	case variant.TypeInt32:
		return nodeAs(n, array, plain[int32])
	case variant.TypeUInt32:
		return nodeAs(n, array, plain[uint32])
	case variant.TypeInt64:
		return nodeAs(n, array, plain[int64])
	case variant.TypeUInt64:
		return nodeAs(n, array, plain[uint64])
	case variant.TypeFloat:
		return nodeAs(n, array, plain[float32])
	case variant.TypeDouble:
		return nodeAs(n, array, plain[float64])
	case variant.TypeString, variant.TypeXmlElement:
		return nodeAs(n, array, text)
	case variant.TypeDateTime:
		return nodeAs(n, array, func(n *yaml.Node) (time.Time, error) {
			return time.Parse(time.RFC3339Nano, n.Value)
		})
	case variant.TypeGuid:
		return nodeAs(n, array, func(n *yaml.Node) (uuid.UUID, error) {
			return uuid.Parse(n.Value)
		})
	case variant.TypeByteString:
		return nodeAs(n, array, func(n *yaml.Node) ([]byte, error) {
			if n.Tag == "!!null" {
				return nil, nil
			}
			return ParseHex(n.Value)
		})
	case variant.TypeStatusCode:
		return nodeAs(n, array, func(n *yaml.Node) (status.Code, error) {
			return parseStatus(n.Value)
		})
	case variant.TypeQualifiedName:
		return nodeAs(n, array, func(n *yaml.Node) (variant.QualifiedName, error) {
			q, err := plain[qualifiedNameSpec](n)
			return variant.QualifiedName{NamespaceIndex: q.NamespaceIndex, Name: q.Name}, err
		})
	case variant.TypeLocalizedText:
		return nodeAs(n, array, func(n *yaml.Node) (variant.LocalizedText, error) {
			l, err := plain[localizedTextSpec](n)
			return variant.LocalizedText{Locale: l.Locale, Text: l.Text}, err
		})
	default:
		return nil, fmt.Errorf("encode %s: %w", t, variant.ErrUnsupportedType)
	}
}

// nodeAs converts a scalar node, or each element of a sequence node when
// array is set. A null sequence yields a nil slice.
func nodeAs[T any](n *yaml.Node, array bool, conv func(*yaml.Node) (T, error)) (any, error) {
	if !array {
		return conv(n)
	}
	if n.Tag == "!!null" {
		return []T(nil), nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a list, got %q", n.Value)
	}
	out := make([]T, 0, len(n.Content))
	for _, c := range n.Content {
		x, err := conv(c)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func plain[T any](n *yaml.Node) (T, error) {
	var x T
	err := n.Decode(&x)
	return x, err
}

func text(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a string at line %d", n.Line)
	}
	return n.Value, nil
}

// RunEncode encodes the DataValue described by the YAML file at specPath
// and prints it as hex. When outPath is set the binary encoding is also
// written there.
func RunEncode(specPath, outPath string, w io.Writer) error {
	data, err := os.ReadFile(specPath)
	if err != nil {
		return err
	}
	spec, err := ParseValueSpec(data)
	if err != nil {
		return err
	}
	dv, err := spec.DataValue()
	if err != nil {
		return err
	}
	encoded, err := datavalue.Marshal(dv)
	if err != nil {
		return err
	}
	if outPath != "" {
		if err := os.WriteFile(outPath, encoded, 0644); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, hex.EncodeToString(encoded))
	return nil
}
