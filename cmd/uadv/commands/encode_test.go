package commands

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

func encodeSpec(t *testing.T, spec string) string {
	t.Helper()
	vs, err := ParseValueSpec([]byte(spec))
	if err != nil {
		t.Fatalf("ParseValueSpec: %v", err)
	}
	dv, err := vs.DataValue()
	if err != nil {
		t.Fatalf("DataValue: %v", err)
	}
	data, err := datavalue.Marshal(dv)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return hex.EncodeToString(data)
}

func TestValueSpecEncoding(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{"empty", "{}", "00"},
		{"int32", "type: Int32\nvalue: 42\n", "01062a000000"},
		{"string", "type: String\nvalue: ab\n", "010c020000006162"},
		{"status name", "status: BadNoData\n", "0200009b80"},
		{"status number", "status: \"0x809B0000\"\n", "0200009b80"},
		{"source timestamp", "sourceTimestamp: \"2026-01-01T00:00:00Z\"\n", "0400008192b17adc01"},
		{
			"source picoseconds",
			"sourceTimestamp: \"2026-01-01T00:00:00Z\"\nsourcePicoseconds: 23450\n",
			"0c00008192b17adc012909",
		},
		{"server picoseconds only", "serverPicoseconds: 23450\n", "202909"},
		{"null variant", "type: Null\n", "00"},
		{"int32 array", "type: Int32\narray: true\nvalue: [1, 2]\n", "018602000000" + "01000000" + "02000000"},
		{"null array", "type: Int32\narray: true\nvalue: null\n", "0186ffffffff"},
		{"bytestring", "type: ByteString\nvalue: \"0102\"\n", "010f020000000102"},
		{"boolean", "type: Boolean\nvalue: true\n", "010101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encodeSpec(t, tt.spec); got != tt.want {
				t.Errorf("encoding = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValueSpecMatrix(t *testing.T) {
	vs, err := ParseValueSpec([]byte("type: Int16\ndimensions: [2, 3]\nvalue: [1, 2, 3, 4, 5, 6]\n"))
	if err != nil {
		t.Fatalf("ParseValueSpec: %v", err)
	}
	dv, err := vs.DataValue()
	if err != nil {
		t.Fatalf("DataValue: %v", err)
	}
	if dv.Value.ArrayType != variant.Matrix {
		t.Errorf("ArrayType = %v, want Matrix", dv.Value.ArrayType)
	}

	vs, _ = ParseValueSpec([]byte("type: Int16\ndimensions: [2, 2]\nvalue: [1, 2, 3]\n"))
	if _, err := vs.DataValue(); !errors.Is(err, variant.ErrInvalidDimensions) {
		t.Errorf("err = %v, want ErrInvalidDimensions", err)
	}
}

func TestValueSpecStructuredTypes(t *testing.T) {
	vs, err := ParseValueSpec([]byte(`
type: LocalizedText
array: true
value:
  - {locale: en, text: Power}
  - {text: Leistung}
status: UncertainLastUsableValue
`))
	if err != nil {
		t.Fatalf("ParseValueSpec: %v", err)
	}
	dv, err := vs.DataValue()
	if err != nil {
		t.Fatalf("DataValue: %v", err)
	}
	texts := dv.Value.Value.([]variant.LocalizedText)
	if len(texts) != 2 || texts[0].Locale != "en" || texts[1].Text != "Leistung" {
		t.Errorf("texts = %+v", texts)
	}
	if dv.StatusCode != status.UncertainLastUsableValue {
		t.Errorf("status = %s", dv.StatusCode)
	}

	vs, _ = ParseValueSpec([]byte("type: QualifiedName\nvalue: {ns: 2, name: Temp}\n"))
	dv, err = vs.DataValue()
	if err != nil {
		t.Fatalf("DataValue: %v", err)
	}
	if q := dv.Value.Value.(variant.QualifiedName); q.NamespaceIndex != 2 || q.Name != "Temp" {
		t.Errorf("qualified name = %+v", q)
	}
}

func TestValueSpecErrors(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"unknown type", "type: Quaternion\nvalue: 1\n"},
		{"type without value", "type: Int32\n"},
		{"overflow", "type: Byte\nvalue: 300\n"},
		{"not a number", "type: Double\nvalue: high\n"},
		{"scalar for array", "type: Int32\narray: true\nvalue: 5\n"},
		{"bad status", "status: SortOfOkay\n"},
		{"bad timestamp", "serverTimestamp: yesterday\n"},
		{"picoseconds too large", "sourcePicoseconds: 100000\n"},
		{"bad guid", "type: Guid\nvalue: not-a-guid\n"},
		{"unsupported type", "type: NodeId\nvalue: ns=1;i=5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs, err := ParseValueSpec([]byte(tt.spec))
			if err != nil {
				return
			}
			if _, err := vs.DataValue(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunEncode(t *testing.T) {
	specPath := writeFile(t, "value.yaml", "type: Int32\nvalue: 42\n")
	outPath := filepath.Join(t.TempDir(), "value.bin")

	var buf bytes.Buffer
	if err := RunEncode(specPath, outPath, &buf); err != nil {
		t.Fatalf("RunEncode: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "01062a000000" {
		t.Errorf("output = %q", buf.String())
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if hex.EncodeToString(data) != "01062a000000" {
		t.Errorf("file = %x", data)
	}

	if err := RunEncode(filepath.Join(t.TempDir(), "missing.yaml"), "", &buf); err == nil {
		t.Error("expected error for missing spec")
	}
}
