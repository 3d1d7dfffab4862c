package datavalue

import (
	"encoding/hex"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/opcua-go/pkg/binary"
	"github.com/mash-protocol/opcua-go/pkg/log"
	"github.com/mash-protocol/opcua-go/pkg/log/mocks"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

type vectorFile struct {
	Valid   []validVector   `yaml:"valid"`
	Invalid []invalidVector `yaml:"invalid"`
}

type validVector struct {
	Name              string `yaml:"name"`
	Hex               string `yaml:"hex"`
	Reencode          string `yaml:"reencode"`
	Status            string `yaml:"status"`
	Value             string `yaml:"value"`
	Source            string `yaml:"source"`
	SourcePicoseconds uint32 `yaml:"sourcePicoseconds"`
	Server            string `yaml:"server"`
	ServerPicoseconds uint32 `yaml:"serverPicoseconds"`
}

type invalidVector struct {
	Name    string `yaml:"name"`
	Hex     string `yaml:"hex"`
	Error   string `yaml:"error"`
	Lenient bool   `yaml:"lenient"`
}

func loadVectors(t *testing.T) vectorFile {
	t.Helper()
	data, err := os.ReadFile("testdata/vectors.yaml")
	require.NoError(t, err)
	var vf vectorFile
	require.NoError(t, yaml.Unmarshal(data, &vf))
	require.NotEmpty(t, vf.Valid)
	return vf
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func assertTime(t *testing.T, want string, got *time.Time) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	w, err := time.Parse(time.RFC3339Nano, want)
	require.NoError(t, err)
	assert.True(t, w.Equal(*got), "time = %v, want %v", got, w)
}

func TestVectors(t *testing.T) {
	vf := loadVectors(t)

	for _, v := range vf.Valid {
		t.Run(v.Name, func(t *testing.T) {
			data := mustHex(t, v.Hex)
			dv, err := Unmarshal(data)
			require.NoError(t, err)

			wantStatus, err := status.Parse(v.Status)
			require.NoError(t, err)
			assert.Equal(t, wantStatus, dv.StatusCode)
			assert.Equal(t, v.Value, dv.Value.String())
			assertTime(t, v.Source, dv.SourceTimestamp)
			assertTime(t, v.Server, dv.ServerTimestamp)
			assert.Equal(t, v.SourcePicoseconds, dv.SourcePicoseconds)
			assert.Equal(t, v.ServerPicoseconds, dv.ServerPicoseconds)

			out, err := Marshal(dv)
			require.NoError(t, err)
			want := v.Hex
			if v.Reencode != "" {
				want = v.Reencode
			}
			assert.Equal(t, want, hex.EncodeToString(out))
		})
	}

	for _, v := range vf.Invalid {
		t.Run(v.Name, func(t *testing.T) {
			data := mustHex(t, v.Hex)
			_, err := Unmarshal(data)
			require.Error(t, err)

			var de *DecodeError
			require.ErrorAs(t, err, &de)

			switch v.Error {
			case "reserved":
				assert.ErrorIs(t, err, ErrReservedBits)
			case "eof":
				assert.ErrorIs(t, err, binary.ErrUnexpectedEndOfStream)
			case "picoseconds":
				assert.ErrorIs(t, err, ErrPicosecondsRange)
			case "unsupported":
				assert.ErrorIs(t, err, variant.ErrUnsupportedType)
			default:
				t.Fatalf("unknown error class %q", v.Error)
			}

			_, err = UnmarshalWithOptions(data, DecodeOptions{})
			if v.Lenient {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func testTime() time.Time {
	return time.Date(2026, 1, 1, 8, 30, 15, 123456700, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestEncodingMask(t *testing.T) {
	ts := testTime()
	tests := []struct {
		name string
		dv   *DataValue
		want EncodingMask
	}{
		{"empty", &DataValue{}, 0},
		{"value", New(variant.Int32(1)), MaskValue},
		{"null value", New(variant.Null()), 0},
		{"good status", &DataValue{StatusCode: status.Good}, 0},
		{"bad status", NewBad(status.BadNoData), MaskStatusCode},
		{"source", &DataValue{SourceTimestamp: &ts}, MaskSourceTimestamp},
		{"source ps", &DataValue{SourceTimestamp: &ts, SourcePicoseconds: 10}, MaskSourceTimestamp | MaskSourcePicoseconds},
		{"whole tick ps", &DataValue{SourceTimestamp: &ts, SourcePicoseconds: 100000}, MaskSourceTimestamp},
		{"server", &DataValue{ServerTimestamp: &ts, ServerPicoseconds: 5}, MaskServerTimestamp | MaskServerPicoseconds},
		{"all", &DataValue{
			Value:             variant.Double(1),
			StatusCode:        status.Uncertain,
			SourceTimestamp:   &ts,
			SourcePicoseconds: 20,
			ServerTimestamp:   &ts,
			ServerPicoseconds: 30,
		}, 0x3F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dv.EncodingMask())
		})
	}
}

func TestEncodingMaskString(t *testing.T) {
	m := MaskValue | MaskServerTimestamp
	assert.Equal(t, "0x11[value|serverTimestamp]", m.String())
	assert.Equal(t, []string{"reserved6", "reserved7"}, MaskReserved.Names())
	assert.True(t, m.Has(MaskValue))
	assert.False(t, m.Has(MaskValue|MaskStatusCode))
}

func TestRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 1, 8, 30, 15, 123456700, time.UTC)
	later := ts.Add(3 * time.Second)

	tests := []struct {
		name string
		dv   *DataValue
	}{
		{"default", New(nil)},
		{"scalar", New(variant.Int32(-7))},
		{"array with timestamps", &DataValue{
			Value:             variant.DoubleArray(1.5, 2.5),
			SourceTimestamp:   &ts,
			SourcePicoseconds: 12340,
			ServerTimestamp:   &later,
		}},
		{"uncertain", &DataValue{
			Value:             variant.String("x"),
			StatusCode:        status.UncertainLastUsableValue,
			ServerTimestamp:   &later,
			ServerPicoseconds: 99990,
		}},
		{"bad without value", &DataValue{StatusCode: status.BadWaitingForInitialData, ServerTimestamp: &ts}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.dv)
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)

			assert.True(t, SameValue(tt.dv, got, TimestampsBoth), "got %v\nwant %v", got, tt.dv)
			// Also without the source timestamp shortcut.
			assert.True(t, ChangeDetector{VerifyPayload: true}.SameValue(tt.dv, got))
			assert.True(t, variant.Equal(tt.dv.Value, got.Value) || (tt.dv.Value == nil && got.Value == nil))
		})
	}
}

func TestEncodedLength(t *testing.T) {
	ts := testTime()
	dv := &DataValue{
		Value:             variant.Int32(1),
		StatusCode:        status.BadNoData,
		SourceTimestamp:   &ts,
		SourcePicoseconds: 10,
		ServerTimestamp:   &ts,
	}
	data, err := Marshal(dv)
	require.NoError(t, err)
	// mask + variant(1+4) + status(4) + source(8) + source ps(2) + server(8)
	assert.Len(t, data, 1+5+4+8+2+8)

	data, err = Marshal(&DataValue{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, data)
}

func TestStatusDefault(t *testing.T) {
	dv, err := Unmarshal([]byte{0x01, 0x06, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, status.Good, dv.StatusCode)

	data, err := Marshal(New(variant.Int32(1)))
	require.NoError(t, err)
	assert.Zero(t, data[0]&byte(MaskStatusCode))
}

func TestPicosecondCarry(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dv := &DataValue{SourceTimestamp: &ts, SourcePicoseconds: 123456}

	data, err := Marshal(dv)
	require.NoError(t, err)

	r := binary.NewReader(data[1+8:])
	units, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(2345), units)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	// One whole tick moves into the timestamp; 23456 ps remain, of which
	// 23450 survive the 10 ps resolution.
	assert.True(t, ts.Add(100*time.Nanosecond).Equal(*got.SourceTimestamp))
	assert.Equal(t, uint32(23450), got.SourcePicoseconds)

	beyond := uint32(got.SourceTimestamp.Sub(ts)/time.Nanosecond)*1000 + got.SourcePicoseconds
	assert.Equal(t, uint32(123450), beyond)
}

func TestPicosecondsAreAdditive(t *testing.T) {
	// A target that already holds picoseconds is reset, then the field adds
	// onto what the timestamp decode attributed to it.
	dv := &DataValue{SourcePicoseconds: 777, ServerPicoseconds: 999}
	err := dv.DecodeFrom(binary.NewReader(mustHex(t, "0c00008192b17adc012909")), DefaultDecodeOptions())
	require.NoError(t, err)
	assert.Equal(t, uint32(23450), dv.SourcePicoseconds)
	assert.Zero(t, dv.ServerPicoseconds)
	assert.Nil(t, dv.ServerTimestamp)
}

func TestDecodeFromResetsTarget(t *testing.T) {
	ts := testTime()
	dv := &DataValue{Value: variant.Int32(9), StatusCode: status.BadNoData, SourceTimestamp: &ts}
	require.NoError(t, dv.DecodeFrom(binary.NewReader([]byte{0x00}), DefaultDecodeOptions()))
	assert.Nil(t, dv.Value)
	assert.Equal(t, status.Good, dv.StatusCode)
	assert.Nil(t, dv.SourceTimestamp)
}

func TestDecodeSequence(t *testing.T) {
	w := &binary.Writer{}
	for i := int32(0); i < 3; i++ {
		require.NoError(t, New(variant.Int32(i)).Encode(w))
	}

	r := binary.NewReader(w.Bytes())
	for i := int32(0); i < 3; i++ {
		dv, err := Decode(r)
		require.NoError(t, err)
		assert.Equal(t, i, dv.Value.Value)
	}
	assert.Zero(t, r.Remaining())
}

func TestUnmarshalTrailingBytes(t *testing.T) {
	_, err := Unmarshal([]byte{0x00, 0x00})
	assert.ErrorIs(t, err, ErrTrailingBytes)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Offset)
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Unmarshal([]byte{0x02, 0x01})
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "statusCode", de.Field)
	assert.Equal(t, 1, de.Offset)
	assert.Contains(t, err.Error(), "decode DataValue statusCode at offset 1")
}

func TestEncodeInvalidValue(t *testing.T) {
	dv := New(&variant.Variant{Type: variant.TypeInt32, Value: "nope"})
	_, err := Marshal(dv)
	assert.ErrorIs(t, err, variant.ErrTypeMismatch)
}

func TestTraceCoversInput(t *testing.T) {
	data := mustHex(t, "3f01010000004000008192b17adc01290901008192b17adc010f27")
	rec := &log.Recorder{}

	dv, err := UnmarshalWithOptions(data, DecodeOptions{Strict: true, Tracer: rec, Source: "vector"})
	require.NoError(t, err)
	require.NotNil(t, dv)

	assert.Equal(t, []string{
		"encodingMask", "value", "statusCode",
		"sourceTimestamp", "sourcePicoseconds",
		"serverTimestamp", "serverPicoseconds",
	}, rec.Fields())

	next := 0
	for _, e := range rec.Events {
		assert.Equal(t, next, e.Start, "field %s", e.Field)
		assert.Equal(t, data[e.Start:e.End], e.Raw)
		assert.Equal(t, "vector", e.Source)
		next = e.End
	}
	assert.Equal(t, len(data), next)

	mask := rec.Events[0]
	assert.Equal(t, log.KindEncodingByte, mask.Kind)
	assert.Equal(t, "0x3F", mask.Value)
	assert.Len(t, mask.Bits, 6)

	assert.Equal(t, "99990", rec.Events[6].Value)
	assert.Equal(t, "UInt16", rec.Events[6].WireType)
}

func TestTraceReportsError(t *testing.T) {
	rec := &log.Recorder{}
	_, err := DecodeWithOptions(binary.NewReader([]byte{0x04, 0x01, 0x02}), DecodeOptions{Strict: true, Tracer: rec})
	require.Error(t, err)

	require.Len(t, rec.Events, 2)
	last := rec.Events[1]
	assert.Equal(t, log.KindError, last.Kind)
	assert.Equal(t, "sourceTimestamp", last.Field)
	assert.Equal(t, 1, last.Start)
	assert.Contains(t, last.Error, "unexpected end of stream")
}

func TestTraceTruncatesRaw(t *testing.T) {
	big := make([]byte, 1000)
	data, err := Marshal(New(variant.ByteString(big)))
	require.NoError(t, err)

	rec := &log.Recorder{}
	_, err = UnmarshalWithOptions(data, DecodeOptions{Tracer: rec})
	require.NoError(t, err)

	value := rec.Events[1]
	assert.True(t, value.Truncated)
	assert.Len(t, value.Raw, log.MaxRawSize)
	assert.Equal(t, 1+1+4+1000, value.End)
}

func TestTraceEventsReachSink(t *testing.T) {
	sink := mocks.NewMockLogger(t)
	sink.EXPECT().Log(mock.MatchedBy(func(e log.Event) bool {
		return e.Kind == log.KindEncodingByte && e.Field == "encodingMask" && e.End == 1
	})).Once()
	sink.EXPECT().Log(mock.MatchedBy(func(e log.Event) bool {
		return e.Kind == log.KindMember && e.Field == "value" && e.Start == 1 && e.End == 6
	})).Once()

	dv, err := UnmarshalWithOptions(mustHex(t, "01062a000000"), DecodeOptions{Strict: true, Tracer: sink})
	require.NoError(t, err)
	assert.True(t, variant.Equal(variant.Int32(42), dv.Value))
}
