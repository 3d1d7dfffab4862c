package capture

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
	"github.com/mash-protocol/opcua-go/pkg/status"
	"github.com/mash-protocol/opcua-go/pkg/variant"
)

func sampleValues() []*datavalue.DataValue {
	ts := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	srv := ts.Add(time.Millisecond)
	return []*datavalue.DataValue{
		datavalue.New(variant.Int32(1)),
		{
			Value:             variant.DoubleArray(1.5, 2.5, 3.5),
			SourceTimestamp:   &ts,
			SourcePicoseconds: 250,
			ServerTimestamp:   &srv,
		},
		datavalue.NewBad(status.BadWaitingForInitialData),
		datavalue.New(variant.String("hello")),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, Options{Compress: compress})
			require.NoError(t, err)

			values := sampleValues()
			for _, dv := range values {
				require.NoError(t, w.Append(dv))
			}
			assert.Equal(t, len(values), w.Count())
			require.NoError(t, w.Close())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), datavalue.DefaultDecodeOptions())
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, compress, r.Header().Compressed)

			got, err := r.ReadAll()
			require.NoError(t, err)
			require.Len(t, got, len(values))
			for i := range values {
				assert.True(t, datavalue.ChangeDetector{VerifyPayload: true}.SameValue(values[i], got[i]), "value %d", i)
			}
		})
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	encode := func(compress bool) int {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, Options{Compress: compress})
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			require.NoError(t, w.Append(datavalue.New(variant.Int32Array(1, 2, 3, 4, 5, 6, 7, 8))))
		}
		require.NoError(t, w.Close())
		return buf.Len()
	}
	assert.Less(t, encode(true), encode(false))
}

func TestOpenAppend(t *testing.T) {
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "values.uadv")

		for i := 0; i < 3; i++ {
			// Later opens ask for the opposite setting; the file keeps its own.
			w, err := OpenAppend(path, Options{Compress: compress != (i > 0)})
			require.NoError(t, err)
			require.NoError(t, w.Append(datavalue.New(variant.Int32(int32(i)))))
			require.NoError(t, w.Close())
		}

		r, err := Open(path, datavalue.DefaultDecodeOptions())
		require.NoError(t, err)
		assert.Equal(t, compress, r.Header().Compressed)

		got, err := r.ReadAll()
		require.NoError(t, err)
		require.NoError(t, r.Close())

		require.Len(t, got, 3)
		for i, dv := range got {
			assert.Equal(t, int32(i), dv.Value.Value)
		}
	}
}

func TestCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.uadv")
	for i := 0; i < 2; i++ {
		w, err := Create(path, Options{})
		require.NoError(t, err)
		require.NoError(t, w.Append(datavalue.New(variant.Int32(7))))
		require.NoError(t, w.Close())
	}

	r, err := Open(path, datavalue.DefaultDecodeOptions())
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadAll()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReadHeaderErrors(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("NOPE\x01\x00")), datavalue.DefaultDecodeOptions())
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = NewReader(bytes.NewReader([]byte("UA")), datavalue.DefaultDecodeOptions())
	assert.ErrorIs(t, err, ErrBadMagic)

	_, err = NewReader(bytes.NewReader([]byte("UADV\x09\x00")), datavalue.DefaultDecodeOptions())
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestReaderReportsBadFrame(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Append(datavalue.New(variant.Int32(1))))
	require.NoError(t, w.frames.WriteFrame([]byte{0x40}))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf, datavalue.DefaultDecodeOptions())
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.ErrorIs(t, err, datavalue.ErrReservedBits)
	assert.Contains(t, err.Error(), "frame 1")
}

func TestReaderTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.uadv")
	w, err := Create(path, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Append(datavalue.New(variant.StringArray("a", "b", "c"))))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-2], 0644))

	r, err := Open(path, datavalue.DefaultDecodeOptions())
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Next()
	assert.True(t, errors.Is(err, ErrFrameTruncated), "err = %v", err)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
