package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/mash-protocol/opcua-go/pkg/datavalue"
)

// Header constants.
const (
	// Magic starts every capture file.
	Magic = "UADV"

	// Version is the current format version.
	Version = 1

	// HeaderSize is the size of the file header in bytes.
	HeaderSize = len(Magic) + 2

	flagZstd = 0x01
)

// Capture errors.
var (
	// ErrBadMagic indicates the input is not a capture file.
	ErrBadMagic = errors.New("not a capture file")

	// ErrUnsupportedVersion indicates a capture format this package cannot read.
	ErrUnsupportedVersion = errors.New("unsupported capture version")
)

// Options configures a new capture file.
type Options struct {
	// Compress enables zstd compression of the body.
	Compress bool

	// Level is the zstd encoder level. Zero selects zstd.SpeedDefault.
	Level zstd.EncoderLevel
}

// Header is the decoded file header.
type Header struct {
	Version    uint8
	Compressed bool
}

func (h Header) bytes() []byte {
	b := make([]byte, 0, HeaderSize)
	b = append(b, Magic...)
	b = append(b, h.Version)
	var flags byte
	if h.Compressed {
		flags |= flagZstd
	}
	return append(b, flags)
}

// ReadHeader reads and validates a capture file header.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("read header: %w", ErrBadMagic)
		}
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	if string(buf[:len(Magic)]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{Version: buf[len(Magic)], Compressed: buf[len(Magic)+1]&flagZstd != 0}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	return h, nil
}

// Writer appends DataValues to a capture stream.
type Writer struct {
	frames *FrameWriter
	enc    *zstd.Encoder
	closer io.Closer
	count  int
}

// NewWriter writes a header to w and returns a Writer for the body.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	h := Header{Version: Version, Compressed: opts.Compress}
	if _, err := w.Write(h.bytes()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return newBodyWriter(w, opts)
}

func newBodyWriter(w io.Writer, opts Options) (*Writer, error) {
	if !opts.Compress {
		return &Writer{frames: NewFrameWriter(w)}, nil
	}
	level := opts.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Writer{frames: NewFrameWriter(enc), enc: enc}, nil
}

// Append encodes dv and writes it as one frame.
func (w *Writer) Append(dv *datavalue.DataValue) error {
	data, err := datavalue.Marshal(dv)
	if err != nil {
		return err
	}
	if err := w.frames.WriteFrame(data); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of values appended through this Writer.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes the compressor, if any, and closes the file opened by
// Create or OpenAppend. A Writer from NewWriter leaves its io.Writer open.
func (w *Writer) Close() error {
	var err error
	if w.enc != nil {
		err = w.enc.Close()
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Create creates or truncates the capture file at path.
func Create(path string, opts Options) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// OpenAppend opens the capture file at path for appending, creating it with
// opts when it does not exist. An existing file keeps its own compression
// setting.
func OpenAppend(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		w, err := NewWriter(f, opts)
		if err != nil {
			f.Close()
			return nil, err
		}
		w.closer = f
		return w, nil
	}

	h, err := ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	opts.Compress = h.Compressed
	w, err := newBodyWriter(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// Reader iterates over the DataValues of a capture stream.
type Reader struct {
	header Header
	frames *FrameReader
	dec    *zstd.Decoder
	opts   datavalue.DecodeOptions
	closer io.Closer
	index  int
}

// NewReader reads the header from r and returns a Reader for the body.
// Values are decoded with opts.
func NewReader(r io.Reader, opts datavalue.DecodeOptions) (*Reader, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	cr := &Reader{header: h, opts: opts}
	if !h.Compressed {
		cr.frames = NewFrameReader(br)
		return cr, nil
	}
	dec, err := zstd.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	cr.dec = dec
	cr.frames = NewFrameReader(dec)
	return cr, nil
}

// Open opens the capture file at path for reading.
func Open(path string, opts datavalue.DecodeOptions) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Next decodes the next DataValue. It returns io.EOF after the last one.
func (r *Reader) Next() (*datavalue.DataValue, error) {
	data, err := r.frames.ReadFrame()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame %d: %w", r.index, err)
	}
	dv, err := datavalue.UnmarshalWithOptions(data, r.opts)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", r.index, err)
	}
	r.index++
	return dv, nil
}

// ReadAll decodes every remaining DataValue.
func (r *Reader) ReadAll() ([]*datavalue.DataValue, error) {
	var out []*datavalue.DataValue
	for {
		dv, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, dv)
	}
}

// Close releases the decompressor and closes the file opened by Open.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
