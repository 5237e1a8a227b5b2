package container

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/pflag"
)

// Compression selects how the container body is compressed.
type Compression uint8

const (
	CompressionNone   Compression = 0
	CompressionLZ4    Compression = 1
	CompressionZSTD   Compression = 2
	CompressionSnappy Compression = 3
)

// DefaultCompression is used by Create when no compression is given.
const DefaultCompression = CompressionLZ4

var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionLZ4:    "lz4",
	CompressionZSTD:   "zstd",
	CompressionSnappy: "snappy",
}

func (c Compression) String() string {
	if n, ok := compressionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// Valid reports whether c is a known compression mode.
func (c Compression) Valid() bool {
	_, ok := compressionNames[c]
	return ok
}

// ParseCompression returns the compression named s.
func ParseCompression(s string) (Compression, error) {
	for c, n := range compressionNames {
		if strings.EqualFold(n, s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression type: %q (valid: %s)", s, CompressionFlagValues())
}

// CompressionFlag is a pflag.Value implementation that stores a compression
// value.
type CompressionFlag Compression

var _ pflag.Value = (*CompressionFlag)(nil)

func (cf *CompressionFlag) String() string { return Compression(*cf).String() }

// Set implements pflag.Value.
func (cf *CompressionFlag) Set(v string) error {
	c, err := ParseCompression(v)
	if err != nil {
		return err
	}
	*cf = CompressionFlag(c)
	return nil
}

// Type implements pflag.Value.
func (cf *CompressionFlag) Type() string { return "compression" }

// Value returns the compression value held by this flag.
func (cf CompressionFlag) Value() Compression { return Compression(cf) }

// CompressionFlagValues returns the accepted compression names, in
// enumeration order.
func CompressionFlagValues() string {
	modes := make([]Compression, 0, len(compressionNames))
	for c := range compressionNames {
		modes = append(modes, c)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })

	opts := make([]string, len(modes))
	for i, c := range modes {
		opts[i] = c.String()
	}
	return strings.Join(opts, ", ")
}

const (
	// Large buffer size (4MB), sized for image payloads.
	defaultBufferSize = 1024 * 1024 * 4
	// Read buffers are per iterator, so they stay smaller.
	defaultReadBufferSize = 1024 * 256
)

// countingWriter tracks the file offset below the write buffer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// rawWriter layers an optional compressor over a buffered file writer.
// Writes go to the embedded io.Writer, which is the compressor while a
// compressed section is open and the buffer otherwise.
type rawWriter struct {
	io.Writer

	bw      *bufio.Writer
	lz4W    *lz4.Writer
	zstdW   *zstd.Encoder
	snappyW *snappy.Writer
}

func newRawWriter(base io.Writer, size int) *rawWriter {
	if size <= 0 {
		size = defaultBufferSize
	}
	w := rawWriter{bw: bufio.NewWriterSize(base, size)}
	w.Writer = w.bw
	return &w
}

func (w *rawWriter) beginCompression(comp Compression) error {
	switch comp {
	case CompressionLZ4:
		w.lz4W = lz4.NewWriter(w.bw)
		w.Writer = w.lz4W

	case CompressionZSTD:
		zw, err := zstd.NewWriter(w.bw, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		w.zstdW = zw
		w.Writer = w.zstdW

	case CompressionSnappy:
		w.snappyW = snappy.NewBufferedWriter(w.bw)
		w.Writer = w.snappyW

	case CompressionNone:
		w.Writer = w.bw

	default:
		return fmt.Errorf("unknown compression: %s", comp)
	}
	return nil
}

// endCompression terminates the compressed section and flushes it to the
// base writer. Later writes are uncompressed.
func (w *rawWriter) endCompression() (err error) {
	switch {
	case w.lz4W != nil:
		err = w.lz4W.Close()
		w.lz4W = nil
	case w.zstdW != nil:
		err = w.zstdW.Close()
		w.zstdW = nil
	case w.snappyW != nil:
		err = w.snappyW.Close()
		w.snappyW = nil
	}
	w.Writer = w.bw
	if err != nil {
		return err
	}
	return w.bw.Flush()
}

func (w *rawWriter) Flush() error {
	return w.bw.Flush()
}

// rawReader decompresses a section of a container.
type rawReader struct {
	io.Reader

	zstdR *zstd.Decoder
}

func newRawReader(base io.Reader, comp Compression, size int) (*rawReader, error) {
	if size <= 0 {
		size = defaultReadBufferSize
	}
	br := bufio.NewReaderSize(base, size)

	r := rawReader{}
	switch comp {
	case CompressionLZ4:
		r.Reader = lz4.NewReader(br)

	case CompressionZSTD:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		r.zstdR = zr
		r.Reader = zr

	case CompressionSnappy:
		r.Reader = snappy.NewReader(br)

	case CompressionNone:
		r.Reader = br

	default:
		return nil, fmt.Errorf("unknown compression: %s", comp)
	}
	return &r, nil
}

func (r *rawReader) Close() error {
	if r.zstdR != nil {
		r.zstdR.Close()
		r.zstdR = nil
	}
	return nil
}
