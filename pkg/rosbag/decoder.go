package rosbag

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	gorosbag "github.com/lherman-cs/go-rosbag"
)

const decoderBufferSize = 256 * 1024

// errTruncated marks a bag that ends inside a record.
var errTruncated = errors.New("rosbag: bag ends inside a record")

type recordKind int

const (
	kindOther recordKind = iota
	kindChunk
	kindChunkInfo
	kindConnection
	kindMessage
)

// bagRecord is the part of a decoded record this package uses.
type bagRecord struct {
	kind   recordKind
	conn   *Connection // kindConnection
	connID uint32      // kindMessage
	time   Time        // kindMessage
	data   []byte      // kindMessage, owned by the caller
}

// recordReader walks every record of a bag in file order. Chunks are
// decompressed by the decoder and their records follow the chunk record.
type recordReader struct {
	dec *gorosbag.Decoder
}

func newRecordReader(r io.ReaderAt, size int64) *recordReader {
	src := bufio.NewReaderSize(io.NewSectionReader(r, 0, size), decoderBufferSize)
	return &recordReader{dec: gorosbag.NewDecoder(src)}
}

// next returns the next record, io.EOF at the end of the bag, or
// errTruncated when the bag stops inside a record.
func (rr *recordReader) next() (bagRecord, error) {
	rec, err := rr.dec.Next()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return bagRecord{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return bagRecord{}, errTruncated
	default:
		return bagRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer release(rec)

	switch r := rec.(type) {
	case *gorosbag.RecordChunk:
		return bagRecord{kind: kindChunk}, nil
	case *gorosbag.RecordChunkInfo:
		return bagRecord{kind: kindChunkInfo}, nil
	case *gorosbag.RecordConnection:
		conn, err := connectionOf(r)
		if err != nil {
			return bagRecord{}, err
		}
		return bagRecord{kind: kindConnection, conn: conn}, nil
	case *gorosbag.RecordMessageData:
		id, err := r.Conn()
		if err != nil {
			return bagRecord{}, fmt.Errorf("%w: message conn: %v", ErrMalformed, err)
		}
		t, err := r.Time()
		if err != nil {
			return bagRecord{}, fmt.Errorf("%w: message time: %v", ErrMalformed, err)
		}
		return bagRecord{
			kind:   kindMessage,
			connID: id,
			time:   timeOf(t),
			data:   append([]byte(nil), r.Data()...),
		}, nil
	}
	return bagRecord{kind: kindOther}, nil
}

func connectionOf(r *gorosbag.RecordConnection) (*Connection, error) {
	id, err := r.Conn()
	if err != nil {
		return nil, fmt.Errorf("%w: connection id: %v", ErrMalformed, err)
	}
	h, err := r.ConnectionHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: connection %d header: %v", ErrMalformed, id, err)
	}
	return &Connection{
		ID:     id,
		Topic:  h.Topic,
		Type:   h.Type,
		MD5Sum: h.MD5Sum,
	}, nil
}

// release hands pooled record memory back to the decoder.
func release(rec gorosbag.Record) {
	if c, ok := rec.(interface{ Close() }); ok {
		c.Close()
	}
}

func timeOf(t time.Time) Time {
	return Time{Sec: uint32(t.Unix()), NSec: uint32(t.Nanosecond())}
}

// chunkTracker follows chunk boundaries in the record stream. Messages
// outside any chunk record open an implicit chunk.
type chunkTracker struct {
	count int  // chunks entered so far
	open  bool // inside chunk count-1
}

// step advances past a record of kind and reports whether it completed
// the chunk that was open.
func (c *chunkTracker) step(kind recordKind) bool {
	switch kind {
	case kindChunk:
		closed := c.open
		c.count++
		c.open = true
		return closed
	case kindMessage:
		if !c.open {
			c.count++
			c.open = true
		}
		return false
	case kindConnection:
		return false
	default:
		closed := c.open
		c.open = false
		return closed
	}
}

// current returns the index of the open chunk, or -1.
func (c *chunkTracker) current() int {
	if !c.open {
		return -1
	}
	return c.count - 1
}

// unread returns the index of the first chunk not completely read.
func (c *chunkTracker) unread() int {
	if c.open {
		return c.count - 1
	}
	return c.count
}
