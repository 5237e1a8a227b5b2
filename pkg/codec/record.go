package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// HeaderSize is the encoded size of a record header:
// CRC32(4) + Type(1) + Stream(4) + Timestamp(8) + Size(4).
const HeaderSize = 21

// MaxPayloadSize bounds a single record payload.
const MaxPayloadSize = math.MaxUint32

// RecordType identifies what a record carries.
type RecordType uint8

const (
	// RecordDeclare announces a stream; the payload is its label.
	RecordDeclare RecordType = 1
	// RecordConfiguration carries a stream's JSON configuration blob.
	RecordConfiguration RecordType = 2
	// RecordData carries one opaque data payload.
	RecordData RecordType = 3
	// RecordIndex carries one stream index entry (footer only).
	RecordIndex RecordType = 4
)

func (t RecordType) String() string {
	switch t {
	case RecordDeclare:
		return "declare"
	case RecordConfiguration:
		return "configuration"
	case RecordData:
		return "data"
	case RecordIndex:
		return "index"
	default:
		return fmt.Sprintf("RecordType(%d)", uint8(t))
	}
}

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	return t >= RecordDeclare && t <= RecordIndex
}

var (
	// ErrShortRecord is returned when data ends inside a record.
	ErrShortRecord = errors.New("record truncated")
	// ErrChecksum is returned when a record fails CRC validation.
	ErrChecksum = errors.New("record checksum mismatch")
	// ErrUnknownType is returned for an unrecognized record type byte.
	ErrUnknownType = errors.New("unknown record type")
)

// Record is one framed record of a stream container.
type Record struct {
	CRC32     uint32     // CRC32 over everything after the CRC field
	Type      RecordType // Kind of record
	Stream    uint32     // Packed physical stream id
	Timestamp float64    // Seconds
	Size      uint32     // Payload size in bytes
	Payload   []byte     // Payload data
}

// RecordCodec handles serialization and deserialization of records
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// NewRecord builds a record and computes its checksum.
func NewRecord(typ RecordType, stream uint32, timestamp float64, payload []byte) (*Record, error) {
	if uint64(len(payload)) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes", len(payload))
	}
	r := &Record{
		Type:      typ,
		Stream:    stream,
		Timestamp: timestamp,
		Size:      uint32(len(payload)),
		Payload:   payload,
	}
	r.CRC32 = r.calculateCRC32()
	return r, nil
}

// Encode serializes a record into the binary frame format
// Format: [CRC32(4)][Type(1)][Stream(4)][Timestamp(8)][Size(4)][Payload]
func (c *RecordCodec) Encode(typ RecordType, stream uint32, timestamp float64, payload []byte) ([]byte, error) {
	r, err := NewRecord(typ, stream, timestamp, payload)
	if err != nil {
		return nil, err
	}
	return c.AppendRecord(make([]byte, 0, r.EncodedSize()), r), nil
}

// AppendRecord appends the encoded form of r to buf.
func (c *RecordCodec) AppendRecord(buf []byte, r *Record) []byte {
	var hdr [HeaderSize]byte
	r.putHeader(hdr[:])
	buf = append(buf, hdr[:]...)
	return append(buf, r.Payload...)
}

// Decode deserializes a binary frame into a Record. The payload aliases data.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short for a header", ErrShortRecord, len(data))
	}

	r := c.DecodeHeader(data[:HeaderSize])
	if uint64(len(data)) < uint64(HeaderSize)+uint64(r.Size) {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortRecord, len(data), HeaderSize+int(r.Size))
	}
	r.Payload = data[HeaderSize : HeaderSize+int(r.Size)]

	return r, nil
}

// DecodeHeader decodes the fixed-size header. The returned record has no
// payload attached.
func (c *RecordCodec) DecodeHeader(header []byte) *Record {
	_ = header[HeaderSize-1]
	return &Record{
		CRC32:     binary.LittleEndian.Uint32(header[0:4]),
		Type:      RecordType(header[4]),
		Stream:    binary.LittleEndian.Uint32(header[5:9]),
		Timestamp: math.Float64frombits(binary.LittleEndian.Uint64(header[9:17])),
		Size:      binary.LittleEndian.Uint32(header[17:21]),
	}
}

// ReadRecord reads and validates the next record from r.
//
// io.EOF is returned only at a clean record boundary. A record that is cut
// short returns ErrShortRecord; a record that fails validation returns
// ErrChecksum or ErrUnknownType.
func (c *RecordCodec) ReadRecord(r io.Reader) (*Record, error) {
	return c.ReadRecordFunc(r, nil)
}

// SkipRecord reads the next record header and discards its payload without
// verifying the checksum. It is used by counting passes.
func (c *RecordCodec) SkipRecord(r io.Reader) (*Record, error) {
	return c.ReadRecordFunc(r, func(*Record) bool { return false })
}

// ReadRecordFunc reads the next record from r, consulting keep once the
// header is decoded. When keep returns false the payload is discarded
// unverified and the returned record has a nil Payload. A nil keep reads
// every record.
func (c *RecordCodec) ReadRecordFunc(r io.Reader, keep func(*Record) bool) (*Record, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, ErrShortRecord
		}
		return nil, err
	}

	rec := c.DecodeHeader(header[:])
	if !rec.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint8(rec.Type))
	}

	if keep != nil && !keep(rec) {
		n, err := io.CopyN(io.Discard, r, int64(rec.Size))
		if n != int64(rec.Size) {
			return nil, ErrShortRecord
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}

	payload, err := readPayload(r, int(rec.Size))
	if err != nil {
		return nil, err
	}
	rec.Payload = payload

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// readStep bounds each allocation made while reading a payload, so a
// corrupt size field cannot allocate more than the data actually present.
const readStep = 1 << 20

func readPayload(r io.Reader, size int) ([]byte, error) {
	buf := make([]byte, 0, min(size, readStep))
	for len(buf) < size {
		n := min(size-len(buf), readStep)
		if cap(buf)-len(buf) < n {
			buf = append(buf, make([]byte, n)...)[:len(buf)]
		}
		m, err := io.ReadFull(r, buf[len(buf):len(buf)+n])
		buf = buf[:len(buf)+m]
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrShortRecord, len(buf), size)
			}
			return nil, err
		}
	}
	return buf, nil
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if r.Size != uint32(len(r.Payload)) {
		return fmt.Errorf("%w: size %d but payload is %d bytes", ErrChecksum, r.Size, len(r.Payload))
	}
	if sum := r.calculateCRC32(); r.CRC32 != sum {
		return fmt.Errorf("%w: %d != %d", ErrChecksum, r.CRC32, sum)
	}
	return nil
}

// EncodedSize returns the total size of the record when encoded
func (r *Record) EncodedSize() int {
	return HeaderSize + len(r.Payload)
}

func (r *Record) putHeader(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], r.CRC32)
	buf[4] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[5:9], r.Stream)
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(r.Timestamp))
	binary.LittleEndian.PutUint32(buf[17:21], r.Size)
}

// calculateCRC32 computes the checksum over Type..Payload.
func (r *Record) calculateCRC32() uint32 {
	var hdr [HeaderSize]byte
	r.putHeader(hdr[:])

	crc := crc32.NewIEEE()
	_, _ = crc.Write(hdr[4:])
	_, _ = crc.Write(r.Payload)
	return crc.Sum32()
}
