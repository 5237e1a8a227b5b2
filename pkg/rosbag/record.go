package rosbag

import (
	"encoding/binary"
	"errors"
)

// Record op codes of the ROS bag v2.0 format, as written by Writer.
const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07
)

// Magic is the first line of every v2.0 bag.
const Magic = "#ROSBAG V2.0\n"

// bagHeaderLength is the padded size of the bag header record.
const bagHeaderLength = 4096

var (
	// ErrNotBag is returned for files that are not v2.0 bags.
	ErrNotBag = errors.New("rosbag: not a ROS bag v2.0 file")
	// ErrMalformed is returned for records the decoder rejects.
	ErrMalformed = errors.New("rosbag: malformed record")
)

// encodeRecord appends a record with the given header fields and data.
// Field order follows names.
func encodeRecord(dst []byte, names []string, values map[string][]byte, data []byte) []byte {
	e := encoder{buf: dst}
	e.blob(encodeFields(names, values))
	e.blob(data)
	return e.buf
}

// encodeFields encodes name=value pairs in the record header layout. It is
// also the layout of connection headers.
func encodeFields(names []string, values map[string][]byte) []byte {
	var e encoder
	for _, n := range names {
		v := values[n]
		e.u32(uint32(len(n) + 1 + len(v)))
		e.buf = append(e.buf, n...)
		e.buf = append(e.buf, '=')
		e.buf = append(e.buf, v...)
	}
	return e.buf
}

func u32Field(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func u64Field(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func timeField(t Time) []byte {
	return binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, t.Sec), t.NSec)
}
