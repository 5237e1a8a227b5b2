package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/segmentio/ksuid"
)

// On-disk layout:
//
//	[Header 32][Body: compressed records][Index: uncompressed records][Trailer 24]
const (
	HeaderSize  = 32
	TrailerSize = 24

	// FormatVersion is the only version this package writes and reads.
	FormatVersion uint16 = 1

	indexEntryFixedSize = 1 + 8 + 8 + 8
)

var (
	headerMagic  = [4]byte{'V', 'R', 'S', 'K'}
	trailerMagic = [4]byte{'K', 'S', 'R', 'V'}
)

func encodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = byte(h.Compression)
	buf[7] = 0
	copy(buf[8:28], h.FileID.Bytes())
	binary.LittleEndian.PutUint32(buf[28:32], crc32.ChecksumIEEE(buf[:28]))
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("header is %d bytes", len(buf))
	}
	if !bytes.Equal(buf[0:4], headerMagic[:]) {
		return Header{}, fmt.Errorf("bad header magic %q", buf[0:4])
	}
	if sum := crc32.ChecksumIEEE(buf[:28]); sum != binary.LittleEndian.Uint32(buf[28:32]) {
		return Header{}, fmt.Errorf("header checksum mismatch")
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:6]),
		Compression: Compression(buf[6]),
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported format version %d", h.Version)
	}
	if !h.Compression.Valid() {
		return Header{}, fmt.Errorf("unknown compression %d", buf[6])
	}
	id, err := ksuid.FromBytes(buf[8:28])
	if err != nil {
		return Header{}, fmt.Errorf("file id: %w", err)
	}
	h.FileID = id
	return h, nil
}

type trailer struct {
	IndexOffset uint64
	IndexSize   uint32
	StreamCount uint32
}

func encodeTrailer(t trailer) []byte {
	buf := make([]byte, TrailerSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.IndexOffset)
	binary.LittleEndian.PutUint32(buf[8:12], t.IndexSize)
	binary.LittleEndian.PutUint32(buf[12:16], t.StreamCount)
	binary.LittleEndian.PutUint32(buf[16:20], crc32.ChecksumIEEE(buf[:16]))
	copy(buf[20:24], trailerMagic[:])
	return buf
}

func decodeTrailer(buf []byte) (trailer, error) {
	if len(buf) < TrailerSize {
		return trailer{}, fmt.Errorf("trailer is %d bytes", len(buf))
	}
	if !bytes.Equal(buf[20:24], trailerMagic[:]) {
		return trailer{}, fmt.Errorf("bad trailer magic %q, container was not closed", buf[20:24])
	}
	if sum := crc32.ChecksumIEEE(buf[:16]); sum != binary.LittleEndian.Uint32(buf[16:20]) {
		return trailer{}, fmt.Errorf("trailer checksum mismatch")
	}
	return trailer{
		IndexOffset: binary.LittleEndian.Uint64(buf[0:8]),
		IndexSize:   binary.LittleEndian.Uint32(buf[8:12]),
		StreamCount: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

// indexEntry payload: [HasConfig(1)][Count(8)][FirstTS(8)][LastTS(8)][Label]
func encodeIndexEntry(s *StreamInfo) []byte {
	buf := make([]byte, indexEntryFixedSize+len(s.EncodedLabel))
	if s.HasConfiguration {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint64(buf[1:9], uint64(s.RecordCount))
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(s.FirstTimestamp))
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(s.LastTimestamp))
	copy(buf[25:], s.EncodedLabel)
	return buf
}

func decodeIndexEntry(stream uint32, payload []byte) (StreamInfo, error) {
	if len(payload) < indexEntryFixedSize {
		return StreamInfo{}, fmt.Errorf("index entry is %d bytes", len(payload))
	}
	if payload[0] > 1 {
		return StreamInfo{}, fmt.Errorf("index entry config flag %d", payload[0])
	}
	count := binary.LittleEndian.Uint64(payload[1:9])
	if count > math.MaxInt64 {
		return StreamInfo{}, fmt.Errorf("index entry count %d", count)
	}
	return StreamInfo{
		PhysicalID:       UnpackPhysicalID(stream),
		HasConfiguration: payload[0] == 1,
		RecordCount:      int64(count),
		FirstTimestamp:   math.Float64frombits(binary.LittleEndian.Uint64(payload[9:17])),
		LastTimestamp:    math.Float64frombits(binary.LittleEndian.Uint64(payload[17:25])),
		EncodedLabel:     string(payload[25:]),
	}, nil
}
