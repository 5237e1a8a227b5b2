package rosbag

import (
	"bytes"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Chunk compression names as they appear in chunk record headers.
const (
	CompressionNone = "none"
	CompressionBZ2  = "bz2"
	CompressionLZ4  = "lz4"
)

// compressChunk compresses the records of a chunk for Writer.
func compressChunk(compression string, data []byte) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("rosbag: cannot write %q chunks", compression)
	}
}
