package rosbag

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// DefaultChunkThreshold is the uncompressed chunk size at which Writer
// starts a new chunk.
const DefaultChunkThreshold = 768 * 1024

// ErrTopicType is returned when a topic is written with two message types.
var ErrTopicType = errors.New("rosbag: topic already has a different message type")

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithChunkCompression selects chunk compression: CompressionNone or
// CompressionLZ4.
func WithChunkCompression(compression string) WriterOption {
	return func(w *Writer) { w.compression = compression }
}

// WithChunkThreshold sets the uncompressed size at which chunks are cut.
func WithChunkThreshold(n int) WriterOption {
	return func(w *Writer) { w.threshold = n }
}

type indexEntry struct {
	time   Time
	offset uint32
}

// Writer records messages into a new ROS bag v2.0 file. It is used to
// build fixtures and sample recordings; it is not safe for concurrent use.
type Writer struct {
	file        *os.File
	pos         int64
	compression string
	threshold   int

	conns    map[string]*Connection
	order    []*Connection
	infos    []ChunkInfo
	chunkPos []int64
	indexPos int64
	chunk    []byte
	current  ChunkInfo
	index    map[uint32][]indexEntry
	closed   bool
}

// Create starts a bag at path, truncating any existing file.
func Create(path string, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		compression: CompressionNone,
		threshold:   DefaultChunkThreshold,
		conns:       make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.compression != CompressionNone && w.compression != CompressionLZ4 {
		return nil, fmt.Errorf("rosbag: cannot write %q chunks", w.compression)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w.file = file
	if err := w.write([]byte(Magic)); err != nil {
		_ = file.Close()
		return nil, err
	}
	if err := w.write(bagHeaderRecord(0, 0, 0)); err != nil {
		_ = file.Close()
		return nil, err
	}
	w.resetChunk()
	return w, nil
}

// Write serializes msg and records it on topic at time t.
func (w *Writer) Write(topic string, t Time, msg any) error {
	data, msgType, err := Serialize(msg)
	if err != nil {
		return err
	}
	return w.WriteRaw(topic, msgType, t, data)
}

// WriteRaw records an already serialized message.
func (w *Writer) WriteRaw(topic, msgType string, t Time, data []byte) error {
	if w.closed {
		return ErrClosed
	}

	conn, ok := w.conns[topic]
	if !ok {
		conn = &Connection{ID: uint32(len(w.order)), Topic: topic, Type: msgType, MD5Sum: "*"}
		w.conns[topic] = conn
		w.order = append(w.order, conn)
		w.chunk = append(w.chunk, connectionRecord(conn)...)
	} else if conn.Type != msgType {
		return fmt.Errorf("%w: %s is %s, not %s", ErrTopicType, topic, conn.Type, msgType)
	}

	if len(w.current.Counts) == 0 || t.Nanos() < w.current.StartTime.Nanos() {
		w.current.StartTime = t
	}
	if t.Nanos() > w.current.EndTime.Nanos() {
		w.current.EndTime = t
	}
	w.index[conn.ID] = append(w.index[conn.ID], indexEntry{time: t, offset: uint32(len(w.chunk))})
	w.current.Counts[conn.ID]++
	conn.MessageCount++

	w.chunk = encodeRecord(w.chunk, []string{"op", "conn", "time"}, map[string][]byte{
		"op":   {opMessageData},
		"conn": u32Field(conn.ID),
		"time": timeField(t),
	}, data)

	if len(w.chunk) >= w.threshold {
		return w.flushChunk()
	}
	return nil
}

func (w *Writer) flushChunk() error {
	if len(w.current.Counts) == 0 {
		return nil
	}
	data, err := compressChunk(w.compression, w.chunk)
	if err != nil {
		return err
	}

	pos := w.pos
	buf := encodeRecord(nil, []string{"op", "compression", "size"}, map[string][]byte{
		"op":          {opChunk},
		"compression": []byte(w.compression),
		"size":        u32Field(uint32(len(w.chunk))),
	}, data)

	for _, conn := range w.order {
		entries := w.index[conn.ID]
		if len(entries) == 0 {
			continue
		}
		var e encoder
		for _, entry := range entries {
			e.time(entry.time)
			e.u32(entry.offset)
		}
		buf = encodeRecord(buf, []string{"op", "ver", "conn", "count"}, map[string][]byte{
			"op":    {opIndexData},
			"ver":   u32Field(1),
			"conn":  u32Field(conn.ID),
			"count": u32Field(uint32(len(entries))),
		}, e.buf)
	}

	if err := w.write(buf); err != nil {
		return err
	}
	w.infos = append(w.infos, w.current)
	w.chunkPos = append(w.chunkPos, pos)
	w.resetChunk()
	return nil
}

func (w *Writer) resetChunk() {
	w.chunk = w.chunk[:0]
	w.current = ChunkInfo{Counts: make(map[uint32]uint32)}
	w.index = make(map[uint32][]indexEntry)
}

// Close flushes the last chunk, writes the index and fixes up the bag
// header. Closing a closed writer is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.file.Close()

	if err := w.flushChunk(); err != nil {
		return err
	}

	w.indexPos = w.pos
	var buf []byte
	for _, conn := range w.order {
		buf = append(buf, connectionRecord(conn)...)
	}
	for i, info := range w.infos {
		var e encoder
		for _, conn := range w.order {
			if n, ok := info.Counts[conn.ID]; ok {
				e.u32(conn.ID)
				e.u32(n)
			}
		}
		buf = encodeRecord(buf, []string{"op", "ver", "chunk_pos", "start_time", "end_time", "count"}, map[string][]byte{
			"op":         {opChunkInfo},
			"ver":        u32Field(1),
			"chunk_pos":  u64Field(uint64(w.chunkPos[i])),
			"start_time": timeField(info.StartTime),
			"end_time":   timeField(info.EndTime),
			"count":      u32Field(uint32(len(info.Counts))),
		}, e.buf)
	}
	if err := w.write(buf); err != nil {
		return err
	}

	header := bagHeaderRecord(uint64(w.indexPos), uint32(len(w.order)), uint32(len(w.infos)))
	if _, err := w.file.WriteAt(header, int64(len(Magic))); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *Writer) write(b []byte) error {
	n, err := w.file.Write(b)
	w.pos += int64(n)
	return err
}

func connectionRecord(conn *Connection) []byte {
	header := encodeFields([]string{"topic", "type", "md5sum", "message_definition"}, map[string][]byte{
		"topic":              []byte(conn.Topic),
		"type":               []byte(conn.Type),
		"md5sum":             []byte(conn.MD5Sum),
		"message_definition": nil,
	})
	return encodeRecord(nil, []string{"op", "conn", "topic"}, map[string][]byte{
		"op":    {opConnection},
		"conn":  u32Field(conn.ID),
		"topic": []byte(conn.Topic),
	}, header)
}

// bagHeaderRecord builds the bag header record padded to bagHeaderLength.
func bagHeaderRecord(indexPos uint64, connCount, chunkCount uint32) []byte {
	names := []string{"op", "index_pos", "conn_count", "chunk_count"}
	values := map[string][]byte{
		"op":          {opBagHeader},
		"index_pos":   u64Field(indexPos),
		"conn_count":  u32Field(connCount),
		"chunk_count": u32Field(chunkCount),
	}
	hlen := len(encodeFields(names, values))
	padding := bytes.Repeat([]byte{' '}, bagHeaderLength-8-hlen)
	return encodeRecord(nil, names, values, padding)
}
