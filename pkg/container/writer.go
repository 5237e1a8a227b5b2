package container

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/bagvrs/pkg/codec"
	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/streamid"
	"github.com/ssargent/bagvrs/pkg/value"
)

// WriterConfig holds configuration for a container writer
type WriterConfig struct {
	Path        string      // Destination container path
	Compression Compression // Body compression
	BufferSize  int         // Write buffer size (0 = 4MB)
	FileID      ksuid.KSUID // Header file id (zero = generate)
	Logger      logging.L
}

// Writer builds a stream container.
//
// Records are staged in a temporary file next to Path. Close writes the
// stream index and trailer, syncs the file and renames it onto Path, so a
// container at Path is always complete.
type Writer struct {
	config  WriterConfig
	log     logging.L
	file    *os.File
	tmpPath string
	counter *countingWriter
	raw     *rawWriter
	codec   *codec.RecordCodec
	header  Header
	buf     []byte

	streams   map[uint32]*StreamInfo
	order     []*StreamInfo
	instances map[RecordableTypeID]uint16

	numRecords int64
	numBytes   int64
	closed     bool
	mutex      sync.Mutex
}

// Create starts a new container at path. The body is compressed with
// DefaultCompression unless an option says otherwise.
func Create(path string, opts ...Option) (*Writer, error) {
	config := WriterConfig{
		Path:        path,
		Compression: DefaultCompression,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config.Create()
}

// Create starts a new container described by the configuration.
func (config WriterConfig) Create() (*Writer, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrCreate)
	}
	if !config.Compression.Valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCreate, config.Compression)
	}
	if st, err := os.Stat(config.Path); err == nil && st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrCreate, config.Path)
	}

	fileID := config.FileID
	if fileID.IsNil() {
		id, err := ksuid.NewRandom()
		if err != nil {
			return nil, fmt.Errorf("%w: file id: %w", ErrCreate, err)
		}
		fileID = id
	}

	dir, base := filepath.Split(config.Path)
	if dir == "" {
		dir = "."
	}
	file, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	w := &Writer{
		config:    config,
		log:       logging.Must(config.Logger),
		file:      file,
		tmpPath:   file.Name(),
		codec:     codec.NewRecordCodec(),
		streams:   make(map[uint32]*StreamInfo),
		instances: make(map[RecordableTypeID]uint16),
		header: Header{
			Version:     FormatVersion,
			Compression: config.Compression,
			FileID:      fileID,
		},
	}
	w.counter = &countingWriter{w: file}
	w.raw = newRawWriter(w.counter, config.BufferSize)

	if err := w.start(); err != nil {
		w.abort()
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	w.log.Debugf("Creating container %s (file id %s, %s compression)", config.Path, fileID, config.Compression)
	return w, nil
}

func (w *Writer) start() error {
	if _, err := w.raw.Write(encodeHeader(w.header)); err != nil {
		return err
	}
	return w.raw.beginCompression(w.header.Compression)
}

// DeclareStream registers a stream of unspecified recordable type.
func (w *Writer) DeclareStream(id uint32, label string) error {
	return w.DeclareStreamOfType(id, TypeUnspecified, label)
}

// DeclareStreamOfType registers logical stream id with the given label.
// The container assigns the physical id; the label is stored with the
// logical id embedded.
func (w *Writer) DeclareStreamOfType(id uint32, typeID RecordableTypeID, label string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrNotOpen
	}
	if id == 0 {
		return ErrInvalidStreamID
	}
	if _, ok := w.streams[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateStream, id)
	}

	instance := w.instances[typeID] + 1
	if instance == 0 {
		return fmt.Errorf("%w: %s", ErrTooManyStreams, typeID)
	}

	info := &StreamInfo{
		LogicalID:    id,
		PhysicalID:   PhysicalID{Type: typeID, Instance: instance},
		Label:        label,
		EncodedLabel: streamid.Encode(label, id),
		Mapped:       true,
	}
	if err := w.writeRecord(codec.RecordDeclare, info.PhysicalID.Pack(), 0, []byte(info.EncodedLabel)); err != nil {
		return fmt.Errorf("declare stream %d: %w", id, err)
	}

	w.instances[typeID] = instance
	w.streams[id] = info
	w.order = append(w.order, info)
	w.log.Debugf("Declared stream %d as %s (%q)", id, info.PhysicalID, label)
	return nil
}

// WriteConfiguration stores the configuration of stream id. Each stream
// takes exactly one configuration.
func (w *Writer) WriteConfiguration(id uint32, cfg *value.Map) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	info, err := w.configurable(id)
	if err != nil {
		return err
	}
	return w.writeConfiguration(info, cfg)
}

// WriteConfigurationValue converts a plain Go map with value.FromMap and
// stores it as the configuration of stream id.
func (w *Writer) WriteConfigurationValue(id uint32, cfg map[string]any) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	info, err := w.configurable(id)
	if err != nil {
		return err
	}
	m, err := value.FromMap(cfg)
	if err != nil {
		return fmt.Errorf("configuration of stream %d: %w", id, err)
	}
	return w.writeConfiguration(info, m)
}

func (w *Writer) configurable(id uint32) (*StreamInfo, error) {
	if w.closed {
		return nil, ErrNotOpen
	}
	info, ok := w.streams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if info.HasConfiguration {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateConfiguration, id)
	}
	return info, nil
}

func (w *Writer) writeConfiguration(info *StreamInfo, cfg *value.Map) error {
	if cfg == nil {
		cfg = value.NewMap()
	}
	blob, err := cfg.MarshalJSON()
	if err != nil {
		return fmt.Errorf("configuration of stream %d: %w", info.LogicalID, err)
	}
	if err := w.writeRecord(codec.RecordConfiguration, info.PhysicalID.Pack(), 0, blob); err != nil {
		return fmt.Errorf("configuration of stream %d: %w", info.LogicalID, err)
	}
	info.HasConfiguration = true
	return nil
}

// WriteData appends one data record to stream id. Timestamps are seconds
// and must be finite and non-negative; they are stored as given.
func (w *Writer) WriteData(id uint32, timestamp float64, payload []byte) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return ErrNotOpen
	}
	info, ok := w.streams[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	if timestamp < 0 || math.IsNaN(timestamp) || math.IsInf(timestamp, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, timestamp)
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}

	if err := w.writeRecord(codec.RecordData, info.PhysicalID.Pack(), timestamp, payload); err != nil {
		return fmt.Errorf("data record of stream %d: %w", id, err)
	}

	if info.RecordCount == 0 {
		info.FirstTimestamp = timestamp
	}
	info.LastTimestamp = timestamp
	info.RecordCount++
	return nil
}

func (w *Writer) writeRecord(typ codec.RecordType, stream uint32, timestamp float64, payload []byte) error {
	rec, err := codec.NewRecord(typ, stream, timestamp, payload)
	if err != nil {
		return err
	}
	w.buf = w.codec.AppendRecord(w.buf[:0], rec)
	if _, err := w.raw.Write(w.buf); err != nil {
		return err
	}
	w.numRecords++
	w.numBytes += int64(len(w.buf))
	return nil
}

// Close finalizes the container and moves it into place. Closing a closed
// writer is a no-op.
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.finalize(); err != nil {
		w.abort()
		return fmt.Errorf("finalize container %s: %w", w.config.Path, err)
	}
	w.log.Debugf("Closed container %s: %d streams, %d records", w.config.Path, len(w.order), w.numRecords)
	return nil
}

func (w *Writer) finalize() error {
	if err := w.raw.endCompression(); err != nil {
		return fmt.Errorf("flush body: %w", err)
	}

	indexOffset := w.counter.n
	for _, info := range w.order {
		w.buf = w.buf[:0]
		rec, err := codec.NewRecord(codec.RecordIndex, info.PhysicalID.Pack(), 0, encodeIndexEntry(info))
		if err != nil {
			return err
		}
		w.buf = w.codec.AppendRecord(w.buf, rec)
		if _, err := w.raw.Write(w.buf); err != nil {
			return fmt.Errorf("write index: %w", err)
		}
	}
	if err := w.raw.Flush(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	t := trailer{
		IndexOffset: uint64(indexOffset),
		IndexSize:   uint32(w.counter.n - indexOffset),
		StreamCount: uint32(len(w.order)),
	}
	if _, err := w.raw.Write(encodeTrailer(t)); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	if err := w.raw.Flush(); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.tmpPath, w.config.Path); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	w.tmpPath = ""
	return nil
}

// Abort discards the staged file and leaves the destination untouched.
// Later operations fail with ErrNotOpen; aborting a closed writer is a
// no-op.
func (w *Writer) Abort() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.abort()
	w.log.Debugf("Aborted container %s", w.config.Path)
}

// abort releases the staged file without committing it.
func (w *Writer) abort() {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if w.tmpPath != "" {
		_ = os.Remove(w.tmpPath)
		w.tmpPath = ""
	}
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.config.Path
}

// Header returns the header written to the container.
func (w *Writer) Header() Header {
	return w.header
}

// NumRecords returns the number of records written to the body, including
// stream declarations and configurations.
func (w *Writer) NumRecords() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.numRecords
}

// NumBytes returns the uncompressed size of the records written so far.
func (w *Writer) NumBytes() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.numBytes
}

// Streams returns a snapshot of the declared streams in declaration order.
func (w *Writer) Streams() []StreamInfo {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	out := make([]StreamInfo, len(w.order))
	for i, info := range w.order {
		out[i] = *info
	}
	return out
}
