package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync/atomic"

	"github.com/ssargent/bagvrs/pkg/codec"
	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/streamid"
	"github.com/ssargent/bagvrs/pkg/value"
)

// Reader provides access to the streams of a finalized container.
//
// Open loads only the header, trailer and stream index. Record access scans
// the body through independent section readers over the shared file, so a
// Reader is safe for concurrent use.
type Reader struct {
	path       string
	file       *os.File
	size       int64
	header     Header
	trailer    trailer
	codec      *codec.RecordCodec
	log        logging.L
	bufferSize int

	physical  []StreamInfo
	byLogical map[uint32]int
	ids       []uint32
	closed    atomic.Bool
}

// Open opens the container at path.
func Open(path string, opts ...Option) (*Reader, error) {
	var config WriterConfig
	for _, opt := range opts {
		opt(&config)
	}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpen, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	r := &Reader{
		path:       path,
		file:       file,
		size:       st.Size(),
		codec:      codec.NewRecordCodec(),
		log:        logging.Must(config.Logger),
		bufferSize: config.BufferSize,
		byLogical:  make(map[uint32]int),
	}
	if err := r.load(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	return r, nil
}

func (r *Reader) load() error {
	if r.size < HeaderSize+TrailerSize {
		return fmt.Errorf("%w: file is %d bytes", ErrCorruption, r.size)
	}

	buf := make([]byte, HeaderSize)
	if _, err := r.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruption, err)
	}
	r.header = h

	buf = make([]byte, TrailerSize)
	if _, err := r.file.ReadAt(buf, r.size-TrailerSize); err != nil {
		return fmt.Errorf("read trailer: %w", err)
	}
	t, err := decodeTrailer(buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruption, err)
	}
	if t.IndexOffset < HeaderSize || int64(t.IndexOffset)+int64(t.IndexSize) != r.size-TrailerSize {
		return fmt.Errorf("%w: index at %d+%d does not fit a %d byte file", ErrCorruption, t.IndexOffset, t.IndexSize, r.size)
	}
	r.trailer = t

	return r.loadIndex()
}

// loadIndex reads one index record per physical stream and builds the
// logical id map. Streams whose label carries no logical id, or repeats one
// already seen, are kept as unmapped physical streams.
func (r *Reader) loadIndex() error {
	sec := io.NewSectionReader(r.file, int64(r.trailer.IndexOffset), int64(r.trailer.IndexSize))

	r.physical = make([]StreamInfo, 0, r.trailer.StreamCount)
	for i := uint32(0); i < r.trailer.StreamCount; i++ {
		rec, err := r.codec.ReadRecord(sec)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("%w: index entry %d: %w", ErrCorruption, i, err)
		}
		if rec.Type != codec.RecordIndex {
			return fmt.Errorf("%w: index entry %d is a %s record", ErrCorruption, i, rec.Type)
		}
		info, err := decodeIndexEntry(rec.Stream, rec.Payload)
		if err != nil {
			return fmt.Errorf("%w: index entry %d: %w", ErrCorruption, i, err)
		}

		label, id, err := streamid.Decode(info.EncodedLabel)
		switch {
		case err != nil:
			r.log.Debugf("Ignoring stream %s: %v (label %q)", info.PhysicalID, err, info.EncodedLabel)
			info.Label = info.EncodedLabel
		case id == 0:
			r.log.Debugf("Ignoring stream %s: logical id 0", info.PhysicalID)
			info.Label = label
		default:
			info.Label = label
			info.LogicalID = id
			if _, dup := r.byLogical[id]; dup {
				r.log.Debugf("Ignoring stream %s: logical id %d already mapped", info.PhysicalID, id)
				info.LogicalID = 0
			} else {
				info.Mapped = true
				r.byLogical[id] = len(r.physical)
				r.ids = append(r.ids, id)
			}
		}
		r.physical = append(r.physical, info)
	}
	if _, err := r.codec.ReadRecord(sec); err != io.EOF {
		return fmt.Errorf("%w: trailing data after %d index entries", ErrCorruption, r.trailer.StreamCount)
	}

	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return nil
}

// Path returns the container path.
func (r *Reader) Path() string {
	return r.path
}

// Header returns the container header.
func (r *Reader) Header() Header {
	return r.header
}

// Size returns the container size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// StreamIDs returns the logical ids of all mapped streams in ascending
// order.
func (r *Reader) StreamIDs() []uint32 {
	out := make([]uint32, len(r.ids))
	copy(out, r.ids)
	return out
}

// Streams returns the mapped streams in ascending logical id order.
func (r *Reader) Streams() []StreamInfo {
	out := make([]StreamInfo, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.physical[r.byLogical[id]])
	}
	return out
}

// PhysicalStreams returns every stream in the index, mapped or not, in
// declaration order.
func (r *Reader) PhysicalStreams() []StreamInfo {
	out := make([]StreamInfo, len(r.physical))
	copy(out, r.physical)
	return out
}

// Stream returns the index entry of logical stream id.
func (r *Reader) Stream(id uint32) (StreamInfo, error) {
	if r.closed.Load() {
		return StreamInfo{}, ErrNotOpen
	}
	i, ok := r.byLogical[id]
	if !ok {
		return StreamInfo{}, fmt.Errorf("%w: %d", ErrUnknownStream, id)
	}
	return r.physical[i], nil
}

// RecordCount returns the number of data records of stream id, as recorded
// in the stream index.
func (r *Reader) RecordCount(id uint32) (int64, error) {
	info, err := r.Stream(id)
	if err != nil {
		return 0, err
	}
	return info.RecordCount, nil
}

// CountRecords counts the data records of stream id by scanning the body.
// Payloads are skipped, not retained.
func (r *Reader) CountRecords(id uint32) (int64, error) {
	info, err := r.Stream(id)
	if err != nil {
		return 0, err
	}
	stream := info.PhysicalID.Pack()

	body, err := r.openBody()
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var n int64
	for {
		rec, err := r.codec.SkipRecord(body)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("%w: %w", ErrCorruption, err)
		}
		if rec.Type == codec.RecordData && rec.Stream == stream {
			n++
		}
	}
}

// ReadConfiguration returns the configuration of stream id.
func (r *Reader) ReadConfiguration(id uint32) (*value.Map, error) {
	info, err := r.Stream(id)
	if err != nil {
		return nil, err
	}
	if !info.HasConfiguration {
		return nil, fmt.Errorf("%w: %d", ErrMissingConfiguration, id)
	}
	stream := info.PhysicalID.Pack()

	body, err := r.openBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	isConfig := func(rec *codec.Record) bool {
		return rec.Type == codec.RecordConfiguration && rec.Stream == stream
	}
	for {
		rec, err := r.codec.ReadRecordFunc(body, isConfig)
		if err == io.EOF {
			return nil, fmt.Errorf("%w: configuration of stream %d is indexed but absent", ErrCorruption, id)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruption, err)
		}
		if !isConfig(rec) {
			continue
		}
		cfg, err := value.ParseJSON(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %d: %w", ErrParse, id, err)
		}
		return cfg, nil
	}
}

// DataRecords returns an iterator over the data records of stream id in
// write order. Each call starts a fresh scan.
func (r *Reader) DataRecords(id uint32) (*DataIterator, error) {
	info, err := r.Stream(id)
	if err != nil {
		return nil, err
	}
	body, err := r.openBody()
	if err != nil {
		return nil, err
	}
	return &DataIterator{
		body:   body,
		codec:  r.codec,
		stream: info.PhysicalID.Pack(),
	}, nil
}

// ReadDataRecords collects every data record of stream id.
func (r *Reader) ReadDataRecords(id uint32) ([]DataRecord, error) {
	it, err := r.DataRecords(id)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []DataRecord
	for it.Next() {
		out = append(out, it.Record())
	}
	return out, it.Err()
}

func (r *Reader) openBody() (*rawReader, error) {
	if r.closed.Load() {
		return nil, ErrNotOpen
	}
	sec := io.NewSectionReader(r.file, HeaderSize, int64(r.trailer.IndexOffset)-HeaderSize)
	body, err := newRawReader(sec, r.header.Compression, r.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruption, err)
	}
	return body, nil
}

// Close releases the file. It is idempotent and never fails.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if err := r.file.Close(); err != nil {
		r.log.Debugf("Closing %s: %v", r.path, err)
	}
	return nil
}

// DataIterator streams the data records of one stream.
type DataIterator struct {
	body   *rawReader
	codec  *codec.RecordCodec
	stream uint32
	cur    DataRecord
	err    error
	done   bool
}

// Next advances to the next record of the stream.
func (it *DataIterator) Next() bool {
	if it.done {
		return false
	}

	keep := func(rec *codec.Record) bool {
		return rec.Type == codec.RecordData && rec.Stream == it.stream
	}
	for {
		rec, err := it.codec.ReadRecordFunc(it.body, keep)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				it.err = fmt.Errorf("%w: %w", ErrCorruption, err)
			}
			it.finish()
			return false
		}
		if keep(rec) {
			it.cur = DataRecord{Timestamp: rec.Timestamp, Payload: rec.Payload}
			return true
		}
	}
}

// Record returns the current record.
func (it *DataIterator) Record() DataRecord {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *DataIterator) Err() error {
	return it.err
}

// Close stops iteration early.
func (it *DataIterator) Close() error {
	it.finish()
	return nil
}

func (it *DataIterator) finish() {
	it.done = true
	it.cur = DataRecord{}
	if it.body != nil {
		_ = it.body.Close()
		it.body = nil
	}
}
