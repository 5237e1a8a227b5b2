package rosbag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by operations on a closed bag.
var ErrClosed = errors.New("rosbag: bag is closed")

// Connection is one publisher connection recorded in the bag. Several
// connections may share a topic.
type Connection struct {
	ID           uint32
	Topic        string
	Type         string
	MD5Sum       string
	MessageCount int64
}

// ChunkInfo describes one chunk of the bag.
type ChunkInfo struct {
	StartTime Time
	EndTime   Time
	Counts    map[uint32]uint32 // messages per connection id
}

// Bag is an open ROS bag v2.0 file. Open decodes the bag once to learn its
// connections and chunks; every message iteration decodes it again through
// its own section reader, so a Bag is safe for concurrent use.
type Bag struct {
	path    string
	file    *os.File
	size    int64
	indexed bool

	conns   []*Connection
	byID    map[uint32]*Connection
	byTopic map[string][]*Connection
	chunks  []ChunkInfo
	closed  atomic.Bool
}

// Open opens the bag at path and builds its connection and chunk tables.
// A bag cut short by an interrupted recording, with no index section, is
// read up to the last complete record.
func Open(path string) (*Bag, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	b := &Bag{
		path:    path,
		file:    file,
		size:    st.Size(),
		byID:    make(map[uint32]*Connection),
		byTopic: make(map[string][]*Connection),
	}
	if err := b.load(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("open bag %s: %w", path, err)
	}
	return b, nil
}

func (b *Bag) load() error {
	magic := make([]byte, len(Magic))
	if _, err := b.file.ReadAt(magic, 0); err != nil || string(magic) != Magic {
		return ErrNotBag
	}

	rr := newRecordReader(b.file, b.size)
	var track chunkTracker
	for {
		rec, err := rr.next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, errTruncated) && !b.indexed {
			break
		}
		if err != nil {
			return err
		}

		track.step(rec.kind)
		switch rec.kind {
		case kindConnection:
			b.addConnection(rec.conn)
		case kindChunkInfo:
			b.indexed = true
		case kindMessage:
			b.observe(track.current(), rec)
		}
	}

	for _, c := range b.chunks {
		for id, n := range c.Counts {
			if conn, ok := b.byID[id]; ok {
				conn.MessageCount += int64(n)
			}
		}
	}
	sort.Slice(b.conns, func(i, j int) bool { return b.conns[i].ID < b.conns[j].ID })
	return nil
}

// observe adds a message to the statistics of chunk i.
func (b *Bag) observe(i int, rec bagRecord) {
	for len(b.chunks) <= i {
		b.chunks = append(b.chunks, ChunkInfo{Counts: make(map[uint32]uint32)})
	}
	c := &b.chunks[i]
	if len(c.Counts) == 0 || rec.time.Nanos() < c.StartTime.Nanos() {
		c.StartTime = rec.time
	}
	if rec.time.Nanos() > c.EndTime.Nanos() {
		c.EndTime = rec.time
	}
	c.Counts[rec.connID]++
}

// addConnection records conn the first time its id is seen. Indexed bags
// repeat every connection after the last chunk.
func (b *Bag) addConnection(conn *Connection) {
	if _, ok := b.byID[conn.ID]; ok {
		return
	}
	b.conns = append(b.conns, conn)
	b.byID[conn.ID] = conn
	b.byTopic[conn.Topic] = append(b.byTopic[conn.Topic], conn)
}

// Path returns the bag path.
func (b *Bag) Path() string { return b.path }

// Size returns the bag size in bytes.
func (b *Bag) Size() int64 { return b.size }

// Indexed reports whether the bag carries an index section.
func (b *Bag) Indexed() bool { return b.indexed }

// Connections returns every connection ordered by id.
func (b *Bag) Connections() []Connection {
	out := make([]Connection, len(b.conns))
	for i, c := range b.conns {
		out[i] = *c
	}
	return out
}

// Topics returns the recorded topic names in sorted order.
func (b *Bag) Topics() []string {
	out := make([]string, 0, len(b.byTopic))
	for t := range b.byTopic {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// TopicType returns the message type of topic, or "" if the topic is not
// in the bag.
func (b *Bag) TopicType(topic string) string {
	if conns := b.byTopic[topic]; len(conns) > 0 {
		return conns[0].Type
	}
	return ""
}

// MessageCount returns the number of messages recorded on topic.
func (b *Bag) MessageCount(topic string) int64 {
	var n int64
	for _, c := range b.byTopic[topic] {
		n += c.MessageCount
	}
	return n
}

// Chunks returns the chunks in file order.
func (b *Bag) Chunks() []ChunkInfo {
	out := make([]ChunkInfo, len(b.chunks))
	copy(out, b.chunks)
	return out
}

// StartTime returns the time of the earliest message.
func (b *Bag) StartTime() Time {
	var start Time
	first := true
	for _, c := range b.chunks {
		if len(c.Counts) == 0 {
			continue
		}
		if first || c.StartTime.Nanos() < start.Nanos() {
			start = c.StartTime
		}
		first = false
	}
	return start
}

// EndTime returns the time of the latest message.
func (b *Bag) EndTime() Time {
	var end Time
	for _, c := range b.chunks {
		if c.EndTime.Nanos() > end.Nanos() {
			end = c.EndTime
		}
	}
	return end
}

// Duration returns the span between the first and last message.
func (b *Bag) Duration() time.Duration {
	if len(b.chunks) == 0 {
		return 0
	}
	return time.Duration(b.EndTime().Nanos() - b.StartTime().Nanos())
}

// Close releases the file. It is idempotent.
func (b *Bag) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.file.Close()
}
