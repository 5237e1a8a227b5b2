package rosbag

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"math"
)

// Message is one recorded message. Data is a private copy and stays valid
// after the iterator moves on.
type Message struct {
	Conn *Connection
	Time Time
	Data []byte
}

// Topic returns the topic the message was recorded on.
func (m Message) Topic() string {
	if m.Conn == nil {
		return ""
	}
	return m.Conn.Topic
}

// MessageIterator yields the messages of the selected topics in increasing
// time order. Messages with equal times keep their recording order.
//
// The bag is decoded front to back. A message is released once it is
// earlier than every chunk not yet read, so memory holds roughly the
// chunks whose time ranges overlap.
type MessageIterator struct {
	bag      *Bag
	selected map[uint32]bool
	reader   *recordReader
	track    chunkTracker
	horizon  []int64 // horizon[i]: earliest selected start of chunks[i:]
	eof      bool
	queue    messageQueue
	seq      uint64
	cur      Message
	err      error
	done     bool
}

// Messages returns an iterator over the messages of topics. No topics
// selects every topic; topics absent from the bag select nothing.
func (b *Bag) Messages(topics ...string) *MessageIterator {
	it := &MessageIterator{bag: b, selected: make(map[uint32]bool)}
	if len(topics) == 0 {
		for _, c := range b.conns {
			it.selected[c.ID] = true
		}
	}
	for _, t := range topics {
		for _, c := range b.byTopic[t] {
			it.selected[c.ID] = true
		}
	}

	it.horizon = make([]int64, len(b.chunks)+1)
	it.horizon[len(b.chunks)] = math.MaxInt64
	for i := len(b.chunks) - 1; i >= 0; i-- {
		it.horizon[i] = it.horizon[i+1]
		for id := range b.chunks[i].Counts {
			if it.selected[id] {
				it.horizon[i] = min(it.horizon[i], b.chunks[i].StartTime.Nanos())
				break
			}
		}
	}
	if len(it.selected) == 0 {
		it.eof = true
	}
	return it
}

// Next advances to the next message.
func (it *MessageIterator) Next() bool {
	if it.done {
		return false
	}
	if it.bag.closed.Load() {
		it.err = ErrClosed
		it.finish()
		return false
	}
	if it.reader == nil && !it.eof {
		it.reader = newRecordReader(it.bag.file, it.bag.size)
	}

	for !it.eof && (len(it.queue) == 0 || it.queue[0].msg.Time.Nanos() >= it.pending()) {
		if err := it.fill(); err != nil {
			it.err = err
			it.finish()
			return false
		}
	}

	if len(it.queue) == 0 {
		it.finish()
		return false
	}
	it.cur = heap.Pop(&it.queue).(queued).msg
	return true
}

// pending returns the earliest time any unread chunk may hold.
func (it *MessageIterator) pending() int64 {
	if i := it.track.unread(); i < len(it.horizon) {
		return it.horizon[i]
	}
	return math.MaxInt64
}

// fill decodes records up to the end of the next chunk, queueing the
// selected messages.
func (it *MessageIterator) fill() error {
	for {
		rec, err := it.reader.next()
		if err == io.EOF || (errors.Is(err, errTruncated) && !it.bag.indexed) {
			it.eof = true
			it.track.step(kindOther)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read messages: %w", err)
		}

		completed := it.track.step(rec.kind)
		if rec.kind == kindMessage && it.selected[rec.connID] {
			heap.Push(&it.queue, queued{
				msg: Message{Conn: it.bag.byID[rec.connID], Time: rec.time, Data: rec.data},
				seq: it.seq,
			})
			it.seq++
		}
		if completed {
			return nil
		}
	}
}

// Message returns the current message.
func (it *MessageIterator) Message() Message {
	return it.cur
}

// Err returns the error that stopped iteration, if any.
func (it *MessageIterator) Err() error {
	return it.err
}

// Close stops iteration early.
func (it *MessageIterator) Close() error {
	it.finish()
	return nil
}

func (it *MessageIterator) finish() {
	it.done = true
	it.cur = Message{}
	it.queue = nil
	it.reader = nil
}

type queued struct {
	msg Message
	seq uint64
}

// messageQueue is a min-heap on (time, seq).
type messageQueue []queued

func (q messageQueue) Len() int { return len(q) }

func (q messageQueue) Less(i, j int) bool {
	ti, tj := q[i].msg.Time.Nanos(), q[j].msg.Time.Nanos()
	if ti != tj {
		return ti < tj
	}
	return q[i].seq < q[j].seq
}

func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *messageQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
