package convert

import (
	"time"

	"github.com/ssargent/bagvrs/pkg/rosbag"
)

// Channel is one named message channel of a source log.
type Channel struct {
	Name         string `json:"name"`
	MessageType  string `json:"message_type"`
	MessageCount int64  `json:"message_count"`
}

// Message is one message of a source log.
type Message struct {
	Channel     string
	MessageType string
	TimestampNS int64
	Data        []byte
}

// MessageIterator yields messages in increasing timestamp order.
type MessageIterator interface {
	Next() bool
	Message() Message
	Err() error
	Close() error
}

// Source is a recorded message log that can be converted.
type Source interface {
	Channels() []Channel
	// StartNS is the timestamp of the first message.
	StartNS() int64
	Duration() time.Duration
	// Messages iterates the selected channels; no channels selects all.
	Messages(channels ...string) MessageIterator
	Deserialize(raw []byte, msgType string) (any, error)
	Close() error
}

// OpenBag opens a ROS bag as a Source.
func OpenBag(path string) (Source, error) {
	b, err := rosbag.Open(path)
	if err != nil {
		return nil, err
	}
	return NewBagSource(b), nil
}

// NewBagSource adapts an open bag. Closing the source closes the bag.
func NewBagSource(b *rosbag.Bag) Source {
	return &bagSource{bag: b}
}

type bagSource struct {
	bag *rosbag.Bag
}

func (s *bagSource) Channels() []Channel {
	topics := s.bag.Topics()
	out := make([]Channel, len(topics))
	for i, t := range topics {
		out[i] = Channel{Name: t, MessageType: s.bag.TopicType(t), MessageCount: s.bag.MessageCount(t)}
	}
	return out
}

func (s *bagSource) StartNS() int64 { return s.bag.StartTime().Nanos() }

func (s *bagSource) Duration() time.Duration { return s.bag.Duration() }

func (s *bagSource) Messages(channels ...string) MessageIterator {
	return &bagIterator{it: s.bag.Messages(channels...)}
}

func (s *bagSource) Deserialize(raw []byte, msgType string) (any, error) {
	return rosbag.Deserialize(raw, msgType)
}

func (s *bagSource) Close() error { return s.bag.Close() }

type bagIterator struct {
	it *rosbag.MessageIterator
}

func (i *bagIterator) Next() bool { return i.it.Next() }

func (i *bagIterator) Message() Message {
	m := i.it.Message()
	var typ string
	if m.Conn != nil {
		typ = m.Conn.Type
	}
	return Message{Channel: m.Topic(), MessageType: typ, TimestampNS: m.Time.Nanos(), Data: m.Data}
}

func (i *bagIterator) Err() error { return i.it.Err() }

func (i *bagIterator) Close() error { return i.it.Close() }
