package convert

import (
	"context"
	"errors"
	"sort"

	"github.com/ssargent/bagvrs/pkg/extract"
	"github.com/ssargent/bagvrs/pkg/timeutil"
)

// ErrStop may be returned by a StreamFunc to end iteration early without
// an error.
var ErrStop = errors.New("stop streaming")

// StreamFilter selects sensor messages. Start and End are seconds from the
// first message of the log; Start is inclusive and End exclusive.
type StreamFilter struct {
	Start   *float64
	End     *float64
	Sensors []extract.Sensor // Empty selects every sensor
	Limit   int              // 0 = unlimited
}

// SensorMessage is one sensor data message in chronological order.
type SensorMessage struct {
	TimestampNS  int64          `json:"-"`
	TimestampSec float64        `json:"timestamp_sec"`
	RelativeSec  float64        `json:"relative_sec"`
	TimestampISO string         `json:"timestamp_iso"`
	Sensor       extract.Sensor `json:"sensor_type"`
	Topic        string         `json:"topic"`
	MessageType  string         `json:"msgtype"`
	Size         int            `json:"size"`
}

// StreamFunc receives each selected message.
type StreamFunc func(SensorMessage) error

// Stream calls fn for every selected sensor message of src in timestamp
// order and returns how many it delivered.
func Stream(ctx context.Context, src Source, filter StreamFilter, fn StreamFunc) (int, error) {
	want := make(map[extract.Sensor]bool, len(filter.Sensors))
	for _, s := range filter.Sensors {
		want[s] = true
	}

	sensors := make(map[string]extract.Sensor)
	var topics []string
	for _, ch := range src.Channels() {
		sensor, ok := extract.ClassifyTopic(ch.Name)
		if !ok || (len(want) > 0 && !want[sensor]) {
			continue
		}
		sensors[ch.Name] = sensor
		topics = append(topics, ch.Name)
	}
	if len(topics) == 0 {
		return 0, nil
	}
	sort.Strings(topics)

	start := src.StartNS()
	it := src.Messages(topics...)
	defer it.Close()

	n := 0
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		m := it.Message()
		rel := timeutil.Seconds(m.TimestampNS, start)
		if filter.Start != nil && rel < *filter.Start {
			continue
		}
		if filter.End != nil && rel >= *filter.End {
			// Messages arrive in order, nothing later can match.
			break
		}

		err := fn(SensorMessage{
			TimestampNS:  m.TimestampNS,
			TimestampSec: timeutil.NanosToSeconds(m.TimestampNS),
			RelativeSec:  rel,
			TimestampISO: timeutil.FormatISO(timeutil.ToTime(m.TimestampNS)),
			Sensor:       sensors[m.Channel],
			Topic:        m.Channel,
			MessageType:  m.MessageType,
			Size:         len(m.Data),
		})
		if errors.Is(err, ErrStop) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if filter.Limit > 0 && n >= filter.Limit {
			return n, nil
		}
	}
	return n, it.Err()
}
