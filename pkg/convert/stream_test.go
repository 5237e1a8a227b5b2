package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bagvrs/pkg/extract"
	"github.com/ssargent/bagvrs/pkg/rosbag"
	"github.com/ssargent/bagvrs/pkg/sample"
)

func openSample(t *testing.T) Source {
	t.Helper()
	src, err := OpenBag(generate(t, sample.DefaultOptions()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func collect(t *testing.T, src Source, filter StreamFilter) []SensorMessage {
	t.Helper()
	var out []SensorMessage
	n, err := Stream(context.Background(), src, filter, func(m SensorMessage) error {
		out = append(out, m)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(out), n)
	return out
}

func f64(v float64) *float64 { return &v }

func TestStream_All(t *testing.T) {
	src := openSample(t)
	msgs := collect(t, src, StreamFilter{})
	require.Len(t, msgs, 323)

	counts := make(map[extract.Sensor]int)
	for i, m := range msgs {
		counts[m.Sensor]++
		if i > 0 {
			assert.GreaterOrEqual(t, m.TimestampNS, msgs[i-1].TimestampNS)
		}
	}
	assert.Equal(t, map[extract.Sensor]int{
		extract.SensorRGB:   30,
		extract.SensorDepth: 30,
		extract.SensorAccel: 63,
		extract.SensorGyro:  200,
	}, counts)

	first := msgs[0]
	assert.Equal(t, 1704067200.0, first.TimestampSec)
	assert.Equal(t, 0.0, first.RelativeSec)
	assert.Equal(t, "2024-01-01T00:00:00+00:00", first.TimestampISO)
}

func TestStream_Filters(t *testing.T) {
	src := openSample(t)

	t.Run("sensor", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{Sensors: []extract.Sensor{extract.SensorGyro}})
		require.Len(t, msgs, 200)
		assert.Equal(t, sample.TopicGyro, msgs[0].Topic)
		assert.Equal(t, rosbag.TypeImu, msgs[0].MessageType)
	})

	t.Run("start inclusive", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{Start: f64(0.5), Sensors: []extract.Sensor{extract.SensorGyro}})
		require.Len(t, msgs, 100)
		assert.Equal(t, 0.5, msgs[0].RelativeSec)
	})

	t.Run("end exclusive", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{End: f64(0.5), Sensors: []extract.Sensor{extract.SensorRGB}})
		assert.Len(t, msgs, 15)
	})

	t.Run("window", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{Start: f64(0.25), End: f64(0.5), Sensors: []extract.Sensor{extract.SensorGyro}})
		assert.Len(t, msgs, 50)
	})

	t.Run("limit", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{Limit: 10})
		assert.Len(t, msgs, 10)
	})

	t.Run("no matching sensor", func(t *testing.T) {
		msgs := collect(t, src, StreamFilter{Sensors: []extract.Sensor{extract.SensorIR}})
		assert.Empty(t, msgs)
	})
}

func TestStream_Stop(t *testing.T) {
	src := openSample(t)

	n, err := Stream(context.Background(), src, StreamFilter{}, func(m SensorMessage) error {
		if m.RelativeSec > 0.1 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Positive(t, n)

	boom := errors.New("boom")
	n, err = Stream(context.Background(), src, StreamFilter{}, func(SensorMessage) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestStream_Canceled(t *testing.T) {
	src := openSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Stream(ctx, src, StreamFilter{}, func(SensorMessage) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
