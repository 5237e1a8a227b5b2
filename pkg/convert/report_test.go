package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bagvrs/pkg/rosbag"
	"github.com/ssargent/bagvrs/pkg/sample"
)

func TestDescribe(t *testing.T) {
	src := openSample(t)

	r, err := Describe(context.Background(), src, true)
	require.NoError(t, err)

	assert.InDelta(t, 0.995, r.DurationSec, 1e-9)
	assert.Equal(t, len(src.Channels()), r.TopicCount)
	assert.Equal(t, int64(60), r.ImageMessages)
	assert.Equal(t, int64(263), r.IMUMessages)
	assert.Equal(t, int64(323), r.DataMessages)

	require.Len(t, r.ImageTopics, 2)
	assert.Equal(t, sample.TopicDepth, r.ImageTopics[0].Topic)
	assert.Equal(t, sample.TopicColor, r.ImageTopics[1].Topic)
	assert.Equal(t, rosbag.TypeImage, r.ImageTopics[1].MessageType)
	assert.Equal(t, "2024-01-01T00:00:00+00:00", r.ImageTopics[1].First)
	assert.Equal(t, "2024-01-01T00:00:00.966666+00:00", r.ImageTopics[1].Last)

	require.Len(t, r.IMUTopics, 2)
	assert.Equal(t, sample.TopicAccel, r.IMUTopics[0].Topic)
	assert.Equal(t, int64(63), r.IMUTopics[0].MessageCount)
	assert.Equal(t, "2024-01-01T00:00:00.995000+00:00", r.IMUTopics[1].Last)
}

func TestDescribe_NoTimestamps(t *testing.T) {
	src := openSample(t)

	r, err := Describe(context.Background(), src, false)
	require.NoError(t, err)
	for _, tr := range append(r.ImageTopics, r.IMUTopics...) {
		assert.Empty(t, tr.First)
		assert.Empty(t, tr.Last)
	}
}

func TestDescribe_Canceled(t *testing.T) {
	src := openSample(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Describe(ctx, src, true)
	assert.ErrorIs(t, err, context.Canceled)
}
