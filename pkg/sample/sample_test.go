package sample

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bagvrs/pkg/rosbag"
)

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d435i.bag")
	counts, err := Generate(path, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 30, counts[TopicColor])
	assert.Equal(t, 30, counts[TopicDepth])
	assert.Equal(t, 63, counts[TopicAccel])
	assert.Equal(t, 200, counts[TopicGyro])
	assert.Equal(t, len(DeviceInfo), counts[TopicDeviceInfo])

	b, err := rosbag.Open(path)
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, b.Indexed())
	assert.Equal(t, int64(30), b.MessageCount(TopicColor))
	assert.Equal(t, rosbag.TypeImu, b.TopicType(TopicGyro))
	assert.Equal(t, rosbag.TypeFloat32, b.TopicType("/device_0/sensor_0/option/Exposure/value"))
	assert.Equal(t, 995*time.Millisecond, b.Duration())

	var total int
	it := b.Messages()
	defer it.Close()
	for it.Next() {
		total++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, counts.Total(), total)
}

func TestGenerate_Minimal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgbd.bag")
	counts, err := Generate(path, Options{
		Duration:    500 * time.Millisecond,
		ColorFPS:    10,
		DepthFPS:    5,
		Compression: rosbag.CompressionNone,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, counts[TopicColor])
	assert.Equal(t, 2, counts[TopicDepth])
	assert.Zero(t, counts[TopicAccel])
	assert.Zero(t, counts[TopicDepthTF])
	assert.Zero(t, counts[TopicDeviceInfo])

	b, err := rosbag.Open(path)
	require.NoError(t, err)
	defer b.Close()
	assert.NotContains(t, b.Topics(), TopicGyro)
	assert.Contains(t, b.Topics(), TopicColorTF)
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Generate(filepath.Join(dir, "long.bag"), Options{Duration: 2 * time.Hour})
	assert.Error(t, err)

	_, err = Generate(filepath.Join(dir, "bz2.bag"), Options{Compression: rosbag.CompressionBZ2})
	assert.Error(t, err)

	_, err = Generate(filepath.Join(dir, "missing", "x.bag"), DefaultOptions())
	assert.Error(t, err)
}

func TestImageDeterministic(t *testing.T) {
	a := messages(Options{Seed: 7, Duration: 100 * time.Millisecond, Width: 4, Height: 2, ColorFPS: 10, DepthFPS: 10, AccelRate: 1, GyroRate: 1})
	b := messages(Options{Seed: 7, Duration: 100 * time.Millisecond, Width: 4, Height: 2, ColorFPS: 10, DepthFPS: 10, AccelRate: 1, GyroRate: 1})
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].topic, b[i].topic)
		assert.Equal(t, a[i].msg, b[i].msg)
	}
}
