package rosbag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserialize(t *testing.T) {
	stamp := Time{Sec: 1700000000, NSec: 250}
	tests := []struct {
		name string
		msg  any
		typ  string
	}{
		{"image", &Image{
			Header: Header{Seq: 3, Stamp: stamp, FrameID: "0"},
			Height: 2, Width: 2, Encoding: "rgb8", Step: 6,
			Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		}, TypeImage},
		{"camera info", &CameraInfo{
			Header: Header{Stamp: stamp}, Height: 480, Width: 640,
			DistortionModel: "plumb_bob",
			D:               []float64{0.1, 0.2, 0, 0, 0},
			K:               [9]float64{615, 0, 320, 0, 615, 240, 0, 0, 1},
			ROI:             RegionOfInterest{Width: 640, Height: 480, DoRectify: true},
		}, TypeCameraInfo},
		{"imu", &Imu{
			Header:             Header{Stamp: stamp, FrameID: "0"},
			Orientation:        Quaternion{W: 1},
			AngularVelocity:    Vector3{X: 0.01, Y: -0.02, Z: 0.03},
			LinearAcceleration: Vector3{X: 0.1, Y: 9.81, Z: -0.2},
		}, TypeImu},
		{"transform", &Transform{
			Translation: Vector3{X: 0.015},
			Rotation:    Quaternion{X: 0.001, W: 0.999},
		}, TypeTransform},
		{"stream info", &StreamInfo{FPS: 30, Encoding: "rgb8", IsRecommended: true}, TypeStreamInfo},
		{"key value", &KeyValue{Key: "Name", Value: "Intel RealSense D435I"}, TypeKeyValue},
		{"string", &String{Data: "Stereo Module"}, TypeString},
		{"float32", &Float32{Data: 1.5}, TypeFloat32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, typ, err := Serialize(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, typ)

			got, err := Deserialize(raw, typ)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestDeserialize_Truncated(t *testing.T) {
	raw, typ, err := Serialize(&Image{Encoding: "rgb8", Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	_, err = Deserialize(raw[:len(raw)-1], typ)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDeserialize_UnsupportedType(t *testing.T) {
	_, err := Deserialize(nil, "sensor_msgs/PointCloud2")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, _, err = Serialize(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestTime(t *testing.T) {
	tm := Time{Sec: 12, NSec: 345}
	assert.Equal(t, int64(12_000_000_345), tm.Nanos())
	assert.Equal(t, tm, TimeFromNanos(tm.Nanos()))
	assert.Equal(t, int64(12), tm.Time().Unix())
}
