// Package sample writes synthetic RealSense D435i recordings in the ROS bag
// format, with the topic layout the RGB-D presets expect.
package sample

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/ssargent/bagvrs/pkg/rosbag"
)

// Options configures a generated recording
type Options struct {
	Start       time.Time     // Time of the first message (zero = 2024-01-01 UTC)
	Duration    time.Duration // Length of the recording (0 = 1s)
	Width       uint32        // Image width (0 = 64)
	Height      uint32        // Image height (0 = 48)
	ColorFPS    uint32        // Color frame rate (0 = 30)
	DepthFPS    uint32        // Depth frame rate (0 = 30)
	IMU         bool          // Include accel and gyro topics
	AccelRate   uint32        // Accel sample rate (0 = 63)
	GyroRate    uint32        // Gyro sample rate (0 = 200)
	Info        bool          // Include device info, sensor names and options
	DepthTF     bool          // Include the depth extrinsic
	Compression string        // Chunk compression (rosbag.CompressionNone or CompressionLZ4)
	Seed        int64         // Image content seed
}

// DefaultOptions returns a one second recording with every topic.
func DefaultOptions() Options {
	return Options{IMU: true, Info: true, DepthTF: true, Compression: rosbag.CompressionLZ4}
}

func (o *Options) defaults() {
	if o.Start.IsZero() {
		o.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.Duration <= 0 {
		o.Duration = time.Second
	}
	if o.Width == 0 {
		o.Width = 64
	}
	if o.Height == 0 {
		o.Height = 48
	}
	if o.ColorFPS == 0 {
		o.ColorFPS = 30
	}
	if o.DepthFPS == 0 {
		o.DepthFPS = 30
	}
	if o.AccelRate == 0 {
		o.AccelRate = 63
	}
	if o.GyroRate == 0 {
		o.GyroRate = 200
	}
	if o.Compression == "" {
		o.Compression = rosbag.CompressionLZ4
	}
}

// Topic names of the generated recording.
const (
	TopicDeviceInfo      = "/device_0/info"
	TopicStereoInfo      = "/device_0/sensor_0/info"
	TopicDepth           = "/device_0/sensor_0/Depth_0/image/data"
	TopicDepthInfo       = "/device_0/sensor_0/Depth_0/info"
	TopicDepthCameraInfo = "/device_0/sensor_0/Depth_0/info/camera_info"
	TopicDepthTF         = "/device_0/sensor_0/Depth_0/tf/0"
	TopicRGBInfo         = "/device_0/sensor_1/info"
	TopicColor           = "/device_0/sensor_1/Color_0/image/data"
	TopicColorInfo       = "/device_0/sensor_1/Color_0/info"
	TopicColorCameraInfo = "/device_0/sensor_1/Color_0/info/camera_info"
	TopicColorTF         = "/device_0/sensor_1/Color_0/tf/0"
	TopicMotionInfo      = "/device_0/sensor_2/info"
	TopicAccel           = "/device_0/sensor_2/Accel_0/imu/data"
	TopicAccelInfo       = "/device_0/sensor_2/Accel_0/info"
	TopicGyro            = "/device_0/sensor_2/Gyro_0/imu/data"
	TopicGyroInfo        = "/device_0/sensor_2/Gyro_0/info"
)

// DeviceInfo is the device info written with Options.Info.
var DeviceInfo = []rosbag.KeyValue{
	{Key: "Name", Value: "Intel RealSense D435I"},
	{Key: "Serial Number", Value: "012345678901"},
	{Key: "Firmware Version", Value: "5.13.0.50"},
	{Key: "Recommended Firmware Version", Value: "5.13.0.50"},
	{Key: "Physical Port", Value: "/sys/devices/pci0000:00/usb2/2-1"},
	{Key: "Debug Op Code", Value: "15"},
	{Key: "Advanced Mode", Value: "YES"},
	{Key: "Product Id", Value: "0B3A"},
	{Key: "Usb Type Descriptor", Value: "3.2"},
}

// Option values written with Options.Info, on sensor_0.
var sensorOptions = []struct {
	name, description string
	value             float32
}{
	{"Exposure", "Depth Exposure (usec)", 8500},
	{"Gain", "UVC image gain", 16},
	{"Laser_Power", "Manual laser power in mw. applicable only when laser power mode is set to Manual", 150},
}

// Counts is the number of messages written per topic.
type Counts map[string]int

// Total returns the number of messages written.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

type stamped struct {
	topic string
	ns    int64
	msg   any
}

// Generate writes a synthetic recording to path.
func Generate(path string, opts Options) (Counts, error) {
	opts.defaults()
	if opts.Duration > time.Hour {
		return nil, errors.New("sample: duration above one hour")
	}

	w, err := rosbag.Create(path, rosbag.WithChunkCompression(opts.Compression))
	if err != nil {
		return nil, err
	}

	msgs := messages(opts)
	counts := make(Counts)
	for _, m := range msgs {
		if err := w.Write(m.topic, rosbag.TimeFromNanos(m.ns), m.msg); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("sample: %s: %w", m.topic, err)
		}
		counts[m.topic]++
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return counts, nil
}

// messages builds every message of the recording in timestamp order.
func messages(opts Options) []stamped {
	start := opts.Start.UnixNano()
	rng := rand.New(rand.NewSource(opts.Seed))
	var out []stamped
	add := func(topic string, ns int64, msg any) {
		out = append(out, stamped{topic: topic, ns: ns, msg: msg})
	}

	// Static topics come first, at the start time.
	if opts.Info {
		for i := range DeviceInfo {
			kv := DeviceInfo[i]
			add(TopicDeviceInfo, start, &kv)
		}
		add(TopicStereoInfo, start, &rosbag.KeyValue{Key: "Name", Value: "Stereo Module"})
		add(TopicRGBInfo, start, &rosbag.KeyValue{Key: "Name", Value: "RGB Camera"})
		if opts.IMU {
			add(TopicMotionInfo, start, &rosbag.KeyValue{Key: "Name", Value: "Motion Module"})
		}
		for _, o := range sensorOptions {
			prefix := "/device_0/sensor_0/option/" + o.name
			add(prefix+"/value", start, &rosbag.Float32{Data: o.value})
			add(prefix+"/description", start, &rosbag.String{Data: o.description})
		}
	}

	add(TopicColorInfo, start, &rosbag.StreamInfo{FPS: opts.ColorFPS, Encoding: "rgb8", IsRecommended: true})
	add(TopicColorCameraInfo, start, cameraInfo(opts, "camera_color_optical_frame", 0.9))
	add(TopicColorTF, start, &rosbag.Transform{
		Translation: rosbag.Vector3{X: 0.015},
		Rotation:    rosbag.Quaternion{W: 1},
	})
	add(TopicDepthInfo, start, &rosbag.StreamInfo{FPS: opts.DepthFPS, Encoding: "16UC1", IsRecommended: true})
	add(TopicDepthCameraInfo, start, cameraInfo(opts, "camera_depth_optical_frame", 0.75))
	if opts.DepthTF {
		add(TopicDepthTF, start, &rosbag.Transform{Rotation: rosbag.Quaternion{W: 1}})
	}
	if opts.IMU {
		add(TopicAccelInfo, start, &rosbag.StreamInfo{FPS: opts.AccelRate, Encoding: "MOTION_XYZ32F"})
		add(TopicGyroInfo, start, &rosbag.StreamInfo{FPS: opts.GyroRate, Encoding: "MOTION_XYZ32F"})
	}

	// Data topics.
	for i, ns := range ticks(start, opts.Duration, opts.ColorFPS) {
		add(TopicColor, ns, image(opts, uint32(i), ns, "camera_color_optical_frame", "rgb8", 3, rng))
	}
	for i, ns := range ticks(start, opts.Duration, opts.DepthFPS) {
		add(TopicDepth, ns, image(opts, uint32(i), ns, "camera_depth_optical_frame", "16UC1", 2, rng))
	}
	if opts.IMU {
		for i, ns := range ticks(start, opts.Duration, opts.AccelRate) {
			phase := float64(i) / float64(opts.AccelRate)
			add(TopicAccel, ns, &rosbag.Imu{
				Header:             rosbag.Header{Seq: uint32(i), Stamp: rosbag.TimeFromNanos(ns), FrameID: "camera_accel_optical_frame"},
				Orientation:        rosbag.Quaternion{W: 1},
				LinearAcceleration: rosbag.Vector3{X: 0.1 * math.Sin(phase), Y: -9.81, Z: 0.05},
			})
		}
		for i, ns := range ticks(start, opts.Duration, opts.GyroRate) {
			phase := float64(i) / float64(opts.GyroRate)
			add(TopicGyro, ns, &rosbag.Imu{
				Header:          rosbag.Header{Seq: uint32(i), Stamp: rosbag.TimeFromNanos(ns), FrameID: "camera_gyro_optical_frame"},
				Orientation:     rosbag.Quaternion{W: 1},
				AngularVelocity: rosbag.Vector3{X: 0.01, Y: 0.02 * math.Cos(phase), Z: -0.01},
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ns < out[j].ns })
	return out
}

// ticks returns the sample times of a rate over [start, start+d).
func ticks(start int64, d time.Duration, rate uint32) []int64 {
	n := int64(d) * int64(rate) / int64(time.Second)
	out := make([]int64, n)
	for i := range out {
		out[i] = start + int64(i)*int64(time.Second)/int64(rate)
	}
	return out
}

func cameraInfo(opts Options, frame string, focalScale float64) *rosbag.CameraInfo {
	fx := focalScale * float64(opts.Width)
	cx, cy := float64(opts.Width)/2, float64(opts.Height)/2
	return &rosbag.CameraInfo{
		Header:          rosbag.Header{FrameID: frame},
		Width:           opts.Width,
		Height:          opts.Height,
		DistortionModel: "plumb_bob",
		D:               []float64{0, 0, 0, 0, 0},
		K:               [9]float64{fx, 0, cx, 0, fx, cy, 0, 0, 1},
		R:               [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		P:               [12]float64{fx, 0, cx, 0, 0, fx, cy, 0, 0, 0, 1, 0},
	}
}

func image(opts Options, seq uint32, ns int64, frame, encoding string, bpp uint32, rng *rand.Rand) *rosbag.Image {
	step := opts.Width * bpp
	data := make([]byte, int(step*opts.Height))
	// A gradient with some noise compresses like a real frame would.
	for i := range data {
		data[i] = byte(i/int(bpp)) + byte(seq) + byte(rng.Intn(4))
	}
	return &rosbag.Image{
		Header:   rosbag.Header{Seq: seq, Stamp: rosbag.TimeFromNanos(ns), FrameID: frame},
		Height:   opts.Height,
		Width:    opts.Width,
		Encoding: encoding,
		Step:     step,
		Data:     data,
	}
}
