package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/bagvrs/pkg/container"
)

// ErrInvalidMapping is returned by Mapping.Validate.
var ErrInvalidMapping = errors.New("invalid stream mapping")

// Kind selects how a mapped topic is extracted.
type Kind string

const (
	KindColor          Kind = "color"
	KindDepth          Kind = "depth"
	KindIMUAccel       Kind = "imu_accel"
	KindIMUGyro        Kind = "imu_gyro"
	KindTransformDepth Kind = "transform_depth"
	KindTransformColor Kind = "transform_color"
	KindDeviceInfo     Kind = "device_info"
	KindSensorInfo     Kind = "sensor_info"
	KindOptions        Kind = "options"
)

var kindTypes = map[Kind]container.RecordableTypeID{
	KindColor:          container.TypeCamera,
	KindDepth:          container.TypeDepthCamera,
	KindIMUAccel:       container.TypeMotionSensor,
	KindIMUGyro:        container.TypeMotionSensor,
	KindTransformDepth: container.TypeCalibration,
	KindTransformColor: container.TypeCalibration,
	KindDeviceInfo:     container.TypeDeviceInfo,
	KindSensorInfo:     container.TypeDeviceInfo,
	KindOptions:        container.TypeSensorOptions,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindTypes[k]
	return ok
}

// HasData reports whether streams of kind k carry data records. The other
// kinds are configuration-only.
func (k Kind) HasData() bool {
	switch k {
	case KindColor, KindDepth, KindIMUAccel, KindIMUGyro:
		return true
	}
	return false
}

// IsCamera reports whether k is an image stream.
func (k Kind) IsCamera() bool {
	return k == KindColor || k == KindDepth
}

// StreamSpec maps one source topic to one container stream.
type StreamSpec struct {
	Topic          string `yaml:"topic"`
	StreamID       uint32 `yaml:"stream_id"`
	Kind           Kind   `yaml:"kind"`
	Label          string `yaml:"label"`
	RecordableType string `yaml:"recordable_type,omitempty"`
	// SampleRate is the nominal rate written to IMU configurations.
	SampleRate float64 `yaml:"sample_rate,omitempty"`
	CameraInfo string  `yaml:"camera_info,omitempty"`
	StreamInfo string  `yaml:"stream_info,omitempty"`
	SensorName string  `yaml:"sensor_name,omitempty"`
	// Optional transforms fall back to identity when absent from the bag.
	Optional          bool     `yaml:"optional,omitempty"`
	AssociatedStreams []uint32 `yaml:"associated_streams,omitempty"`
}

// Type returns the recordable type of the stream: the explicit
// RecordableType if set, otherwise the default for its kind.
func (s StreamSpec) Type() container.RecordableTypeID {
	if s.RecordableType != "" {
		if id, ok := container.ParseRecordableType(s.RecordableType); ok {
			return id
		}
	}
	if id, ok := kindTypes[s.Kind]; ok {
		return id
	}
	return container.TypeUnspecified
}

// Mapping is an ordered topic to stream table. Streams are declared in
// table order.
type Mapping struct {
	Name    string       `yaml:"name"`
	Streams []StreamSpec `yaml:"streams"`
}

// Validate checks ids, topics, kinds and per-kind requirements.
func (m *Mapping) Validate() error {
	if len(m.Streams) == 0 {
		return fmt.Errorf("%w: no streams", ErrInvalidMapping)
	}

	ids := make(map[uint32]bool)
	topics := make(map[string]bool)
	for i, s := range m.Streams {
		switch {
		case s.Topic == "":
			return fmt.Errorf("%w: stream %d has no topic", ErrInvalidMapping, i)
		case s.StreamID == 0:
			return fmt.Errorf("%w: %s: stream id must be positive", ErrInvalidMapping, s.Topic)
		case ids[s.StreamID]:
			return fmt.Errorf("%w: duplicate stream id %d", ErrInvalidMapping, s.StreamID)
		case topics[s.Topic]:
			return fmt.Errorf("%w: duplicate topic %s", ErrInvalidMapping, s.Topic)
		case !s.Kind.Valid():
			return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidMapping, s.Topic, s.Kind)
		case s.Label == "":
			return fmt.Errorf("%w: %s: empty label", ErrInvalidMapping, s.Topic)
		case s.SampleRate < 0:
			return fmt.Errorf("%w: %s: negative sample rate", ErrInvalidMapping, s.Topic)
		case s.Kind.IsCamera() && s.CameraInfo == "":
			return fmt.Errorf("%w: %s: %s stream needs a camera_info topic", ErrInvalidMapping, s.Topic, s.Kind)
		}
		if s.RecordableType != "" {
			if _, ok := container.ParseRecordableType(s.RecordableType); !ok {
				return fmt.Errorf("%w: %s: unknown recordable type %q", ErrInvalidMapping, s.Topic, s.RecordableType)
			}
		}
		ids[s.StreamID] = true
		topics[s.Topic] = true
	}
	return nil
}

// Topics returns the mapped topics in table order.
func (m *Mapping) Topics() []string {
	out := make([]string, len(m.Streams))
	for i, s := range m.Streams {
		out[i] = s.Topic
	}
	return out
}

// DataTopics returns the topics of streams that carry data records.
func (m *Mapping) DataTopics() []string {
	var out []string
	for _, s := range m.Streams {
		if s.Kind.HasData() {
			out = append(out, s.Topic)
		}
	}
	return out
}

// ByTopic returns the stream mapped from topic.
func (m *Mapping) ByTopic(topic string) (StreamSpec, bool) {
	for _, s := range m.Streams {
		if s.Topic == topic {
			return s, true
		}
	}
	return StreamSpec{}, false
}

// ByID returns the stream with logical id id.
func (m *Mapping) ByID(id uint32) (StreamSpec, bool) {
	for _, s := range m.Streams {
		if s.StreamID == id {
			return s, true
		}
	}
	return StreamSpec{}, false
}

// LoadMapping reads and validates a standalone mapping file.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal returns the mapping as YAML.
func (m *Mapping) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Preset names accepted by Preset.
const (
	PresetRGBD    = "rgbd"
	PresetRGBDIMU = "rgbd_imu"
)

// Preset returns a built-in mapping by name.
func Preset(name string) (*Mapping, error) {
	switch strings.ToLower(name) {
	case PresetRGBD:
		return RGBDMapping(), nil
	case PresetRGBDIMU, "rgbd-imu":
		return RGBDIMUMapping(), nil
	}
	return nil, fmt.Errorf("unknown mapping preset %q (want %s or %s)", name, PresetRGBD, PresetRGBDIMU)
}

const deviceTopic = "/device_0"

// RGBDMapping maps the color and depth images of a RealSense recording
// with their extrinsics.
func RGBDMapping() *Mapping {
	return &Mapping{Name: PresetRGBD, Streams: rgbdStreams()}
}

// RGBDIMUMapping extends RGBDMapping with the IMU, device and sensor info,
// and sensor options.
func RGBDIMUMapping() *Mapping {
	streams := append(rgbdStreams(),
		StreamSpec{
			Topic:      deviceTopic + "/sensor_2/Accel_0/imu/data",
			StreamID:   1003,
			Kind:       KindIMUAccel,
			Label:      "RealSense_D435i_Accel",
			SampleRate: 44.0,
			StreamInfo: deviceTopic + "/sensor_2/Accel_0/info",
		},
		StreamSpec{
			Topic:      deviceTopic + "/sensor_2/Gyro_0/imu/data",
			StreamID:   1004,
			Kind:       KindIMUGyro,
			Label:      "RealSense_D435i_Gyro",
			SampleRate: 55.0,
			StreamInfo: deviceTopic + "/sensor_2/Gyro_0/info",
		},
		StreamSpec{
			Topic:    deviceTopic + "/info",
			StreamID: 2001,
			Kind:     KindDeviceInfo,
			Label:    "RealSense_D435i_Device_Info",
		},
		StreamSpec{
			Topic:             deviceTopic + "/sensor_0/info",
			StreamID:          2002,
			Kind:              KindSensorInfo,
			Label:             "RealSense_D435i_Sensor0_Info",
			AssociatedStreams: []uint32{1002, 1005},
		},
		StreamSpec{
			Topic:             deviceTopic + "/sensor_1/info",
			StreamID:          2003,
			Kind:              KindSensorInfo,
			Label:             "RealSense_D435i_Sensor1_Info",
			AssociatedStreams: []uint32{1001, 1006},
		},
		StreamSpec{
			Topic:             deviceTopic + "/sensor_2/info",
			StreamID:          2004,
			Kind:              KindSensorInfo,
			Label:             "RealSense_D435i_Sensor2_Info",
			AssociatedStreams: []uint32{1003, 1004},
		},
		StreamSpec{
			Topic:    deviceTopic + "/sensor_0/option",
			StreamID: 2005,
			Kind:     KindOptions,
			Label:    "RealSense_D435i_Options",
		},
	)
	return &Mapping{Name: PresetRGBDIMU, Streams: streams}
}

func rgbdStreams() []StreamSpec {
	return []StreamSpec{
		{
			Topic:      deviceTopic + "/sensor_1/Color_0/image/data",
			StreamID:   1001,
			Kind:       KindColor,
			Label:      "RealSense_D435i_Color",
			CameraInfo: deviceTopic + "/sensor_1/Color_0/info/camera_info",
			StreamInfo: deviceTopic + "/sensor_1/Color_0/info",
		},
		{
			Topic:      deviceTopic + "/sensor_0/Depth_0/image/data",
			StreamID:   1002,
			Kind:       KindDepth,
			Label:      "RealSense_D435i_Depth",
			CameraInfo: deviceTopic + "/sensor_0/Depth_0/info/camera_info",
			StreamInfo: deviceTopic + "/sensor_0/Depth_0/info",
		},
		{
			Topic:      deviceTopic + "/sensor_0/Depth_0/tf/0",
			StreamID:   1005,
			Kind:       KindTransformDepth,
			Label:      "RealSense_D435i_Depth_Extrinsic",
			SensorName: "Depth",
			Optional:   true,
		},
		{
			Topic:      deviceTopic + "/sensor_1/Color_0/tf/0",
			StreamID:   1006,
			Kind:       KindTransformColor,
			Label:      "RealSense_D435i_Color_Extrinsic",
			SensorName: "Color",
		},
	}
}
