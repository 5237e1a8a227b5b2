package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/value"
)

var (
	// ErrNoSource means the bag holds nothing to configure the stream
	// from. The stream is left without a configuration.
	ErrNoSource = errors.New("no source data for stream configuration")
	// ErrMissingSource means a message the stream cannot do without is
	// absent from the bag.
	ErrMissingSource = errors.New("required source message not found")
)

// Device info keys, in configuration order.
var deviceKeys = []struct{ field, key string }{
	{"serial_number", "Serial Number"},
	{"firmware_version", "Firmware Version"},
	{"recommended_firmware_version", "Recommended Firmware Version"},
	{"physical_port", "Physical Port"},
	{"debug_op_code", "Debug Op Code"},
	{"advanced_mode", "Advanced Mode"},
	{"product_id", "Product Id"},
	{"usb_type_descriptor", "Usb Type Descriptor"},
}

const (
	defaultAccelRate = 44.0
	defaultGyroRate  = 55.0
	referenceFrame   = "device_0"
)

// Configuration builds the configuration of one mapped stream.
func (s *Sources) Configuration(spec config.StreamSpec) (*value.Map, error) {
	var (
		m   *value.Map
		err error
	)
	switch spec.Kind {
	case config.KindColor:
		m, err = s.camera(spec, "rgb8", false)
	case config.KindDepth:
		m, err = s.camera(spec, "16UC1", true)
	case config.KindIMUAccel:
		m, err = s.imu(spec, "accelerometer", "m/s^2", defaultAccelRate)
	case config.KindIMUGyro:
		m, err = s.imu(spec, "gyroscope", "rad/s", defaultGyroRate)
	case config.KindTransformDepth, config.KindTransformColor:
		m, err = s.transform(spec)
	case config.KindDeviceInfo:
		m, err = s.deviceInfo(spec)
	case config.KindSensorInfo:
		m, err = s.sensorInfo(spec)
	case config.KindOptions:
		m, err = s.optionsConfig()
	default:
		return nil, fmt.Errorf("stream %d: unknown kind %q", spec.StreamID, spec.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("stream %d (%s): %w", spec.StreamID, spec.Kind, err)
	}
	return m, nil
}

func (s *Sources) camera(spec config.StreamSpec, encoding string, depth bool) (*value.Map, error) {
	info, ok := s.CameraInfo(spec.CameraInfo)
	if !ok {
		return nil, fmt.Errorf("%w: CameraInfo on %s", ErrMissingSource, spec.CameraInfo)
	}
	k, err := floats(info.K[:])
	if err != nil {
		return nil, fmt.Errorf("camera_k: %w", err)
	}
	d, err := floats(info.D)
	if err != nil {
		return nil, fmt.Errorf("camera_d: %w", err)
	}

	m := value.NewMap().
		Set("width", value.Uint(uint64(info.Width))).
		Set("height", value.Uint(uint64(info.Height))).
		Set("encoding", value.String(encoding)).
		Set("camera_k", k).
		Set("camera_d", d).
		Set("distortion_model", value.String(info.DistortionModel))
	if depth {
		m.Set("depth_scale", value.MustFloat(0.001))
	}
	m.Set("frame_id", value.String(info.Header.FrameID))

	s.addStreamInfo(m, spec)
	return m, nil
}

func (s *Sources) imu(spec config.StreamSpec, sensorType, unit string, defaultRate float64) (*value.Map, error) {
	rate := spec.SampleRate
	if rate == 0 {
		rate = defaultRate
	}
	sampleRate, err := value.Float(rate)
	if err != nil {
		return nil, fmt.Errorf("sample_rate: %w", err)
	}
	zeros := value.Seq(value.Int(0), value.Int(0), value.Int(0))

	m := value.NewMap().
		Set("sensor_type", value.String(sensorType)).
		Set("frame_id", value.String("0")).
		Set("unit", value.String(unit)).
		Set("sample_rate", sampleRate).
		Set("axes", value.Seq(value.String("x"), value.String("y"), value.String("z"))).
		Set("range", value.Null()).
		Set("noise_variances", zeros).
		Set("bias_variances", zeros)

	s.addStreamInfo(m, spec)
	return m, nil
}

// addStreamInfo appends fps and is_recommended and overrides the default
// encoding when the stream has a StreamInfo message.
func (s *Sources) addStreamInfo(m *value.Map, spec config.StreamSpec) {
	info, ok := s.StreamInfo(spec.StreamInfo)
	if !ok {
		return
	}
	m.Set("fps", value.Uint(uint64(info.FPS))).
		Set("encoding", value.String(info.Encoding)).
		Set("is_recommended", value.Bool(info.IsRecommended))
}

func (s *Sources) transform(spec config.StreamSpec) (*value.Map, error) {
	name := spec.SensorName
	if name == "" {
		name = "Depth"
		if spec.Kind == config.KindTransformColor {
			name = "Color"
		}
	}

	tf, ok := s.Transform(spec.Topic)
	if !ok {
		if !spec.Optional {
			return nil, fmt.Errorf("%w: Transform on %s", ErrMissingSource, spec.Topic)
		}
		tf = &identity
	}

	translation := value.NewMap()
	for _, f := range []struct {
		key string
		v   float64
	}{{"x", tf.Translation.X}, {"y", tf.Translation.Y}, {"z", tf.Translation.Z}} {
		if err := translation.SetAny(f.key, f.v); err != nil {
			return nil, fmt.Errorf("translation: %w", err)
		}
	}
	translation.Set("unit", value.String("meters"))

	rotation := value.NewMap()
	for _, f := range []struct {
		key string
		v   float64
	}{{"x", tf.Rotation.X}, {"y", tf.Rotation.Y}, {"z", tf.Rotation.Z}, {"w", tf.Rotation.W}} {
		if err := rotation.SetAny(f.key, f.v); err != nil {
			return nil, fmt.Errorf("rotation: %w", err)
		}
	}
	rotation.Set("format", value.String("quaternion"))

	return value.NewMap().
		Set("transform_type", value.String("static")).
		Set("sensor_name", value.String(name)).
		Set("reference_frame", value.String(referenceFrame)).
		Set("translation", value.Mapping(translation)).
		Set("rotation", value.Mapping(rotation)), nil
}

func (s *Sources) deviceInfo(spec config.StreamSpec) (*value.Map, error) {
	kv := s.KeyValues(spec.Topic)
	if len(kv) == 0 {
		return nil, ErrNoSource
	}

	name, ok := kv["Name"]
	if !ok {
		name = "Unknown"
	}
	m := value.NewMap().
		Set("info_type", value.String("device")).
		Set("device_name", value.String(name))
	for _, k := range deviceKeys {
		m.Set(k.field, value.String(kv[k.key]))
	}
	return m, nil
}

func (s *Sources) sensorInfo(spec config.StreamSpec) (*value.Map, error) {
	name, ok := s.SensorName(spec.Topic)
	if !ok {
		return nil, ErrNoSource
	}

	sensorID := "unknown"
	if parts := strings.Split(spec.Topic, "/"); len(parts) > 2 {
		sensorID = parts[2]
	}
	streams := make([]value.Value, len(spec.AssociatedStreams))
	for i, id := range spec.AssociatedStreams {
		streams[i] = value.Uint(uint64(id))
	}

	return value.NewMap().
		Set("info_type", value.String("sensor")).
		Set("sensor_id", value.String(sensorID)).
		Set("sensor_name", value.String(name)).
		Set("associated_streams", value.Seq(streams...)), nil
}

func (s *Sources) optionsConfig() (*value.Map, error) {
	opts := s.Options()
	if len(opts) == 0 {
		return nil, ErrNoSource
	}

	items := make([]value.Value, 0, len(opts))
	for _, o := range opts {
		entry := value.NewMap().
			Set("name", value.String(o.Name)).
			Set("sensor", value.String(o.Sensor)).
			Set("value", value.Null()).
			Set("description", value.Null())
		if o.Value != nil {
			v, err := value.Float(*o.Value)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", o.Name, err)
			}
			entry.Set("value", v)
		}
		if o.Description != nil {
			entry.Set("description", value.String(*o.Description))
		}
		items = append(items, value.Mapping(entry))
	}

	return value.NewMap().
		Set("info_type", value.String("options")).
		Set("total_options", value.Int(int64(len(items)))).
		Set("options", value.Seq(items...)), nil
}

func floats(fs []float64) (value.Value, error) {
	items := make([]value.Value, len(fs))
	for i, f := range fs {
		v, err := value.Float(f)
		if err != nil {
			return value.Value{}, err
		}
		items[i] = v
	}
	return value.Seq(items...), nil
}
