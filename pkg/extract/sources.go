package extract

import (
	"sort"
	"strings"

	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/rosbag"
)

// OptionMarker selects sensor option topics,
// /device_0/sensor_<n>/option/<name>/{value,description}.
const OptionMarker = "/option/"

// Option is one sensor option gathered from the option topics.
type Option struct {
	Name        string
	Sensor      string
	Value       *float64
	Description *string
}

// Sources is a snapshot of the configuration-bearing messages of a bag.
// The first CameraInfo and Transform per topic are kept; for the other
// topics later messages replace earlier ones.
type Sources struct {
	cameraInfo  map[string]*rosbag.CameraInfo
	transforms  map[string]*rosbag.Transform
	streamInfo  map[string]*rosbag.StreamInfo
	sensorNames map[string]string
	keyValues   map[string]map[string]string
	options     map[string]*Option
}

// NewSources returns an empty snapshot.
func NewSources() *Sources {
	return &Sources{
		cameraInfo:  make(map[string]*rosbag.CameraInfo),
		transforms:  make(map[string]*rosbag.Transform),
		streamInfo:  make(map[string]*rosbag.StreamInfo),
		sensorNames: make(map[string]string),
		keyValues:   make(map[string]map[string]string),
		options:     make(map[string]*Option),
	}
}

// Topics returns the topics whose messages feed the configurations of m,
// in sorted order. Option topics are matched separately with
// IsOptionTopic.
func Topics(m *config.Mapping) []string {
	set := make(map[string]bool)
	for _, s := range m.Streams {
		if s.CameraInfo != "" {
			set[s.CameraInfo] = true
		}
		if s.StreamInfo != "" {
			set[s.StreamInfo] = true
		}
		switch s.Kind {
		case config.KindTransformDepth, config.KindTransformColor,
			config.KindDeviceInfo, config.KindSensorInfo:
			set[s.Topic] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsOptionTopic reports whether topic carries a sensor option.
func IsOptionTopic(topic string) bool {
	return strings.Contains(topic, OptionMarker)
}

// Observe records one decoded message. Messages of types that carry no
// configuration are ignored.
func (s *Sources) Observe(topic string, msg any) {
	if IsOptionTopic(topic) {
		s.observeOption(topic, msg)
		return
	}

	switch m := msg.(type) {
	case *rosbag.CameraInfo:
		if _, ok := s.cameraInfo[topic]; !ok {
			s.cameraInfo[topic] = m
		}
	case *rosbag.Transform:
		if _, ok := s.transforms[topic]; !ok {
			s.transforms[topic] = m
		}
	case *rosbag.StreamInfo:
		s.streamInfo[topic] = m
	case *rosbag.KeyValue:
		kv, ok := s.keyValues[topic]
		if !ok {
			kv = make(map[string]string)
			s.keyValues[topic] = kv
		}
		kv[m.Key] = m.Value
		s.sensorNames[topic] = m.Value
	case *rosbag.String:
		s.sensorNames[topic] = m.Data
	}
}

func (s *Sources) observeOption(topic string, msg any) {
	parts := strings.Split(topic, "/")
	if len(parts) < 6 {
		return
	}
	sensor, name, field := parts[2], parts[4], parts[5]

	opt, ok := s.options[name]
	if !ok {
		opt = &Option{Name: name, Sensor: sensor}
		s.options[name] = opt
	}

	switch field {
	case "value":
		switch m := msg.(type) {
		case *rosbag.Float32:
			v := float64(m.Data)
			opt.Value = &v
		}
	case "description":
		switch m := msg.(type) {
		case *rosbag.String:
			d := m.Data
			opt.Description = &d
		}
	}
}

// CameraInfo returns the cached CameraInfo of topic.
func (s *Sources) CameraInfo(topic string) (*rosbag.CameraInfo, bool) {
	m, ok := s.cameraInfo[topic]
	return m, ok
}

// Transform returns the cached Transform of topic.
func (s *Sources) Transform(topic string) (*rosbag.Transform, bool) {
	m, ok := s.transforms[topic]
	return m, ok
}

// StreamInfo returns the cached StreamInfo of topic.
func (s *Sources) StreamInfo(topic string) (*rosbag.StreamInfo, bool) {
	m, ok := s.streamInfo[topic]
	return m, ok
}

// Options returns the gathered options sorted by name.
func (s *Sources) Options() []Option {
	out := make([]Option, 0, len(s.options))
	for _, o := range s.options {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KeyValues returns the key/value pairs recorded on topic.
func (s *Sources) KeyValues(topic string) map[string]string {
	out := make(map[string]string, len(s.keyValues[topic]))
	for k, v := range s.keyValues[topic] {
		out[k] = v
	}
	return out
}

// SensorName returns the last value recorded on a sensor info topic.
func (s *Sources) SensorName(topic string) (string, bool) {
	v, ok := s.sensorNames[topic]
	return v, ok
}
