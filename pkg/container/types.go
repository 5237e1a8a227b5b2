package container

import (
	"fmt"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/bagvrs/pkg/logging"
)

// RecordableTypeID classifies the device a physical stream records.
type RecordableTypeID uint16

const (
	TypeUnspecified   RecordableTypeID = 100
	TypeCamera        RecordableTypeID = 200
	TypeDepthCamera   RecordableTypeID = 201
	TypeMotionSensor  RecordableTypeID = 300
	TypeCalibration   RecordableTypeID = 400
	TypeDeviceInfo    RecordableTypeID = 500
	TypeSensorOptions RecordableTypeID = 501
)

var recordableTypeNames = map[RecordableTypeID]string{
	TypeUnspecified:   "unspecified",
	TypeCamera:        "camera",
	TypeDepthCamera:   "depth_camera",
	TypeMotionSensor:  "motion_sensor",
	TypeCalibration:   "calibration",
	TypeDeviceInfo:    "device_info",
	TypeSensorOptions: "sensor_options",
}

func (t RecordableTypeID) String() string {
	if n, ok := recordableTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type_%d", uint16(t))
}

// ParseRecordableType maps a name produced by String back to its id.
func ParseRecordableType(name string) (RecordableTypeID, bool) {
	for id, n := range recordableTypeNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// PhysicalID is the container-assigned identity of a stream.
type PhysicalID struct {
	Type     RecordableTypeID
	Instance uint16
}

func (p PhysicalID) String() string {
	return fmt.Sprintf("%d-%d", uint16(p.Type), p.Instance)
}

// Pack returns the on-disk form, TypeID<<16 | Instance.
func (p PhysicalID) Pack() uint32 {
	return uint32(p.Type)<<16 | uint32(p.Instance)
}

// UnpackPhysicalID is the inverse of Pack.
func UnpackPhysicalID(v uint32) PhysicalID {
	return PhysicalID{Type: RecordableTypeID(v >> 16), Instance: uint16(v)}
}

// StreamInfo describes one stream of a container.
type StreamInfo struct {
	LogicalID        uint32     `json:"logical_id"`
	PhysicalID       PhysicalID `json:"-"`
	Label            string     `json:"label"`
	EncodedLabel     string     `json:"encoded_label"`
	HasConfiguration bool       `json:"has_configuration"`
	RecordCount      int64      `json:"record_count"`
	FirstTimestamp   float64    `json:"first_timestamp"`
	LastTimestamp    float64    `json:"last_timestamp"`
	Mapped           bool       `json:"mapped"`
}

// Physical returns the printable physical id.
func (s StreamInfo) Physical() string {
	return s.PhysicalID.String()
}

// DataRecord is one timestamped payload of a stream.
type DataRecord struct {
	Timestamp float64
	Payload   []byte
}

// Header describes a container file.
type Header struct {
	Version     uint16
	Compression Compression
	FileID      ksuid.KSUID
}

// Option configures a Writer or Reader.
type Option func(*WriterConfig)

// WithCompression selects the body compression of a new container.
func WithCompression(c Compression) Option {
	return func(cfg *WriterConfig) { cfg.Compression = c }
}

// WithBufferSize sets the size of the file buffer.
func WithBufferSize(n int) Option {
	return func(cfg *WriterConfig) { cfg.BufferSize = n }
}

// WithLogger attaches a logger.
func WithLogger(l logging.L) Option {
	return func(cfg *WriterConfig) { cfg.Logger = l }
}

// WithFileID fixes the file id written to the header instead of generating
// a new one.
func WithFileID(id ksuid.KSUID) Option {
	return func(cfg *WriterConfig) { cfg.FileID = id }
}

// Errors
var (
	ErrCreate                 = &ContainerError{"cannot create container"}
	ErrNotOpen                = &ContainerError{"container is not open"}
	ErrInvalidStreamID        = &ContainerError{"stream id must be positive"}
	ErrDuplicateStream        = &ContainerError{"stream already declared"}
	ErrUnknownStream          = &ContainerError{"unknown stream"}
	ErrDuplicateConfiguration = &ContainerError{"stream configuration already written"}
	ErrInvalidTimestamp       = &ContainerError{"invalid timestamp"}
	ErrEmptyPayload           = &ContainerError{"empty data payload"}
	ErrTooManyStreams         = &ContainerError{"too many streams of one type"}
	ErrFileNotFound           = &ContainerError{"container file not found"}
	ErrOpen                   = &ContainerError{"cannot open container"}
	ErrCorruption             = &ContainerError{"container data corruption detected"}
	ErrMissingConfiguration   = &ContainerError{"stream has no configuration"}
	ErrParse                  = &ContainerError{"cannot parse stream configuration"}
)

// ContainerError represents a stream container error
type ContainerError struct {
	Message string
}

func (e *ContainerError) Error() string {
	return e.Message
}
