package rosbag

import (
	"errors"
	"fmt"
	"time"
)

// Message type names understood by Deserialize.
const (
	TypeImage      = "sensor_msgs/Image"
	TypeCameraInfo = "sensor_msgs/CameraInfo"
	TypeImu        = "sensor_msgs/Imu"
	TypeTransform  = "geometry_msgs/Transform"
	TypeStreamInfo = "realsense_msgs/StreamInfo"
	TypeKeyValue   = "diagnostic_msgs/KeyValue"
	TypeString     = "std_msgs/String"
	TypeFloat32    = "std_msgs/Float32"
)

// ErrUnsupportedType is returned by Deserialize for message types it does
// not know.
var ErrUnsupportedType = errors.New("rosbag: unsupported message type")

// Time is a ROS time stamp.
type Time struct {
	Sec  uint32
	NSec uint32
}

// Nanos returns t as nanoseconds since the Unix epoch.
func (t Time) Nanos() int64 {
	return int64(t.Sec)*int64(time.Second) + int64(t.NSec)
}

// Time converts t to a time.Time in UTC.
func (t Time) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.NSec)).UTC()
}

// TimeFromNanos is the inverse of Time.Nanos.
func TimeFromNanos(ns int64) Time {
	return Time{Sec: uint32(ns / int64(time.Second)), NSec: uint32(ns % int64(time.Second))}
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   Time
	FrameID string
}

// Vector3 is geometry_msgs/Vector3.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X, Y, Z, W float64
}

// Image is sensor_msgs/Image. Data aliases the chunk it was read from.
type Image struct {
	Header      Header
	Height      uint32
	Width       uint32
	Encoding    string
	IsBigEndian uint8
	Step        uint32
	Data        []byte
}

// RegionOfInterest is sensor_msgs/RegionOfInterest.
type RegionOfInterest struct {
	XOffset   uint32
	YOffset   uint32
	Height    uint32
	Width     uint32
	DoRectify bool
}

// CameraInfo is sensor_msgs/CameraInfo.
type CameraInfo struct {
	Header          Header
	Height          uint32
	Width           uint32
	DistortionModel string
	D               []float64
	K               [9]float64
	R               [9]float64
	P               [12]float64
	BinningX        uint32
	BinningY        uint32
	ROI             RegionOfInterest
}

// Imu is sensor_msgs/Imu.
type Imu struct {
	Header                       Header
	Orientation                  Quaternion
	OrientationCovariance        [9]float64
	AngularVelocity              Vector3
	AngularVelocityCovariance    [9]float64
	LinearAcceleration           Vector3
	LinearAccelerationCovariance [9]float64
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation Vector3
	Rotation    Quaternion
}

// StreamInfo is realsense_msgs/StreamInfo.
type StreamInfo struct {
	FPS           uint32
	Encoding      string
	IsRecommended bool
}

// KeyValue is diagnostic_msgs/KeyValue.
type KeyValue struct {
	Key   string
	Value string
}

// String is std_msgs/String.
type String struct {
	Data string
}

// Float32 is std_msgs/Float32.
type Float32 struct {
	Data float32
}

// Deserialize decodes raw ROS1-serialized bytes of msgType. The result is
// a pointer to one of the message structs of this package.
func Deserialize(raw []byte, msgType string) (any, error) {
	c := newCursor(raw)
	var msg any

	switch msgType {
	case TypeImage:
		m := &Image{}
		m.Header = c.header()
		m.Height = c.u32()
		m.Width = c.u32()
		m.Encoding = c.str()
		m.IsBigEndian = c.u8()
		m.Step = c.u32()
		m.Data = c.blob()
		msg = m

	case TypeCameraInfo:
		m := &CameraInfo{}
		m.Header = c.header()
		m.Height = c.u32()
		m.Width = c.u32()
		m.DistortionModel = c.str()
		m.D = c.f64s(-1)
		copy(m.K[:], c.f64s(9))
		copy(m.R[:], c.f64s(9))
		copy(m.P[:], c.f64s(12))
		m.BinningX = c.u32()
		m.BinningY = c.u32()
		m.ROI = RegionOfInterest{
			XOffset:   c.u32(),
			YOffset:   c.u32(),
			Height:    c.u32(),
			Width:     c.u32(),
			DoRectify: c.boolean(),
		}
		msg = m

	case TypeImu:
		m := &Imu{}
		m.Header = c.header()
		m.Orientation = c.quaternion()
		copy(m.OrientationCovariance[:], c.f64s(9))
		m.AngularVelocity = c.vector3()
		copy(m.AngularVelocityCovariance[:], c.f64s(9))
		m.LinearAcceleration = c.vector3()
		copy(m.LinearAccelerationCovariance[:], c.f64s(9))
		msg = m

	case TypeTransform:
		msg = &Transform{Translation: c.vector3(), Rotation: c.quaternion()}

	case TypeStreamInfo:
		msg = &StreamInfo{FPS: c.u32(), Encoding: c.str(), IsRecommended: c.boolean()}

	case TypeKeyValue:
		msg = &KeyValue{Key: c.str(), Value: c.str()}

	case TypeString:
		msg = &String{Data: c.str()}

	case TypeFloat32:
		msg = &Float32{Data: c.f32()}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, msgType)
	}

	if c.err != nil {
		return nil, fmt.Errorf("deserialize %s: %w", msgType, c.err)
	}
	return msg, nil
}

func (c *cursor) header() Header {
	return Header{Seq: c.u32(), Stamp: c.time(), FrameID: c.str()}
}

func (c *cursor) vector3() Vector3 {
	return Vector3{X: c.f64(), Y: c.f64(), Z: c.f64()}
}

func (c *cursor) quaternion() Quaternion {
	return Quaternion{X: c.f64(), Y: c.f64(), Z: c.f64(), W: c.f64()}
}

// Serialize encodes one of the message structs of this package in ROS1
// wire form and returns it with its type name.
func Serialize(msg any) ([]byte, string, error) {
	var e encoder

	switch m := msg.(type) {
	case *Image:
		e.header(m.Header)
		e.u32(m.Height)
		e.u32(m.Width)
		e.str(m.Encoding)
		e.u8(m.IsBigEndian)
		e.u32(m.Step)
		e.blob(m.Data)
		return e.buf, TypeImage, nil

	case *CameraInfo:
		e.header(m.Header)
		e.u32(m.Height)
		e.u32(m.Width)
		e.str(m.DistortionModel)
		e.f64s(m.D, true)
		e.f64s(m.K[:], false)
		e.f64s(m.R[:], false)
		e.f64s(m.P[:], false)
		e.u32(m.BinningX)
		e.u32(m.BinningY)
		e.u32(m.ROI.XOffset)
		e.u32(m.ROI.YOffset)
		e.u32(m.ROI.Height)
		e.u32(m.ROI.Width)
		e.boolean(m.ROI.DoRectify)
		return e.buf, TypeCameraInfo, nil

	case *Imu:
		e.header(m.Header)
		e.quaternion(m.Orientation)
		e.f64s(m.OrientationCovariance[:], false)
		e.vector3(m.AngularVelocity)
		e.f64s(m.AngularVelocityCovariance[:], false)
		e.vector3(m.LinearAcceleration)
		e.f64s(m.LinearAccelerationCovariance[:], false)
		return e.buf, TypeImu, nil

	case *Transform:
		e.vector3(m.Translation)
		e.quaternion(m.Rotation)
		return e.buf, TypeTransform, nil

	case *StreamInfo:
		e.u32(m.FPS)
		e.str(m.Encoding)
		e.boolean(m.IsRecommended)
		return e.buf, TypeStreamInfo, nil

	case *KeyValue:
		e.str(m.Key)
		e.str(m.Value)
		return e.buf, TypeKeyValue, nil

	case *String:
		e.str(m.Data)
		return e.buf, TypeString, nil

	case *Float32:
		e.f32(m.Data)
		return e.buf, TypeFloat32, nil
	}
	return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedType, msg)
}

func (e *encoder) header(h Header) {
	e.u32(h.Seq)
	e.time(h.Stamp)
	e.str(h.FrameID)
}

func (e *encoder) vector3(v Vector3) {
	e.f64(v.X)
	e.f64(v.Y)
	e.f64(v.Z)
}

func (e *encoder) quaternion(q Quaternion) {
	e.f64(q.X)
	e.f64(q.Y)
	e.f64(q.Z)
	e.f64(q.W)
}
