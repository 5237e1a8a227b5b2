package extract

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/rosbag"
)

// ErrUnexpectedMessage is returned when a data topic carries a message
// type its stream kind cannot convert.
var ErrUnexpectedMessage = errors.New("unexpected message type for stream")

// IMUSampleSize is the size of an IMU payload: three little-endian
// float64 values.
const IMUSampleSize = 24

var identity = rosbag.Transform{Rotation: rosbag.Quaternion{W: 1}}

// Payload converts one decoded data message of a stream of kind k. Images
// pass their pixel data through; IMU samples are packed as x, y, z.
func Payload(k config.Kind, msg any) ([]byte, error) {
	switch k {
	case config.KindColor, config.KindDepth:
		img, ok := msg.(*rosbag.Image)
		if !ok {
			return nil, fmt.Errorf("%w: %s stream got %T", ErrUnexpectedMessage, k, msg)
		}
		return img.Data, nil

	case config.KindIMUAccel, config.KindIMUGyro:
		imu, ok := msg.(*rosbag.Imu)
		if !ok {
			return nil, fmt.Errorf("%w: %s stream got %T", ErrUnexpectedMessage, k, msg)
		}
		v := imu.LinearAcceleration
		if k == config.KindIMUGyro {
			v = imu.AngularVelocity
		}
		return PackVector3(v), nil
	}
	return nil, fmt.Errorf("%w: %s streams carry no data", ErrUnexpectedMessage, k)
}

// PackVector3 encodes v as three little-endian float64 values.
func PackVector3(v rosbag.Vector3) []byte {
	buf := make([]byte, IMUSampleSize)
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(v.X))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(v.Y))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(v.Z))
	return buf
}

// UnpackVector3 is the inverse of PackVector3.
func UnpackVector3(b []byte) (rosbag.Vector3, error) {
	if len(b) != IMUSampleSize {
		return rosbag.Vector3{}, fmt.Errorf("IMU sample is %d bytes, want %d", len(b), IMUSampleSize)
	}
	return rosbag.Vector3{
		X: math.Float64frombits(binary.LittleEndian.Uint64(b[0:8])),
		Y: math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
		Z: math.Float64frombits(binary.LittleEndian.Uint64(b[16:24])),
	}, nil
}
