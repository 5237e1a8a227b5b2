package extract

import "strings"

// Sensor is the kind of RealSense sensor a data topic belongs to.
type Sensor string

// Sensors recognized by ClassifyTopic.
const (
	SensorRGB   Sensor = "rgb"
	SensorDepth Sensor = "depth"
	SensorIR    Sensor = "ir"
	SensorAccel Sensor = "accel"
	SensorGyro  Sensor = "gyro"
)

// Sensors lists every sensor in display order.
var Sensors = []Sensor{SensorRGB, SensorDepth, SensorIR, SensorAccel, SensorGyro}

// ParseSensor accepts the names of Sensors.
func ParseSensor(s string) (Sensor, bool) {
	for _, v := range Sensors {
		if string(v) == strings.ToLower(strings.TrimSpace(s)) {
			return v, true
		}
	}
	return "", false
}

// ClassifyTopic returns the sensor of an image or IMU data topic. Info,
// option and transform topics are not sensor data.
func ClassifyTopic(topic string) (Sensor, bool) {
	t := strings.ToLower(topic)
	image := strings.Contains(t, "image/data")
	imu := strings.Contains(t, "imu/data")

	switch {
	case strings.Contains(t, "color") && image:
		return SensorRGB, true
	case strings.Contains(t, "depth") && image:
		return SensorDepth, true
	case (strings.Contains(t, "infrared") || strings.Contains(t, "ir_")) && image:
		return SensorIR, true
	case strings.Contains(t, "accel") && imu:
		return SensorAccel, true
	case strings.Contains(t, "gyro") && imu:
		return SensorGyro, true
	}
	return "", false
}

// IsImageTopic reports whether topic carries image frames.
func IsImageTopic(topic string) bool {
	return strings.Contains(topic, "image/data")
}

// IsIMUTopic reports whether topic carries IMU samples.
func IsIMUTopic(topic string) bool {
	return strings.Contains(topic, "imu/data")
}
