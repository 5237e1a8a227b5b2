// Package rosbag reads ROS1 bag files (format v2.0) and decodes the
// message types recorded by RealSense cameras.
//
// Records are decoded with github.com/lherman-cs/go-rosbag, which also
// decompresses chunks. Open makes one pass to collect connections and
// per-chunk statistics; Messages merges the selected topics into one
// time-ordered stream. Writer produces bags in the same format with
// uncompressed or lz4 chunks.
package rosbag
