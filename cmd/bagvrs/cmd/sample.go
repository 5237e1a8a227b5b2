/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/rosbag"
	"github.com/ssargent/bagvrs/pkg/sample"
)

func newSampleCmd() *cobra.Command {
	sampleCmd := &cobra.Command{
		Use:   "sample <output.bag>",
		Short: "Write a synthetic RealSense recording",
		Long: `Write a synthetic RealSense D435i recording as a ROS bag, with the
topic layout of the built-in mappings. Useful to try convert, info and
stream without a camera.

Examples:
  bagvrs sample test.bag
  bagvrs sample test.bag --duration 5s --width 640 --height 480
  bagvrs sample test.bag --no-imu --chunk-compression none`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			opts := sample.DefaultOptions()
			flags := cmd.Flags()

			opts.Duration, _ = flags.GetDuration("duration")
			opts.Width, _ = flags.GetUint32("width")
			opts.Height, _ = flags.GetUint32("height")
			opts.ColorFPS, _ = flags.GetUint32("color-fps")
			opts.DepthFPS, _ = flags.GetUint32("depth-fps")
			opts.AccelRate, _ = flags.GetUint32("accel-rate")
			opts.GyroRate, _ = flags.GetUint32("gyro-rate")
			opts.Seed, _ = flags.GetInt64("seed")
			opts.Compression, _ = flags.GetString("chunk-compression")
			if noIMU, _ := flags.GetBool("no-imu"); noIMU {
				opts.IMU = false
			}
			if noInfo, _ := flags.GetBool("no-info"); noInfo {
				opts.Info = false
				opts.DepthTF = false
			}

			counts, err := sample.Generate(args[0], opts)
			if err != nil {
				return err
			}
			a.log.Infof("Wrote %d messages to %s", counts.Total(), args[0])

			if a.format == formatJSON {
				return outputJSON(cmd.OutOrStdout(), counts)
			}
			topics := make([]string, 0, len(counts))
			for topic := range counts {
				topics = append(topics, topic)
			}
			sort.Strings(topics)

			t := newTable(cmd.OutOrStdout())
			fmt.Fprintf(t, "TOPIC\tMESSAGES\n")
			for _, topic := range topics {
				fmt.Fprintf(t, "%s\t%d\n", topic, counts[topic])
			}
			fmt.Fprintf(t, "total\t%d\n", counts.Total())
			return t.Flush()
		},
	}

	sampleCmd.Flags().Duration("duration", 0, "Recording length (default 1s)")
	sampleCmd.Flags().Uint32("width", 0, "Image width (default 64)")
	sampleCmd.Flags().Uint32("height", 0, "Image height (default 48)")
	sampleCmd.Flags().Uint32("color-fps", 0, "Color frame rate (default 30)")
	sampleCmd.Flags().Uint32("depth-fps", 0, "Depth frame rate (default 30)")
	sampleCmd.Flags().Uint32("accel-rate", 0, "Accel sample rate (default 63)")
	sampleCmd.Flags().Uint32("gyro-rate", 0, "Gyro sample rate (default 200)")
	sampleCmd.Flags().Int64("seed", 0, "Image noise seed")
	sampleCmd.Flags().String("chunk-compression", rosbag.CompressionLZ4, "Chunk compression (none or lz4)")
	sampleCmd.Flags().Bool("no-imu", false, "Leave out the accel and gyro topics")
	sampleCmd.Flags().Bool("no-info", false, "Leave out device info, options and the depth extrinsic")
	return sampleCmd
}
