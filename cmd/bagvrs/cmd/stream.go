/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/convert"
	"github.com/ssargent/bagvrs/pkg/extract"
)

// Formats of the stream command
const (
	streamHuman = "human"
	streamCSV   = "csv"
	streamJSON  = "json"
)

func newStreamCmd() *cobra.Command {
	streamCmd := &cobra.Command{
		Use:   "stream <input.bag>",
		Short: "List sensor messages of a ROS bag in time order",
		Long: `List the image and IMU messages of a RealSense ROS bag in timestamp
order, one line per message.

--start and --end are seconds from the first message; --start is inclusive
and --end exclusive. --sensors takes a comma separated list of rgb, depth,
ir, accel and gyro.

Examples:
  bagvrs stream recording.bag
  bagvrs stream recording.bag -s 1.5 -e 3 --sensors rgb,depth
  bagvrs stream recording.bag --format csv -l 1000 > messages.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			filter, err := streamFilter(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			if !cmd.Flags().Changed("format") && a.format == formatJSON {
				format = streamJSON
			}

			src, err := convert.OpenBag(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			out := cmd.OutOrStdout()
			var emit convert.StreamFunc
			flush := func() error { return nil }

			switch format {
			case streamHuman:
				emit = func(m convert.SensorMessage) error {
					_, err := fmt.Fprintf(out, "[%10.6fs] %-6s | %s | %s\n", m.RelativeSec, m.Sensor, m.TimestampISO, m.Topic)
					return err
				}
			case streamCSV:
				w := csv.NewWriter(out)
				if err := w.Write([]string{"timestamp_sec", "timestamp_iso", "sensor_type", "topic", "msgtype"}); err != nil {
					return err
				}
				emit = func(m convert.SensorMessage) error {
					return w.Write([]string{
						strconv.FormatFloat(m.TimestampSec, 'f', 9, 64),
						m.TimestampISO,
						string(m.Sensor),
						m.Topic,
						m.MessageType,
					})
				}
				flush = func() error {
					w.Flush()
					return w.Error()
				}
			case streamJSON:
				enc := json.NewEncoder(out)
				emit = func(m convert.SensorMessage) error { return enc.Encode(m) }
			default:
				return fmt.Errorf("invalid format %q (human, csv or json)", format)
			}

			n, err := convert.Stream(cmd.Context(), src, filter, emit)
			if ferr := flush(); err == nil {
				err = ferr
			}
			if err != nil {
				return err
			}
			a.log.Debugf("Listed %d messages", n)
			if format == streamHuman {
				fmt.Fprintf(out, "\n%d messages\n", n)
			}
			return nil
		},
	}

	streamCmd.Flags().Float64P("start", "s", 0, "Start time in seconds from the first message (inclusive)")
	streamCmd.Flags().Float64P("end", "e", 0, "End time in seconds from the first message (exclusive)")
	streamCmd.Flags().String("sensors", "", "Comma separated sensors (rgb, depth, ir, accel, gyro)")
	streamCmd.Flags().IntP("limit", "l", 0, "Stop after this many messages (0 = all)")
	streamCmd.Flags().String("format", streamHuman, "Output format (human, csv or json)")
	return streamCmd
}

func streamFilter(cmd *cobra.Command) (convert.StreamFilter, error) {
	var f convert.StreamFilter
	if cmd.Flags().Changed("start") {
		v, _ := cmd.Flags().GetFloat64("start")
		f.Start = &v
	}
	if cmd.Flags().Changed("end") {
		v, _ := cmd.Flags().GetFloat64("end")
		f.End = &v
	}
	if f.Start != nil && f.End != nil && *f.End <= *f.Start {
		return f, fmt.Errorf("--end %g must be after --start %g", *f.End, *f.Start)
	}

	f.Limit, _ = cmd.Flags().GetInt("limit")
	if f.Limit < 0 {
		return f, fmt.Errorf("--limit must not be negative")
	}

	sensors, _ := cmd.Flags().GetString("sensors")
	for _, name := range strings.Split(sensors, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, ok := extract.ParseSensor(name)
		if !ok {
			return f, fmt.Errorf("unknown sensor %q", name)
		}
		f.Sensors = append(f.Sensors, s)
	}
	return f, nil
}
