/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/convert"
)

func newInfoCmd() *cobra.Command {
	infoCmd := &cobra.Command{
		Use:   "info <input.bag>",
		Short: "Summarize the sensor topics of a ROS bag",
		Long: `Summarize the image and IMU topics of a RealSense ROS bag: message
types, counts and, with --verbose, the first and last message time of each
topic.

Examples:
  bagvrs info recording.bag
  bagvrs info recording.bag -v
  bagvrs info recording.bag -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)

			src, err := convert.OpenBag(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			report, err := convert.Describe(cmd.Context(), src, a.verbose || a.format == formatJSON)
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				return outputJSON(cmd.OutOrStdout(), report)
			}
			return outputReport(cmd.OutOrStdout(), args[0], report, a.verbose)
		},
	}
	return infoCmd
}

func outputReport(w io.Writer, path string, r *convert.Report, verbose bool) error {
	t := newTable(w)
	fmt.Fprintf(t, "Bag:\t%s\n", path)
	fmt.Fprintf(t, "Duration:\t%.2fs\n", r.DurationSec)
	fmt.Fprintf(t, "Topics:\t%d\n", r.TopicCount)
	if err := t.Flush(); err != nil {
		return err
	}

	sections := []struct {
		title  string
		topics []convert.TopicReport
	}{
		{"Image topics", r.ImageTopics},
		{"IMU topics", r.IMUTopics},
	}
	for _, s := range sections {
		fmt.Fprintf(w, "\n%s (%d)\n", s.title, len(s.topics))
		if len(s.topics) == 0 {
			continue
		}
		t = newTable(w)
		if verbose {
			fmt.Fprintf(t, "TOPIC\tTYPE\tMESSAGES\tFIRST\tLAST\n")
		} else {
			fmt.Fprintf(t, "TOPIC\tTYPE\tMESSAGES\n")
		}
		for _, tr := range s.topics {
			if verbose {
				fmt.Fprintf(t, "%s\t%s\t%d\t%s\t%s\n", tr.Topic, tr.MessageType, tr.MessageCount, tr.First, tr.Last)
			} else {
				fmt.Fprintf(t, "%s\t%s\t%d\n", tr.Topic, tr.MessageType, tr.MessageCount)
			}
		}
		if err := t.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	t = newTable(w)
	fmt.Fprintf(t, "Image messages:\t%d\n", r.ImageMessages)
	fmt.Fprintf(t, "IMU messages:\t%d\n", r.IMUMessages)
	fmt.Fprintf(t, "Data messages:\t%d\n", r.DataMessages)
	return t.Flush()
}
