/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/extract"
)

var errVerifyFailed = errors.New("container verification found problems")

type inspectStream struct {
	container.StreamInfo
	PhysicalID     string          `json:"physical_id"`
	RecordableType string          `json:"recordable_type"`
	Configuration  json.RawMessage `json:"configuration,omitempty"`
	Records        []inspectRecord `json:"records,omitempty"`
}

type inspectRecord struct {
	Timestamp float64     `json:"timestamp"`
	Size      int         `json:"size"`
	Vector    *[3]float64 `json:"vector,omitempty"`
}

type inspectReport struct {
	Path        string                  `json:"path"`
	FileID      string                  `json:"file_id"`
	Version     uint16                  `json:"version"`
	Compression string                  `json:"compression"`
	Size        int64                   `json:"size"`
	Streams     []inspectStream         `json:"streams"`
	Unmapped    []container.StreamInfo  `json:"unmapped,omitempty"`
	Verify      *container.VerifyResult `json:"verify,omitempty"`
}

func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect <file.vrs>",
		Short: "Show the streams of a container",
		Long: `Show the header, streams, configurations and first records of a
container.

Examples:
  bagvrs inspect recording.vrs
  bagvrs inspect recording.vrs --records 5 --verify
  bagvrs inspect recording.vrs -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			records, _ := cmd.Flags().GetInt("records")
			verify, _ := cmd.Flags().GetBool("verify")

			r, err := container.Open(args[0], container.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := inspect(r, records, verify)
			if err != nil {
				return err
			}
			if a.format == formatJSON {
				err = outputJSON(cmd.OutOrStdout(), report)
			} else {
				err = outputInspect(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if report.Verify != nil && !report.Verify.OK() {
				return fmt.Errorf("%w: %d", errVerifyFailed, len(report.Verify.Problems))
			}
			return nil
		},
	}

	inspectCmd.Flags().IntP("records", "n", 0, "Show the first N data records of each stream")
	inspectCmd.Flags().Bool("verify", false, "Scan every record and check it against the index")
	return inspectCmd
}

func inspect(r *container.Reader, records int, verify bool) (*inspectReport, error) {
	h := r.Header()
	report := &inspectReport{
		Path:        r.Path(),
		FileID:      h.FileID.String(),
		Version:     h.Version,
		Compression: h.Compression.String(),
		Size:        r.Size(),
	}

	for _, info := range r.Streams() {
		s := inspectStream{
			StreamInfo:     info,
			PhysicalID:     info.Physical(),
			RecordableType: info.PhysicalID.Type.String(),
		}
		if info.HasConfiguration {
			cfg, err := r.ReadConfiguration(info.LogicalID)
			if err != nil {
				return nil, err
			}
			blob, err := cfg.MarshalJSON()
			if err != nil {
				return nil, err
			}
			s.Configuration = blob
		}
		if records > 0 && info.RecordCount > 0 {
			recs, err := firstRecords(r, info, records)
			if err != nil {
				return nil, err
			}
			s.Records = recs
		}
		report.Streams = append(report.Streams, s)
	}
	for _, info := range r.PhysicalStreams() {
		if !info.Mapped {
			report.Unmapped = append(report.Unmapped, info)
		}
	}

	if verify {
		res, err := r.Verify()
		if err != nil {
			return nil, err
		}
		report.Verify = res
	}
	return report, nil
}

func firstRecords(r *container.Reader, info container.StreamInfo, n int) ([]inspectRecord, error) {
	it, err := r.DataRecords(info.LogicalID)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []inspectRecord
	for len(out) < n && it.Next() {
		rec := it.Record()
		ir := inspectRecord{Timestamp: rec.Timestamp, Size: len(rec.Payload)}
		if info.PhysicalID.Type == container.TypeMotionSensor {
			if v, err := extract.UnpackVector3(rec.Payload); err == nil {
				ir.Vector = &[3]float64{v.X, v.Y, v.Z}
			}
		}
		out = append(out, ir)
	}
	return out, it.Err()
}

func outputInspect(w io.Writer, report *inspectReport) error {
	t := newTable(w)
	fmt.Fprintf(t, "Path:\t%s\n", report.Path)
	fmt.Fprintf(t, "File ID:\t%s\n", report.FileID)
	fmt.Fprintf(t, "Version:\t%d\n", report.Version)
	fmt.Fprintf(t, "Compression:\t%s\n", report.Compression)
	fmt.Fprintf(t, "Size:\t%s\n", formatBytes(report.Size))
	fmt.Fprintf(t, "Streams:\t%d\n", len(report.Streams))
	if err := t.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	t = newTable(w)
	fmt.Fprintf(t, "ID\tPHYSICAL\tTYPE\tLABEL\tCONFIG\tRECORDS\tFIRST\tLAST\n")
	for _, s := range report.Streams {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%t\t%d\t%.6f\t%.6f\n",
			s.LogicalID, s.PhysicalID, s.RecordableType, s.Label, s.HasConfiguration,
			s.RecordCount, s.FirstTimestamp, s.LastTimestamp)
	}
	for _, s := range report.Unmapped {
		fmt.Fprintf(t, "-\t%s\t%s\t%s\t%t\t%d\t%.6f\t%.6f\n",
			s.Physical(), s.PhysicalID.Type, s.EncodedLabel, s.HasConfiguration,
			s.RecordCount, s.FirstTimestamp, s.LastTimestamp)
	}
	if err := t.Flush(); err != nil {
		return err
	}

	for _, s := range report.Streams {
		if len(s.Configuration) == 0 && len(s.Records) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nStream %d (%s)\n", s.LogicalID, s.Label)
		if len(s.Configuration) > 0 {
			fmt.Fprintf(w, "  configuration: %s\n", s.Configuration)
		}
		for i, rec := range s.Records {
			if rec.Vector != nil {
				fmt.Fprintf(w, "  [%d] t=%.6f size=%d xyz=%v\n", i, rec.Timestamp, rec.Size, *rec.Vector)
				continue
			}
			fmt.Fprintf(w, "  [%d] t=%.6f size=%d\n", i, rec.Timestamp, rec.Size)
		}
	}

	if v := report.Verify; v != nil {
		fmt.Fprintf(w, "\nVerify: %d records, %d data records, %s body\n", v.Records, v.DataRecords, formatBytes(v.BodyBytes))
		if v.OK() {
			fmt.Fprintln(w, "  OK")
		}
		for _, p := range v.Problems {
			fmt.Fprintf(w, "  problem: %s\n", p)
		}
	}
	return nil
}
