package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/ssargent/bagvrs/pkg/catalog"
	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/convert"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// outputJSON writes v as indented JSON
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// formatBytes renders n with a binary unit
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// outputResult displays the summary of a conversion
func outputResult(w io.Writer, format string, res *convert.Result, mapping *config.Mapping) error {
	if format == formatJSON {
		return outputJSON(w, res)
	}

	t := newTable(w)
	fmt.Fprintf(t, "Input:\t%s (%s)\n", res.InputPath, formatBytes(res.InputBagSize))
	fmt.Fprintf(t, "Output:\t%s (%s)\n", res.OutputPath, formatBytes(res.OutputVRSSize))
	fmt.Fprintf(t, "File ID:\t%s\n", res.FileID)
	fmt.Fprintf(t, "Compression:\t%s (%.1f%% of input)\n", res.Compression, res.CompressionRatio*100)
	fmt.Fprintf(t, "Duration:\t%.3fs\n", res.DurationSec)
	fmt.Fprintf(t, "Messages:\t%d\n", res.TotalMessages)
	fmt.Fprintf(t, "Conversion time:\t%.3fs\n", res.ConversionTimeSec)
	if res.Verified {
		fmt.Fprintf(t, "Verified:\tyes\n")
	}
	if err := t.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	t = newTable(w)
	fmt.Fprintf(t, "STREAM\tLABEL\tKIND\tRECORDS\n")
	for _, spec := range mapping.Streams {
		fmt.Fprintf(t, "%d\t%s\t%s\t%d\n", spec.StreamID, spec.Label, spec.Kind, res.MessagesPerStream[spec.StreamID])
	}
	if err := t.Flush(); err != nil {
		return err
	}

	if len(res.Unconfigured) > 0 {
		fmt.Fprintf(w, "\nNo configuration source for streams %v\n", res.Unconfigured)
	}
	return nil
}

// outputEntries displays catalog entries
func outputEntries(w io.Writer, format string, entries []*catalog.Entry) error {
	if format == formatJSON {
		if entries == nil {
			entries = []*catalog.Entry{}
		}
		return outputJSON(w, entries)
	}

	t := newTable(w)
	defer t.Flush()
	fmt.Fprintf(t, "ID\tCREATED\tSTATUS\tINPUT\tOUTPUT\tMESSAGES\n")
	for _, e := range entries {
		var messages int64
		if e.Result != nil {
			messages = e.Result.TotalMessages
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%d\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Status, e.Input, e.Output, messages)
	}
	return nil
}

// outputEntry displays a single catalog entry
func outputEntry(w io.Writer, format string, e *catalog.Entry) error {
	if format == formatJSON {
		return outputJSON(w, e)
	}

	t := newTable(w)
	defer t.Flush()
	fmt.Fprintf(t, "ID:\t%s\n", e.ID)
	fmt.Fprintf(t, "Created:\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(t, "Status:\t%s\n", e.Status)
	fmt.Fprintf(t, "Input:\t%s\n", e.Input)
	fmt.Fprintf(t, "Output:\t%s\n", e.Output)
	fmt.Fprintf(t, "Mapping:\t%s\n", e.Mapping)
	if e.Error != "" {
		fmt.Fprintf(t, "Error:\t%s\n", e.Error)
	}
	if r := e.Result; r != nil {
		fmt.Fprintf(t, "Input size:\t%s\n", formatBytes(r.InputBagSize))
		fmt.Fprintf(t, "Output size:\t%s\n", formatBytes(r.OutputVRSSize))
		fmt.Fprintf(t, "Compression:\t%s (%.1f%%)\n", r.Compression, r.CompressionRatio*100)
		fmt.Fprintf(t, "Messages:\t%d\n", r.TotalMessages)

		ids := make([]uint32, 0, len(r.MessagesPerStream))
		for id := range r.MessagesPerStream {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(t, "  stream %d:\t%d\n", id, r.MessagesPerStream[id])
		}
	}
	return nil
}
