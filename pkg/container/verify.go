package container

import (
	"fmt"
	"io"

	"github.com/ssargent/bagvrs/pkg/codec"
)

// VerifyResult summarizes a full integrity scan of a container.
type VerifyResult struct {
	Records        int64            `json:"records"`
	DataRecords    int64            `json:"data_records"`
	BodyBytes      int64            `json:"body_bytes"`
	StreamsChecked int              `json:"streams_checked"`
	Counts         map[string]int64 `json:"counts"`
	Problems       []string         `json:"problems,omitempty"`
}

// OK reports whether the scan found no problems.
func (v *VerifyResult) OK() bool {
	return len(v.Problems) == 0
}

// Verify reads every body record, checking its CRC, and compares what it
// finds against the stream index. A record that cannot be read stops the
// scan with an ErrCorruption error; index disagreements are reported as
// problems on the result.
func (r *Reader) Verify() (*VerifyResult, error) {
	body, err := r.openBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	res := &VerifyResult{Counts: make(map[string]int64)}
	declared := make(map[uint32]string)
	configured := make(map[uint32]bool)
	data := make(map[uint32]int64)

	for {
		rec, err := r.codec.ReadRecord(body)
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, fmt.Errorf("%w: record %d: %w", ErrCorruption, res.Records, err)
		}
		res.Records++
		res.BodyBytes += int64(rec.EncodedSize())

		switch rec.Type {
		case codec.RecordDeclare:
			if _, dup := declared[rec.Stream]; dup {
				res.problemf("stream %s declared twice", UnpackPhysicalID(rec.Stream))
			}
			declared[rec.Stream] = string(rec.Payload)
		case codec.RecordConfiguration:
			if _, ok := declared[rec.Stream]; !ok {
				res.problemf("configuration for undeclared stream %s", UnpackPhysicalID(rec.Stream))
			}
			if configured[rec.Stream] {
				res.problemf("stream %s configured twice", UnpackPhysicalID(rec.Stream))
			}
			configured[rec.Stream] = true
		case codec.RecordData:
			if _, ok := declared[rec.Stream]; !ok {
				res.problemf("data for undeclared stream %s", UnpackPhysicalID(rec.Stream))
			}
			data[rec.Stream]++
			res.DataRecords++
		default:
			res.problemf("unexpected %s record in body", rec.Type)
		}
	}

	for _, info := range r.physical {
		p := info.PhysicalID.Pack()
		res.StreamsChecked++
		res.Counts[info.PhysicalID.String()] = data[p]

		label, ok := declared[p]
		switch {
		case !ok:
			res.problemf("indexed stream %s was never declared", info.PhysicalID)
		case label != info.EncodedLabel:
			res.problemf("stream %s label %q differs from index %q", info.PhysicalID, label, info.EncodedLabel)
		}
		if configured[p] != info.HasConfiguration {
			res.problemf("stream %s configuration presence %t, index says %t", info.PhysicalID, configured[p], info.HasConfiguration)
		}
		if data[p] != info.RecordCount {
			res.problemf("stream %s has %d data records, index says %d", info.PhysicalID, data[p], info.RecordCount)
		}
		delete(declared, p)
	}
	for p := range declared {
		res.problemf("declared stream %s missing from index", UnpackPhysicalID(p))
	}

	return res, nil
}

func (v *VerifyResult) problemf(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}
