// Package convert converts recorded sensor logs into stream containers.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/extract"
	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/metrics"
	"github.com/ssargent/bagvrs/pkg/timeutil"
)

var (
	// ErrInputNotFound is returned when the input log does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrNoMessages is returned when no mapped topic is in the input.
	ErrNoMessages = errors.New("no messages found for mapped topics")
	// ErrVerification is returned when the written container does not
	// read back as written.
	ErrVerification = errors.New("container verification failed")
)

// cancelCheckInterval is how many data messages pass between context
// checks.
const cancelCheckInterval = 64

// Options configures a Converter
type Options struct {
	Mapping     *config.Mapping       // Topic to stream table (nil = RGB-D preset)
	Compression container.Compression // Container body compression
	Relative    bool                  // Timestamps relative to the first data message
	Verify      bool                  // Re-open and check the container after writing
	Logger      logging.L
	Metrics     *metrics.Metrics // Optional
}

// Converter converts bags into containers. It holds no per-run state and
// may be reused.
type Converter struct {
	opts Options
	log  logging.L
}

// New returns a converter for opts.
func New(opts Options) (*Converter, error) {
	if opts.Mapping == nil {
		opts.Mapping = config.RGBDMapping()
	}
	if err := opts.Mapping.Validate(); err != nil {
		return nil, err
	}
	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("unknown compression %d", opts.Compression)
	}
	return &Converter{opts: opts, log: logging.Must(opts.Logger)}, nil
}

// Result holds the statistics of one conversion.
type Result struct {
	InputPath         string           `json:"input_path"`
	OutputPath        string           `json:"output_path"`
	FileID            string           `json:"file_id"`
	Compression       string           `json:"compression"`
	InputBagSize      int64            `json:"input_bag_size"`
	OutputVRSSize     int64            `json:"output_vrs_size"`
	CompressionRatio  float64          `json:"compression_ratio"`
	TotalMessages     int64            `json:"total_messages"`
	MessagesPerStream map[uint32]int64 `json:"messages_per_stream"`
	Unconfigured      []uint32         `json:"unconfigured_streams,omitempty"`
	DurationSec       float64          `json:"duration_sec"`
	ConversionTimeSec float64          `json:"conversion_time_sec"`
	Verified          bool             `json:"verified"`
	StartedAt         time.Time        `json:"started_at"`
}

// Convert converts the bag at inputPath into a container at outputPath.
func (c *Converter) Convert(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	st, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: %s", ErrInputNotFound, inputPath)
		}
		c.recordFailure(err)
		return nil, err
	}

	src, err := OpenBag(inputPath)
	if err != nil {
		c.recordFailure(err)
		return nil, fmt.Errorf("cannot open input: %w", err)
	}
	defer src.Close()

	res, err := c.ConvertSource(ctx, src, st.Size(), outputPath)
	if res != nil {
		res.InputPath = inputPath
	}
	return res, err
}

// ConvertSource converts an open source. inputSize is only used for the
// compression ratio.
func (c *Converter) ConvertSource(ctx context.Context, src Source, inputSize int64, outputPath string) (*Result, error) {
	res, err := c.convert(ctx, src, inputSize, outputPath)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordConversion(metrics.Conversion{
			InputBytes:        res.InputBagSize,
			OutputBytes:       res.OutputVRSSize,
			Duration:          time.Duration(res.ConversionTimeSec * float64(time.Second)),
			MessagesPerStream: res.MessagesPerStream,
		})
	}
	return res, nil
}

func (c *Converter) convert(ctx context.Context, src Source, inputSize int64, outputPath string) (*Result, error) {
	start := time.Now()
	mapping := c.opts.Mapping
	c.log.Infof("Converting to %s (mapping %s, %s compression)", outputPath, mapping.Name, c.opts.Compression)

	channels := make(map[string]Channel)
	for _, ch := range src.Channels() {
		channels[ch.Name] = ch
	}
	if !anyPresent(mapping.Topics(), channels) {
		return nil, fmt.Errorf("%w: %v", ErrNoMessages, mapping.Topics())
	}

	w, err := container.Create(outputPath,
		container.WithCompression(c.opts.Compression),
		container.WithLogger(c.log),
	)
	if err != nil {
		return nil, err
	}
	// Abort is a no-op once Close has committed the container.
	defer w.Abort()

	res := &Result{
		OutputPath:        outputPath,
		FileID:            w.Header().FileID.String(),
		Compression:       c.opts.Compression.String(),
		InputBagSize:      inputSize,
		MessagesPerStream: make(map[uint32]int64, len(mapping.Streams)),
		StartedAt:         start.UTC(),
	}

	for _, spec := range mapping.Streams {
		if err := w.DeclareStreamOfType(spec.StreamID, spec.Type(), spec.Label); err != nil {
			return nil, err
		}
		res.MessagesPerStream[spec.StreamID] = 0
		c.log.Debugf("Created stream %d: %s", spec.StreamID, spec.Label)
	}

	sources, err := c.collectSources(ctx, src, channels)
	if err != nil {
		return nil, err
	}
	if err := c.writeConfigurations(w, sources, res); err != nil {
		return nil, err
	}
	if err := c.writeData(ctx, src, w, channels, res); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	out, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}
	res.OutputVRSSize = out.Size()
	if inputSize > 0 {
		res.CompressionRatio = float64(res.OutputVRSSize) / float64(inputSize)
	}
	res.DurationSec = src.Duration().Seconds()

	if c.opts.Verify {
		if err := c.verify(outputPath, res); err != nil {
			return nil, err
		}
		res.Verified = true
	}

	res.ConversionTimeSec = time.Since(start).Seconds()
	c.log.Infof("Conversion complete in %.2fs: %d messages, %d -> %d bytes (%.2f%%)",
		res.ConversionTimeSec, res.TotalMessages, res.InputBagSize, res.OutputVRSSize, res.CompressionRatio*100)
	return res, nil
}

// collectSources reads every configuration-bearing message into a
// snapshot.
func (c *Converter) collectSources(ctx context.Context, src Source, channels map[string]Channel) (*extract.Sources, error) {
	sources := extract.NewSources()

	var topics []string
	for _, t := range extract.Topics(c.opts.Mapping) {
		if _, ok := channels[t]; ok {
			topics = append(topics, t)
		}
	}
	hasOptions := false
	for _, spec := range c.opts.Mapping.Streams {
		hasOptions = hasOptions || spec.Kind == config.KindOptions
	}
	if hasOptions {
		for name := range channels {
			if extract.IsOptionTopic(name) {
				topics = append(topics, name)
			}
		}
	}
	if len(topics) == 0 {
		return sources, nil
	}
	sort.Strings(topics)

	it := src.Messages(topics...)
	defer it.Close()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := it.Message()
		msg, err := src.Deserialize(m.Data, m.MessageType)
		if err != nil {
			c.log.Debugf("Skipping %s message on %s: %v", m.MessageType, m.Channel, err)
			continue
		}
		sources.Observe(m.Channel, msg)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("read configuration topics: %w", err)
	}
	return sources, nil
}

func (c *Converter) writeConfigurations(w *container.Writer, sources *extract.Sources, res *Result) error {
	for _, spec := range c.opts.Mapping.Streams {
		cfg, err := sources.Configuration(spec)
		if errors.Is(err, extract.ErrNoSource) {
			c.log.Infof("No source data for stream %d (%s), skipping its configuration", spec.StreamID, spec.Label)
			res.Unconfigured = append(res.Unconfigured, spec.StreamID)
			continue
		}
		if err != nil {
			return err
		}
		if err := w.WriteConfiguration(spec.StreamID, cfg); err != nil {
			return err
		}
		c.log.Debugf("Wrote configuration for stream %d (%s)", spec.StreamID, spec.Kind)
	}
	return nil
}

func (c *Converter) writeData(ctx context.Context, src Source, w *container.Writer, channels map[string]Channel, res *Result) error {
	specs := make(map[string]config.StreamSpec)
	var topics []string
	for _, t := range c.opts.Mapping.DataTopics() {
		if _, ok := channels[t]; !ok {
			c.log.Warnf("Topic %s is not in the input, stream will be empty", t)
			continue
		}
		spec, _ := c.opts.Mapping.ByTopic(t)
		specs[t] = spec
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil
	}

	it := src.Messages(topics...)
	defer it.Close()

	base := int64(-1)
	var n int64
	for it.Next() {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		n++

		m := it.Message()
		spec := specs[m.Channel]
		if c.opts.Relative && base < 0 {
			base = m.TimestampNS
		}

		msg, err := src.Deserialize(m.Data, m.MessageType)
		if err != nil {
			return fmt.Errorf("message %d on %s: %w", n, m.Channel, err)
		}
		payload, err := extract.Payload(spec.Kind, msg)
		if err != nil {
			return fmt.Errorf("message %d on %s: %w", n, m.Channel, err)
		}
		if len(payload) == 0 {
			c.log.Debugf("Skipping empty %s message at %d", m.Channel, m.TimestampNS)
			continue
		}

		if err := w.WriteData(spec.StreamID, timeutil.Seconds(m.TimestampNS, base), payload); err != nil {
			return err
		}
		res.TotalMessages++
		res.MessagesPerStream[spec.StreamID]++
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("read data topics: %w", err)
	}
	return nil
}

// verify re-opens the container and checks it against what was written.
func (c *Converter) verify(path string, res *Result) error {
	r, err := container.Open(path, container.WithLogger(c.log))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	defer r.Close()

	if got := len(r.StreamIDs()); got != len(res.MessagesPerStream) {
		return fmt.Errorf("%w: %d streams, want %d", ErrVerification, got, len(res.MessagesPerStream))
	}
	for id, want := range res.MessagesPerStream {
		got, err := r.RecordCount(id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVerification, err)
		}
		if got != want {
			return fmt.Errorf("%w: stream %d has %d records, want %d", ErrVerification, id, got, want)
		}
	}

	check, err := r.Verify()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	if !check.OK() {
		return fmt.Errorf("%w: %v", ErrVerification, check.Problems)
	}
	c.log.Debugf("Verified %s: %d records", path, check.Records)
	return nil
}

func (c *Converter) recordFailure(err error) {
	if c.opts.Metrics == nil {
		return
	}
	c.opts.Metrics.RecordConversionFailure(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func anyPresent(topics []string, channels map[string]Channel) bool {
	for _, t := range topics {
		if _, ok := channels[t]; ok {
			return true
		}
	}
	return false
}
