package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bagvrs/pkg/api"
	"github.com/ssargent/bagvrs/pkg/catalog"
	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/convert"
	"github.com/ssargent/bagvrs/pkg/di"
	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/metrics"
	"github.com/ssargent/bagvrs/pkg/sample"
)

// execute runs the command line with a fresh root command and an isolated
// home directory.
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	code := run(ctx, root, args)
	return stdout.String(), stderr.String(), code
}

func setupCmdTest(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	SetContainer(di.NewContainer())
	t.Cleanup(func() { SetContainer(nil) })
	return t.TempDir()
}

func writeSample(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "input.bag")
	_, err := sample.Generate(path, sample.DefaultOptions())
	require.NoError(t, err)
	return path
}

func TestConvertCommand(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	output := filepath.Join(dir, "out.vrs")
	catalogDir := filepath.Join(dir, "catalog")
	metricsFile := filepath.Join(dir, "bagvrs.prom")

	stdout, stderr, code := execute(t, context.Background(),
		"convert", input, output, "--imu", "-c", "zstd", "--verify",
		"--catalog", catalogDir, "--metrics-file", metricsFile, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var res convert.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, int64(323), res.TotalMessages)
	assert.Equal(t, "zstd", res.Compression)
	assert.True(t, res.Verified)
	assert.Equal(t, int64(200), res.MessagesPerStream[1004])
	assert.FileExists(t, output)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `bagvrs_conversions_total{status="success"} 1`)

	t.Run("table output", func(t *testing.T) {
		stdout, stderr, code := execute(t, context.Background(), "convert", input, output)
		require.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, "Messages:")
		assert.Contains(t, stdout, "STREAM")
		assert.Contains(t, stdout, "RealSense_D435i_Color")
	})

	t.Run("catalog list and show", func(t *testing.T) {
		stdout, stderr, code := execute(t, context.Background(), "catalog", "list", "--catalog", catalogDir, "-o", "json")
		require.Equal(t, ExitOK, code, stderr)

		var entries []catalog.Entry
		require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, catalog.StatusSuccess, entries[0].Status)
		assert.Equal(t, output, entries[0].Output)
		assert.Equal(t, config.PresetRGBDIMU, entries[0].Mapping)

		stdout, stderr, code = execute(t, context.Background(), "catalog", "show", entries[0].ID.String(), "--catalog", catalogDir)
		require.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, entries[0].ID.String())
		assert.Contains(t, stdout, "stream 1004:")

		_, _, code = execute(t, context.Background(), "catalog", "show", "nope", "--catalog", catalogDir)
		assert.Equal(t, ExitError, code)

		stdout, stderr, code = execute(t, context.Background(), "catalog", "delete", entries[0].ID.String(), "--catalog", catalogDir)
		require.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, "Deleted")

		stdout, _, code = execute(t, context.Background(), "catalog", "list", "--catalog", catalogDir, "-o", "json")
		require.Equal(t, ExitOK, code)
		assert.JSONEq(t, "[]", stdout)
	})
}

func TestConvertCommand_Errors(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	output := filepath.Join(dir, "out.vrs")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing input", []string{"convert", filepath.Join(dir, "missing.bag"), output}, "input file not found"},
		{"one argument", []string{"convert", input}, "accepts 2 arg(s)"},
		{"bad compression", []string{"convert", input, output, "-c", "gzip"}, "gzip"},
		{"bad output format", []string{"convert", input, output, "-o", "xml"}, "invalid output format"},
		{"missing mapping file", []string{"convert", input, output, "--mapping", filepath.Join(dir, "none.yaml")}, "none.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := execute(t, context.Background(), tt.args...)
			assert.Equal(t, ExitError, code)
			assert.Contains(t, stderr, "Error:")
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
	assert.NoFileExists(t, output)
}

func TestConvertCommand_Canceled(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	catalogDir := filepath.Join(dir, "catalog")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, stderr, code := execute(t, ctx, "convert", input, filepath.Join(dir, "out.vrs"), "--catalog", catalogDir)
	assert.Equal(t, ExitInterrupted, code)
	assert.Contains(t, stderr, "Interrupted")

	cat, err := catalog.Open(catalogDir)
	require.NoError(t, err)
	defer cat.Close()
	entries, err := cat.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, catalog.StatusCanceled, entries[0].Status)
}

func TestConvertCommand_ConfigDefaults(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	cfgPath := filepath.Join(dir, "bagvrs.yaml")

	cfg := config.DefaultConfig()
	cfg.Compression = "snappy"
	cfg.Relative = true
	cfg.Mapping = config.RGBDIMUMapping()
	require.NoError(t, config.SaveConfig(cfg, cfgPath))

	stdout, stderr, code := execute(t, context.Background(),
		"--config", cfgPath, "convert", input, filepath.Join(dir, "out.vrs"), "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var res convert.Result
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "snappy", res.Compression)
	assert.Equal(t, int64(63), res.MessagesPerStream[1003])

	// Flags win over the file.
	stdout, stderr, code = execute(t, context.Background(),
		"--config", cfgPath, "convert", input, filepath.Join(dir, "out2.vrs"), "-c", "none", "-o", "json")
	require.Equal(t, ExitOK, code, stderr)
	res = convert.Result{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "none", res.Compression)
}

func TestInspectCommand(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	output := filepath.Join(dir, "out.vrs")
	_, stderr, code := execute(t, context.Background(), "convert", input, output, "--imu")
	require.Equal(t, ExitOK, code, stderr)

	stdout, stderr, code := execute(t, context.Background(), "inspect", output, "--records", "2", "--verify", "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "lz4", report.Compression)
	require.Len(t, report.Streams, 11)
	require.NotNil(t, report.Verify)
	assert.True(t, report.Verify.OK())

	byID := make(map[uint32]inspectStream)
	for _, s := range report.Streams {
		byID[s.LogicalID] = s
	}
	gyro := byID[1004]
	assert.Equal(t, int64(200), gyro.RecordCount)
	require.Len(t, gyro.Records, 2)
	require.NotNil(t, gyro.Records[0].Vector)
	assert.InDelta(t, 0.01, gyro.Records[0].Vector[0], 1e-9)
	var colorCfg map[string]any
	require.NoError(t, json.Unmarshal(byID[1001].Configuration, &colorCfg))
	assert.Equal(t, 64.0, colorCfg["width"])

	stdout, stderr, code = execute(t, context.Background(), "inspect", output, "-n", "1")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "RealSense_D435i_Gyro")
	assert.Contains(t, stdout, "configuration:")

	_, stderr, code = execute(t, context.Background(), "inspect", input)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "Error:")
}

func TestInfoCommand(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)

	stdout, stderr, code := execute(t, context.Background(), "info", input, "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var report convert.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, int64(323), report.DataMessages)
	require.Len(t, report.IMUTopics, 2)
	assert.NotEmpty(t, report.IMUTopics[0].First)

	stdout, stderr, code = execute(t, context.Background(), "info", input)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Image topics (2)")
	assert.Contains(t, stdout, "IMU topics (2)")
	assert.Contains(t, stdout, sample.TopicGyro)
	assert.NotContains(t, stdout, "FIRST")

	stdout, stderr, code = execute(t, context.Background(), "info", input, "-v")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "FIRST")
	assert.Contains(t, stdout, "2024-01-01T00:00:00+00:00")
}

func TestStreamCommand(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)

	t.Run("csv", func(t *testing.T) {
		stdout, stderr, code := execute(t, context.Background(), "stream", input, "--format", "csv", "--sensors", "gyro", "-l", "5")
		require.Equal(t, ExitOK, code, stderr)

		rows, err := csv.NewReader(strings.NewReader(stdout)).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 6)
		assert.Equal(t, []string{"timestamp_sec", "timestamp_iso", "sensor_type", "topic", "msgtype"}, rows[0])
		assert.Equal(t, "1704067200.000000000", rows[1][0])
		assert.Equal(t, "gyro", rows[1][2])
		assert.Equal(t, sample.TopicGyro, rows[1][3])
	})

	t.Run("human", func(t *testing.T) {
		stdout, stderr, code := execute(t, context.Background(), "stream", input, "-s", "0.5", "-e", "0.6", "--sensors", "rgb,depth")
		require.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, "[  0.500000s] rgb    | 2024-01-01T00:00:00.500000+00:00 | "+sample.TopicColor)
		assert.Contains(t, stdout, "6 messages")
	})

	t.Run("json lines", func(t *testing.T) {
		stdout, stderr, code := execute(t, context.Background(), "stream", input, "-o", "json", "-l", "3")
		require.Equal(t, ExitOK, code, stderr)
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 3)
		var m convert.SensorMessage
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &m))
		assert.Equal(t, 0.0, m.RelativeSec)
	})

	for _, args := range [][]string{
		{"--sensors", "lidar"},
		{"-s", "2", "-e", "1"},
		{"-l", "-1"},
		{"--format", "xml"},
	} {
		t.Run(fmt.Sprintf("invalid %v", args), func(t *testing.T) {
			_, _, code := execute(t, context.Background(), append([]string{"stream", input}, args...)...)
			assert.Equal(t, ExitError, code)
		})
	}
}

type fakeServerFactory struct {
	starter *fakeStarter
}

func (f *fakeServerFactory) CreateServerStarter() api.ServerStarter { return f.starter }

type fakeStarter struct {
	reader  api.ContainerReader
	catalog api.ConversionCatalog
	config  api.ServerConfig
}

func (s *fakeStarter) StartServer(ctx context.Context, reader api.ContainerReader, catalog api.ConversionCatalog,
	config api.ServerConfig, m *metrics.Metrics, log logging.L) error {
	s.reader = reader
	s.catalog = catalog
	s.config = config
	return nil
}

func TestServeCommand(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	output := filepath.Join(dir, "out.vrs")
	_, stderr, code := execute(t, context.Background(), "convert", input, output)
	require.Equal(t, ExitOK, code, stderr)

	starter := &fakeStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&fakeServerFactory{starter: starter})
	SetContainer(c)

	_, stderr, code = execute(t, context.Background(), "serve", output, "--port", "9123", "--api-key", "secret")
	require.Equal(t, ExitOK, code, stderr)
	assert.Equal(t, api.ServerConfig{Port: 9123, Bind: "127.0.0.1", APIKey: "secret"}, starter.config)
	require.NotNil(t, starter.reader)
	assert.Equal(t, output, starter.reader.Path())
	assert.Nil(t, starter.catalog)

	_, stderr, code = execute(t, context.Background(), "serve", output, "--catalog", filepath.Join(dir, "catalog"))
	require.Equal(t, ExitOK, code, stderr)
	assert.NotNil(t, starter.catalog)
	assert.Equal(t, 8080, starter.config.Port)

	_, _, code = execute(t, context.Background(), "serve", filepath.Join(dir, "missing.vrs"))
	assert.Equal(t, ExitError, code)
}

func TestServeCommand_CatalogOpenError(t *testing.T) {
	dir := setupCmdTest(t)
	input := writeSample(t, dir)
	output := filepath.Join(dir, "out.vrs")
	_, stderr, code := execute(t, context.Background(), "convert", input, output)
	require.Equal(t, ExitOK, code, stderr)

	c := di.NewContainer()
	c.SetServerFactory(&fakeServerFactory{starter: &fakeStarter{}})
	c.SetCatalogOpener(func(string) (*catalog.Catalog, error) { return nil, errors.New("locked") })
	SetContainer(c)

	_, stderr, code = execute(t, context.Background(), "serve", output, "--catalog", dir)
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "locked")
}

func TestMappingCommand(t *testing.T) {
	dir := setupCmdTest(t)

	stdout, stderr, code := execute(t, context.Background(), "mapping", "dump", "--imu")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "name: rgbd_imu")
	assert.Contains(t, stdout, "stream_id: 1004")

	path := filepath.Join(dir, "streams.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stdout), 0600))
	stdout, stderr, code = execute(t, context.Background(), "mapping", "validate", path)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "rgbd_imu: 11 streams")

	stdout, stderr, code = execute(t, context.Background(), "mapping", "dump", "rgbd")
	require.Equal(t, ExitOK, code, stderr)
	assert.NotContains(t, stdout, "stream_id: 1004")

	_, _, code = execute(t, context.Background(), "mapping", "dump", "lidar")
	assert.Equal(t, ExitError, code)
}

func TestSampleCommand(t *testing.T) {
	dir := setupCmdTest(t)
	path := filepath.Join(dir, "s.bag")

	stdout, stderr, code := execute(t, context.Background(), "sample", path, "--duration", "500ms", "--no-imu", "-o", "json")
	require.Equal(t, ExitOK, code, stderr)

	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(stdout), &counts))
	assert.Equal(t, 15, counts[sample.TopicColor])
	assert.Zero(t, counts[sample.TopicGyro])
	assert.FileExists(t, path)

	_, _, code = execute(t, context.Background(), "sample", path, "--duration", "2h")
	assert.Equal(t, ExitError, code)
}

func TestConfigCommand(t *testing.T) {
	dir := setupCmdTest(t)
	path := filepath.Join(dir, "conf", "bagvrs.yaml")

	stdout, stderr, code := execute(t, context.Background(), "--config", path, "config", "init", "--imu")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "Wrote "+path)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Mapping)
	assert.Equal(t, config.PresetRGBDIMU, cfg.Mapping.Name)

	_, stderr, code = execute(t, context.Background(), "--config", path, "config", "init")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "already exists")

	_, stderr, code = execute(t, context.Background(), "--config", path, "config", "init", "--force")
	require.Equal(t, ExitOK, code, stderr)

	stdout, stderr, code = execute(t, context.Background(), "--config", path, "config", "show")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "compression: lz4")
	assert.NotContains(t, stdout, "mapping:")
}

func TestErrorChain(t *testing.T) {
	base := errors.New("base")
	wrapped := fmt.Errorf("outer: %w", fmt.Errorf("middle: %w", base))
	chain := errorChain(wrapped)
	require.Len(t, chain, 2)
	assert.Equal(t, base, chain[1])

	joined := fmt.Errorf("%w: %w", errors.New("a"), errors.New("b"))
	assert.Len(t, errorChain(joined), 2)

	var buf bytes.Buffer
	printError(&buf, wrapped, true)
	assert.Equal(t, "Error: outer: middle: base\n  middle: base\n    base\n", buf.String())

	buf.Reset()
	printError(&buf, fmt.Errorf("convert: %w", context.Canceled), false)
	assert.Equal(t, "Interrupted\n", buf.String())
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KiB", formatBytes(1536))
	assert.Equal(t, "2.0 MiB", formatBytes(2<<20))
}
