// Package metrics holds the Prometheus metrics of conversions and of the
// container browser.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
)

// Metrics holds all Prometheus metrics of bagvrs
type Metrics struct {
	registry *prometheus.Registry

	// Conversion metrics
	conversionsTotal   *prometheus.CounterVec
	conversionDuration prometheus.Histogram
	messagesTotal      *prometheus.CounterVec
	bytesWrittenTotal  prometheus.Counter
	inputBytesTotal    prometheus.Counter
	compressionRatio   prometheus.Gauge

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
}

// New creates all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		conversionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bagvrs_conversions_total",
				Help: "Total number of bag conversions",
			},
			[]string{"status"},
		),

		conversionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bagvrs_conversion_duration_seconds",
				Help:    "Bag conversion duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		messagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bagvrs_messages_written_total",
				Help: "Total number of data records written, by stream",
			},
			[]string{"stream"},
		),

		bytesWrittenTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bagvrs_output_bytes_total",
				Help: "Total size of containers written in bytes",
			},
		),

		inputBytesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "bagvrs_input_bytes_total",
				Help: "Total size of bags converted in bytes",
			},
		),

		compressionRatio: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "bagvrs_compression_ratio",
				Help: "Output to input size ratio of the last conversion",
			},
		),

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bagvrs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bagvrs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bagvrs_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Conversion is what RecordConversion needs to know about a finished run.
type Conversion struct {
	InputBytes        int64
	OutputBytes       int64
	Duration          time.Duration
	MessagesPerStream map[uint32]int64
}

// RecordConversion records a successful conversion
func (m *Metrics) RecordConversion(c Conversion) {
	m.conversionsTotal.WithLabelValues(statusSuccess).Inc()
	m.conversionDuration.Observe(c.Duration.Seconds())
	m.inputBytesTotal.Add(float64(c.InputBytes))
	m.bytesWrittenTotal.Add(float64(c.OutputBytes))
	if c.InputBytes > 0 {
		m.compressionRatio.Set(float64(c.OutputBytes) / float64(c.InputBytes))
	}
	for id, n := range c.MessagesPerStream {
		m.messagesTotal.WithLabelValues(strconv.FormatUint(uint64(id), 10)).Add(float64(n))
	}
}

// RecordConversionFailure records a failed or canceled conversion
func (m *Metrics) RecordConversionFailure(canceled bool) {
	status := statusError
	if canceled {
		status = statusCanceled
	}
	m.conversionsTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// WriteTextfile writes the current metrics in the text exposition format,
// for pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
