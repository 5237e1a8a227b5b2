package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/bagvrs/pkg/catalog"
	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/extract"
	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/metrics"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
)

// Server holds the API server state
type Server struct {
	reader  ContainerReader
	catalog ConversionCatalog
	config  ServerConfig
	metrics *metrics.Metrics
	log     logging.L
}

// NewServer creates a new API server. catalog may be nil.
func NewServer(reader ContainerReader, catalog ConversionCatalog, config ServerConfig, m *metrics.Metrics, log logging.L) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		reader:  reader,
		catalog: catalog,
		config:  config,
		metrics: m,
		log:     logging.Must(log),
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]string{"status": "healthy"})
}

// handleContainer godoc
//
//	@Summary		Container overview
//	@Description	Header, size and stream index of the served container
//	@Tags			container
//	@Produce		json
//	@Success		200	{object}	ContainerResponse
//	@Router			/container [get]
func (s *Server) handleContainer(w http.ResponseWriter, r *http.Request) {
	h := s.reader.Header()
	streams := s.reader.Streams()

	resp := ContainerResponse{
		Path:        s.reader.Path(),
		FileID:      h.FileID.String(),
		CreatedAt:   h.FileID.Time().UTC().Format(time.RFC3339),
		Version:     h.Version,
		Compression: h.Compression.String(),
		Size:        s.reader.Size(),
		StreamCount: len(streams),
		Streams:     make([]StreamSummary, len(streams)),
	}
	for i, info := range streams {
		resp.Streams[i] = summarize(info)
	}
	sendSuccess(w, resp)
}

// handleStreams godoc
//
//	@Summary		List streams
//	@Tags			streams
//	@Produce		json
//	@Success		200	{array}	StreamSummary
//	@Router			/streams [get]
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	streams := s.reader.Streams()
	out := make([]StreamSummary, len(streams))
	for i, info := range streams {
		out[i] = summarize(info)
	}
	sendSuccess(w, out)
}

// handleStream godoc
//
//	@Summary		Get one stream
//	@Tags			streams
//	@Produce		json
//	@Param			id	path		int	true	"Logical stream id"
//	@Success		200	{object}	StreamSummary
//	@Failure		404	{object}	APIResponse
//	@Router			/streams/{id} [get]
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	info, ok := s.stream(w, r)
	if !ok {
		return
	}
	sendSuccess(w, summarize(info))
}

// handleConfiguration godoc
//
//	@Summary		Stream configuration
//	@Description	The configuration record of a stream, keys in stored order
//	@Tags			streams
//	@Produce		json
//	@Param			id	path		int	true	"Logical stream id"
//	@Success		200	{object}	APIResponse
//	@Failure		404	{object}	APIResponse
//	@Router			/streams/{id}/configuration [get]
func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	info, ok := s.stream(w, r)
	if !ok {
		return
	}
	cfg, err := s.reader.ReadConfiguration(info.LogicalID)
	if err != nil {
		s.sendContainerError(w, err)
		return
	}
	blob, err := cfg.MarshalJSON()
	if err != nil {
		s.sendContainerError(w, err)
		return
	}
	sendSuccess(w, json.RawMessage(blob))
}

// handleRecords godoc
//
//	@Summary		Page through data records
//	@Tags			streams
//	@Produce		json
//	@Param			id		path		int		true	"Logical stream id"
//	@Param			offset	query		int		false	"First record index"
//	@Param			limit	query		int		false	"Page size (max 1000)"
//	@Param			payload	query		bool	false	"Include payload bytes"
//	@Success		200		{object}	RecordsResponse
//	@Failure		400		{object}	APIResponse
//	@Failure		404		{object}	APIResponse
//	@Router			/streams/{id}/records [get]
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	info, ok := s.stream(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		sendError(w, "Invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultRecordLimit)
	if err != nil || limit <= 0 {
		sendError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	if limit > maxRecordLimit {
		limit = maxRecordLimit
	}
	withPayload := q.Get("payload") == "true"
	isMotion := info.PhysicalID.Type == container.TypeMotionSensor

	it, err := s.reader.DataRecords(info.LogicalID)
	if err != nil {
		s.sendContainerError(w, err)
		return
	}
	defer it.Close()

	resp := RecordsResponse{
		StreamID: info.LogicalID,
		Offset:   offset,
		Limit:    limit,
		Total:    info.RecordCount,
		Records:  []RecordResponse{},
	}
	for i := 0; len(resp.Records) < limit && it.Next(); i++ {
		if i < offset {
			continue
		}
		rec := it.Record()
		out := RecordResponse{Index: i, Timestamp: rec.Timestamp, Size: len(rec.Payload)}
		if withPayload {
			out.Payload = append([]byte(nil), rec.Payload...)
		}
		if isMotion {
			if v, err := extract.UnpackVector3(rec.Payload); err == nil {
				out.Vector = &[3]float64{v.X, v.Y, v.Z}
			}
		}
		resp.Records = append(resp.Records, out)
	}
	if err := it.Err(); err != nil {
		s.sendContainerError(w, err)
		return
	}
	sendSuccess(w, resp)
}

// handleVerify godoc
//
//	@Summary		Verify the container
//	@Description	Full CRC scan compared against the stream index
//	@Tags			container
//	@Produce		json
//	@Success		200	{object}	container.VerifyResult
//	@Router			/verify [get]
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	res, err := s.reader.Verify()
	if err != nil {
		s.sendContainerError(w, err)
		return
	}
	sendSuccess(w, res)
}

// handleConversions godoc
//
//	@Summary		List recorded conversions
//	@Tags			catalog
//	@Produce		json
//	@Param			limit	query	int	false	"Maximum entries, newest first"
//	@Success		200	{array}	catalog.Entry
//	@Router			/conversions [get]
func (s *Server) handleConversions(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		sendError(w, "Catalog not configured", http.StatusNotFound)
		return
	}
	limit, err := queryInt(r.URL.Query().Get("limit"), 0)
	if err != nil || limit < 0 {
		sendError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	entries, err := s.catalog.List(limit)
	if err != nil {
		s.log.Errorf("List conversions: %v", err)
		sendError(w, "Failed to list conversions", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*catalog.Entry{}
	}
	sendSuccess(w, entries)
}

// handleConversion godoc
//
//	@Summary		Get one recorded conversion
//	@Tags			catalog
//	@Produce		json
//	@Param			id	path		string	true	"Conversion id (KSUID)"
//	@Success		200	{object}	catalog.Entry
//	@Failure		404	{object}	APIResponse
//	@Router			/conversions/{id} [get]
func (s *Server) handleConversion(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		sendError(w, "Catalog not configured", http.StatusNotFound)
		return
	}
	e, err := s.catalog.Lookup(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		sendError(w, "Conversion not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Errorf("Lookup conversion: %v", err)
		sendError(w, "Failed to read conversion", http.StatusInternalServerError)
		return
	}
	sendSuccess(w, e)
}

// stream resolves the {id} URL parameter, answering the request itself
// when it cannot.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) (container.StreamInfo, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil || id == 0 {
		sendError(w, "Stream id must be a positive integer", http.StatusBadRequest)
		return container.StreamInfo{}, false
	}
	info, err := s.reader.Stream(uint32(id))
	if err != nil {
		s.sendContainerError(w, err)
		return container.StreamInfo{}, false
	}
	return info, true
}

func (s *Server) sendContainerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, container.ErrUnknownStream), errors.Is(err, container.ErrMissingConfiguration):
		sendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, container.ErrNotOpen):
		sendError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.log.Errorf("Container read failed: %v", err)
		sendError(w, err.Error(), http.StatusInternalServerError)
	}
}

func summarize(info container.StreamInfo) StreamSummary {
	return StreamSummary{
		StreamInfo:     info,
		PhysicalID:     info.Physical(),
		RecordableType: info.PhysicalID.Type.String(),
		Duration:       info.LastTimestamp - info.FirstTimestamp,
	}
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
