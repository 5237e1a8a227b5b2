package api

import (
	"github.com/ssargent/bagvrs/pkg/catalog"
	"github.com/ssargent/bagvrs/pkg/container"
	"github.com/ssargent/bagvrs/pkg/value"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string // Required X-API-Key value; empty disables the check
}

// ContainerReader is the read side of a container that the server browses.
type ContainerReader interface {
	Path() string
	Header() container.Header
	Size() int64
	Streams() []container.StreamInfo
	Stream(id uint32) (container.StreamInfo, error)
	ReadConfiguration(id uint32) (*value.Map, error)
	DataRecords(id uint32) (*container.DataIterator, error)
	Verify() (*container.VerifyResult, error)
}

// ConversionCatalog is the read side of the conversion history.
type ConversionCatalog interface {
	List(limit int) ([]*catalog.Entry, error)
	Lookup(id string) (*catalog.Entry, error)
}

// ContainerResponse describes the served container.
type ContainerResponse struct {
	Path        string          `json:"path"`
	FileID      string          `json:"file_id"`
	CreatedAt   string          `json:"created_at"`
	Version     uint16          `json:"version"`
	Compression string          `json:"compression"`
	Size        int64           `json:"size"`
	StreamCount int             `json:"stream_count"`
	Streams     []StreamSummary `json:"streams"`
}

// StreamSummary is one stream of the served container.
type StreamSummary struct {
	container.StreamInfo
	PhysicalID     string  `json:"physical_id"`
	RecordableType string  `json:"recordable_type"`
	Duration       float64 `json:"duration"`
}

// RecordsResponse is one page of data records.
type RecordsResponse struct {
	StreamID uint32           `json:"stream_id"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
	Total    int64            `json:"total"`
	Records  []RecordResponse `json:"records"`
}

// RecordResponse is one data record. Payload is only filled on request;
// IMU samples are decoded into Vector.
type RecordResponse struct {
	Index     int         `json:"index"`
	Timestamp float64     `json:"timestamp"`
	Size      int         `json:"size"`
	Payload   []byte      `json:"payload,omitempty"`
	Vector    *[3]float64 `json:"vector,omitempty"`
}
