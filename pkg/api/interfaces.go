// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/ssargent/bagvrs/pkg/logging"
	"github.com/ssargent/bagvrs/pkg/metrics"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves reader until ctx is done
	StartServer(ctx context.Context,
		reader ContainerReader,
		catalog ConversionCatalog,
		config ServerConfig,
		m *metrics.Metrics,
		log logging.L,
	) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
