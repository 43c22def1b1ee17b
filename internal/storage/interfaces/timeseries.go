package interfaces

import (
	"context"
	"io"

	"github.com/inferloop/pricecast/pkg/models"
)

// SeriesReader defines the interface for loading a dated price series
type SeriesReader interface {
	// Load reads the series stored at path
	Load(ctx context.Context, path string) (*models.TimeSeries, error)

	// Read parses a series from r; name labels the series and its errors
	Read(ctx context.Context, r io.Reader, name string) (*models.TimeSeries, error)
}
