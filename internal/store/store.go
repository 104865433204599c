package store

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/i474232898/farm-insights/internal/farm"
	"github.com/i474232898/farm-insights/internal/pricing"
	"github.com/i474232898/farm-insights/internal/weather"
)

var (
	// ErrNotFound is returned when a plot or weather snapshot does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is everything the service persists: plots, prices, cached
// predictions and weather snapshots.
type Store interface {
	farm.Repository
	pricing.Repository
	weather.SnapshotStore
	io.Closer
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver     string
	SQLitePath string

	// Snapshot retention per location; zero means unlimited.
	MaxHistory int
	MaxAge     time.Duration
}

// Open returns the store selected by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryStore(opts.MaxHistory, opts.MaxAge), nil
	case DriverSQLite:
		return NewSQLiteStore(opts.SQLitePath, opts.MaxHistory, opts.MaxAge)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func predictionKey(crop string, year int) string {
	return fmt.Sprintf("%s@%d", crop, year)
}
