// Package store persists rendered price reports so repeated lookups for
// the same subject skip the source fan-out until the entry expires.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/haggle/internal/model"
)

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache defines the persistence interface for price reports.
type Cache interface {
	// GetReport returns the unexpired report for subject, or nil on a miss.
	GetReport(ctx context.Context, subject string) (*model.PriceReport, error)
	SetReport(ctx context.Context, report model.PriceReport, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the cache for driver, migrated and ready to use. The
// "none" driver (and the empty string) returns a nil Cache.
func Open(ctx context.Context, driver, dsn string) (Cache, error) {
	var (
		c   Cache
		err error
	)
	switch strings.ToLower(driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		c, err = NewSQLite(dsn)
	case DriverPostgres:
		c, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		c.Close() //nolint:errcheck
		return nil, err
	}
	return c, nil
}

// Key normalizes a subject into a cache key.
func Key(subject string) string {
	return strings.ToLower(strings.Join(strings.Fields(subject), " "))
}
