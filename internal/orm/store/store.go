// Package store provides the document stores proxies are loaded from.
// Documents are opaque JSON blobs addressed by class name and identifier.
package store

import (
	"context"
	"fmt"
)

// Store defines the interface for all document store backends
type Store interface {
	// Get retrieves a document; a missing document yields an error matching ErrNotFound
	Get(ctx context.Context, class, id string) ([]byte, error)

	// Put creates or replaces a document
	Put(ctx context.Context, class, id string, doc []byte) error

	// Delete removes a document; deleting a missing document is not an error
	Delete(ctx context.Context, class, id string) error

	// Exists checks if a document is stored
	Exists(ctx context.Context, class, id string) (bool, error)

	// List returns the identifiers stored for class in sorted order
	List(ctx context.Context, class string) ([]string, error)

	// Close releases the backend's resources
	Close() error
}

// Driver names accepted by Open
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// Config selects and configures a backend
type Config struct {
	Driver string
	// DSN is the data source name of SQL backends
	DSN string
	// Prefix is prepended to Redis keys and names the SQL table
	Prefix string
	Redis  RedisConfig
}

// DefaultConfig returns an in-memory configuration
func DefaultConfig() Config {
	return Config{
		Driver: DriverMemory,
		Prefix: "refproxy",
		Redis:  DefaultRedisConfig(),
	}
}

// Open creates the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		redisCfg := cfg.Redis
		if cfg.Prefix != "" {
			redisCfg.Prefix = cfg.Prefix + ":"
		}
		return NewRedisStore(ctx, redisCfg)
	case DriverSQLite, DriverSQLite3, DriverPostgres, DriverPgx:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store driver %s requires a dsn", cfg.Driver)
		}
		return OpenSQLStore(ctx, cfg.Driver, cfg.DSN, tableName(cfg.Prefix))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

func tableName(prefix string) string {
	if prefix == "" {
		return "documents"
	}
	return prefix + "_documents"
}
