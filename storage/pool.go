package storage

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DefaultMaxConns is used when PoolConfig.MaxConns is not set.
const DefaultMaxConns = 4

const defaultConnectTimeout = 10 * time.Second

// PoolConfig describes the bounded connection pool used by the Postgres binding.
type PoolConfig struct {
	URL      string
	MaxConns int32
	// TLS, when set, replaces whatever the URL's sslmode negotiated.
	TLS            *tls.Config
	ConnectTimeout time.Duration
}

// ConnectionError is returned when the pool cannot reach the database at all.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Host == "" {
		return fmt.Sprintf("database connection: %v", e.Err)
	}
	return fmt.Sprintf("database connection to %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DefaultTLSConfig returns the TLS settings used when DATABASE_TLS is enabled.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// Connect builds the pool and verifies connectivity with a single ping.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, &ConnectionError{Host: pc.ConnConfig.Host, Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, pc.ConnConfig.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Host: pc.ConnConfig.Host, Err: err}
	}
	return pool, nil
}

func poolConfig(cfg PoolConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	pc.MaxConns = cfg.MaxConns
	if pc.MaxConns <= 0 {
		pc.MaxConns = DefaultMaxConns
	}
	if pc.MinConns > pc.MaxConns {
		pc.MinConns = pc.MaxConns
	}
	if cfg.TLS != nil {
		t := cfg.TLS.Clone()
		if t.ServerName == "" {
			t.ServerName = pc.ConnConfig.Host
		}
		pc.ConnConfig.TLSConfig = t
		pc.ConnConfig.Fallbacks = nil
	}
	switch {
	case cfg.ConnectTimeout > 0:
		pc.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	case pc.ConnConfig.ConnectTimeout <= 0:
		pc.ConnConfig.ConnectTimeout = defaultConnectTimeout
	}
	return pc, nil
}

// OpenSQL opens a database/sql pool for the synchronous binding. driver is
// "pgx" for Postgres or "sqlite" for an embedded database.
func OpenSQL(ctx context.Context, driver, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Err: err}
	}
	return db, nil
}

// DialectForDriver maps a database/sql driver name onto its SQL dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "pgx/v5":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported sql driver %q", driver)
	}
}
