package storage

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendSQL      = "sql"
	BackendTables   = "tables"
)

// Options selects and configures a repository binding.
type Options struct {
	Backend      string
	QueryTimeout time.Duration

	// postgres and sql backends
	DatabaseURL string
	SQLDriver   string
	MaxConns    int
	TLS         bool

	// tables backend
	StorageConnectionString string
	Table                   string
}

// Open builds the configured binding wrapped in tracing. The returned close
// function releases the underlying pool and is never nil.
func Open(ctx context.Context, opts Options) (NoteRepository, func(), error) {
	switch opts.Backend {
	case BackendPostgres, "":
		if opts.MaxConns > math.MaxInt32 {
			return nil, func() {}, fmt.Errorf("max conns %d exceeds %d", opts.MaxConns, math.MaxInt32)
		}
		cfg := PoolConfig{URL: opts.DatabaseURL, MaxConns: int32(opts.MaxConns)}
		if opts.TLS {
			cfg.TLS = DefaultTLSConfig()
		}
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, func() {}, err
		}
		return NewTraced(NewPostgres(pool, opts.QueryTimeout), "postgresql"), pool.Close, nil

	case BackendSQL:
		dialect, err := DialectForDriver(opts.SQLDriver)
		if err != nil {
			return nil, func() {}, err
		}
		db, err := OpenSQL(ctx, opts.SQLDriver, opts.DatabaseURL, opts.MaxConns)
		if err != nil {
			return nil, func() {}, err
		}
		closeDB := func() { _ = db.Close() }
		return NewTraced(NewSQL(db, dialect, opts.QueryTimeout), dialect.String()), closeDB, nil

	case BackendTables:
		repo, err := NewTables(opts.StorageConnectionString, opts.Table, opts.QueryTimeout)
		if err != nil {
			return nil, func() {}, err
		}
		return NewTraced(repo, "azure.tables"), func() {}, nil

	default:
		return nil, func() {}, fmt.Errorf("unknown store %q", opts.Backend)
	}
}
