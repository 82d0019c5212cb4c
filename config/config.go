// Package config loads service settings from the environment, optionally
// layered over a YAML file named by NOTES_CONFIG_FILE.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"notes-api/storage"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultNotesTable     = "notes"
	defaultSQLDriver      = "pgx"
)

// Config holds every setting the service and notesctl read at start.
type Config struct {
	Store                   string        `yaml:"store"`
	DatabaseURL             string        `yaml:"database_url"`
	SQLDriver               string        `yaml:"sql_driver"`
	DatabaseMaxConns        int           `yaml:"database_max_conns"`
	DatabaseTLS             bool          `yaml:"database_tls"`
	RunMigrations           bool          `yaml:"run_migrations"`
	QueryTimeout            time.Duration `yaml:"query_timeout"`
	StorageConnectionString string        `yaml:"storage_connection_string"`
	NotesTable              string        `yaml:"notes_table"`
	RedisConnectionString   string        `yaml:"redis_connection_string"`
	IdempotencyTTL          time.Duration `yaml:"idempotency_ttl"`
	Debug                   bool          `yaml:"debug"`
}

func defaults() Config {
	return Config{
		Store:            storage.BackendPostgres,
		SQLDriver:        defaultSQLDriver,
		DatabaseMaxConns: storage.DefaultMaxConns,
		RunMigrations:    true,
		QueryTimeout:     storage.DefaultQueryTimeout,
		NotesTable:       defaultNotesTable,
		IdempotencyTTL:   defaultIdempotencyTTL,
	}
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup, which follows os.LookupEnv.
func Load(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaults()

	if path, ok := lookup("NOTES_CONFIG_FILE"); ok && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	env := envReader{lookup: lookup}
	env.str("NOTES_STORE", &cfg.Store)
	env.str("DATABASE_URL", &cfg.DatabaseURL)
	env.str("SQL_DRIVER", &cfg.SQLDriver)
	env.positiveInt("DATABASE_MAX_CONNS", &cfg.DatabaseMaxConns)
	env.boolean("DATABASE_TLS", &cfg.DatabaseTLS)
	env.boolean("RUN_MIGRATIONS", &cfg.RunMigrations)
	env.duration("QUERY_TIMEOUT", &cfg.QueryTimeout)
	env.str("STORAGE_CONNECTION_STRING", &cfg.StorageConnectionString)
	env.str("NOTES_TABLE", &cfg.NotesTable)
	env.str("REDIS_CONNECTION_STRING", &cfg.RedisConnectionString)
	env.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	env.boolean("DEBUG", &cfg.Debug)
	if env.err != nil {
		return Config{}, env.err
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case storage.BackendPostgres, storage.BackendSQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DATABASE_URL for store %q", c.Store)
		}
		if c.Store == storage.BackendSQL {
			if _, err := storage.DialectForDriver(c.SQLDriver); err != nil {
				return err
			}
		}
	case storage.BackendTables:
		if c.StorageConnectionString == "" || c.NotesTable == "" {
			return fmt.Errorf("missing STORAGE_CONNECTION_STRING or NOTES_TABLE for store %q", c.Store)
		}
	default:
		return fmt.Errorf("invalid NOTES_STORE %q", c.Store)
	}
	if c.DatabaseMaxConns <= 0 || c.DatabaseMaxConns > math.MaxInt32 {
		return fmt.Errorf("invalid DATABASE_MAX_CONNS: must be between 1 and %d", math.MaxInt32)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("invalid QUERY_TIMEOUT: must be greater than zero")
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL: must be greater than zero")
	}
	return nil
}

// StorageOptions maps the configuration onto storage.Open options.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:                 c.Store,
		QueryTimeout:            c.QueryTimeout,
		DatabaseURL:             c.DatabaseURL,
		SQLDriver:               c.SQLDriver,
		MaxConns:                c.DatabaseMaxConns,
		TLS:                     c.DatabaseTLS,
		StorageConnectionString: c.StorageConnectionString,
		Table:                   c.NotesTable,
	}
}

// envReader applies set variables over the current values and keeps the
// first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *envReader) get(name string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	v, ok := r.lookup(name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r *envReader) str(name string, dst *string) {
	if v, ok := r.get(name); ok {
		*dst = v
	}
}

func (r *envReader) positiveInt(name string, dst *int) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	if n <= 0 {
		r.err = fmt.Errorf("invalid %s: must be greater than zero", name)
		return
	}
	*dst = n
}

func (r *envReader) boolean(name string, dst *bool) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = b
}

func (r *envReader) duration(name string, dst *time.Duration) {
	v, ok := r.get(name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.err = fmt.Errorf("invalid %s: %w", name, err)
		return
	}
	*dst = d
}
