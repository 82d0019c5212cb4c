package storage

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// Dialect selects the SQL flavour spoken by a relational binding.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

// bind returns the placeholder for the n-th (1-based) statement argument.
func (d Dialect) bind(n int) string {
	if d == DialectSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (d Dialect) idType() string {
	if d == DialectSQLite {
		return "TEXT"
	}
	return "UUID"
}

type statements struct {
	insert     string
	selectByID string
	deleteByID string
}

func statementsFor(d Dialect) statements {
	return statements{
		insert: fmt.Sprintf(
			"INSERT INTO notes (id, content, confidential) VALUES (%s, %s, %s) RETURNING id, content, confidential",
			d.bind(1), d.bind(2), d.bind(3)),
		selectByID: "SELECT id, content, confidential FROM notes WHERE id = " + d.bind(1),
		deleteByID: "DELETE FROM notes WHERE id = " + d.bind(1),
	}
}

type migration struct {
	name string
	stmt func(Dialect) string
}

var migrations = []migration{
	{
		name: "000_create_notes",
		stmt: func(d Dialect) string {
			return "CREATE TABLE IF NOT EXISTS notes (id " + d.idType() +
				" PRIMARY KEY, content TEXT NOT NULL, confidential BOOLEAN NOT NULL)"
		},
	},
}

type execFunc func(ctx context.Context, stmt string) error

// migrate applies every migration in order. All statements are idempotent,
// so running this on each cold start is a no-op once the schema exists.
func migrate(ctx context.Context, d Dialect, exec execFunc) error {
	for _, m := range migrations {
		log.WithFields(log.Fields{"migration": m.name, "dialect": d.String()}).Debug("applying migration")
		if err := exec(ctx, m.stmt(d)); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	log.Infof("schema up to date, migrations: %d", len(migrations))
	return nil
}
