package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	// database/sql drivers
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect is the SQL flavour of a catalog database
type Dialect int

const (
	// SQLite uses ? placeholders
	SQLite Dialect = iota
	// Postgres uses $n placeholders
	Postgres
)

// String returns the dialect name
func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "unknown"
	}
}

// Drivers lists the database/sql driver names a catalog can open
var Drivers = []string{"sqlite3", "postgres", "pgx"}

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("unsupported catalog driver %q (expected one of %s)", driver, strings.Join(Drivers, ", "))
	}
}

// Rebind rewrites ? placeholders for the dialect
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// undefined_table
const pgUndefinedTable = "42P01"

// isMissingTable reports whether err says a catalog table does not exist yet
func isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUndefinedTable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUndefinedTable
	}
	return strings.Contains(err.Error(), "no such table")
}
