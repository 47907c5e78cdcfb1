// Package catalog exports compiled dispatch tables to SQL so that tools outside
// the Go process can read field metadata. Every export is a complete copy of a
// registry snapshot tagged with its own export id; exports are never updated in
// place.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/fieldmeta/internal/compiler/annotate"
	"github.com/conduit-lang/fieldmeta/internal/compiler/parser"
	"github.com/conduit-lang/fieldmeta/runtime/metadata"
)

var (
	// ErrExportNotFound is returned when no export has the requested id
	ErrExportNotFound = errors.New("export not found")
	// ErrNoCatalog is returned when the catalog tables have not been created
	ErrNoCatalog = errors.New("catalog tables do not exist")
)

// Export describes one stored snapshot
type Export struct {
	ID         string
	Version    string
	SourceHash string
	ExportedAt time.Time
}

// Catalog stores registry snapshots in a SQL database
type Catalog struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

// Open connects to dsn with driver and checks the connection
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Catalog, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps :memory: databases and sqlite write locks coherent
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	return newCatalog(db, dialect, logger), nil
}

// New wraps an open database
func New(db *sql.DB, driver string, logger *zap.Logger) (*Catalog, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return newCatalog(db, dialect, logger), nil
}

func newCatalog(db *sql.DB, dialect Dialect, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// DB returns the underlying database
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Dialect returns the catalog's SQL dialect
func (c *Catalog) Dialect() Dialect {
	return c.dialect
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Migrate creates the catalog tables when they are missing
func (c *Catalog) Migrate(ctx context.Context) error {
	return c.withTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create catalog tables: %w", err)
			}
		}
		return nil
	})
}

// Export writes snap as a new export and returns its id. Either every row of
// the export is written or none is.
func (c *Catalog) Export(ctx context.Context, snap *metadata.Snapshot) (string, error) {
	id := c.newID()
	rows := 0

	err := c.withTransaction(ctx, func(tx *sql.Tx) error {
		exec := func(query string, args ...any) error {
			if _, err := tx.ExecContext(ctx, c.dialect.Rebind(query), args...); err != nil {
				return err
			}
			rows++
			return nil
		}

		if err := exec(
			`INSERT INTO fieldmeta_exports (export_id, version, source_hash, exported_at) VALUES (?, ?, ?, ?)`,
			id, snap.Version, snap.SourceHash, c.now(),
		); err != nil {
			return fmt.Errorf("failed to record export: %w", err)
		}

		for i, k := range snap.Kinds {
			src, js, err := encodeValue(k.Default)
			if err != nil {
				return fmt.Errorf("kind %s: %w", k.Name, err)
			}
			if err := exec(
				`INSERT INTO fieldmeta_kinds (export_id, ordinal, name, default_value, default_json) VALUES (?, ?, ?, ?, ?)`,
				id, i, k.Name, src, js,
			); err != nil {
				return fmt.Errorf("failed to export kind %s: %w", k.Name, err)
			}

			for j, td := range k.TypeDefaults {
				src, js, err := encodeValue(td.Value)
				if err != nil {
					return fmt.Errorf("%s(%s, _): %w", k.Name, td.Type, err)
				}
				if err := exec(
					`INSERT INTO fieldmeta_type_defaults (export_id, ordinal, kind, type_name, value, value_json) VALUES (?, ?, ?, ?, ?, ?)`,
					id, j, k.Name, td.Type, src, js,
				); err != nil {
					return fmt.Errorf("failed to export %s(%s, _): %w", k.Name, td.Type, err)
				}
			}

			for j, e := range k.Entries {
				src, js, err := encodeValue(e.Value)
				if err != nil {
					return fmt.Errorf("%s(%s, %s): %w", k.Name, e.Type, e.Field, err)
				}
				if err := exec(
					`INSERT INTO fieldmeta_entries (export_id, ordinal, kind, type_name, field, value, value_json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
					id, j, k.Name, e.Type, e.Field, src, js,
				); err != nil {
					return fmt.Errorf("failed to export %s(%s, %s): %w", k.Name, e.Type, e.Field, err)
				}
			}
		}

		for _, rec := range snap.Records {
			for i, field := range rec.Fields {
				if err := exec(
					`INSERT INTO fieldmeta_fields (export_id, record, ordinal, field) VALUES (?, ?, ?, ?)`,
					id, rec.Name, i, field,
				); err != nil {
					return fmt.Errorf("failed to export fields of %s: %w", rec.Name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		if isMissingTable(err) {
			return "", fmt.Errorf("%w: %v", ErrNoCatalog, err)
		}
		return "", err
	}

	c.logger.Info("exported metadata",
		zap.String("export_id", id),
		zap.Int("kinds", len(snap.Kinds)),
		zap.Int("records", len(snap.Records)),
		zap.Int("rows", rows),
	)
	return id, nil
}

// Exports lists the stored exports, newest first
func (c *Catalog) Exports(ctx context.Context) ([]Export, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT export_id, version, source_hash, exported_at FROM fieldmeta_exports ORDER BY exported_at DESC, export_id`)
	if err != nil {
		if isMissingTable(err) {
			return nil, ErrNoCatalog
		}
		return nil, fmt.Errorf("failed to query exports: %w", err)
	}
	defer rows.Close()

	var exports []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.Version, &e.SourceHash, &e.ExportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan export: %w", err)
		}
		exports = append(exports, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return exports, nil
}

// Load reads an export back into a snapshot
func (c *Catalog) Load(ctx context.Context, exportID string) (*metadata.Snapshot, error) {
	snap := &metadata.Snapshot{}
	err := c.db.QueryRowContext(ctx,
		c.dialect.Rebind(`SELECT version, source_hash FROM fieldmeta_exports WHERE export_id = ?`), exportID,
	).Scan(&snap.Version, &snap.SourceHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, exportID)
	case err != nil:
		if isMissingTable(err) {
			return nil, ErrNoCatalog
		}
		return nil, fmt.Errorf("failed to load export: %w", err)
	}

	kinds := map[string]int{}
	err = c.query(ctx, `SELECT name, default_value FROM fieldmeta_kinds WHERE export_id = ? ORDER BY ordinal`, exportID,
		func(rows *sql.Rows) error {
			var name, src string
			if err := rows.Scan(&name, &src); err != nil {
				return err
			}
			def, err := decodeValue(src)
			if err != nil {
				return fmt.Errorf("default of %s: %w", name, err)
			}
			kinds[name] = len(snap.Kinds)
			snap.Kinds = append(snap.Kinds, metadata.KindSnapshot{Name: name, Default: def})
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = c.query(ctx, `SELECT kind, type_name, value FROM fieldmeta_type_defaults WHERE export_id = ? ORDER BY kind, ordinal`, exportID,
		func(rows *sql.Rows) error {
			var kind, typ, src string
			if err := rows.Scan(&kind, &typ, &src); err != nil {
				return err
			}
			v, err := decodeValue(src)
			if err != nil {
				return fmt.Errorf("%s(%s, _): %w", kind, typ, err)
			}
			i, ok := kinds[kind]
			if !ok {
				return fmt.Errorf("type default for unknown kind %s", kind)
			}
			snap.Kinds[i].TypeDefaults = append(snap.Kinds[i].TypeDefaults, metadata.TypeDefaultSnapshot{Type: typ, Value: v})
			return nil
		})
	if err != nil {
		return nil, err
	}

	err = c.query(ctx, `SELECT kind, type_name, field, value FROM fieldmeta_entries WHERE export_id = ? ORDER BY kind, ordinal`, exportID,
		func(rows *sql.Rows) error {
			var kind, typ, field, src string
			if err := rows.Scan(&kind, &typ, &field, &src); err != nil {
				return err
			}
			v, err := decodeValue(src)
			if err != nil {
				return fmt.Errorf("%s(%s, %s): %w", kind, typ, field, err)
			}
			i, ok := kinds[kind]
			if !ok {
				return fmt.Errorf("entry for unknown kind %s", kind)
			}
			snap.Kinds[i].Entries = append(snap.Kinds[i].Entries, metadata.EntrySnapshot{Type: typ, Field: field, Value: v})
			return nil
		})
	if err != nil {
		return nil, err
	}

	records := map[string]int{}
	err = c.query(ctx, `SELECT record, field FROM fieldmeta_fields WHERE export_id = ? ORDER BY record, ordinal`, exportID,
		func(rows *sql.Rows) error {
			var record, field string
			if err := rows.Scan(&record, &field); err != nil {
				return err
			}
			i, ok := records[record]
			if !ok {
				i = len(snap.Records)
				records[record] = i
				snap.Records = append(snap.Records, metadata.RecordSnapshot{Name: record})
			}
			snap.Records[i].Fields = append(snap.Records[i].Fields, field)
			return nil
		})
	if err != nil {
		return nil, err
	}

	for i := range snap.Kinds {
		if snap.Kinds[i].TypeDefaults == nil {
			snap.Kinds[i].TypeDefaults = []metadata.TypeDefaultSnapshot{}
		}
		if snap.Kinds[i].Entries == nil {
			snap.Kinds[i].Entries = []metadata.EntrySnapshot{}
		}
	}
	if snap.Kinds == nil {
		snap.Kinds = []metadata.KindSnapshot{}
	}
	if snap.Records == nil {
		snap.Records = []metadata.RecordSnapshot{}
	}
	return snap, nil
}

// query runs a single-argument query and hands every row to scan
func (c *Catalog) query(ctx context.Context, query, arg string, scan func(*sql.Rows) error) error {
	rows, err := c.db.QueryContext(ctx, c.dialect.Rebind(query), arg)
	if err != nil {
		return fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to read catalog row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return nil
}

// withTransaction runs fn in a transaction, committing on success and rolling
// back on error or panic
func (c *Catalog) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// encodeValue renders a value as source text, which Load parses back, and as
// JSON for readers outside Go
func encodeValue(v metadata.Value) (string, string, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode value: %w", err)
	}
	return metadata.FormatValue(v), string(js), nil
}

func decodeValue(src string) (metadata.Value, error) {
	expr, errs := parser.ParseExpr(src)
	if errs.HasErrors() {
		return nil, errs
	}
	return annotate.ToValue(expr)
}
