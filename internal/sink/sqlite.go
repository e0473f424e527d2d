package sink

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/floodclaims/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSink stores each table's rows as JSON objects in a SQLite database.
// Putting a table replaces the rows previously stored under its name.
type SQLiteSink struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteSink opens (creating if needed) the database at path and applies
// pending migrations
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newSQLiteSinkFromDB(db, path), nil
}

func newSQLiteSinkFromDB(db *sql.DB, path string) *SQLiteSink {
	return &SQLiteSink{db: db, path: path, now: time.Now}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Name returns the sqlite:// URL of the database
func (s *SQLiteSink) Name() string {
	return "sqlite://" + s.path
}

// Put replaces the stored rows of t in one transaction
func (s *SQLiteSink) Put(ctx context.Context, runID string, t *model.Table, _ []byte) error {
	if err := s.put(ctx, runID, t); err != nil {
		return &model.WriteError{Table: t.Name, Path: s.Name(), Err: err}
	}
	return nil
}

func (s *SQLiteSink) put(ctx context.Context, runID string, t *model.Table) error {
	columns, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM mirrored_rows WHERE table_name = ?`, t.Name); err != nil {
		return fmt.Errorf("clear rows: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mirrored_tables (name, run_id, columns, key, row_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			run_id = excluded.run_id,
			columns = excluded.columns,
			key = excluded.key,
			row_count = excluded.row_count,
			updated_at = excluded.updated_at`,
		t.Name, runID, string(columns), strings.Join(t.Key, ","), t.Len(), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mirrored_rows (table_name, row_num, row_key, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range t.Rows {
		obj := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			if j < len(r) {
				obj[col] = r[j]
			}
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("marshal row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, t.Name, i, t.KeyOf(r), string(data)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rows returns the stored rows of a table as column/value maps, in row order
func (s *SQLiteSink) Rows(ctx context.Context, table string) ([]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM mirrored_rows WHERE table_name = ? ORDER BY row_num`, table)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []map[string]string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		obj := make(map[string]string)
		if err := json.Unmarshal([]byte(data), &obj); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
