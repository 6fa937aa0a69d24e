package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ PresetStore = (*SQLiteStore)(nil)
var _ CoverageStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS presets (
	name       TEXT PRIMARY KEY,
	strategy   TEXT NOT NULL,
	params     TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS coverage (
	symbol   TEXT NOT NULL,
	start_ms INTEGER NOT NULL,
	end_ms   INTEGER NOT NULL,
	PRIMARY KEY (symbol, start_ms, end_ms)
);
`

// SQLiteStore implements PresetStore and CoverageStore backed by a SQLite
// database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Serialize writers; SQLite allows only one at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// PresetStore implementation
// ---------------------------------------------------------------------------

// SavePreset inserts or replaces a preset. A zero UpdatedAt is set to now.
func (s *SQLiteStore) SavePreset(ctx context.Context, p Preset) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return errors.New("preset name is required")
	}
	if p.Params == nil {
		p.Params = map[string]float64{}
	}
	params, err := json.Marshal(p.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO presets (name, strategy, params, updated_at) VALUES (?, ?, ?, ?)`,
		name, p.Strategy, string(params), p.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving preset %q: %w", name, err)
	}
	return nil
}

// GetPreset retrieves a single preset by name.
func (s *SQLiteStore) GetPreset(ctx context.Context, name string) (Preset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, strategy, params, updated_at FROM presets WHERE name = ?`, name)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	return p, err
}

// ListPresets returns all presets ordered by name.
func (s *SQLiteStore) ListPresets(ctx context.Context) ([]Preset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, strategy, params, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePreset removes the preset with the given name.
func (s *SQLiteStore) DeletePreset(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM presets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(sc scanner) (Preset, error) {
	var (
		p       Preset
		params  string
		updated int64
	)
	if err := sc.Scan(&p.Name, &p.Strategy, &params, &updated); err != nil {
		return Preset{}, err
	}
	if err := json.Unmarshal([]byte(params), &p.Params); err != nil {
		return Preset{}, fmt.Errorf("decoding params of preset %q: %w", p.Name, err)
	}
	p.UpdatedAt = time.UnixMilli(updated).UTC()
	return p, nil
}

// ---------------------------------------------------------------------------
// CoverageStore implementation
// ---------------------------------------------------------------------------

// RecordCoverage marks [start, end] as fetched for symbol.
func (s *SQLiteStore) RecordCoverage(ctx context.Context, symbol string, start, end time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO coverage (symbol, start_ms, end_ms) VALUES (?, ?, ?)`,
		strings.ToUpper(symbol), start.UnixMilli(), end.UnixMilli())
	return err
}

// Covered reports whether a recorded range for symbol contains [start, end].
func (s *SQLiteStore) Covered(ctx context.Context, symbol string, start, end time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coverage WHERE symbol = ? AND start_ms <= ? AND end_ms >= ?`,
		strings.ToUpper(symbol), start.UnixMilli(), end.UnixMilli()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
