// Package store defines storage interfaces for cached daily bars, fetch
// coverage and named strategy presets.
package store

import (
	"context"
	"errors"
	"time"

	"tradesim/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage, replacing bars with the
	// same symbol and timestamp.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end], sorted
	// by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// CoverageStore records which date ranges have been fetched per symbol, so a
// range with no trading days is not refetched.
type CoverageStore interface {
	// RecordCoverage marks [start, end] as fetched for symbol.
	RecordCoverage(ctx context.Context, symbol string, start, end time.Time) error

	// Covered reports whether a single recorded range contains [start, end].
	Covered(ctx context.Context, symbol string, start, end time.Time) (bool, error)
}

// Preset is a named strategy configuration.
type Preset struct {
	Name      string             `json:"name"`
	Strategy  string             `json:"strategy"`
	Params    map[string]float64 `json:"params"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// PresetStore persists named strategy presets.
type PresetStore interface {
	// SavePreset inserts or replaces the preset with p.Name.
	SavePreset(ctx context.Context, p Preset) error

	// GetPreset retrieves a preset by name, or ErrNotFound.
	GetPreset(ctx context.Context, name string) (Preset, error)

	// ListPresets returns all presets sorted by name.
	ListPresets(ctx context.Context) ([]Preset, error)

	// DeletePreset removes a preset, or returns ErrNotFound.
	DeletePreset(ctx context.Context, name string) error
}
