// Package strategy defines the Strategy interface for signal providers and
// provides a Registry describing the available implementations and their
// parameters.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tradesim/internal/domain"
)

// Kind identifies a strategy implementation.
type Kind string

const (
	KindSMACrossover Kind = "sma_crossover"
	KindRSI          Kind = "rsi"
	KindMACD         Kind = "macd"
	KindBollinger    Kind = "bollinger"
)

// Kinds lists every supported Kind in display order.
func Kinds() []Kind {
	return []Kind{KindSMACrossover, KindRSI, KindMACD, KindBollinger}
}

var displayNames = map[Kind]string{
	KindSMACrossover: "SMA Crossover",
	KindRSI:          "RSI Strategy",
	KindMACD:         "MACD Strategy",
	KindBollinger:    "Bollinger Bands",
}

// DisplayName returns the human-readable strategy name.
func (k Kind) DisplayName() string {
	if n, ok := displayNames[k]; ok {
		return n
	}
	return string(k)
}

// ParseKind accepts either the identifier ("sma_crossover") or the display
// name ("SMA Crossover"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, k := range Kinds() {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, displayNames[k]) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown strategy %q", domain.ErrConfiguration, s)
}

// Strategy turns a price table into one signal per bar.
type Strategy interface {
	// Kind returns the implementation identifier.
	Kind() Kind

	// GenerateSignals returns a series with exactly one element per bar of
	// table. It never modifies table.
	GenerateSignals(table *domain.PriceTable) (domain.SignalSeries, error)
}

// Params are named numeric strategy parameters.
type Params map[string]float64

// ParamSpec describes one accepted parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Integer bool    `json:"integer"`
}

// Resolve validates p against specs and fills in defaults. Unknown keys,
// non-finite or out-of-range values, and fractional values for integer
// parameters are configuration errors.
func (p Params) Resolve(specs []ParamSpec) (Params, error) {
	known := make(map[string]ParamSpec, len(specs))
	out := make(Params, len(specs))
	for _, s := range specs {
		known[s.Name] = s
		out[s.Name] = s.Default
	}
	for name, v := range p {
		s, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", domain.ErrConfiguration, name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < s.Min || v > s.Max {
			return nil, fmt.Errorf("%w: %s must be in [%g, %g], got %g", domain.ErrConfiguration, name, s.Min, s.Max, v)
		}
		if s.Integer && v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %s must be an integer, got %g", domain.ErrConfiguration, name, v)
		}
		out[name] = v
	}
	return out, nil
}

// Int returns the named parameter truncated to int.
func (p Params) Int(name string) int { return int(p[name]) }

// Factory builds a Strategy from resolved parameters.
type Factory func(Params) (Strategy, error)

// Definition describes a registered strategy.
type Definition struct {
	Kind        Kind        `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
	factory     Factory
}

// Registry holds the strategy definitions for lookup, construction and
// enumeration.
type Registry struct {
	defs map[Kind]Definition
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[Kind]Definition),
	}
}

// Register adds a definition, replacing any previous one for the same Kind.
func (r *Registry) Register(def Definition, f Factory) {
	if def.Name == "" {
		def.Name = def.Kind.DisplayName()
	}
	def.factory = f
	r.defs[def.Kind] = def
}

// Get retrieves a definition by kind. The second return value indicates
// whether the kind was found.
func (r *Registry) Get(kind Kind) (Definition, bool) {
	d, ok := r.defs[kind]
	return d, ok
}

// New resolves params against the definition for kind and builds the
// strategy.
func (r *Registry) New(kind Kind, params Params) (Strategy, error) {
	def, ok := r.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: strategy %q is not registered", domain.ErrConfiguration, kind)
	}
	resolved, err := params.Resolve(def.Params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return def.factory(resolved)
}

// List returns all registered definitions sorted by kind.
func (r *Registry) List() []Definition {
	defs := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Kind < defs[j].Kind })
	return defs
}
