package sim

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// WithPreset returns req with its strategy and parameters taken from p.
// Parameters already present on req override the preset's.
func (r Request) WithPreset(p store.Preset) (Request, error) {
	kind, err := strategy.ParseKind(p.Strategy)
	if err != nil {
		return r, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	if r.Strategy != "" && r.Strategy != kind {
		return r, fmt.Errorf("%w: preset %q is for %s, request asks for %s", domain.ErrConfiguration, p.Name, kind, r.Strategy)
	}

	params := make(strategy.Params, len(p.Params)+len(r.Params))
	for k, v := range p.Params {
		params[k] = v
	}
	for k, v := range r.Params {
		params[k] = v
	}
	r.Strategy = kind
	r.Params = params
	return r, nil
}
