package domain

import "errors"

// Error taxonomy shared by every layer. Callers match with errors.Is; the
// returned errors wrap these sentinels with context.
var (
	// ErrConfiguration reports bad or mismatched inputs and parameters. It is
	// raised before any simulation state is created.
	ErrConfiguration = errors.New("configuration error")

	// ErrData reports an empty series or a non-finite / non-positive price.
	ErrData = errors.New("data error")

	// ErrDataUnavailable is returned by market-data providers when a ticker
	// and date range yield no usable rows.
	ErrDataUnavailable = errors.New("data unavailable")
)
