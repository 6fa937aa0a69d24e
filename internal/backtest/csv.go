package backtest

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{
	"entry_date", "entry_price", "exit_date", "exit_price", "side", "size",
	"pnl", "pnl_pct", "status", "duration_days",
}

// WriteCSV writes the trade rows with a header line. Numbers are rounded to
// six decimal places.
func WriteCSV(w io.Writer, rows []TradeRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.EntryDate.Format("2006-01-02"),
			formatF(r.EntryPrice),
			r.ExitDate.Format("2006-01-02"),
			formatF(r.ExitPrice),
			string(r.Side),
			formatF(r.Size),
			formatF(r.PnL),
			formatF(r.PnLPct),
			r.Status,
			strconv.Itoa(int(r.Duration.Hours() / 24)),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f float64) string { return decimal.NewFromFloat(f).Round(6).String() }
