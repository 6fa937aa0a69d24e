package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/sim"
	"tradesim/pkg/tradesim"
)

// toResult converts a local report to the same shape the gRPC API returns,
// so both paths share one renderer.
func toResult(rep *sim.Report, withEquity bool) (*tradesim.RunResult, error) {
	b, err := json.Marshal(rep.Fields(withEquity))
	if err != nil {
		return nil, err
	}
	var res tradesim.RunResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// tradeRows rebuilds backtest rows from an API result for CSV export.
func tradeRows(res *tradesim.RunResult) []backtest.TradeRow {
	rows := make([]backtest.TradeRow, 0, len(res.Trades))
	for _, t := range res.Trades {
		entry, _ := time.Parse(time.DateOnly, t.EntryDate)
		exit, _ := time.Parse(time.DateOnly, t.ExitDate)
		rows = append(rows, backtest.TradeRow{
			EntryDate:  entry,
			EntryPrice: t.EntryPrice,
			ExitDate:   exit,
			ExitPrice:  t.ExitPrice,
			Side:       domain.Side(t.Side),
			Size:       t.Size,
			PnL:        float64(t.PnL),
			PnLPct:     float64(t.PnLPct),
			Status:     t.Status,
			Duration:   time.Duration(t.DurationDays) * 24 * time.Hour,
		})
	}
	return rows
}

func render(w io.Writer, format string, res *tradesim.RunResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "csv":
		return backtest.WriteCSV(w, tradeRows(res))
	case "table", "":
		return renderTable(w, res)
	default:
		return fmt.Errorf("unknown format %q (want table, json or csv)", format)
	}
}

func pct(f tradesim.Float) string   { return num(f, "%.2f%%") }
func ratio(f tradesim.Float) string { return num(f, "%.3f") }

func num(f tradesim.Float, layout string) string {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "n/a"
	}
	return fmt.Sprintf(layout, v)
}

func renderTable(w io.Writer, res *tradesim.RunResult) error {
	fmt.Fprintf(w, "%s  %s  %s to %s  (%d bars)\n", res.Ticker, res.Strategy, res.Start, res.End, res.Bars)
	if len(res.Params) > 0 {
		params := make(map[string]float64, len(res.Params))
		for k, v := range res.Params {
			params[k] = float64(v)
		}
		fmt.Fprintf(w, "params: %s\n", formatParams(params))
	}
	fmt.Fprintln(w)

	p, s := res.Performance, res.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Final equity\t%.2f\n", float64(res.FinalEquity))
	fmt.Fprintf(tw, "Total return\t%s\n", pct(p.TotalReturn))
	fmt.Fprintf(tw, "CAGR\t%s\n", pct(p.CAGR))
	fmt.Fprintf(tw, "Sharpe\t%s\n", ratio(p.SharpeRatio))
	fmt.Fprintf(tw, "Sortino\t%s\n", ratio(p.SortinoRatio))
	fmt.Fprintf(tw, "Max drawdown\t%s\n", pct(p.MaxDrawdown))
	fmt.Fprintf(tw, "Calmar\t%s\n", ratio(p.CalmarRatio))
	fmt.Fprintf(tw, "Recovery factor\t%s\n", ratio(p.RecoveryFactor))
	fmt.Fprintf(tw, "Trades\t%d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(tw, "Win rate\t%s\n", pct(p.WinRate))
	fmt.Fprintf(tw, "Profit factor\t%s\n", ratio(p.ProfitFactor))
	fmt.Fprintf(tw, "Average trade\t%.2f\n", float64(p.AverageTrade))
	fmt.Fprintf(tw, "Fees\t%.2f\n", float64(s.TotalFees))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Trades) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ENTRY\tEXIT\tSIDE\tSIZE\tENTRY PX\tEXIT PX\tPNL\tPNL %\tDAYS\tSTATUS\t")
	for _, t := range res.Trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.2f\t%.2f\t%.2f\t%s\t%d\t%s\t\n",
			t.EntryDate, t.ExitDate, t.Side, t.Size, t.EntryPrice, t.ExitPrice,
			float64(t.PnL), pct(t.PnLPct), t.DurationDays, t.Status)
	}
	return tw.Flush()
}
