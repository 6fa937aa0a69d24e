package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/config"
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
	"tradesim/pkg/tradesim"
)

var batchFlags struct {
	tickers    []string
	strategies []string
	start, end string
	format     string
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Backtest every strategy on every ticker with default parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, end, err := parseRange(batchFlags.start, batchFlags.end, time.Now())
		if err != nil {
			return err
		}
		kinds := strategy.Kinds()
		if len(batchFlags.strategies) > 0 {
			kinds = kinds[:0:0]
			for _, s := range batchFlags.strategies {
				k, err := strategy.ParseKind(s)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}
		}
		tickers := batchFlags.tickers
		if len(tickers) == 0 {
			tickers = config.DefaultTickers
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		items := a.Sim.RunBatch(ctx, sim.Grid(tickers, kinds, start, end, nil, a.Sim.Defaults()))
		out := cmd.OutOrStdout()

		if batchFlags.format == "json" {
			results := make([]*tradesim.RunResult, 0, len(items))
			for _, it := range items {
				if it.Err != nil {
					logger.Warn("run failed", "ticker", it.Request.Ticker, "strategy", it.Request.Strategy, "err", it.Err)
					continue
				}
				res, err := toResult(it.Report, false)
				if err != nil {
					return err
				}
				results = append(results, res)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKER\tSTRATEGY\tRETURN\tCAGR\tSHARPE\tMAX DD\tTRADES\tWIN RATE\tERROR")
		failed := 0
		for _, it := range items {
			if it.Err != nil {
				failed++
				fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t\t\t%s\n", strings.ToUpper(it.Request.Ticker), it.Request.Strategy, it.Err)
				continue
			}
			p := it.Report.Performance
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t\n",
				it.Report.Request.Ticker, it.Report.Request.Strategy,
				pct(tradesim.Float(p.TotalReturn)), pct(tradesim.Float(p.CAGR)),
				ratio(tradesim.Float(p.SharpeRatio)), pct(tradesim.Float(p.MaxDrawdown)),
				p.TotalTrades, pct(tradesim.Float(p.WinRate)))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if failed == len(items) && failed > 0 {
			return fmt.Errorf("all %d runs failed", failed)
		}
		return nil
	},
}

func init() {
	f := batchCmd.Flags()
	f.StringSliceVar(&batchFlags.tickers, "tickers", nil, "Comma-separated tickers (default "+strings.Join(config.DefaultTickers, ",")+")")
	f.StringSliceVar(&batchFlags.strategies, "strategies", nil, "Comma-separated strategy kinds (default all)")
	f.StringVar(&batchFlags.start, "start", "", "Start date YYYY-MM-DD (default one year before --end)")
	f.StringVar(&batchFlags.end, "end", "", "End date YYYY-MM-DD (default today)")
	f.StringVarP(&batchFlags.format, "format", "f", "table", "Output format: table, json")
	rootCmd.AddCommand(batchCmd)
}
