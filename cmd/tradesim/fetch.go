package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/config"
	"tradesim/internal/gather"
)

var fetchFlags struct {
	tickers []string
	start   string
	end     string
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download daily bars into the local store",
	Long: `fetch downloads daily bars from Alpaca for a ticker universe and writes them
to the Parquet store. It is resumable: a completed range is skipped and tickers
without data are not requested again until the range changes.

The end date defaults to the last finished trading session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		startStr := fetchFlags.start
		if startStr == "" {
			startStr = cfg.MarketData.StartDate
		}
		start, err := parseDate("start", startStr)
		if err != nil {
			return err
		}
		end := a.LatestTradingDay(time.Now())
		if fetchFlags.end != "" {
			if end, err = parseDate("end", fetchFlags.end); err != nil {
				return err
			}
		}

		tickers := fetchFlags.tickers
		if len(tickers) == 0 {
			tickers = config.DefaultTickers
		}
		p, err := a.Prefetcher(tickers, gather.DateRange{Start: start, End: end})
		if err != nil {
			return err
		}
		stats, err := p.Prefetch(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "%s to %s: %d tickers, %d with data, %d empty, %d failed, %d bars\n",
			start.Format(time.DateOnly), end.Format(time.DateOnly),
			stats.Tickers, stats.Hits, stats.Empty, stats.Failed, stats.Bars)
		return err
	},
}

func init() {
	f := fetchCmd.Flags()
	f.StringSliceVar(&fetchFlags.tickers, "tickers", nil, "Comma-separated tickers (default "+strings.Join(config.DefaultTickers, ",")+")")
	f.StringVar(&fetchFlags.start, "start", "", "Start date YYYY-MM-DD (default market_data.start_date)")
	f.StringVar(&fetchFlags.end, "end", "", "End date YYYY-MM-DD (default last finished trading day)")
	rootCmd.AddCommand(fetchCmd)
}
