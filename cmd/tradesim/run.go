package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/sim"
	"tradesim/internal/strategy"
	"tradesim/internal/util"
	"tradesim/pkg/tradesim"
)

var runFlags struct {
	ticker       string
	strategy     string
	start, end   string
	params       []string
	preset       string
	capital      float64
	positionSize float64
	commission   float64
	format       string
	output       string
	equity       bool
	server       string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Backtest one strategy on one ticker",
	Example: `  tradesim run --ticker AAPL --strategy sma_crossover --param short_window=10 --param long_window=50
  tradesim run --ticker MSFT --preset fast-rsi --format json
  tradesim run --ticker TSLA --strategy macd --server localhost:50051`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, end, err := parseRange(runFlags.start, runFlags.end, time.Now())
		if err != nil {
			return err
		}
		params, err := parseParams(runFlags.params)
		if err != nil {
			return err
		}

		out, closeOut, err := openOutput(cmd, runFlags.output)
		if err != nil {
			return err
		}
		defer closeOut()

		if runFlags.server != "" {
			return runRemote(cmd, out, start, end, params)
		}
		return runLocal(cmd, out, start, end, params)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.ticker, "ticker", "t", "", "Ticker symbol (required)")
	f.StringVarP(&runFlags.strategy, "strategy", "s", "", "Strategy kind: sma_crossover, rsi, macd, bollinger")
	f.StringVar(&runFlags.start, "start", "", "Start date YYYY-MM-DD (default one year before --end)")
	f.StringVar(&runFlags.end, "end", "", "End date YYYY-MM-DD (default today)")
	f.StringArrayVarP(&runFlags.params, "param", "p", nil, "Strategy parameter as name=value (repeatable)")
	f.StringVar(&runFlags.preset, "preset", "", "Load strategy and parameters from a saved preset")
	f.Float64Var(&runFlags.capital, "capital", 0, "Initial capital (default from config)")
	f.Float64Var(&runFlags.positionSize, "position-size", 0, "Fraction of cash committed per entry, in (0, 1]")
	f.Float64Var(&runFlags.commission, "commission", 0, "Commission rate per side, in [0, 1)")
	f.StringVarP(&runFlags.format, "format", "f", "table", "Output format: table, json, csv")
	f.StringVarP(&runFlags.output, "output", "o", "", "Write the report to a file instead of stdout")
	f.BoolVar(&runFlags.equity, "equity", false, "Include the equity curve in JSON output")
	f.StringVar(&runFlags.server, "server", "", "Run on a tradesim server at host:port instead of locally")
	_ = runCmd.MarkFlagRequired("ticker")
	rootCmd.AddCommand(runCmd)
}

func runLocal(cmd *cobra.Command, out io.Writer, start, end time.Time, params strategy.Params) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := sim.Request{
		Ticker: runFlags.ticker,
		Params: params,
		Start:  start,
		End:    end,
		Config: engineConfig(cmd, a.Sim.Defaults()),
	}
	if runFlags.strategy != "" {
		if req.Strategy, err = strategy.ParseKind(runFlags.strategy); err != nil {
			return err
		}
	}
	if runFlags.preset != "" {
		p, err := a.DB.GetPreset(ctx, runFlags.preset)
		if err != nil {
			return fmt.Errorf("loading preset %q: %w", runFlags.preset, err)
		}
		if req, err = req.WithPreset(p); err != nil {
			return err
		}
	}
	if req.Strategy == "" {
		return errors.New("--strategy or --preset is required")
	}

	rep, err := a.Sim.Run(ctx, req)
	if err != nil {
		return err
	}
	if runFlags.format == "csv" {
		return backtest.WriteCSV(out, rep.Result.Rows())
	}
	res, err := toResult(rep, runFlags.equity)
	if err != nil {
		return err
	}
	return render(out, runFlags.format, res)
}

func runRemote(cmd *cobra.Command, out io.Writer, start, end time.Time, params strategy.Params) error {
	client, err := tradesim.Dial(runFlags.server)
	if err != nil {
		return err
	}
	defer client.Close()

	req := tradesim.RunRequest{
		Ticker:        runFlags.ticker,
		Strategy:      runFlags.strategy,
		Start:         start,
		End:           end,
		Params:        params,
		Preset:        runFlags.preset,
		IncludeEquity: runFlags.equity,
	}
	if cmd.Flags().Changed("capital") {
		req.InitialCapital = &runFlags.capital
	}
	if cmd.Flags().Changed("position-size") {
		req.PositionSize = &runFlags.positionSize
	}
	if cmd.Flags().Changed("commission") {
		req.CommissionRate = &runFlags.commission
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	res, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	return render(out, runFlags.format, res)
}

// engineConfig overlays the flags the user set on the configured defaults.
func engineConfig(cmd *cobra.Command, defaults backtest.Config) backtest.Config {
	c := defaults
	if cmd.Flags().Changed("capital") {
		c.InitialCapital = runFlags.capital
	}
	if cmd.Flags().Changed("position-size") {
		c.PositionSize = runFlags.positionSize
	}
	if cmd.Flags().Changed("commission") {
		c.CommissionRate = runFlags.commission
	}
	return c
}

// parseParams parses name=value pairs.
func parseParams(pairs []string) (strategy.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(strategy.Params, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: parameter %q is not name=value", domain.ErrConfiguration, pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %s: %v", domain.ErrConfiguration, name, err)
		}
		params[name] = v
	}
	return params, nil
}

// parseRange resolves the --start/--end pair. A missing end is today and a
// missing start is one year before end.
func parseRange(startStr, endStr string, now time.Time) (start, end time.Time, err error) {
	end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if endStr != "" {
		if end, err = parseDate("end", endStr); err != nil {
			return
		}
	}
	start = end.AddDate(-1, 0, 0)
	if startStr != "" {
		if start, err = parseDate("start", startStr); err != nil {
			return
		}
	}
	if !start.Before(end) {
		err = fmt.Errorf("%w: start %s is not before end %s", domain.ErrConfiguration,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return
}

func parseDate(name, s string) (time.Time, error) {
	t, err := util.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s %q is not YYYY-MM-DD", domain.ErrConfiguration, name, s)
	}
	return t, nil
}

// openOutput returns the command's stdout, or the named file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
