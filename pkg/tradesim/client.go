// Package tradesim is a Go client for the tradesim Backtest gRPC service.
package tradesim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	runMethod            = "/tradesim.v1.Backtest/Run"
	listStrategiesMethod = "/tradesim.v1.Backtest/ListStrategies"
)

// Client calls a tradesim server. Errors are gRPC status errors; use
// status.Code to inspect them.
type Client struct {
	conn  *grpc.ClientConn
	owned bool
}

// Dial connects to addr. Without options the connection is insecure.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, owned: true}, nil
}

// NewClient wraps an existing connection. Close does not close it.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close releases the connection if the client created it.
func (c *Client) Close() error {
	if c.owned {
		return c.conn.Close()
	}
	return nil
}

// RunRequest describes a simulation. Nil engine fields keep the server
// defaults.
type RunRequest struct {
	Ticker         string
	Strategy       string
	Start, End     time.Time
	Params         map[string]float64
	Preset         string
	InitialCapital *float64
	PositionSize   *float64
	CommissionRate *float64
	IncludeEquity  bool
}

// Float is a float64 that also decodes "inf", "-inf" and "nan", which the
// server sends for non-finite values.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = Float(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "inf":
		*f = Float(math.Inf(1))
	case "-inf":
		*f = Float(math.Inf(-1))
	case "nan":
		*f = Float(math.NaN())
	default:
		return fmt.Errorf("invalid number %q", s)
	}
	return nil
}

// Summary is the trade-log summary of a run.
type Summary struct {
	TotalTrades   int   `json:"total_trades"`
	WinningTrades int   `json:"winning_trades"`
	LosingTrades  int   `json:"losing_trades"`
	WinRate       Float `json:"win_rate"`
	AvgWin        Float `json:"avg_win"`
	AvgLoss       Float `json:"avg_loss"`
	ProfitFactor  Float `json:"profit_factor"`
	TotalReturn   Float `json:"total_return"`
	TotalFees     Float `json:"total_fees"`
}

// Performance holds the portfolio statistics of a run. Percentages are in
// percent.
type Performance struct {
	TotalReturn    Float `json:"total_return"`
	CAGR           Float `json:"cagr"`
	SharpeRatio    Float `json:"sharpe_ratio"`
	SortinoRatio   Float `json:"sortino_ratio"`
	MaxDrawdown    Float `json:"max_drawdown"`
	CalmarRatio    Float `json:"calmar_ratio"`
	RecoveryFactor Float `json:"recovery_factor"`
	WinRate        Float `json:"win_rate"`
	ProfitFactor   Float `json:"profit_factor"`
	AverageTrade   Float `json:"average_trade"`
	TotalTrades    int   `json:"total_trades"`
	Years          Float `json:"years"`
}

// Trade is one closed round trip.
type Trade struct {
	EntryDate    string  `json:"entry_date"`
	EntryPrice   float64 `json:"entry_price"`
	ExitDate     string  `json:"exit_date"`
	ExitPrice    float64 `json:"exit_price"`
	Side         string  `json:"side"`
	Size         float64 `json:"size"`
	PnL          Float   `json:"pnl"`
	PnLPct       Float   `json:"pnl_pct"`
	Status       string  `json:"status"`
	DurationDays int     `json:"duration_days"`
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Date   string `json:"date"`
	Equity Float  `json:"equity"`
}

// RunResult is the server's report for one simulation.
type RunResult struct {
	ID          string             `json:"id"`
	Ticker      string             `json:"ticker"`
	Strategy    string             `json:"strategy"`
	Params      map[string]Float   `json:"params"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	Bars        int                `json:"bars"`
	Config      map[string]float64 `json:"config"`
	Summary     Summary            `json:"summary"`
	Performance Performance        `json:"performance"`
	FinalCash   Float              `json:"final_cash"`
	FinalEquity Float              `json:"final_equity"`
	Trades      []Trade            `json:"trades"`
	Equity      []EquityPoint      `json:"equity,omitempty"`
}

// Run executes a simulation on the server.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	fields := map[string]any{
		"ticker":         req.Ticker,
		"start":          req.Start.Format(time.DateOnly),
		"end":            req.End.Format(time.DateOnly),
		"include_equity": req.IncludeEquity,
	}
	if req.Strategy != "" {
		fields["strategy"] = req.Strategy
	}
	if req.Preset != "" {
		fields["preset"] = req.Preset
	}
	if len(req.Params) > 0 {
		params := make(map[string]any, len(req.Params))
		for k, v := range req.Params {
			params[k] = v
		}
		fields["params"] = params
	}
	for name, v := range map[string]*float64{
		"initial_capital": req.InitialCapital,
		"position_size":   req.PositionSize,
		"commission_rate": req.CommissionRate,
	} {
		if v != nil {
			fields[name] = *v
		}
	}

	var out RunResult
	if err := c.invoke(ctx, runMethod, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParamSpec describes one strategy parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Integer bool    `json:"integer"`
}

// StrategyInfo describes a strategy offered by the server.
type StrategyInfo struct {
	Kind        string      `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// ListStrategies returns the strategies the server can run.
func (c *Client) ListStrategies(ctx context.Context) ([]StrategyInfo, error) {
	var out struct {
		Strategies []StrategyInfo `json:"strategies"`
	}
	if err := c.invoke(ctx, listStrategiesMethod, map[string]any{}, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// invoke sends fields as a Struct and decodes the Struct reply into out.
func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, out any) error {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	reply := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, reply); err != nil {
		return err
	}
	b, err := protojson.Marshal(reply)
	if err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	return nil
}
