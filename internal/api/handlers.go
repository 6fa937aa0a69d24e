package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/sim"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/util"
)

var _ BacktestServer = (*Handler)(nil)

// Handler implements BacktestServer on top of a simulation service.
type Handler struct {
	sim     *sim.Service
	presets store.PresetStore
	log     *slog.Logger
}

// NewHandler creates a Handler. presets may be nil, in which case requests
// naming a preset fail with InvalidArgument.
func NewHandler(svc *sim.Service, presets store.PresetStore) *Handler {
	return &Handler{
		sim:     svc,
		presets: presets,
		log:     slog.Default().With("component", "grpc"),
	}
}

// Run decodes a simulation request, runs it and returns the report.
//
// Request fields: ticker, strategy, start, end (YYYY-MM-DD), params (object
// of numbers), preset, initial_capital, position_size, commission_rate,
// include_equity.
func (h *Handler) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, withEquity, err := h.decodeRun(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}

	rep, err := h.sim.Run(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(rep.Fields(withEquity))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding report: %v", err)
	}
	return out, nil
}

// ListStrategies returns the available strategies and their parameters.
func (h *Handler) ListStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	defs := h.sim.Strategies()
	list := make([]any, 0, len(defs))
	for _, d := range defs {
		params := make([]any, 0, len(d.Params))
		for _, p := range d.Params {
			params = append(params, map[string]any{
				"name":    p.Name,
				"default": p.Default,
				"min":     p.Min,
				"max":     p.Max,
				"integer": p.Integer,
			})
		}
		list = append(list, map[string]any{
			"kind":        string(d.Kind),
			"name":        d.Name,
			"description": d.Description,
			"params":      params,
		})
	}

	out, err := structpb.NewStruct(map[string]any{"strategies": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding strategies: %v", err)
	}
	return out, nil
}

func (h *Handler) decodeRun(ctx context.Context, in *structpb.Struct) (sim.Request, bool, error) {
	var req sim.Request
	f := in.GetFields()

	req.Ticker = f["ticker"].GetStringValue()
	if s := f["strategy"].GetStringValue(); s != "" {
		kind, err := strategy.ParseKind(s)
		if err != nil {
			return req, false, err
		}
		req.Strategy = kind
	}

	var err error
	if req.Start, err = parseDateField(f, "start"); err != nil {
		return req, false, err
	}
	if req.End, err = parseDateField(f, "end"); err != nil {
		return req, false, err
	}

	if ps := f["params"].GetStructValue(); ps != nil {
		req.Params = make(strategy.Params, len(ps.GetFields()))
		for k, v := range ps.GetFields() {
			n, ok := v.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return req, false, fmt.Errorf("%w: param %q must be a number", domain.ErrConfiguration, k)
			}
			req.Params[k] = n.NumberValue
		}
	}

	if name := f["preset"].GetStringValue(); name != "" {
		if h.presets == nil {
			return req, false, fmt.Errorf("%w: presets are not available", domain.ErrConfiguration)
		}
		p, err := h.presets.GetPreset(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			return req, false, fmt.Errorf("%w: preset %q not found", domain.ErrConfiguration, name)
		}
		if err != nil {
			return req, false, err
		}
		if req, err = req.WithPreset(p); err != nil {
			return req, false, err
		}
	}

	// Engine fields that are not given keep the service defaults.
	_, hasCap := f["initial_capital"]
	_, hasSize := f["position_size"]
	_, hasComm := f["commission_rate"]
	if hasCap || hasSize || hasComm {
		cfg := h.sim.Defaults()
		if hasCap {
			cfg.InitialCapital = f["initial_capital"].GetNumberValue()
		}
		if hasSize {
			cfg.PositionSize = f["position_size"].GetNumberValue()
		}
		if hasComm {
			cfg.CommissionRate = f["commission_rate"].GetNumberValue()
		}
		if cfg == (backtest.Config{}) {
			return req, false, fmt.Errorf("%w: engine configuration is all zero", domain.ErrConfiguration)
		}
		req.Config = cfg
	}

	return req, f["include_equity"].GetBoolValue(), nil
}

func parseDateField(f map[string]*structpb.Value, name string) (time.Time, error) {
	s := f[name].GetStringValue()
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %s date is required", domain.ErrConfiguration, name)
	}
	t, err := util.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s date %q: %v", domain.ErrConfiguration, name, s, err)
	}
	return t, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrDataUnavailable):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrData):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
