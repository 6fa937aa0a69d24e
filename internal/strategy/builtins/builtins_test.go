package builtins

import (
	"errors"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

func table(t *testing.T, closes ...float64) *domain.PriceTable {
	t.Helper()
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	tbl, err := domain.NewPriceTable("TEST", bars)
	if err != nil {
		t.Fatalf("NewPriceTable: %v", err)
	}
	return tbl
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func only(sigs domain.SignalSeries) map[int]domain.Signal {
	m := make(map[int]domain.Signal)
	for i, s := range sigs {
		if s != domain.SignalNone {
			m[i] = s
		}
	}
	return m
}

func TestNewDefaultsForEveryKind(t *testing.T) {
	tbl := table(t, repeat(100, 60)...)
	for _, kind := range strategy.Kinds() {
		s, err := New(kind, nil)
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", kind, err)
		}
		if s.Kind() != kind {
			t.Errorf("New(%s).Kind() = %s", kind, s.Kind())
		}
		sigs, err := s.GenerateSignals(tbl)
		if err != nil {
			t.Fatalf("%s GenerateSignals: %v", kind, err)
		}
		if len(sigs) != tbl.Len() {
			t.Errorf("%s produced %d signals for %d bars", kind, len(sigs), tbl.Len())
		}
		if n := len(only(sigs)); n != 0 {
			t.Errorf("%s produced %d signals on a flat series", kind, n)
		}
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	cases := []struct {
		kind   strategy.Kind
		params strategy.Params
	}{
		{strategy.KindSMACrossover, strategy.Params{"short_window": 0}},
		{strategy.KindSMACrossover, strategy.Params{"short_window": 50, "long_window": 20}},
		{strategy.KindSMACrossover, strategy.Params{"fast": 3}},
		{strategy.KindRSI, strategy.Params{"overbought": 49}},
		{strategy.KindMACD, strategy.Params{"fast_period": 30, "slow_period": 26}},
		{strategy.KindBollinger, strategy.Params{"window": 4}},
		{strategy.KindBollinger, strategy.Params{"num_std": 5}},
		{strategy.Kind("momentum"), nil},
	}
	for _, tc := range cases {
		if _, err := New(tc.kind, tc.params); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("New(%s, %v) error = %v, want ErrConfiguration", tc.kind, tc.params, err)
		}
	}
}

func TestSMACrossSignals(t *testing.T) {
	s, err := NewSMACross(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	// Falling then rising: short SMA crosses above long SMA once.
	closes := concat(repeat(10, 4), []float64{9, 8, 7, 8, 10, 12, 14})
	sigs, err := s.GenerateSignals(table(t, closes...))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		if sigs[i] != domain.SignalNone {
			t.Errorf("signal during warm-up at %d: %v", i, sigs[i])
		}
	}
	got := only(sigs)
	// bar 4: short 9.5 < long 9.75 while bar 3 had them equal -> sell.
	// bar 8: short 9 > long 8.25 after short 7.5 <= long 8 -> buy.
	want := map[int]domain.Signal{4: domain.SignalSell, 8: domain.SignalBuy}
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("signal[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestRSISignals(t *testing.T) {
	s, err := NewRSI(2, 70, 30)
	if err != nil {
		t.Fatal(err)
	}
	// Mixed, then a sharp drop, then a sharp rise.
	closes := []float64{10, 11, 10, 11, 8, 6, 9, 12}
	sigs, err := s.GenerateSignals(table(t, closes...))
	if err != nil {
		t.Fatal(err)
	}
	got := only(sigs)
	// RSI: [NaN, 100, 50, 50, 25, 0, 60, 100]
	want := map[int]domain.Signal{4: domain.SignalBuy, 7: domain.SignalSell}
	if len(got) != len(want) {
		t.Fatalf("signals = %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("signal[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestMACDSignals(t *testing.T) {
	s, err := NewMACD(2, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	closes := concat(repeat(10, 5), []float64{12, 14, 16, 14, 11, 8, 6})
	tbl := table(t, closes...)
	sigs, err := s.GenerateSignals(tbl)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if sigs[i] != domain.SignalNone {
			t.Errorf("signal during warm-up at %d: %v", i, sigs[i])
		}
	}

	macd, signal := s.Lines(tbl.Closes())
	var buys, sells int
	for i, sig := range sigs {
		switch sig {
		case domain.SignalBuy:
			buys++
			if !(macd[i] > signal[i]) {
				t.Errorf("buy at %d without macd above signal", i)
			}
		case domain.SignalSell:
			sells++
			if !(macd[i] < signal[i]) {
				t.Errorf("sell at %d without macd below signal", i)
			}
		}
	}
	if buys != 1 || sells != 1 {
		t.Errorf("got %d buys and %d sells, want 1 and 1: %v", buys, sells, only(sigs))
	}
	if sigs[5] != domain.SignalBuy {
		t.Errorf("signal[5] = %v, want buy on the first up move", sigs[5])
	}
}

func TestBollingerSignals(t *testing.T) {
	s, err := NewBollinger(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	closes := []float64{10, 11, 10, 11, 10, 11, 5, 10, 11, 10, 11, 10, 20}
	tbl := table(t, closes...)
	sigs, err := s.GenerateSignals(tbl)
	if err != nil {
		t.Fatal(err)
	}
	got := only(sigs)
	if got[6] != domain.SignalBuy {
		t.Errorf("signal[6] = %v, want buy on the drop", got[6])
	}
	if got[12] != domain.SignalSell {
		t.Errorf("signal[12] = %v, want sell on the spike", got[12])
	}
	for i := 0; i < 5; i++ {
		if sigs[i] != domain.SignalNone {
			t.Errorf("signal during warm-up at %d", i)
		}
	}
}

func TestGenerateSignalsEmptyTable(t *testing.T) {
	s, _ := New(strategy.KindRSI, nil)
	if _, err := s.GenerateSignals(nil); !errors.Is(err, domain.ErrData) {
		t.Errorf("error = %v, want ErrData", err)
	}
}

func TestRegistryListsBuiltins(t *testing.T) {
	defs := Registry().List()
	if len(defs) != 4 {
		t.Fatalf("List returned %d definitions, want 4", len(defs))
	}
	for _, d := range defs {
		if len(d.Params) == 0 || d.Description == "" {
			t.Errorf("definition %s is incomplete", d.Kind)
		}
	}
}
