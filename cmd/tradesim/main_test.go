package main

import (
	"errors"
	"testing"
	"time"

	"tradesim/internal/domain"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"short_window=10", " long_window = 50 "})
	if err != nil {
		t.Fatalf("parseParams: %v", err)
	}
	if got["short_window"] != 10 || got["long_window"] != 50 {
		t.Errorf("parseParams = %v", got)
	}

	if got, err := parseParams(nil); err != nil || got != nil {
		t.Errorf("parseParams(nil) = %v, %v", got, err)
	}

	for _, bad := range []string{"short_window", "=3", "period=abc"} {
		if _, err := parseParams([]string{bad}); !errors.Is(err, domain.ErrConfiguration) {
			t.Errorf("parseParams(%q) error = %v, want ErrConfiguration", bad, err)
		}
	}
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)

	start, end, err := parseRange("", "", now)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}
	if want := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}

	start, end, err = parseRange("2020-01-01", "2020-12-31", now)
	if err != nil {
		t.Fatalf("parseRange: %v", err)
	}
	if start.Year() != 2020 || end.Month() != time.December {
		t.Errorf("parseRange = %v, %v", start, end)
	}

	if _, _, err := parseRange("2021-01-01", "2020-01-01", now); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("reversed range error = %v, want ErrConfiguration", err)
	}
	if _, _, err := parseRange("01/02/2020", "", now); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("bad date error = %v, want ErrConfiguration", err)
	}
}
