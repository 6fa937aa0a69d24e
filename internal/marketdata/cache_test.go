package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"tradesim/internal/domain"
)

const janKey = "bars:AAPL:2024-01-01:2024-01-31"

func countingProvider(bars []domain.Bar, err error, calls *int) Provider {
	return ProviderFunc(func(_ context.Context, ticker string, _, _ time.Time) (*domain.PriceTable, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return domain.NewPriceTable(ticker, bars)
	})
}

func TestNewCachingProviderDefaults(t *testing.T) {
	tests := []struct {
		name          string
		ttl           time.Duration
		namespace     string
		wantTTL       time.Duration
		wantNamespace string
	}{
		{"zero values", 0, "", 24 * time.Hour, "bars"},
		{"negative ttl", -time.Minute, "", 24 * time.Hour, "bars"},
		{"custom", time.Hour, "daily", time.Hour, "daily"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCachingProvider(nil, tt.ttl, SourceProvider{}, tt.namespace, nil)
			if c.ttl != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", c.ttl, tt.wantTTL)
			}
			if c.namespace != tt.wantNamespace {
				t.Errorf("namespace = %q, want %q", c.namespace, tt.wantNamespace)
			}
		})
	}
}

func TestCachingProviderNilRedis(t *testing.T) {
	var calls int
	c := NewCachingProvider(nil, time.Hour, countingProvider(dailyBars("AAPL", day(2024, 1, 2), 10, 11), nil, &calls), "", nil)

	table, err := c.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if table.Len() != 2 || calls != 1 {
		t.Errorf("Len = %d, calls = %d; want 2, 1", table.Len(), calls)
	}
	if err := c.Invalidate(context.Background(), "AAPL"); err != nil {
		t.Errorf("Invalidate without redis: %v", err)
	}
}

func TestCachingProviderHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	cached, _ := json.Marshal(dailyBars("AAPL", day(2024, 1, 2), 10, 11, 12))
	mock.ExpectGet(janKey).SetVal(string(cached))

	var calls int
	c := NewCachingProvider(rdb, time.Hour, countingProvider(nil, nil, &calls), "", nil)
	table, err := c.Fetch(context.Background(), "aapl", day(2024, 1, 1), day(2024, 1, 31))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 0 {
		t.Error("inner provider should not be called on a cache hit")
	}
	if table.Len() != 3 || table.Last().Close != 12 {
		t.Errorf("cached table = %d bars, last close %v", table.Len(), table.Last().Close)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingProviderMissStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	bars := dailyBars("AAPL", day(2024, 1, 2), 10, 11)
	expected, _ := json.Marshal(bars)
	mock.ExpectGet(janKey).RedisNil()
	mock.ExpectSet(janKey, expected, time.Hour).SetVal("OK")

	var calls int
	c := NewCachingProvider(rdb, time.Hour, countingProvider(bars, nil, &calls), "", nil)
	if _, err := c.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("inner calls = %d, want 1", calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingProviderSkipsOpenRange(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	bars := dailyBars("AAPL", day(2024, 1, 2), 10, 11)
	expected, _ := json.Marshal(bars)
	mock.ExpectGet(janKey).RedisNil()
	mock.ExpectSet(janKey, expected, time.Hour).SetVal("OK")

	var calls int
	c := NewCachingProvider(rdb, time.Hour, countingProvider(bars, nil, &calls), "", nil)
	c.now = func() time.Time { return time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC) }
	if _, err := c.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls != 1 {
		t.Errorf("inner calls = %d, want 1", calls)
	}
	// The range ends today, so the Set expectation must stay unmatched.
	if err := mock.ExpectationsWereMet(); err == nil {
		t.Error("range ending today was written to the cache")
	}
}

func TestCachingProviderCorruptEntry(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	bars := dailyBars("AAPL", day(2024, 1, 2), 10, 11)
	expected, _ := json.Marshal(bars)
	mock.ExpectGet(janKey).SetVal("{not json")
	mock.ExpectDel(janKey).SetVal(1)
	mock.ExpectSet(janKey, expected, time.Hour).SetVal("OK")

	var calls int
	c := NewCachingProvider(rdb, time.Hour, countingProvider(bars, nil, &calls), "", nil)
	if _, err := c.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingProviderDoesNotCacheErrors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectGet(janKey).RedisNil()

	var calls int
	c := NewCachingProvider(rdb, time.Hour, countingProvider(nil, domain.ErrDataUnavailable, &calls), "", nil)
	_, err := c.Fetch(context.Background(), "AAPL", day(2024, 1, 1), day(2024, 1, 31))
	if !errors.Is(err, domain.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}

func TestCachingProviderInvalidate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer func() { _ = rdb.Close() }()

	mock.ExpectScan(0, "bars:AAPL:*", 200).SetVal([]string{janKey, "bars:AAPL:2023-01-01:2023-12-31"}, 0)
	mock.ExpectDel(janKey, "bars:AAPL:2023-01-01:2023-12-31").SetVal(2)

	c := NewCachingProvider(rdb, time.Hour, SourceProvider{}, "", nil)
	if err := c.Invalidate(context.Background(), "aapl"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled mock expectations: %v", err)
	}
}
