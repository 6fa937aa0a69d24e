package gather

import (
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

type fakeCalendar struct {
	days []alpaca.CalendarDay
	err  error
}

func (f fakeCalendar) GetCalendar(alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error) {
	return f.days, f.err
}

func TestLatestFinishedTradingDay(t *testing.T) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	cal := fakeCalendar{days: []alpaca.CalendarDay{
		{Date: "2024-03-04"}, {Date: "2024-03-05"}, {Date: "2024-03-06"},
	}}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before cutoff", time.Date(2024, 3, 6, 15, 0, 0, 0, et), "2024-03-05"},
		{"after cutoff", time.Date(2024, 3, 6, 21, 0, 0, 0, et), "2024-03-06"},
		{"weekend", time.Date(2024, 3, 9, 12, 0, 0, 0, et), "2024-03-06"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LatestFinishedTradingDay(cal, tt.now)
			if err != nil {
				t.Fatalf("LatestFinishedTradingDay: %v", err)
			}
			if got.Format(time.DateOnly) != tt.want {
				t.Errorf("got %s, want %s", got.Format(time.DateOnly), tt.want)
			}
		})
	}
}

func TestLatestFinishedTradingDayErrors(t *testing.T) {
	now := time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)
	if _, err := LatestFinishedTradingDay(fakeCalendar{}, now); err == nil {
		t.Error("empty calendar should fail")
	}
	if _, err := LatestFinishedTradingDay(fakeCalendar{err: errors.New("401")}, now); err == nil {
		t.Error("calendar error should propagate")
	}
}

func TestPreviousWeekday(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC), "2024-03-05"},  // Wednesday
		{time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), "2024-03-01"},  // Monday
		{time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), "2024-03-08"}, // Sunday
	}
	for _, tt := range tests {
		if got := PreviousWeekday(tt.now).Format(time.DateOnly); got != tt.want {
			t.Errorf("PreviousWeekday(%s) = %s, want %s", tt.now.Format(time.DateOnly), got, tt.want)
		}
	}
}
