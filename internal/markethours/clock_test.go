package markethours

import (
	"testing"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

func newTestClock(t *testing.T) *Clock {
	t.Helper()
	c, err := NewClock(nil)
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	return c
}

func et(c *Clock, y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, c.Location())
}

func TestNYSEHolidaysMatchPublishedCalendar(t *testing.T) {
	published := map[int][]date{
		2024: {
			{2024, time.January, 1}, {2024, time.January, 15}, {2024, time.February, 19},
			{2024, time.March, 29}, {2024, time.May, 27}, {2024, time.June, 19},
			{2024, time.July, 4}, {2024, time.September, 2}, {2024, time.November, 28},
			{2024, time.December, 25},
		},
		2025: {
			{2025, time.January, 1}, {2025, time.January, 20}, {2025, time.February, 17},
			{2025, time.April, 18}, {2025, time.May, 26}, {2025, time.June, 19},
			{2025, time.July, 4}, {2025, time.September, 1}, {2025, time.November, 27},
			{2025, time.December, 25},
		},
		2026: {
			{2026, time.January, 1}, {2026, time.January, 19}, {2026, time.February, 16},
			{2026, time.April, 3}, {2026, time.May, 25}, {2026, time.June, 19},
			{2026, time.July, 3}, {2026, time.September, 7}, {2026, time.November, 26},
			{2026, time.December, 25},
		},
	}
	for year, want := range published {
		got := nyseHolidays(year)
		if len(got) != len(want) {
			t.Fatalf("%d: got %d holidays, want %d: %v", year, len(got), len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%d: holiday %d = %v, want %v", year, i, got[i], want[i])
			}
		}
	}
}

func TestNewYearOnSaturdayIsNotObserved(t *testing.T) {
	c := newTestClock(t)
	// 2022-01-01 was a Saturday; Friday 2021-12-31 traded normally.
	if !c.IsTradingDay(et(c, 2021, time.December, 31, 12, 0)) {
		t.Fatalf("expected 2021-12-31 to be a trading day")
	}
	if !c.IsTradingDay(et(c, 2022, time.January, 3, 12, 0)) {
		t.Fatalf("expected 2022-01-03 to be a trading day")
	}
}

func TestStatusPhases(t *testing.T) {
	c := newTestClock(t)
	cases := []struct {
		name     string
		at       time.Time
		phase    domain.MarketPhase
		canTrade bool
	}{
		{"premarket", et(c, 2025, time.June, 10, 8, 0), domain.MarketPhasePremarket, false},
		{"open bell", et(c, 2025, time.June, 10, 9, 30), domain.MarketPhaseRegular, true},
		{"midday", et(c, 2025, time.June, 10, 12, 15), domain.MarketPhaseRegular, true},
		{"close bell", et(c, 2025, time.June, 10, 16, 0), domain.MarketPhaseAfterHours, false},
		{"night", et(c, 2025, time.June, 10, 21, 0), domain.MarketPhaseClosed, false},
		{"saturday", et(c, 2025, time.June, 14, 11, 0), domain.MarketPhaseClosed, false},
		{"juneteenth", et(c, 2025, time.June, 19, 11, 0), domain.MarketPhaseClosed, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := c.Status(tc.at)
			if st.Phase != tc.phase {
				t.Fatalf("phase = %s, want %s", st.Phase, tc.phase)
			}
			if st.CanTradeOptions != tc.canTrade {
				t.Fatalf("can trade = %v, want %v", st.CanTradeOptions, tc.canTrade)
			}
		})
	}
}

func TestStatusConvertsFromUTC(t *testing.T) {
	c := newTestClock(t)
	// 14:00 UTC in June is 10:00 EDT.
	st := c.Status(time.Date(2025, time.June, 10, 14, 0, 0, 0, time.UTC))
	if !st.CanTradeOptions {
		t.Fatalf("expected regular session at 14:00 UTC")
	}
	if st.Now.Hour() != 10 {
		t.Fatalf("expected exchange hour 10, got %d", st.Now.Hour())
	}
}

func TestNextOpen(t *testing.T) {
	c := newTestClock(t)

	// Before the bell on a trading day: today's open.
	got := c.NextOpen(et(c, 2025, time.June, 10, 7, 0))
	if want := et(c, 2025, time.June, 10, 9, 30); !got.Equal(want) {
		t.Fatalf("pre-bell next open = %v, want %v", got, want)
	}

	// Friday evening: Monday's open.
	got = c.NextOpen(et(c, 2025, time.June, 13, 17, 0))
	if want := et(c, 2025, time.June, 16, 9, 30); !got.Equal(want) {
		t.Fatalf("friday next open = %v, want %v", got, want)
	}

	// Thursday before Good Friday 2025: skips to Monday.
	got = c.NextOpen(et(c, 2025, time.April, 17, 17, 0))
	if want := et(c, 2025, time.April, 21, 9, 30); !got.Equal(want) {
		t.Fatalf("good friday next open = %v, want %v", got, want)
	}
}

func TestExtraClosures(t *testing.T) {
	day := time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC)
	c, err := NewClock([]time.Time{day})
	if err != nil {
		t.Fatalf("NewClock: %v", err)
	}
	if c.IsTradingDay(et(c, 2025, time.January, 9, 11, 0)) {
		t.Fatalf("expected configured closure to be a non-trading day")
	}
}
