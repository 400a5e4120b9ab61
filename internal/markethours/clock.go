// Package markethours answers exchange-calendar questions for US equity
// options: trading days, session phase and the next regular open.
package markethours

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// Exchange session boundaries in Eastern Time, as minutes after midnight.
const (
	premarketOpen   = 4 * 60
	regularOpen     = 9*60 + 30
	regularClose    = 16 * 60
	afterHoursClose = 20 * 60
)

// Clock implements domain.MarketClock for the NYSE calendar.
type Clock struct {
	loc   *time.Location
	extra map[date]bool

	mu       sync.Mutex
	holidays map[int]map[date]bool
}

// NewClock loads the America/New_York zone. extraClosures are additional
// full-day closures (e.g. national days of mourning) on top of the rule-based
// holiday calendar.
func NewClock(extraClosures []time.Time) (*Clock, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("markethours: load location: %w", err)
	}
	extra := make(map[date]bool, len(extraClosures))
	for _, t := range extraClosures {
		extra[dateOf(t)] = true
	}
	return &Clock{
		loc:      loc,
		extra:    extra,
		holidays: make(map[int]map[date]bool),
	}, nil
}

// Location returns the exchange time zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) isHoliday(d date) bool {
	if c.extra[d] {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.holidays[d.y]
	if !ok {
		set = make(map[date]bool)
		for _, h := range nyseHolidays(d.y) {
			set[h] = true
		}
		c.holidays[d.y] = set
	}
	return set[d]
}

// IsTradingDay reports whether t falls on a weekday that is not an exchange
// holiday, evaluated in Eastern Time.
func (c *Clock) IsTradingDay(t time.Time) bool {
	et := t.In(c.loc)
	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.isHoliday(dateOf(et))
}

func (c *Clock) inWindow(t time.Time, from, to int) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	et := t.In(c.loc)
	m := et.Hour()*60 + et.Minute()
	return m >= from && m < to
}

// IsMarketOpen reports regular hours, 9:30 to 16:00 ET.
func (c *Clock) IsMarketOpen(t time.Time) bool {
	return c.inWindow(t, regularOpen, regularClose)
}

// IsPremarketOpen reports 4:00 to 9:30 ET on trading days.
func (c *Clock) IsPremarketOpen(t time.Time) bool {
	return c.inWindow(t, premarketOpen, regularOpen)
}

// IsAfterHoursOpen reports 16:00 to 20:00 ET on trading days.
func (c *Clock) IsAfterHoursOpen(t time.Time) bool {
	return c.inWindow(t, regularClose, afterHoursClose)
}

// CanTradeOptions is true only during regular hours; listed equity options do
// not trade in extended sessions.
func (c *Clock) CanTradeOptions(t time.Time) bool {
	return c.IsMarketOpen(t)
}

// NextOpen returns the next regular-session open strictly after t. If the
// market has not opened yet today, that is today's open.
func (c *Clock) NextOpen(t time.Time) time.Time {
	et := t.In(c.loc)
	today := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, c.loc)
	if et.Before(today) && c.IsTradingDay(et) {
		return today
	}
	for i := 1; i <= 14; i++ {
		cand := time.Date(et.Year(), et.Month(), et.Day()+i, 9, 30, 0, 0, c.loc)
		if c.IsTradingDay(cand) {
			return cand
		}
	}
	return today
}

// Status returns the full calendar view for now.
func (c *Clock) Status(now time.Time) domain.MarketStatus {
	et := now.In(c.loc)
	next := c.NextOpen(et)
	st := domain.MarketStatus{
		Now:             et,
		IsTradingDay:    c.IsTradingDay(et),
		IsMarketOpen:    c.IsMarketOpen(et),
		CanTradeOptions: c.CanTradeOptions(et),
		NextOpen:        next,
		UntilOpen:       next.Sub(et),
	}
	switch {
	case st.IsMarketOpen:
		st.Phase = domain.MarketPhaseRegular
	case c.IsPremarketOpen(et):
		st.Phase = domain.MarketPhasePremarket
	case c.IsAfterHoursOpen(et):
		st.Phase = domain.MarketPhaseAfterHours
	default:
		st.Phase = domain.MarketPhaseClosed
	}
	return st
}

// Compile-time interface check.
var _ domain.MarketClock = (*Clock)(nil)
