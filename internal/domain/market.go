package domain

import "time"

// MarketPhase classifies the intraday session.
type MarketPhase string

const (
	MarketPhaseClosed     MarketPhase = "closed"
	MarketPhasePremarket  MarketPhase = "premarket"
	MarketPhaseRegular    MarketPhase = "regular_hours"
	MarketPhaseAfterHours MarketPhase = "afterhours"
)

// MarketStatus is a point-in-time view of the exchange calendar.
type MarketStatus struct {
	Now             time.Time // in exchange time
	IsTradingDay    bool
	IsMarketOpen    bool
	CanTradeOptions bool
	Phase           MarketPhase
	NextOpen        time.Time
	UntilOpen       time.Duration
}
