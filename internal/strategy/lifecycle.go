package strategy

import (
	"fmt"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// State is where a symbol sits in the wheel.
type State string

const (
	StateNoPosition State = "NO_POSITION"
	StatePutSold    State = "PUT_SOLD"
	StateOwned      State = "OWNED"
	StateCallSold   State = "CALL_SOLD"
	StatePartialLot State = "PARTIAL_LOT"
)

// Action is what the executor should do with a symbol this pass.
type Action string

const (
	ActionSellPut  Action = "SELL_PUT"
	ActionSellCall Action = "SELL_CALL"
	ActionHold     Action = "HOLD"
	ActionSkip     Action = "SKIP"
)

// Lifecycle is the classification of one position.
type Lifecycle struct {
	Symbol string
	State  State
	Action Action
	Reason string
}

// Classify derives the wheel state of a position from broker-reported shares
// and contract status alone. It holds no memory of earlier passes, so the
// result after a restart is the same as without one.
func Classify(p domain.Position) Lifecycle {
	lc := Lifecycle{Symbol: p.Symbol}

	if p.HasOpenContract() {
		lc.Action = ActionHold
		if p.OpenContract.Type == domain.OptionTypeCall {
			lc.State = StateCallSold
			lc.Reason = fmt.Sprintf("covered call %s working", p.OpenContract.ID)
		} else {
			lc.State = StatePutSold
			lc.Reason = fmt.Sprintf("short put %s working", p.OpenContract.ID)
		}
		return lc
	}

	switch {
	case p.SharesOwned >= domain.SharesPerContract:
		lc.State = StateOwned
		lc.Action = ActionSellCall
		lc.Reason = fmt.Sprintf("%d shares held, no call working", p.SharesOwned)
	case p.SharesOwned > 0:
		lc.State = StatePartialLot
		lc.Action = ActionSkip
		lc.Reason = fmt.Sprintf("partial lot of %d shares cannot be covered", p.SharesOwned)
	default:
		lc.State = StateNoPosition
		lc.Action = ActionSellPut
		lc.Reason = "flat"
	}

	if p.OpenContract != nil {
		lc.Reason += fmt.Sprintf("; last contract %s %s", p.OpenContract.ID, outcome(p.OpenContract.Status))
	}
	return lc
}

func outcome(s domain.ContractStatus) string {
	switch s {
	case domain.ContractStatusExpired:
		return "expired"
	case domain.ContractStatusAssigned:
		return "assigned"
	case domain.ContractStatusCalledAway:
		return "called away"
	default:
		return string(s)
	}
}

// ClassifyAll classifies every position, keyed by symbol.
func ClassifyAll(positions []domain.Position) map[string]Lifecycle {
	out := make(map[string]Lifecycle, len(positions))
	for _, p := range positions {
		out[p.Symbol] = Classify(p)
	}
	return out
}
