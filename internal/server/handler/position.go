package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/strategy"
)

// PositionSource is the subset of the broker gateway the handler reads.
type PositionSource interface {
	Positions(ctx context.Context) ([]domain.Position, error)
}

// PositionHandler serves the live wheel state of every held symbol.
type PositionHandler struct {
	positions PositionSource
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions PositionSource, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logHandler(logger, "positions"),
	}
}

type contractResponse struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Strike           string `json:"strike"`
	Expiry           string `json:"expiry"`
	PremiumCollected string `json:"premium_collected"`
	Status           string `json:"status"`
}

type positionResponse struct {
	Symbol        string            `json:"symbol"`
	SharesOwned   int64             `json:"shares_owned"`
	AvgEntryPrice string            `json:"avg_entry_price"`
	CurrentPrice  string            `json:"current_price"`
	Contract      *contractResponse `json:"contract,omitempty"`
	State         string            `json:"state"`
	Action        string            `json:"action"`
	Reason        string            `json:"reason,omitempty"`
}

type listPositionsResponse struct {
	Positions []positionResponse `json:"positions"`
}

// ListPositions returns broker positions with their lifecycle classification.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.Positions(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list positions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "failed to fetch positions from broker")
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		lc := strategy.Classify(p)
		pr := positionResponse{
			Symbol:        p.Symbol,
			SharesOwned:   p.SharesOwned,
			AvgEntryPrice: p.AvgEntryPrice.StringFixed(2),
			CurrentPrice:  p.CurrentPrice.StringFixed(2),
			State:         string(lc.State),
			Action:        string(lc.Action),
			Reason:        lc.Reason,
		}
		if c := p.OpenContract; c != nil {
			pr.Contract = &contractResponse{
				ID:               c.ID,
				Type:             string(c.Type),
				Strike:           c.Strike.StringFixed(2),
				Expiry:           c.Expiry.Format(time.DateOnly),
				PremiumCollected: c.PremiumCollected.StringFixed(2),
				Status:           string(c.Status),
			}
		}
		out = append(out, pr)
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: out})
}
