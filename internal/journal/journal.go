// Package journal writes one JSON document per strategy pass describing what
// the bot saw and did, to a local directory and optionally to object storage.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// multipartThreshold switches uploads to the multipart path. Journals with
// large option chains can exceed it.
const multipartThreshold = 8 << 20

// PositionRecord is the journal view of a broker position.
type PositionRecord struct {
	Symbol        string          `json:"symbol"`
	Qty           int64           `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pl"`
	OpenContract  string          `json:"open_contract,omitempty"`
}

// StateRecord is the lifecycle classification of one symbol.
type StateRecord struct {
	State  string `json:"state"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// OptionRecord is a contract as seen by the scorer.
type OptionRecord struct {
	Symbol       string          `json:"symbol"`
	Underlying   string          `json:"underlying"`
	Type         string          `json:"type"`
	Strike       decimal.Decimal `json:"strike"`
	Expiry       string          `json:"expiry"`
	Delta        float64         `json:"delta"`
	OpenInterest int64           `json:"open_interest"`
	Bid          decimal.Decimal `json:"bid_price"`
	Score        *float64        `json:"score,omitempty"`
}

// Summary totals the pass.
type Summary struct {
	PutsSold     int             `json:"puts_sold"`
	CallsSold    int             `json:"calls_sold"`
	TotalPremium decimal.Decimal `json:"total_premium"`
	Skipped      []domain.Skip   `json:"skipped"`
}

// Entry is the document written for one pass.
type Entry struct {
	ExecutionTimestamp time.Time              `json:"execution_timestamp"`
	FreshStart         bool                   `json:"fresh_start"`
	DryRun             bool                   `json:"dry_run"`
	BuyingPower        decimal.Decimal        `json:"buying_power"`
	AllowedSymbols     []string               `json:"allowed_symbols"`
	FilteredSymbols    []string               `json:"filtered_symbols"`
	CurrentPositions   []PositionRecord       `json:"current_positions"`
	StateDict          map[string]StateRecord `json:"state_dict"`
	PutOptions         []OptionRecord         `json:"put_options"`
	CallOptions        []OptionRecord         `json:"call_options"`
	SoldPuts           []OptionRecord         `json:"sold_puts"`
	SoldCalls          []OptionRecord         `json:"sold_calls"`
	Summary            Summary                `json:"summary"`
	Error              string                 `json:"error,omitempty"`
}

// NewEntry starts a journal entry for a pass beginning at ts.
func NewEntry(ts time.Time, freshStart bool) *Entry {
	return &Entry{
		ExecutionTimestamp: ts,
		FreshStart:         freshStart,
		StateDict:          make(map[string]StateRecord),
	}
}

// AddPositions records the broker positions seen at the start of the pass.
func (e *Entry) AddPositions(positions []domain.Position) {
	for _, p := range positions {
		rec := PositionRecord{
			Symbol:        p.Symbol,
			Qty:           p.SharesOwned,
			AvgEntryPrice: p.AvgEntryPrice,
			CurrentPrice:  p.CurrentPrice,
			UnrealizedPnL: p.UnrealizedPnL,
		}
		if p.HasOpenContract() {
			rec.OpenContract = p.OpenContract.ID
		}
		e.CurrentPositions = append(e.CurrentPositions, rec)
	}
}

// Option converts a contract for the journal. A nil score is omitted.
func Option(c domain.Contract, score *float64) OptionRecord {
	return OptionRecord{
		Symbol:       c.ID,
		Underlying:   c.Underlying,
		Type:         string(c.Type),
		Strike:       c.Strike,
		Expiry:       c.Expiry.Format(time.DateOnly),
		Delta:        c.Delta,
		OpenInterest: c.OpenInterest,
		Bid:          c.Bid,
		Score:        score,
	}
}

// Options converts a slice of contracts without scores.
func Options(cs []domain.Contract) []OptionRecord {
	out := make([]OptionRecord, 0, len(cs))
	for _, c := range cs {
		out = append(out, Option(c, nil))
	}
	return out
}

// Finish copies the pass summary into the entry.
func (e *Entry) Finish(s domain.PassSummary) {
	e.Summary = Summary{
		PutsSold:     len(s.PutsSold),
		CallsSold:    len(s.CallsSold),
		TotalPremium: s.TotalPremium(),
		Skipped:      s.Skipped,
	}
}

// Writer persists entries.
type Writer struct {
	dir    string
	prefix string
	blob   domain.BlobWriter
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir. blob may be nil to keep journals
// local only.
func NewWriter(dir, prefix string, blob domain.BlobWriter, logger *slog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		prefix: prefix,
		blob:   blob,
		logger: logger.With(slog.String("component", "journal")),
	}
}

// FileName returns the journal file name for a pass started at ts.
func FileName(ts time.Time) string {
	return "strategy_log_" + ts.Format("20060102_150405") + ".json"
}

// Save writes the entry to disk and, when configured, uploads it. It returns
// the local path. An upload failure is logged but does not fail the save.
func (w *Writer) Save(ctx context.Context, e *Entry) (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: marshal: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("journal: mkdir %s: %w", w.dir, err)
	}
	name := FileName(e.ExecutionTimestamp)
	local := filepath.Join(w.dir, name)
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", local, err)
	}
	w.logger.Info("strategy journal saved", slog.String("path", local))

	if w.blob != nil {
		key := path.Join(w.prefix, e.ExecutionTimestamp.Format("2006/01/02"), name)
		var err error
		if len(data) >= multipartThreshold {
			err = w.blob.PutMultipart(ctx, key, bytes.NewReader(data), multipartThreshold)
		} else {
			err = w.blob.Put(ctx, key, bytes.NewReader(data), "application/json")
		}
		if err != nil {
			w.logger.Warn("journal upload failed", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			w.logger.Debug("journal uploaded", slog.String("key", key))
		}
	}
	return local, nil
}
