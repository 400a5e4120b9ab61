package journal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

type fakeBlob struct {
	key  string
	data []byte
	err  error
}

func (f *fakeBlob) Put(_ context.Context, key string, r io.Reader, _ string) error {
	f.key = key
	f.data, _ = io.ReadAll(r)
	return f.err
}

func (f *fakeBlob) PutMultipart(ctx context.Context, key string, r io.Reader, _ int64) error {
	return f.Put(ctx, key, r, "")
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sampleEntry() *Entry {
	ts := time.Date(2025, 6, 2, 10, 0, 5, 0, time.UTC)
	e := NewEntry(ts, false)
	e.BuyingPower = decimal.NewFromInt(25000)
	e.AddPositions([]domain.Position{{Symbol: "XYZ", SharesOwned: 100, AvgEntryPrice: decimal.NewFromInt(20)}})
	put := domain.Contract{ID: "ABC250620P00020000", Underlying: "ABC", Type: domain.OptionTypePut,
		Strike: decimal.NewFromInt(20), Bid: decimal.RequireFromString("0.5"), PremiumCollected: decimal.NewFromInt(50),
		Expiry: ts.AddDate(0, 0, 18)}
	e.SoldPuts = append(e.SoldPuts, Option(put, nil))
	e.Finish(domain.PassSummary{PutsSold: []domain.Contract{put}, Skipped: []domain.Skip{{Symbol: "DEF", Reason: "quote unavailable"}}})
	return e
}

func TestSaveWritesLocalAndUploads(t *testing.T) {
	dir := t.TempDir()
	blob := &fakeBlob{}
	w := NewWriter(dir, "journals", blob, discard())

	local, err := w.Save(context.Background(), sampleEntry())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "strategy_log_20250602_100005.json"); local != want {
		t.Fatalf("path = %s, want %s", local, want)
	}
	raw, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	summary := back["summary"].(map[string]any)
	if summary["puts_sold"].(float64) != 1 || summary["total_premium"] != "50" {
		t.Fatalf("summary = %v", summary)
	}
	if blob.key != "journals/2025/06/02/strategy_log_20250602_100005.json" {
		t.Fatalf("upload key = %s", blob.key)
	}
	if string(blob.data) != string(raw) {
		t.Fatalf("uploaded bytes differ from local file")
	}
}

func TestSaveSurvivesUploadFailure(t *testing.T) {
	w := NewWriter(t.TempDir(), "", &fakeBlob{err: errors.New("bucket gone")}, discard())
	if _, err := w.Save(context.Background(), sampleEntry()); err != nil {
		t.Fatalf("Save returned %v on upload failure", err)
	}
}
