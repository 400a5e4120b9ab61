package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/journal"
	"github.com/alanyoungcy/wheelbot/internal/metrics"
	"github.com/alanyoungcy/wheelbot/internal/strategy"
)

const (
	passLockKey = "wheelbot:pass"
	passLockTTL = 15 * time.Minute
)

// Config controls a strategy pass.
type Config struct {
	Symbols           []string
	MaxRisk           decimal.Decimal // zero disables the cap
	MaxNewPuts        int             // zero sells up to one put per eligible symbol
	ExpirationMinDays int
	ExpirationMaxDays int
	FreshStart        bool
	DryRun            bool
	ResubmitAfter     time.Duration
}

// JournalSink persists the per-pass journal.
type JournalSink interface {
	Save(ctx context.Context, e *journal.Entry) (string, error)
}

// Executor runs one decision-and-order cycle against the broker: classify
// positions, sell covered calls on owned lots, then sell cash-secured puts on
// affordable watchlist symbols.
type Executor struct {
	cfg     Config
	gateway domain.BrokerGateway
	scorer  *strategy.Scorer
	loc     *time.Location
	now     func() time.Time
	recent  *Dedup
	logger  *slog.Logger

	notifier domain.NotificationSink
	journal  JournalSink
	audit    domain.AuditStore
	locks    domain.LockManager

	freshPending bool
}

// NewExecutor creates an Executor. loc is the exchange time zone used for
// days-to-expiry arithmetic.
func NewExecutor(cfg Config, gateway domain.BrokerGateway, scorer *strategy.Scorer, loc *time.Location, logger *slog.Logger) *Executor {
	if loc == nil {
		loc = time.UTC
	}
	return &Executor{
		cfg:          cfg,
		gateway:      gateway,
		scorer:       scorer,
		loc:          loc,
		now:          time.Now,
		recent:       NewDedup(cfg.ResubmitAfter),
		logger:       logger.With(slog.String("component", "executor")),
		freshPending: cfg.FreshStart,
	}
}

// SetNotifier enables operator notifications.
func (e *Executor) SetNotifier(n domain.NotificationSink) { e.notifier = n }

// SetJournal enables the per-pass JSON journal.
func (e *Executor) SetJournal(j JournalSink) { e.journal = j }

// SetAudit records accepted orders and pass outcomes to the audit log.
func (e *Executor) SetAudit(a domain.AuditStore) { e.audit = a }

// SetLocker makes passes exclusive across processes sharing the lock backend.
func (e *Executor) SetLocker(l domain.LockManager) { e.locks = l }

// pass carries the mutable bits of a single RunPass call.
type pass struct {
	asOf    time.Time
	summary domain.PassSummary
	entry   *journal.Entry
}

func (p *pass) skip(sym, reason string) {
	p.summary.Skipped = append(p.summary.Skipped, domain.Skip{Symbol: sym, Reason: reason})
	metrics.SkipsTotal.WithLabelValues(sym).Inc()
}

// RunPass executes one full pass. Per-symbol failures are recorded in the
// summary's Skipped list; only failing to read positions or buying power (or
// losing the pass lock) returns an error.
func (e *Executor) RunPass(ctx context.Context) (domain.PassSummary, error) {
	start := e.now()
	p := &pass{asOf: start.In(e.loc)}
	p.summary.StartedAt = start
	p.entry = journal.NewEntry(p.asOf, e.freshPending)
	p.entry.DryRun = e.cfg.DryRun

	if e.locks != nil {
		unlock, err := e.locks.Acquire(ctx, passLockKey, passLockTTL)
		if err != nil {
			metrics.PassesTotal.WithLabelValues("locked").Inc()
			return p.summary, fmt.Errorf("executor: acquire pass lock: %w", err)
		}
		defer unlock()
	}
	e.recent.Cleanup()

	err := e.run(ctx, p)
	p.summary.FinishedAt = e.now()
	p.entry.Finish(p.summary)
	metrics.PassDuration.Observe(p.summary.FinishedAt.Sub(start).Seconds())

	if err != nil {
		metrics.PassesTotal.WithLabelValues("error").Inc()
		p.entry.Error = err.Error()
		e.notify(ctx, domain.EventError, "Strategy execution", err.Error())
	} else {
		metrics.PassesTotal.WithLabelValues("ok").Inc()
		e.notify(ctx, domain.EventCompletion, "Strategy pass complete", fmt.Sprintf(
			"Puts sold: %d\nCalls sold: %d\nTotal premium: $%s\nSkipped: %d",
			len(p.summary.PutsSold), len(p.summary.CallsSold),
			p.summary.TotalPremium().StringFixed(2), len(p.summary.Skipped)))
	}
	e.saveJournal(ctx, p.entry)
	e.auditLog(ctx, "pass_complete", map[string]any{
		"puts_sold":     len(p.summary.PutsSold),
		"calls_sold":    len(p.summary.CallsSold),
		"skipped":       len(p.summary.Skipped),
		"total_premium": p.summary.TotalPremium().String(),
		"error":         p.entry.Error,
	})

	e.logger.Info("pass finished",
		slog.Int("puts_sold", len(p.summary.PutsSold)),
		slog.Int("calls_sold", len(p.summary.CallsSold)),
		slog.Int("skipped", len(p.summary.Skipped)),
		slog.Duration("elapsed", p.summary.FinishedAt.Sub(start)),
	)
	if err != nil {
		return p.summary, fmt.Errorf("executor: run pass: %w", err)
	}
	return p.summary, nil
}

func (e *Executor) run(ctx context.Context, p *pass) error {
	var (
		allowed     []string
		buyingPower decimal.Decimal
	)

	if e.freshPending {
		liq, ok := e.gateway.(domain.Liquidator)
		if !ok {
			return errors.New("fresh start: gateway cannot liquidate positions")
		}
		e.logger.Warn("fresh start: liquidating all positions")
		e.notify(ctx, domain.EventStartup, "Fresh start", fmt.Sprintf(
			"Liquidating all positions.\nMax risk: $%s\nSymbols: %s",
			e.cfg.MaxRisk.StringFixed(2), strings.Join(e.cfg.Symbols, ", ")))
		if err := liq.LiquidateAll(ctx); err != nil {
			return fmt.Errorf("fresh start: %w", err)
		}
		e.freshPending = false
		allowed = append(allowed, e.cfg.Symbols...)
		buyingPower = e.cfg.MaxRisk
		if buyingPower.IsZero() {
			bp, err := e.gateway.BuyingPower(ctx)
			if err != nil {
				return fmt.Errorf("buying power: %w", err)
			}
			buyingPower = bp
		}
	} else {
		positions, err := e.gateway.Positions(ctx)
		if err != nil {
			return fmt.Errorf("positions: %w", err)
		}
		p.entry.AddPositions(positions)
		if len(positions) > 0 {
			e.notify(ctx, domain.EventPositionUpdate, "Current positions", describePositions(positions))
		}

		held := make(map[string]bool, len(positions))
		risk := decimal.Zero
		for _, pos := range positions {
			risk = risk.Add(pos.Risk())

			lc := strategy.Classify(pos)
			if lc.Action != strategy.ActionSellPut {
				held[pos.Symbol] = true
			}
			p.entry.StateDict[pos.Symbol] = journal.StateRecord{State: string(lc.State), Action: string(lc.Action), Reason: lc.Reason}
			switch lc.Action {
			case strategy.ActionSellCall:
				e.sellCall(ctx, p, pos)
			case strategy.ActionSkip:
				e.logger.Warn("skipping symbol", slog.String("symbol", pos.Symbol), slog.String("reason", lc.Reason))
				p.skip(pos.Symbol, lc.Reason)
			case strategy.ActionSellPut:
				e.logger.Debug("flat position eligible for a put", slog.String("symbol", pos.Symbol), slog.String("reason", lc.Reason))
			default:
				e.logger.Debug("holding", slog.String("symbol", pos.Symbol), slog.String("reason", lc.Reason))
			}
		}

		for _, sym := range e.cfg.Symbols {
			if held[sym] {
				continue
			}
			if e.recent.Recent(sym) {
				p.skip(sym, "order submitted recently")
				continue
			}
			allowed = append(allowed, sym)
		}

		bp, err := e.gateway.BuyingPower(ctx)
		if err != nil {
			return fmt.Errorf("buying power: %w", err)
		}
		buyingPower = bp
		if e.cfg.MaxRisk.IsPositive() {
			buyingPower = decimal.Min(bp, e.cfg.MaxRisk.Sub(risk))
		}
		e.notify(ctx, domain.EventStartup, "Strategy pass started", fmt.Sprintf(
			"Buying power: $%s\nSymbols: %s", buyingPower.StringFixed(2), strings.Join(allowed, ", ")))
	}

	p.entry.BuyingPower = buyingPower
	p.entry.AllowedSymbols = allowed
	e.logger.Info("current buying power",
		slog.String("buying_power", buyingPower.StringFixed(2)),
		slog.Int("allowed_symbols", len(allowed)),
	)

	e.sellPuts(ctx, p, allowed, buyingPower)
	return nil
}

func (e *Executor) chainFilter(typ domain.OptionType, asOf time.Time) domain.ChainFilter {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, e.loc)
	return domain.ChainFilter{
		Type:      typ,
		MinExpiry: day.AddDate(0, 0, e.cfg.ExpirationMinDays),
		MaxExpiry: day.AddDate(0, 0, e.cfg.ExpirationMaxDays),
	}
}

func (e *Executor) sellCall(ctx context.Context, p *pass, pos domain.Position) {
	sym := pos.Symbol
	if e.recent.Recent(sym) {
		p.skip(sym, "order submitted recently")
		return
	}
	e.logger.Info("searching for call options", slog.String("symbol", sym))

	chain, err := e.gateway.OptionChain(ctx, sym, e.chainFilter(domain.OptionTypeCall, p.asOf))
	if err != nil {
		e.logger.Warn("call chain unavailable", slog.String("symbol", sym), slog.String("error", err.Error()))
		p.skip(sym, "call chain unavailable: "+err.Error())
		return
	}
	p.entry.CallOptions = append(p.entry.CallOptions, journal.Options(chain)...)

	best := e.scorer.Rank(chain, map[string]decimal.Decimal{sym: pos.AvgEntryPrice}, p.asOf, 1)
	if len(best) == 0 {
		e.logger.Info("no viable call options", slog.String("symbol", sym))
		p.skip(sym, "no qualifying call")
		return
	}
	if c, ok := e.submit(ctx, p, best[0]); ok {
		p.summary.CallsSold = append(p.summary.CallsSold, c)
		p.entry.SoldCalls = append(p.entry.SoldCalls, journal.Option(c, &best[0].Score))
	}
}

func (e *Executor) sellPuts(ctx context.Context, p *pass, allowed []string, buyingPower decimal.Decimal) {
	if len(allowed) == 0 {
		return
	}
	if !buyingPower.IsPositive() {
		e.logger.Info("no buying power for new puts", slog.String("buying_power", buyingPower.StringFixed(2)))
		for _, sym := range allowed {
			p.skip(sym, "no buying power")
		}
		return
	}
	e.logger.Info("searching for put options", slog.Int("symbols", len(allowed)))

	prices := make(map[string]decimal.Decimal, len(allowed))
	for _, sym := range allowed {
		px, err := e.gateway.LatestTrade(ctx, sym)
		if err != nil {
			e.logger.Warn("latest trade unavailable", slog.String("symbol", sym), slog.String("error", err.Error()))
			continue
		}
		prices[sym] = px
	}

	affordable, skipped := strategy.FilterAffordable(allowed, prices, buyingPower)
	for _, s := range skipped {
		p.skip(s.Symbol, s.Reason)
	}
	p.entry.FilteredSymbols = affordable
	if len(affordable) == 0 {
		e.logger.Info("no symbols found with sufficient buying power")
		return
	}

	var chain []domain.Contract
	for _, sym := range affordable {
		cs, err := e.gateway.OptionChain(ctx, sym, e.chainFilter(domain.OptionTypePut, p.asOf))
		if err != nil {
			e.logger.Warn("put chain unavailable", slog.String("symbol", sym), slog.String("error", err.Error()))
			p.skip(sym, "put chain unavailable: "+err.Error())
			continue
		}
		chain = append(chain, cs...)
	}
	p.entry.PutOptions = journal.Options(chain)

	limit := e.cfg.MaxNewPuts
	if limit <= 0 {
		limit = len(affordable)
	}
	picks := e.scorer.Rank(chain, nil, p.asOf, limit)

	picked := make(map[string]bool, len(picks))
	for _, c := range picks {
		picked[c.Symbol] = true
	}
	unpicked := make([]string, 0)
	for _, sym := range affordable {
		if !picked[sym] {
			unpicked = append(unpicked, sym)
		}
	}
	sort.Strings(unpicked)
	for _, sym := range unpicked {
		p.skip(sym, "no qualifying put")
	}

	remaining := buyingPower
	for i, cand := range picks {
		remaining = remaining.Sub(cand.Contract.Notional())
		if remaining.IsNegative() {
			for _, rest := range picks[i:] {
				p.skip(rest.Symbol, "buying power exhausted")
			}
			break
		}
		if c, ok := e.submit(ctx, p, cand); ok {
			p.summary.PutsSold = append(p.summary.PutsSold, c)
			p.entry.SoldPuts = append(p.entry.SoldPuts, journal.Option(c, &picks[i].Score))
		}
	}
}

// submit sells one contract to open. A rejection or error is recorded as a
// skip and never aborts the pass.
func (e *Executor) submit(ctx context.Context, p *pass, cand domain.Candidate) (domain.Contract, bool) {
	c := cand.Contract
	log := e.logger.With(slog.String("symbol", cand.Symbol), slog.String("contract", c.ID), slog.String("type", string(c.Type)))
	log.Info("selling option", slog.Float64("score", cand.Score), slog.String("strike", c.Strike.String()), slog.String("bid", c.Bid.String()))

	res, err := e.gateway.SubmitOrder(ctx, c, domain.OrderActionSellToOpen)
	if err != nil {
		res = domain.OrderResult{Status: domain.OrderStatusError, Reason: err.Error()}
	}
	metrics.OrdersTotal.WithLabelValues(cand.Symbol, string(c.Type), string(res.Status)).Inc()

	if !res.Accepted() {
		insufficient := errors.Is(err, domain.ErrInsufficientBuyingPower) ||
			strings.Contains(strings.ToLower(res.Reason), domain.ErrInsufficientBuyingPower.Error())
		log.Warn("order not accepted", slog.String("status", string(res.Status)), slog.String("reason", res.Reason))
		if insufficient {
			e.notify(ctx, domain.EventInsufficientFunds, "Insufficient buying power", fmt.Sprintf(
				"Symbol: %s\nRequired: $%s\nBroker: %s", cand.Symbol, c.Notional().StringFixed(2), res.Reason))
			p.skip(cand.Symbol, "insufficient buying power")
		} else {
			e.notify(ctx, domain.EventError, fmt.Sprintf("%s option execution", titleType(c.Type)),
				fmt.Sprintf("Failed to sell %s for %s: %s", strings.ToLower(string(c.Type)), cand.Symbol, res.Reason))
			p.skip(cand.Symbol, fmt.Sprintf("order %s: %s", strings.ToLower(string(res.Status)), res.Reason))
		}
		return domain.Contract{}, false
	}

	c.Status = domain.ContractStatusOpen
	c.PremiumCollected = c.Bid.Mul(decimal.NewFromInt(domain.SharesPerContract))
	e.recent.Mark(cand.Symbol)
	metrics.PremiumCollected.Add(c.PremiumCollected.InexactFloat64())

	e.notify(ctx, domain.EventTrade, fmt.Sprintf("%s sold: %s", titleType(c.Type), cand.Symbol), fmt.Sprintf(
		"Contract: %s\nStrike: $%s\nPremium: $%s\nExpiry: %d days",
		c.ID, c.Strike.StringFixed(2), c.Bid.StringFixed(2), c.DaysToExpiry(p.asOf)))
	e.auditLog(ctx, "order_accepted", map[string]any{
		"order_id": res.OrderID,
		"symbol":   cand.Symbol,
		"contract": c.ID,
		"type":     string(c.Type),
		"strike":   c.Strike.String(),
		"premium":  c.PremiumCollected.String(),
		"score":    cand.Score,
		"dry_run":  e.cfg.DryRun,
	})
	return c, true
}

func (e *Executor) notify(ctx context.Context, typ domain.EventType, title, msg string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, domain.Event{Type: typ, Title: title, Message: msg, Time: e.now()})
}

func (e *Executor) saveJournal(ctx context.Context, entry *journal.Entry) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Save(ctx, entry); err != nil {
		e.logger.Error("failed to save strategy journal", slog.String("error", err.Error()))
	}
}

func (e *Executor) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func describePositions(positions []domain.Position) string {
	var b strings.Builder
	for _, p := range positions {
		fmt.Fprintf(&b, "%s: %d @ $%s (now $%s, P&L $%s)", p.Symbol, p.SharesOwned,
			p.AvgEntryPrice.StringFixed(2), p.CurrentPrice.StringFixed(2), p.UnrealizedPnL.StringFixed(2))
		if p.HasOpenContract() {
			fmt.Fprintf(&b, " short %s", p.OpenContract.ID)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func titleType(t domain.OptionType) string {
	if t == domain.OptionTypeCall {
		return "Call"
	}
	return "Put"
}
