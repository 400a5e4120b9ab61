package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// ScheduleStore implements domain.ScheduleStore as a single row per bot
// instance in schedule_state.
type ScheduleStore struct {
	db       querier
	instance string
}

// NewScheduleStore creates a ScheduleStore. instance keys the row so several
// bots can share one database.
func NewScheduleStore(db querier, instance string) *ScheduleStore {
	if instance == "" {
		instance = "default"
	}
	return &ScheduleStore{db: db, instance: instance}
}

// Load returns the saved state, or domain.ErrNotFound if none exists.
func (s *ScheduleStore) Load(ctx context.Context) (domain.ScheduleState, error) {
	const query = `
		SELECT session_id, trading_day, runs_today, last_execution_hour,
		       max_runs_per_day, check_interval_minutes, updated_at
		FROM schedule_state WHERE id = $1`

	var (
		st   domain.ScheduleState
		hour pgtype.Int4
	)
	err := s.db.QueryRow(ctx, query, s.instance).Scan(
		&st.SessionID, &st.TradingDay, &st.RunsToday, &hour,
		&st.MaxRunsPerDay, &st.CheckIntervalMinutes, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleState{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ScheduleState{}, fmt.Errorf("postgres: load schedule state: %w", err)
	}
	if hour.Valid {
		h := int(hour.Int32)
		st.LastExecutionHour = &h
	}
	return st, nil
}

// Save upserts the state.
func (s *ScheduleStore) Save(ctx context.Context, st domain.ScheduleState) error {
	const query = `
		INSERT INTO schedule_state (id, session_id, trading_day, runs_today, last_execution_hour,
		                            max_runs_per_day, check_interval_minutes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			trading_day = EXCLUDED.trading_day,
			runs_today = EXCLUDED.runs_today,
			last_execution_hour = EXCLUDED.last_execution_hour,
			max_runs_per_day = EXCLUDED.max_runs_per_day,
			check_interval_minutes = EXCLUDED.check_interval_minutes,
			updated_at = EXCLUDED.updated_at`

	var hour pgtype.Int4
	if st.LastExecutionHour != nil {
		hour = pgtype.Int4{Int32: int32(*st.LastExecutionHour), Valid: true}
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	day := pgtype.Date{Time: time.Date(st.TradingDay.Year(), st.TradingDay.Month(), st.TradingDay.Day(), 0, 0, 0, 0, time.UTC), Valid: true}

	_, err := s.db.Exec(ctx, query, s.instance, st.SessionID, day, st.RunsToday, hour,
		st.MaxRunsPerDay, st.CheckIntervalMinutes, updated)
	if err != nil {
		return fmt.Errorf("postgres: save schedule state: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ScheduleStore = (*ScheduleStore)(nil)
