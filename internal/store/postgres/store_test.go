package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *pgtype.Int4:
			*p = r.values[i].(pgtype.Int4)
		}
	}
	return nil
}

type fakeDB struct {
	row      fakeRow
	execSQL  string
	execArgs []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL, f.execArgs = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

func TestScheduleStoreLoadNotFound(t *testing.T) {
	s := NewScheduleStore(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}}, "")
	if _, err := s.Load(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestScheduleStoreLoad(t *testing.T) {
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{"sess", day, 2, pgtype.Int4{Int32: 12, Valid: true}, 4, 15, day}}}
	st, err := NewScheduleStore(db, "bot-a").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.SessionID != "sess" || st.RunsToday != 2 || st.LastExecutionHour == nil || *st.LastExecutionHour != 12 {
		t.Fatalf("state = %+v", st)
	}
}

func TestScheduleStoreSave(t *testing.T) {
	db := &fakeDB{}
	ny, _ := time.LoadLocation("America/New_York")
	st := domain.ScheduleState{
		SessionID:            "sess",
		TradingDay:           time.Date(2025, 6, 2, 0, 0, 0, 0, ny),
		RunsToday:            1,
		MaxRunsPerDay:        4,
		CheckIntervalMinutes: 15,
	}
	if err := NewScheduleStore(db, "").Save(context.Background(), st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.Contains(db.execSQL, "ON CONFLICT (id)") {
		t.Fatalf("sql = %s", db.execSQL)
	}
	if db.execArgs[0] != "default" {
		t.Fatalf("instance = %v", db.execArgs[0])
	}
	day := db.execArgs[2].(pgtype.Date)
	if got := day.Time.Format(time.DateOnly); got != "2025-06-02" {
		t.Fatalf("trading day = %s", got)
	}
	if hour := db.execArgs[4].(pgtype.Int4); hour.Valid {
		t.Fatalf("nil hour stored as %v", hour)
	}
}

func TestAuditListQuery(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	q, args := listQuery(domain.ListOpts{Since: &since, Limit: 20, Offset: 40})
	want := "SELECT id, event, detail, created_at FROM audit_log WHERE 1=1 AND created_at >= $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	if q != want {
		t.Fatalf("query = %q", q)
	}
	if len(args) != 3 || args[1] != 20 || args[2] != 40 {
		t.Fatalf("args = %v", args)
	}
}

func TestAuditLog(t *testing.T) {
	db := &fakeDB{}
	if err := NewAuditStore(db, "sess").Log(context.Background(), "order_accepted", map[string]any{"symbol": "XYZ"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if db.execArgs[0] != "sess" || db.execArgs[1] != "order_accepted" || string(db.execArgs[2].([]byte)) != `{"symbol":"XYZ"}` {
		t.Fatalf("args = %v", db.execArgs)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migrationNames: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("names = %v", names)
	}
}
