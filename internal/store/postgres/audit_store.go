package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// AuditStore implements domain.AuditStore. Every row is tagged with the
// session that wrote it.
type AuditStore struct {
	db        querier
	sessionID string
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(db querier, sessionID string) *AuditStore {
	return &AuditStore{db: db, sessionID: sessionID}
}

// Log appends an audit entry. detail is stored as JSONB.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}
	const query = `INSERT INTO audit_log (session_id, event, detail) VALUES ($1, $2, $3)`
	if _, err := s.db.Exec(ctx, query, s.sessionID, event, detailJSON); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", event, err)
	}
	return nil
}

// listQuery builds the List statement for opts.
func listQuery(opts domain.ListOpts) (string, []any) {
	query := `SELECT id, event, detail, created_at FROM audit_log WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if opts.Since != nil {
		add(" AND created_at >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		add(" AND created_at <= $%d", *opts.Until)
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		add(" LIMIT $%d", opts.Limit)
	}
	if opts.Offset > 0 {
		add(" OFFSET $%d", opts.Offset)
	}
	return query, args
}

// List returns audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	query, args := listQuery(opts)
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e          domain.AuditEntry
			detailJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit entries rows: %w", err)
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
