package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type entryRow struct {
	ID         int64     `bun:"id"`
	CreatedAt  time.Time `bun:"created_at"`
	Actor      string    `bun:"actor"`
	Action     string    `bun:"action"`
	EntityType string    `bun:"entity_type"`
	EntityID   string    `bun:"entity_id"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
}

const entrySelect = `
SELECT
	al.id,
	al.created_at,
	COALESCE(op.username, '-') AS actor,
	al.action,
	al.entity_type,
	al.entity_id,
	COALESCE(al.before_json, '') AS before_json,
	COALESCE(al.after_json, '') AS after_json
FROM audit_logs AS al
LEFT JOIN operators AS op ON op.id = al.operator_id`

func rawJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

func toEntries(rows []entryRow) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, Entry{
			ID:         row.ID,
			CreatedAt:  row.CreatedAt,
			Actor:      strings.TrimSpace(row.Actor),
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Before:     rawJSON(row.BeforeJSON),
			After:      rawJSON(row.AfterJSON),
		})
	}
	return out
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}

// List returns audit entries newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.EntityType != "" {
		where = append(where, "al.entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		where = append(where, "al.entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.Action != "" {
		where = append(where, "al.action = ?")
		args = append(args, f.Action)
	}
	query := entrySelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY al.id DESC\nLIMIT ?"
	args = append(args, clampLimit(f.Limit))

	var rows []entryRow
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(query, args...).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return toEntries(rows), nil
}

// LotTrail returns every change touching a lot, oldest first: the lot's own
// entries plus those whose snapshots carry its lot number, such as packages
// and the receipts it absorbed.
func (s *Service) LotTrail(ctx context.Context, lotNumber string) ([]Entry, error) {
	var rows []entryRow
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(entrySelect+`
WHERE
	(al.entity_type = 'lot' AND al.entity_id = ?)
	OR (json_valid(al.after_json) = 1 AND json_extract(al.after_json, '$.lotNumber') = ?)
	OR (json_valid(al.before_json) = 1 AND json_extract(al.before_json, '$.lotNumber') = ?)
ORDER BY al.id ASC`, lotNumber, lotNumber, lotNumber).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, fmt.Errorf("load lot trail: %w", err)
	}
	return toEntries(rows), nil
}
