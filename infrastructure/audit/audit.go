package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"clamflow/models"
)

// Service writes audit records inside the caller transaction so history
// commits or rolls back with the change it describes.
type Service struct {
	now func() time.Time
}

func NewService() *Service {
	return &Service{now: time.Now}
}

// Write records before/after JSON snapshots of an entity change.
func (s *Service) Write(ctx context.Context, tx bun.Tx, operatorID int64, action, entityType, entityID string, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return fmt.Errorf("audit %s before: %w", action, err)
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return fmt.Errorf("audit %s after: %w", action, err)
	}
	entry := &models.AuditLog{
		OperatorID: operatorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
		CreatedAt:  s.now().UTC(),
	}
	if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
		return fmt.Errorf("insert audit %s: %w", action, err)
	}
	return nil
}

// History lists the audit trail of one entity, oldest first.
func History(ctx context.Context, db bun.IDB, entityType, entityID string) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := db.NewSelect().
		Model(&out).
		Where("entity_type = ?", entityType).
		Where("entity_id = ?", entityID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audit history: %w", err)
	}
	return out, nil
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
