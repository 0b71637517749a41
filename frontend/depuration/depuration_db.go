package depuration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/lots"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

// Elapsed splits now-start into whole hours and remaining minutes. A start in
// the future counts as zero.
func Elapsed(start, now time.Time) Duration {
	d := now.Sub(start)
	if d < 0 {
		return Duration{}
	}
	return Duration{
		Hours:   int64(d / time.Hour),
		Minutes: int64((d % time.Hour) / time.Minute),
	}
}

func (r Readings) missing() []string {
	var fields []string
	if r.Temperature == nil {
		fields = append(fields, "temperature")
	}
	if r.Salinity == nil {
		fields = append(fields, "salinity")
	}
	return fields
}

func (in StartInput) validate() error {
	fields := in.missing()
	if strings.TrimSpace(in.LotNumber) == "" {
		fields = append([]string{"lotNumber"}, fields...)
	}
	if strings.TrimSpace(in.TankNumber) == "" {
		fields = append(fields, "tankNumber")
	}
	if len(fields) > 0 {
		return apperr.Invalid("missing "+strings.Join(fields, ", "), fields...)
	}
	return nil
}

// Start opens the depuration of a lot. A lot is depurated at most once.
func (s *Service) Start(ctx context.Context, in StartInput, now time.Time) (models.Depuration, error) {
	if err := in.validate(); err != nil {
		return models.Depuration{}, err
	}
	var dep models.Depuration
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		if lot.Status == models.LotCompleted {
			return apperr.Transition("lot %s is already released", lot.LotNumber)
		}
		exists, err := tx.NewSelect().Model((*models.Depuration)(nil)).Where("lot_id = ?", lot.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Transition("depuration of lot %s has already started", lot.LotNumber)
		}
		dep = models.Depuration{
			LotID:            lot.ID,
			Status:           models.DepurationInProgress,
			TankNumber:       strings.TrimSpace(in.TankNumber),
			StartedAt:        now.UTC(),
			StartTemperature: *in.Temperature,
			StartSalinity:    *in.Salinity,
		}
		if _, err := tx.NewInsert().Model(&dep).Exec(ctx); err != nil {
			return fmt.Errorf("insert depuration: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "depuration.start", "lot", lot.LotNumber, nil, dep)
	})
	if err != nil {
		return models.Depuration{}, err
	}
	s.Log.Info("depuration started", zap.String("lot_number", in.LotNumber), zap.String("tank", dep.TankNumber))
	return dep, nil
}

// Complete closes an in-progress depuration and freezes its duration in whole hours.
func (s *Service) Complete(ctx context.Context, in CompleteInput, now time.Time) (models.Depuration, error) {
	if fields := in.missing(); len(fields) > 0 {
		return models.Depuration{}, apperr.Invalid("missing "+strings.Join(fields, ", "), fields...)
	}
	now = now.UTC()
	var dep models.Depuration
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		if err := tx.NewSelect().Model(&dep).Where("lot_id = ?", lot.ID).Scan(ctx); err != nil {
			if apperr.IsNoRows(err) {
				return apperr.Transition("depuration of lot %s has not started", lot.LotNumber)
			}
			return err
		}
		before := dep

		dep.Status = models.DepurationCompleted
		dep.EndTemperature = in.Temperature
		dep.EndSalinity = in.Salinity
		dep.CompletedAt = &now
		dep.DurationHours = Elapsed(dep.StartedAt, now).Hours

		res, err := tx.NewUpdate().
			Model(&dep).
			Column("status", "end_temperature", "end_salinity", "completed_at", "duration_hours").
			WherePK().
			Where("status = ?", models.DepurationInProgress).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete depuration: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperr.Transition("depuration of lot %s is not in progress", lot.LotNumber)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "depuration.complete", "lot", lot.LotNumber, before, dep)
	})
	if err != nil {
		return models.Depuration{}, err
	}
	s.Log.Info("depuration completed", zap.String("lot_number", in.LotNumber), zap.Int64("duration_hours", dep.DurationHours))
	return dep, nil
}

// ListActive returns in-progress depurations, longest running first.
func (s *Service) ListActive(ctx context.Context, now time.Time) ([]Active, error) {
	type row struct {
		models.Depuration `bun:",extend"`

		LotNumber string `bun:"lot_number"`
	}
	var rows []row
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&rows).
			ColumnExpr("d.*").
			ColumnExpr("l.lot_number").
			Join("JOIN lots AS l ON l.id = d.lot_id").
			Where("d.status = ?", models.DepurationInProgress).
			OrderExpr("d.started_at ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Active, len(rows))
	for i, r := range rows {
		out[i] = Active{LotNumber: r.LotNumber, Record: r.Depuration, Elapsed: Elapsed(r.StartedAt, now)}
	}
	return out, nil
}
