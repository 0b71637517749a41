package processing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/admin"
	"clamflow/frontend/lots"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

// weightTolerance absorbs float noise when summing box weights.
const weightTolerance = 1e-9

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalize checks every box and fills in missing box numbers. A supplied
// number must carry its product type's prefix and appear once per batch.
// Boxes without a grade are reported together by box number.
func (s *Service) normalize(in SubmitInput) (SubmitInput, error) {
	in.LotNumber = strings.TrimSpace(in.LotNumber)
	if in.LotNumber == "" {
		return in, apperr.Invalid("lot number is required", "lotNumber")
	}
	if len(in.Boxes) == 0 {
		return in, apperr.Invalid("add at least one box", "boxes")
	}
	boxes := make([]BoxInput, len(in.Boxes))
	var ungraded []string
	seen := make(map[string]bool, len(in.Boxes))
	for i, b := range in.Boxes {
		if !b.Type.Valid() {
			return in, apperr.Invalid(fmt.Sprintf("box %d has unknown product type %q", i+1, b.Type), "boxes.type")
		}
		if b.Weight <= 0 || math.IsNaN(b.Weight) || math.IsInf(b.Weight, 0) {
			return in, apperr.Invalid(fmt.Sprintf("box %d needs a weight above zero", i+1), "boxes.weight")
		}
		b.BoxNumber = strings.ToUpper(strings.TrimSpace(b.BoxNumber))
		switch {
		case b.BoxNumber == "":
			n, err := s.Boxes.Next(b.Type)
			if err != nil {
				return in, err
			}
			b.BoxNumber, b.generated = n, true
		case !boxNumberRe.MatchString(b.BoxNumber):
			return in, apperr.Invalid(fmt.Sprintf("box %d number %q must be two letters and six digits", i+1, b.BoxNumber), "boxes.boxNumber")
		case b.BoxNumber[:2] != b.Type.BoxPrefix():
			return in, apperr.Invalid(fmt.Sprintf("box %s must start with %s for %s", b.BoxNumber, b.Type.BoxPrefix(), b.Type), "boxes.boxNumber")
		}
		if seen[b.BoxNumber] {
			return in, apperr.Invalid("box "+b.BoxNumber+" appears more than once", "boxes.boxNumber")
		}
		seen[b.BoxNumber] = true
		b.Grade = strings.ToUpper(strings.TrimSpace(b.Grade))
		if b.Grade == "" {
			ungraded = append(ungraded, b.BoxNumber)
		}
		boxes[i] = b
	}
	if len(ungraded) > 0 {
		return in, apperr.Invalid("select a grade for boxes "+strings.Join(ungraded, ", "), "boxes.grade")
	}
	in.Boxes = boxes
	return in, nil
}

// Submit records a processing batch against a lot and computes its yield
// against the lot's total weight. A pending lot moves to processing in the
// same transaction. The lot does not need a completed depuration; only the
// processing pick list filters on that.
func (s *Service) Submit(ctx context.Context, in SubmitInput, now time.Time) (models.ProcessingBatch, error) {
	in, err := s.normalize(in)
	if err != nil {
		return models.ProcessingBatch{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = now
	}

	var batch models.ProcessingBatch
	err = s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		if lot.Status == models.LotCompleted {
			return apperr.Transition("lot %s is already released", lot.LotNumber)
		}

		checked := map[string]bool{}
		for _, b := range in.Boxes {
			key := string(b.Type) + "/" + b.Grade
			if _, done := checked[key]; done {
				continue
			}
			ok, err := admin.GradeExists(ctx, tx, b.Type, b.Grade)
			if err != nil {
				return err
			}
			checked[key] = ok
			if !ok {
				return apperr.Invalid(fmt.Sprintf("grade %s is not defined for %s", b.Grade, b.Type), "boxes.grade")
			}
		}

		if err := s.claimBoxNumbers(ctx, tx, in.Boxes); err != nil {
			return err
		}

		var shellOn, meat float64
		for _, b := range in.Boxes {
			if b.Type == models.ShellOn {
				shellOn += b.Weight
			} else {
				meat += b.Weight
			}
		}
		yield := round2((shellOn + meat) / lot.TotalWeight * 100)

		batch = models.ProcessingBatch{
			LotID:             lot.ID,
			LotNumber:         lot.LotNumber,
			ShellOnWeight:     round2(shellOn),
			MeatWeight:        round2(meat),
			YieldPercentage:   yield,
			YieldExceedsInput: shellOn+meat-lot.TotalWeight > weightTolerance,
			Status:            models.BatchCompleted,
			Date:              date.UTC(),
			CreatedByID:       sessioncontext.OperatorID(ctx),
		}
		if _, err := tx.NewInsert().Model(&batch).Exec(ctx); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		batch.Boxes = make([]models.Box, len(in.Boxes))
		for i, b := range in.Boxes {
			batch.Boxes[i] = models.Box{
				BatchID:   batch.ID,
				Position:  i + 1,
				Type:      b.Type,
				Weight:    b.Weight,
				BoxNumber: b.BoxNumber,
				Grade:     b.Grade,
			}
		}
		if _, err := tx.NewInsert().Model(&batch.Boxes).Exec(ctx); err != nil {
			return fmt.Errorf("insert boxes: %w", err)
		}

		if lot.Status == models.LotPending {
			if err := lots.AdvanceStatus(ctx, tx, lot, models.LotProcessing, now); err != nil {
				return err
			}
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "processing.submit", "lot", lot.LotNumber, nil, batch)
	})
	if err != nil {
		return models.ProcessingBatch{}, err
	}

	s.Metrics.BatchRecorded(batch.YieldPercentage)
	fields := []zap.Field{
		zap.String("lot_number", batch.LotNumber),
		zap.Int("boxes", len(batch.Boxes)),
		zap.Float64("yield", batch.YieldPercentage),
	}
	if batch.YieldExceedsInput {
		s.Log.Warn("processing yield exceeds lot input", fields...)
	} else {
		s.Log.Info("processing batch recorded", fields...)
	}
	return batch, nil
}

// claimBoxNumbers rejects supplied numbers already stored on another batch and
// redraws generated ones that collide with stored numbers.
func (s *Service) claimBoxNumbers(ctx context.Context, tx bun.Tx, boxes []BoxInput) error {
	taken := func(n string) (bool, error) {
		return tx.NewSelect().Model((*models.Box)(nil)).Where("box_number = ?", n).Exists(ctx)
	}
	for i := range boxes {
		b := &boxes[i]
		for attempt := 0; ; attempt++ {
			used, err := taken(b.BoxNumber)
			if err != nil {
				return fmt.Errorf("check box %s: %w", b.BoxNumber, err)
			}
			if !used {
				break
			}
			if !b.generated {
				return apperr.Conflict("box %s is already recorded", b.BoxNumber)
			}
			if attempt == maxBoxNumberAttempts {
				return fmt.Errorf("box numbers for %s exhausted", b.Type)
			}
			n, err := s.Boxes.Next(b.Type)
			if err != nil {
				return err
			}
			b.BoxNumber = n
		}
	}
	return nil
}

// ListBatches returns batches newest first, with boxes. An empty lotNumber lists all.
func (s *Service) ListBatches(ctx context.Context, lotNumber string) ([]models.ProcessingBatch, error) {
	batches := []models.ProcessingBatch{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&batches).OrderExpr("pb.date DESC, pb.id DESC")
		if lotNumber = strings.TrimSpace(lotNumber); lotNumber != "" {
			q = q.Where("pb.lot_number = ?", lotNumber)
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("list batches: %w", err)
		}
		return lots.AttachBoxes(ctx, tx, batches)
	})
	return batches, err
}

func (s *Service) RecordShellWeight(ctx context.Context, in ShellWeightInput, now time.Time) (models.ShellWeight, error) {
	if in.Weight <= 0 || math.IsNaN(in.Weight) || math.IsInf(in.Weight, 0) {
		return models.ShellWeight{}, apperr.Invalid("shell weight must be above zero", "weight")
	}
	date := in.Date
	if date.IsZero() {
		date = now
	}
	entry := models.ShellWeight{
		Weight:    in.Weight,
		Date:      date.UTC(),
		Notes:     strings.TrimSpace(in.Notes),
		CreatedAt: now.UTC(),
	}
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return fmt.Errorf("insert shell weight: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "shell_weight.create", "shell_weight", fmt.Sprint(entry.ID), nil, entry)
	})
	if err != nil {
		return models.ShellWeight{}, err
	}
	return entry, nil
}

func (s *Service) ListShellWeights(ctx context.Context) ([]models.ShellWeight, error) {
	entries := []models.ShellWeight{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&entries).OrderExpr("sw.date DESC, sw.id DESC").Scan(ctx)
	})
	return entries, err
}

// VerifyYield cross-checks processed and shell weight against raw input.
func VerifyYield(raw, processed, shell float64) (YieldCheck, error) {
	for name, v := range map[string]float64{"rawWeight": raw, "processedWeight": processed, "shellWeight": shell} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return YieldCheck{}, apperr.Invalid(name+" must be zero or more", name)
		}
	}
	check := YieldCheck{
		RawWeight:       raw,
		ProcessedWeight: processed,
		ShellWeight:     shell,
		Unaccounted:     round2(raw - processed - shell),
	}
	if raw > 0 {
		check.YieldPercentage = round2(processed / raw * 100)
		check.ShellPercentage = round2(shell / raw * 100)
	}
	return check, nil
}
