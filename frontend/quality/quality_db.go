package quality

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/lots"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

// resolve matches results to the stage checklist. Every criterion must be
// decided once and no unknown keys are allowed.
func resolve(stage models.QCStage, results []Result) ([]models.QCItem, bool, error) {
	criteria := Checklist(stage)
	if len(criteria) == 0 {
		return nil, false, apperr.Invalid(fmt.Sprintf("unknown qc stage %q", stage), "stage")
	}
	byKey := make(map[string]Result, len(results))
	for _, r := range results {
		if _, dup := byKey[r.Key]; dup {
			return nil, false, apperr.Invalid("criterion "+r.Key+" was answered twice", "items")
		}
		byKey[r.Key] = r
	}

	items := make([]models.QCItem, 0, len(criteria))
	passed := true
	var unresolved []string
	for _, c := range criteria {
		r, ok := byKey[c.Key]
		delete(byKey, c.Key)
		if !ok || r.Passed == nil {
			unresolved = append(unresolved, c.Label)
			continue
		}
		passed = passed && *r.Passed
		items = append(items, models.QCItem{Key: c.Key, Label: c.Label, Passed: *r.Passed, Notes: strings.TrimSpace(r.Notes)})
	}
	if len(byKey) > 0 {
		unknown := make([]string, 0, len(byKey))
		for k := range byKey {
			unknown = append(unknown, k)
		}
		sort.Strings(unknown)
		return nil, false, apperr.Invalid("unknown criteria "+strings.Join(unknown, ", "), "items")
	}
	if len(unresolved) > 0 {
		return nil, false, apperr.Invalid("mark pass or fail for: "+strings.Join(unresolved, "; "), "items")
	}
	return items, passed, nil
}

// Submit stores the checklist of one stage for a lot, replacing any earlier
// submission for that stage. Checklists are informational and never gate the
// lot's status.
func (s *Service) Submit(ctx context.Context, in SubmitInput, now time.Time) (models.QCChecklist, error) {
	items, passed, err := resolve(in.Stage, in.Results)
	if err != nil {
		return models.QCChecklist{}, err
	}
	var checklist models.QCChecklist
	err = s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		var before *models.QCChecklist
		var prev models.QCChecklist
		switch err := tx.NewSelect().Model(&prev).Where("lot_id = ? AND stage = ?", lot.ID, in.Stage).Scan(ctx); {
		case err == nil:
			before = &prev
		case !apperr.IsNoRows(err):
			return err
		}

		checklist = models.QCChecklist{
			LotID:       lot.ID,
			Stage:       in.Stage,
			Items:       items,
			Passed:      passed,
			InspectorID: sessioncontext.OperatorID(ctx),
			CreatedAt:   now.UTC(),
		}
		if _, err := tx.NewInsert().
			Model(&checklist).
			On("CONFLICT (lot_id, stage) DO UPDATE").
			Set("items = EXCLUDED.items").
			Set("passed = EXCLUDED.passed").
			Set("inspector_operator_id = EXCLUDED.inspector_operator_id").
			Set("created_at = EXCLUDED.created_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("store checklist: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "qc.submit", "lot", lot.LotNumber, before, checklist)
	})
	if err != nil {
		return models.QCChecklist{}, err
	}
	s.Log.Info("qc checklist submitted",
		zap.String("lot_number", in.LotNumber),
		zap.String("stage", string(in.Stage)),
		zap.Bool("passed", passed),
	)
	return checklist, nil
}

// ListChecklists returns a lot's checklists in production stage order.
func (s *Service) ListChecklists(ctx context.Context, lotNumber string) ([]models.QCChecklist, error) {
	checklists := []models.QCChecklist{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, lotNumber)
		if err != nil {
			return err
		}
		return tx.NewSelect().Model(&checklists).Where("lot_id = ?", lot.ID).
			OrderExpr("CASE qc.stage WHEN ? THEN 0 WHEN ? THEN 1 WHEN ? THEN 2 WHEN ? THEN 3 ELSE 4 END, qc.id ASC",
				models.StageRawMaterial, models.StageDepuration, models.StageProcessing, models.StagePackaging).
			Scan(ctx)
	})
	return checklists, err
}

func (in ReleaseInput) unconfirmed() []string {
	var fields []string
	for name, ok := range map[string]bool{
		"qualityCheckPassed":    in.QualityCheckPassed,
		"yieldVerified":         in.YieldVerified,
		"documentationComplete": in.DocumentationComplete,
		"packagingCorrect":      in.PackagingCorrect,
		"labelingComplete":      in.LabelingComplete,
	} {
		if !ok {
			fields = append(fields, name)
		}
	}
	return fields
}

// Release completes a lot in processing once every confirmation is given.
func (s *Service) Release(ctx context.Context, in ReleaseInput, now time.Time) (models.FinalRelease, error) {
	if missing := in.unconfirmed(); len(missing) > 0 {
		sort.Strings(missing)
		return models.FinalRelease{}, apperr.Invalid("all release confirmations must be checked", missing...)
	}
	now = now.UTC()
	var release models.FinalRelease
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := lots.FindByNumber(ctx, tx, in.LotNumber)
		if err != nil {
			return err
		}
		if lot.Status != models.LotProcessing {
			return apperr.Transition("lot %s is %s; only lots in processing can be released", lot.LotNumber, lot.Status)
		}
		if err := lots.AdvanceStatus(ctx, tx, lot, models.LotCompleted, now); err != nil {
			return err
		}
		release = models.FinalRelease{
			LotID:                 lot.ID,
			QualityCheckPassed:    true,
			YieldVerified:         true,
			DocumentationComplete: true,
			PackagingCorrect:      true,
			LabelingComplete:      true,
			Notes:                 strings.TrimSpace(in.Notes),
			ReleasedByID:          sessioncontext.OperatorID(ctx),
			ReleasedAt:            now,
		}
		if _, err := tx.NewInsert().Model(&release).Exec(ctx); err != nil {
			return fmt.Errorf("insert release: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "lot.release", "lot", lot.LotNumber, lot, release)
	})
	if err != nil {
		return models.FinalRelease{}, err
	}
	s.Log.Info("lot released", zap.String("lot_number", in.LotNumber))
	return release, nil
}
