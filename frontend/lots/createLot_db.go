package lots

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// lotNumber is L + yyMMddHHmm + three random digits.
func (s *Service) lotNumber(now time.Time) string {
	return fmt.Sprintf("L%s%03d", now.Format("0601021504"), s.randN(1000))
}

// CreateLot aggregates pending receipts into a new pending lot.
//
// The receipts are read, summed and claimed in one write transaction. The claim
// only succeeds for receipts still pending, so when two aggregations race over
// the same receipt exactly one commits and the other fails with ErrConflict.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput, now time.Time) (models.Lot, error) {
	ids := dedupeIDs(in.ReceiptIDs)
	if len(ids) == 0 {
		return models.Lot{}, apperr.Invalid("select at least one raw material receipt", "receiptIds")
	}
	now = now.UTC()

	var lot models.Lot
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var receipts []models.RawMaterialReceipt
		if err := tx.NewSelect().
			Model(&receipts).
			Column("id", "weight", "status").
			Where("id IN (?)", bun.In(ids)).
			Scan(ctx); err != nil {
			return fmt.Errorf("load receipts: %w", err)
		}
		if err := checkClaimable(ids, receipts); err != nil {
			return err
		}

		var total float64
		for _, r := range receipts {
			total += r.Weight
		}

		number, err := s.freeLotNumber(ctx, tx, now)
		if err != nil {
			return err
		}
		lot = models.Lot{
			LotNumber:   number,
			ReceiptIDs:  ids,
			TotalWeight: total,
			Notes:       strings.TrimSpace(in.Notes),
			Status:      models.LotPending,
			CreatedAt:   now,
		}
		if _, err := tx.NewInsert().Model(&lot).Exec(ctx); err != nil {
			return fmt.Errorf("insert lot: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*models.RawMaterialReceipt)(nil)).
			Set("status = ?", models.ReceiptAssigned).
			Set("lot_number = ?", number).
			Where("id IN (?)", bun.In(ids)).
			Where("status = ?", models.ReceiptPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("assign receipts: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if claimed != int64(len(ids)) {
			return apperr.Conflict("only %d of %d receipts were still pending", claimed, len(ids))
		}

		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "lot.create", "lot", number, nil, lot)
	})
	if err != nil {
		return models.Lot{}, err
	}
	s.Metrics.LotCreated()
	s.Log.Info("lot created",
		zap.String("lot_number", lot.LotNumber),
		zap.Int("receipts", len(ids)),
		zap.Float64("total_weight", lot.TotalWeight),
	)
	return lot, nil
}

func checkClaimable(ids []int64, receipts []models.RawMaterialReceipt) error {
	found := make(map[int64]models.RawMaterialReceipt, len(receipts))
	for _, r := range receipts {
		found[r.ID] = r
	}
	var missing, taken []string
	for _, id := range ids {
		r, ok := found[id]
		switch {
		case !ok:
			missing = append(missing, strconv.FormatInt(id, 10))
		case r.Status != models.ReceiptPending:
			taken = append(taken, strconv.FormatInt(id, 10))
		}
	}
	if len(missing) > 0 {
		return apperr.NotFound("receipts", strings.Join(missing, ","))
	}
	if len(taken) > 0 {
		sort.Strings(taken)
		return apperr.Conflict("receipts %s are already assigned to a lot", strings.Join(taken, ","))
	}
	return nil
}

func (s *Service) freeLotNumber(ctx context.Context, tx bun.Tx, now time.Time) (string, error) {
	for range 50 {
		candidate := s.lotNumber(now)
		taken, err := tx.NewSelect().Model((*models.Lot)(nil)).Where("lot_number = ?", candidate).Exists(ctx)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperr.Conflict("no free lot number for %s", now.Format("2006-01-02 15:04"))
}

// FindByNumber loads a lot inside tx, mapping a miss to ErrNotFound.
func FindByNumber(ctx context.Context, tx bun.IDB, lotNumber string) (models.Lot, error) {
	var lot models.Lot
	err := tx.NewSelect().Model(&lot).Where("lot_number = ?", strings.TrimSpace(lotNumber)).Limit(1).Scan(ctx)
	if err != nil {
		return models.Lot{}, apperr.NoRows(err, "lot", lotNumber)
	}
	return lot, nil
}

// AdvanceStatus moves a lot forward with a compare-and-swap on its current status.
func AdvanceStatus(ctx context.Context, tx bun.Tx, lot models.Lot, next models.LotStatus, now time.Time) error {
	if !lot.Status.CanAdvanceTo(next) {
		return apperr.Transition("lot %s cannot move from %s to %s", lot.LotNumber, lot.Status, next)
	}
	q := tx.NewUpdate().
		Model((*models.Lot)(nil)).
		Set("status = ?", next).
		Where("id = ?", lot.ID).
		Where("status = ?", lot.Status)
	if next == models.LotCompleted {
		q = q.Set("released_at = ?", now.UTC())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("advance lot %s: %w", lot.LotNumber, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return apperr.Conflict("lot %s changed status concurrently", lot.LotNumber)
	}
	return nil
}
