package lots

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

// ListLots returns lots newest first, optionally filtered by status.
func (s *Service) ListLots(ctx context.Context, status models.LotStatus) ([]LotSummary, error) {
	var out []LotSummary
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var lots []models.Lot
		q := tx.NewSelect().Model(&lots).OrderExpr("l.created_at DESC, l.id DESC")
		if status != "" {
			q = q.Where("l.status = ?", status)
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("list lots: %w", err)
		}
		var err error
		out, err = summarize(ctx, tx, lots)
		return err
	})
	return out, err
}

// GetLot returns a lot with its depuration, processing and quality records.
func (s *Service) GetLot(ctx context.Context, lotNumber string) (LotDetail, error) {
	var detail LotDetail
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		lot, err := FindByNumber(ctx, tx, lotNumber)
		if err != nil {
			return err
		}
		summaries, err := summarize(ctx, tx, []models.Lot{lot})
		if err != nil {
			return err
		}
		detail.LotSummary = summaries[0]

		var dep models.Depuration
		switch err := tx.NewSelect().Model(&dep).Where("lot_id = ?", lot.ID).Scan(ctx); {
		case err == nil:
			detail.Depuration = &dep
		case !apperr.IsNoRows(err):
			return fmt.Errorf("load depuration: %w", err)
		}

		if err := tx.NewSelect().Model(&detail.Batches).Where("lot_id = ?", lot.ID).OrderExpr("date ASC, id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("load batches: %w", err)
		}
		if err := AttachBoxes(ctx, tx, detail.Batches); err != nil {
			return err
		}

		if err := tx.NewSelect().Model(&detail.Checklists).Where("lot_id = ?", lot.ID).OrderExpr("created_at ASC, id ASC").Scan(ctx); err != nil {
			return fmt.Errorf("load checklists: %w", err)
		}

		var rel models.FinalRelease
		switch err := tx.NewSelect().Model(&rel).Where("lot_id = ?", lot.ID).Scan(ctx); {
		case err == nil:
			detail.Release = &rel
		case !apperr.IsNoRows(err):
			return fmt.Errorf("load release: %w", err)
		}

		detail.Packages, err = tx.NewSelect().Model((*models.Package)(nil)).Where("lot_id = ?", lot.ID).Count(ctx)
		return err
	})
	if detail.Batches == nil {
		detail.Batches = []models.ProcessingBatch{}
	}
	if detail.Checklists == nil {
		detail.Checklists = []models.QCChecklist{}
	}
	return detail, err
}

// AttachBoxes loads the boxes of batches in position order.
func AttachBoxes(ctx context.Context, tx bun.IDB, batches []models.ProcessingBatch) error {
	if len(batches) == 0 {
		return nil
	}
	ids := make([]int64, len(batches))
	index := make(map[int64]int, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
		index[b.ID] = i
		batches[i].Boxes = []models.Box{}
	}
	var boxes []models.Box
	if err := tx.NewSelect().Model(&boxes).Where("batch_id IN (?)", bun.In(ids)).OrderExpr("batch_id ASC, position ASC").Scan(ctx); err != nil {
		return fmt.Errorf("load boxes: %w", err)
	}
	for _, b := range boxes {
		i := index[b.BatchID]
		batches[i].Boxes = append(batches[i].Boxes, b)
	}
	return nil
}

func summarize(ctx context.Context, tx bun.IDB, lots []models.Lot) ([]LotSummary, error) {
	out := make([]LotSummary, len(lots))
	if len(lots) == 0 {
		return out, nil
	}
	numbers := make([]string, len(lots))
	lotIDs := make([]int64, len(lots))
	byNumber := make(map[string]int, len(lots))
	byID := make(map[int64]int, len(lots))
	for i, l := range lots {
		numbers[i] = l.LotNumber
		lotIDs[i] = l.ID
		byNumber[l.LotNumber] = i
		byID[l.ID] = i
		out[i] = LotSummary{
			Lot:              l,
			Suppliers:        []string{},
			RawMaterials:     []ReceiptLine{},
			DepurationStatus: models.DepurationPending,
		}
	}

	var lines []ReceiptLine
	err := tx.NewSelect().
		TableExpr("raw_materials AS rm").
		ColumnExpr("rm.id, rm.lot_number, rm.weight, rm.date").
		ColumnExpr("sp.name AS supplier_name").
		Join("JOIN suppliers AS sp ON sp.id = rm.supplier_id").
		Where("rm.lot_number IN (?)", bun.In(numbers)).
		OrderExpr("rm.date ASC, rm.id ASC").
		Scan(ctx, &lines)
	if err != nil {
		return nil, fmt.Errorf("load lot receipts: %w", err)
	}
	for _, line := range lines {
		i := byNumber[line.LotNumber]
		out[i].RawMaterials = append(out[i].RawMaterials, line)
	}
	for i := range out {
		seen := map[string]struct{}{}
		for _, line := range out[i].RawMaterials {
			if _, ok := seen[line.SupplierName]; ok {
				continue
			}
			seen[line.SupplierName] = struct{}{}
			out[i].Suppliers = append(out[i].Suppliers, line.SupplierName)
		}
		sort.Strings(out[i].Suppliers)
	}

	var deps []models.Depuration
	if err := tx.NewSelect().Model(&deps).Column("lot_id", "status").Where("lot_id IN (?)", bun.In(lotIDs)).Scan(ctx); err != nil {
		return nil, fmt.Errorf("load depuration status: %w", err)
	}
	for _, d := range deps {
		out[byID[d.LotID]].DepurationStatus = d.Status
	}
	return out, nil
}

// SelectableLots lists the lots a stage screen may act on.
//
//	depuration: pending lots whose depuration has not completed
//	processing: pending or processing lots with completed depuration
//	packaging:  processing lots with at least one batch
//	release:    processing lots
func (s *Service) SelectableLots(ctx context.Context, stage Stage) ([]LotSummary, error) {
	var out []LotSummary
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var lots []models.Lot
		q := tx.NewSelect().Model(&lots).OrderExpr("l.created_at ASC, l.id ASC")
		switch stage {
		case StageDepuration:
			q = q.Where("l.status = ?", models.LotPending).
				Where("NOT EXISTS (SELECT 1 FROM depurations AS d WHERE d.lot_id = l.id AND d.status = ?)", models.DepurationCompleted)
		case StageProcessing:
			q = q.Where("l.status IN (?)", bun.In([]models.LotStatus{models.LotPending, models.LotProcessing})).
				Where("EXISTS (SELECT 1 FROM depurations AS d WHERE d.lot_id = l.id AND d.status = ?)", models.DepurationCompleted)
		case StagePackaging:
			q = q.Where("l.status = ?", models.LotProcessing).
				Where("EXISTS (SELECT 1 FROM processing_batches AS pb WHERE pb.lot_id = l.id)")
		case StageRelease:
			q = q.Where("l.status = ?", models.LotProcessing)
		default:
			return apperr.Invalid(fmt.Sprintf("unknown stage %q", stage), "stage")
		}
		if err := q.Scan(ctx); err != nil {
			return fmt.Errorf("selectable lots: %w", err)
		}
		var err error
		out, err = summarize(ctx, tx, lots)
		return err
	})
	return out, err
}
