package exports

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"clamflow/models"
)

// Load reads the records of kind into a table, oldest first.
func (s *Service) Load(ctx context.Context, kind Kind) (Table, error) {
	var t Table
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		switch kind {
		case KindLots:
			t, err = lotsTable(ctx, tx)
		case KindReceipts:
			t, err = receiptsTable(ctx, tx)
		case KindPackages:
			t, err = packagesTable(ctx, tx)
		case KindProcessing:
			t, err = processingTable(ctx, tx)
		default:
			err = fmt.Errorf("unknown export kind %q", kind)
		}
		return err
	})
	return t, err
}

func lotsTable(ctx context.Context, tx bun.Tx) (Table, error) {
	type row struct {
		models.Lot `bun:",extend"`

		Suppliers        string  `bun:"suppliers"`
		DepurationStatus *string `bun:"depuration_status"`
		BatchCount       int     `bun:"batch_count"`
		AvgYield         float64 `bun:"avg_yield"`
	}
	var rows []row
	err := tx.NewSelect().
		Model(&rows).
		ColumnExpr("l.*").
		ColumnExpr("COALESCE((SELECT group_concat(name, '; ') FROM (SELECT DISTINCT sp.name FROM raw_materials AS rm JOIN suppliers AS sp ON sp.id = rm.supplier_id WHERE rm.lot_number = l.lot_number ORDER BY sp.name)), '') AS suppliers").
		ColumnExpr("(SELECT d.status FROM depurations AS d WHERE d.lot_id = l.id) AS depuration_status").
		ColumnExpr("(SELECT COUNT(*) FROM processing_batches AS pb WHERE pb.lot_id = l.id) AS batch_count").
		ColumnExpr("COALESCE((SELECT AVG(pb.yield_percentage) FROM processing_batches AS pb WHERE pb.lot_id = l.id), 0.0) AS avg_yield").
		OrderExpr("l.created_at ASC, l.id ASC").
		Scan(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("load lots: %w", err)
	}
	t := Table{Columns: []string{"lotNumber", "status", "totalWeight", "suppliers", "receiptCount", "depurationStatus", "batchCount", "averageYield", "notes", "createdAt", "releasedAt"}}
	for _, r := range rows {
		dep := string(models.DepurationPending)
		if r.DepurationStatus != nil {
			dep = *r.DepurationStatus
		}
		t.Rows = append(t.Rows, []any{
			r.LotNumber, string(r.Status), r.TotalWeight, r.Suppliers, len(r.ReceiptIDs),
			dep, r.BatchCount, round2(r.AvgYield), r.Notes, r.CreatedAt, r.ReleasedAt,
		})
	}
	return t, nil
}

func receiptsTable(ctx context.Context, tx bun.Tx) (Table, error) {
	type row struct {
		models.RawMaterialReceipt `bun:",extend"`

		SupplierName string  `bun:"supplier_name"`
		PONumber     *string `bun:"po_number"`
	}
	var rows []row
	err := tx.NewSelect().
		Model(&rows).
		ColumnExpr("rm.id, rm.supplier_id, rm.purchase_order_id, rm.weight, rm.date, rm.status, rm.lot_number, rm.created_at").
		ColumnExpr("sp.name AS supplier_name").
		ColumnExpr("po.po_number").
		Join("JOIN suppliers AS sp ON sp.id = rm.supplier_id").
		Join("LEFT JOIN purchase_orders AS po ON po.id = rm.purchase_order_id").
		OrderExpr("rm.date ASC, rm.id ASC").
		Scan(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("load receipts: %w", err)
	}
	t := Table{Columns: []string{"id", "supplier", "poNumber", "weight", "date", "status", "lotNumber"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.ID, r.SupplierName, r.PONumber, r.Weight, r.Date, string(r.Status), r.LotNumber})
	}
	return t, nil
}

func packagesTable(ctx context.Context, tx bun.Tx) (Table, error) {
	var packages []models.Package
	if err := tx.NewSelect().Model(&packages).OrderExpr("pk.packed_at ASC, pk.id ASC").Scan(ctx); err != nil {
		return Table{}, fmt.Errorf("load packages: %w", err)
	}
	t := Table{Columns: []string{"boxNumber", "lotNumber", "type", "grade", "weight", "packingDate", "shipmentId", "qrCode"}}
	for _, p := range packages {
		var shipment any
		if p.ShipmentID != nil {
			shipment = *p.ShipmentID
		}
		t.Rows = append(t.Rows, []any{p.BoxNumber, p.LotNumber, string(p.Type), p.Grade, p.Weight, p.PackedAt, shipment, p.QRPayload})
	}
	return t, nil
}

func processingTable(ctx context.Context, tx bun.Tx) (Table, error) {
	type row struct {
		models.ProcessingBatch `bun:",extend"`

		BoxCount int `bun:"box_count"`
	}
	var rows []row
	err := tx.NewSelect().
		Model(&rows).
		ColumnExpr("pb.*").
		ColumnExpr("(SELECT COUNT(*) FROM processing_boxes AS bx WHERE bx.batch_id = pb.id) AS box_count").
		OrderExpr("pb.date ASC, pb.id ASC").
		Scan(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("load batches: %w", err)
	}
	t := Table{Columns: []string{"id", "lotNumber", "date", "shellOnWeight", "meatWeight", "boxCount", "yieldPercentage", "yieldExceedsInput", "status"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.ID, r.LotNumber, r.Date, r.ShellOnWeight, r.MeatWeight, r.BoxCount, r.YieldPercentage, r.YieldExceedsInput, string(r.Status)})
	}
	return t, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// recordRun notes a generated export. Callers treat failures as non-fatal.
func (s *Service) recordRun(ctx context.Context, operatorID int64, kind Kind, format Format, rows int, now time.Time) error {
	return s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		run := models.ExportRun{
			OperatorID: operatorID,
			Kind:       string(kind),
			Format:     string(format),
			RowCount:   rows,
			CreatedAt:  now.UTC(),
		}
		_, err := tx.NewInsert().Model(&run).Exec(ctx)
		return err
	})
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.ExportRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	runs := []models.ExportRun{}
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&runs).OrderExpr("er.created_at DESC, er.id DESC").Limit(limit).Scan(ctx)
	})
	return runs, err
}
