package intake

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/models"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func (in ReceiptInput) validate() error {
	var fields []string
	if in.SupplierID <= 0 {
		fields = append(fields, "supplierId")
	}
	if in.Weight <= 0 {
		fields = append(fields, "weight")
	}
	if len(fields) > 0 {
		return apperr.Invalid("supplier and a positive weight are required", fields...)
	}
	if len(in.Photo) > maxPhotoBytes {
		return apperr.Invalid("photo exceeds 8 MiB", "photo")
	}
	return nil
}

func supplierExists(ctx context.Context, tx bun.Tx, id int64) error {
	ok, err := tx.NewSelect().Model((*models.Supplier)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("supplier", id)
	}
	return nil
}

func normalizeDate(d, now time.Time) time.Time {
	if d.IsZero() {
		return now.UTC()
	}
	return d.UTC()
}

func photoMIME(in ReceiptInput) string {
	if len(in.Photo) == 0 {
		return ""
	}
	if in.PhotoMIME != "" {
		return in.PhotoMIME
	}
	return http.DetectContentType(in.Photo)
}

// CreateReceipt stores a pending receipt. A zero date means now.
func (s *Service) CreateReceipt(ctx context.Context, in ReceiptInput, now time.Time) (models.RawMaterialReceipt, error) {
	if err := in.validate(); err != nil {
		return models.RawMaterialReceipt{}, err
	}
	receipt := models.RawMaterialReceipt{
		SupplierID: in.SupplierID,
		Weight:     in.Weight,
		PhotoBlob:  in.Photo,
		PhotoMIME:  photoMIME(in),
		PhotoName:  strings.TrimSpace(in.PhotoName),
		Date:       normalizeDate(in.Date, now),
		Status:     models.ReceiptPending,
		CreatedAt:  now.UTC(),
	}
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := supplierExists(ctx, tx, in.SupplierID); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(&receipt).Exec(ctx); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		snapshot := receipt
		snapshot.PhotoBlob = nil
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "receipt.create", "raw_material", itoa(receipt.ID), nil, snapshot)
	})
	if err != nil {
		return models.RawMaterialReceipt{}, err
	}
	return receipt, nil
}

// purchaseOrderNumber is PO + yyMMdd + three random digits.
func (s *Service) purchaseOrderNumber(now time.Time) string {
	return fmt.Sprintf("PO%s%03d", now.Format("060102"), s.randN(1000))
}

// CreatePurchaseOrder raises an order and its pending receipt atomically.
func (s *Service) CreatePurchaseOrder(ctx context.Context, in PurchaseOrderInput, now time.Time) (PurchaseOrderResult, error) {
	var fields []string
	if in.SupplierID <= 0 {
		fields = append(fields, "supplierId")
	}
	if in.Weight <= 0 {
		fields = append(fields, "weight")
	}
	if in.PricePerKg < 0 {
		fields = append(fields, "pricePerKg")
	}
	if len(fields) > 0 {
		return PurchaseOrderResult{}, apperr.Invalid("supplier, positive weight and a non-negative price are required", fields...)
	}

	date := normalizeDate(in.Date, now)
	var res PurchaseOrderResult
	err := s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := supplierExists(ctx, tx, in.SupplierID); err != nil {
			return err
		}
		number, err := s.uniqueNumber(ctx, tx, (*models.PurchaseOrder)(nil), "po_number", func() string { return s.purchaseOrderNumber(date) })
		if err != nil {
			return err
		}
		res.PurchaseOrder = models.PurchaseOrder{
			PONumber:    number,
			SupplierID:  in.SupplierID,
			Date:        date,
			Weight:      in.Weight,
			PricePerKg:  in.PricePerKg,
			TotalAmount: in.Weight * in.PricePerKg,
			Status:      models.PurchaseOrderPending,
			CreatedAt:   now.UTC(),
		}
		if _, err := tx.NewInsert().Model(&res.PurchaseOrder).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchase order: %w", err)
		}
		poID := res.PurchaseOrder.ID
		res.Receipt = models.RawMaterialReceipt{
			SupplierID:      in.SupplierID,
			PurchaseOrderID: &poID,
			Weight:          in.Weight,
			Date:            date,
			Status:          models.ReceiptPending,
			CreatedAt:       now.UTC(),
		}
		if _, err := tx.NewInsert().Model(&res.Receipt).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchase order receipt: %w", err)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "purchase_order.create", "purchase_order", number, nil, res.PurchaseOrder)
	})
	if err != nil {
		return PurchaseOrderResult{}, err
	}
	return res, nil
}

// uniqueNumber draws numbers from next until column holds none of them.
func (s *Service) uniqueNumber(ctx context.Context, tx bun.Tx, model any, column string, next func() string) (string, error) {
	for range 20 {
		candidate := next()
		taken, err := tx.NewSelect().Model(model).Where("? = ?", bun.Ident(column), candidate).Exists(ctx)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperr.Conflict("could not allocate a free %s", column)
}

func (s *Service) ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	var out []models.PurchaseOrder
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&out).OrderExpr("date DESC, id DESC").Scan(ctx)
	})
	return out, err
}

// ListReceipts returns receipts newest first, optionally filtered by status.
func (s *Service) ListReceipts(ctx context.Context, status models.ReceiptStatus) ([]ReceiptView, error) {
	var out []ReceiptView
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&out).
			ColumnExpr("rm.id, rm.supplier_id, rm.purchase_order_id, rm.weight, rm.photo_mime, rm.photo_name, rm.date, rm.status, rm.lot_number, rm.created_at").
			ColumnExpr("sp.name AS supplier_name").
			ColumnExpr("rm.photo_blob IS NOT NULL AND length(rm.photo_blob) > 0 AS has_photo").
			ColumnExpr("COALESCE(po.po_number, '') AS po_number").
			Join("JOIN suppliers AS sp ON sp.id = rm.supplier_id").
			Join("LEFT JOIN purchase_orders AS po ON po.id = rm.purchase_order_id").
			OrderExpr("rm.date DESC, rm.id DESC")
		if status != "" {
			q = q.Where("rm.status = ?", status)
		}
		return q.Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	for i := range out {
		if out[i].HasPhoto {
			out[i].PhotoURL = photoURL(out[i].ID)
		}
	}
	return out, nil
}

// SetReceiptPhoto replaces the photo of a receipt.
func (s *Service) SetReceiptPhoto(ctx context.Context, id int64, data []byte, mime, name string) error {
	if len(data) == 0 {
		return apperr.Invalid("photo is empty", "photo")
	}
	if len(data) > maxPhotoBytes {
		return apperr.Invalid("photo exceeds 8 MiB", "photo")
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return s.DB.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.RawMaterialReceipt)(nil)).
			Set("photo_blob = ?", data).
			Set("photo_mime = ?", mime).
			Set("photo_name = ?", name).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update receipt photo: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.NotFound("receipt", id)
		}
		return s.Audit.Write(ctx, tx, sessioncontext.OperatorID(ctx), "receipt.photo", "raw_material", itoa(id), nil, map[string]any{"mime": mime, "name": name, "bytes": len(data)})
	})
}

func (s *Service) ReceiptPhoto(ctx context.Context, id int64) ([]byte, string, error) {
	var receipt models.RawMaterialReceipt
	err := s.DB.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&receipt).Column("photo_blob", "photo_mime").Where("id = ?", id).Scan(ctx)
	})
	if err != nil {
		return nil, "", apperr.NoRows(err, "receipt", id)
	}
	if len(receipt.PhotoBlob) == 0 {
		return nil, "", apperr.NotFound("receipt photo", id)
	}
	return receipt.PhotoBlob, receipt.PhotoMIME, nil
}
