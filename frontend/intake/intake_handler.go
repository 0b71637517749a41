package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

// ReplayReceipt is the offline replayer for rawMaterial uploads.
func (s *Service) ReplayReceipt(ctx context.Context, payload json.RawMessage) error {
	var in ReceiptInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return apperr.Invalid("corrupt rawMaterial payload: " + err.Error())
	}
	_, err := s.CreateReceipt(ctx, in, time.Now())
	return err
}

func CreateReceiptCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ReceiptInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		receipt, err := svc.CreateReceipt(r.Context(), in, time.Now())
		if err != nil {
			if parked, ok := svc.Queue.Park(r.Context(), models.UploadRawMaterial, in, err); ok {
				svc.Notify.Info("Receipt saved offline and will sync automatically")
				render.Status(r, http.StatusAccepted)
				render.JSON(w, r, parked)
				return
			}
			svc.Notify.Error("Failed to save raw material receipt")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Log.Info("receipt recorded", zap.Int64("receipt_id", receipt.ID), zap.Float64("weight", receipt.Weight))
		svc.Notify.Success(fmt.Sprintf("Receipt of %.2f kg recorded", receipt.Weight))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, receipt)
	}
}

func ListReceiptsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := models.ParseReceiptStatus(r.URL.Query().Get("status"))
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid(err.Error(), "status"))
			return
		}
		receipts, err := svc.ListReceipts(r.Context(), status)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, receipts)
	}
}

func CreatePurchaseOrderCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in PurchaseOrderInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		res, err := svc.CreatePurchaseOrder(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to create purchase order")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success("Purchase order " + res.PurchaseOrder.PONumber + " created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, res)
	}
}

func ListPurchaseOrdersQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListPurchaseOrders(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, orders)
	}
}

func receiptIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid receipt id", "id")
	}
	return id, nil
}

// UploadReceiptPhotoCommandHandler accepts a multipart "photo" file.
func UploadReceiptPhotoCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := receiptIDParam(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
		file, header, err := r.FormFile("photo")
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid("photo file is required", "photo"))
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid("read photo: "+err.Error(), "photo"))
			return
		}
		if err := svc.SetReceiptPhoto(r.Context(), id, data, header.Header.Get("Content-Type"), header.Filename); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ReceiptPhotoQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := receiptIDParam(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		data, mime, err := svc.ReceiptPhoto(r.Context(), id)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.Header().Set("Content-Type", mime)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		_, _ = w.Write(data)
	}
}
