package packaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

// ReplayPackage is the offline replayer for packaging uploads.
func (s *Service) ReplayPackage(ctx context.Context, payload json.RawMessage) error {
	var in PackageInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return apperr.Invalid("corrupt packaging payload: " + err.Error())
	}
	_, err := s.CreatePackage(ctx, in, time.Now())
	return err
}

func CreatePackageCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in PackageInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		pkg, err := svc.CreatePackage(r.Context(), in, time.Now())
		if err != nil {
			if parked, ok := svc.Queue.Park(r.Context(), models.UploadPackaging, in, err); ok {
				svc.Notify.Info("Package saved offline and will sync automatically")
				render.Status(r, http.StatusAccepted)
				render.JSON(w, r, parked)
				return
			}
			svc.Notify.Error("Failed to save package")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success("Package " + pkg.BoxNumber + " created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, pkg)
	}
}

func ListPackagesQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unshipped, _ := strconv.ParseBool(r.URL.Query().Get("unshipped"))
		packages, err := svc.ListPackages(r.Context(), r.URL.Query().Get("lot"), unshipped)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, packages)
	}
}

type scanRequest struct {
	Payload string `json:"payload"`
}

// ScanQRQueryHandler resolves a scanned QR payload to its stored package.
func ScanQRQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in scanRequest
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		payload, err := ParseQRPayload(in.Payload)
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid(err.Error(), "payload"))
			return
		}
		packages, err := svc.PackagesByBox(r.Context(), []string{payload.BoxNumber})
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, packages[0])
	}
}

// BoxLabelQueryHandler serves the printable PDF label of one or more boxes,
// named by the boxNumber URL parameter or a comma separated ?boxes= list.
func BoxLabelQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boxes := []string{chi.URLParam(r, "boxNumber")}
		if list := r.URL.Query().Get("boxes"); list != "" {
			boxes = strings.Split(list, ",")
		}
		packages, err := svc.PackagesByBox(r.Context(), boxes)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		pdfBytes, err := renderBoxLabelsPDF(packages)
		if err != nil {
			apperr.Write(w, r, svc.Log, fmt.Errorf("render box labels: %w", err))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s-label.pdf", packages[0].BoxNumber))
		_, _ = w.Write(pdfBytes)
	}
}

func BoxQRCodeQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packages, err := svc.PackagesByBox(r.Context(), []string{chi.URLParam(r, "boxNumber")})
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		img, err := renderQRPNG(packages[0].QRPayload, 320)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}
}

// CreateShipmentCommandHandler records a shipment and answers with its
// packing list, as JSON or, with ?format=html, as a printable page.
func CreateShipmentCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ShipmentInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		pl, err := svc.PrepareShipment(r.Context(), in, time.Now())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if pl.Recorded {
			svc.Notify.Success(fmt.Sprintf("Shipment of %d boxes recorded", pl.BoxCount))
		}
		if r.URL.Query().Get("format") == "html" {
			writePackingList(w, r, svc, pl)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, pl)
	}
}

func ListShipmentsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipments, err := svc.ListShipments(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, shipments)
	}
}

func PackingListQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			apperr.Write(w, r, svc.Log, apperr.Invalid("invalid shipment id", "id"))
			return
		}
		pl, err := svc.ShipmentPackingList(r.Context(), id)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		writePackingList(w, r, svc, pl)
	}
}

func writePackingList(w http.ResponseWriter, r *http.Request, svc *Service, pl PackingList) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := PackingListDocument(pl).Render(r.Context(), w); err != nil {
		svc.Log.Error("render packing list", zap.Error(err))
	}
}
