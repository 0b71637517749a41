package lots

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/live"
	"clamflow/models"
)

func CreateLotCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateLotInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		lot, err := svc.CreateLot(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to create lot")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success(fmt.Sprintf("Lot %s created with %.2f kg", lot.LotNumber, lot.TotalWeight))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, lot)
	}
}

func parseStatus(r *http.Request) (models.LotStatus, error) {
	status, err := models.ParseLotStatus(r.URL.Query().Get("status"))
	if err != nil {
		return "", apperr.Invalid(err.Error(), "status")
	}
	return status, nil
}

func ListLotsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := parseStatus(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		lots, err := svc.ListLots(r.Context(), status)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, lots)
	}
}

func GetLotQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetLot(r.Context(), chi.URLParam(r, "lotNumber"))
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, detail)
	}
}

func SelectableLotsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stage, ok := ParseStage(r.URL.Query().Get("stage"))
		if !ok {
			apperr.Write(w, r, svc.Log, apperr.Invalid("stage must be depuration, processing, packaging or release", "stage"))
			return
		}
		lots, err := svc.SelectableLots(r.Context(), stage)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, lots)
	}
}

// LiveLotsHandler streams the lot list as "lots" events, re-sent after every
// committed change to lots, receipts, depuration, batches or releases.
func LiveLotsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := parseStatus(r)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		live.Stream(w, r, svc.Hub, svc.LiveLots(status), "lots", svc.Log)
	}
}

// LiveLots is the live query behind LiveLotsHandler.
func (s *Service) LiveLots(status models.LotStatus) live.Query[[]LotSummary] {
	return live.Query[[]LotSummary]{
		Tables: liveTables,
		Fetch: func(ctx context.Context) ([]LotSummary, error) {
			return s.ListLots(ctx, status)
		},
	}
}
