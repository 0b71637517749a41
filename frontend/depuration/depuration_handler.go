package depuration

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
)

func StartDepurationCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in StartInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		in.LotNumber = chi.URLParam(r, "lotNumber")
		dep, err := svc.Start(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to start depuration")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success("Depuration started for lot " + in.LotNumber)
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, dep)
	}
}

func CompleteDepurationCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CompleteInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		in.LotNumber = chi.URLParam(r, "lotNumber")
		dep, err := svc.Complete(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to complete depuration")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success("Depuration completed for lot " + in.LotNumber)
		render.JSON(w, r, dep)
	}
}

func ListActiveDepurationsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := svc.ListActive(r.Context(), time.Now())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, active)
	}
}
