package quality

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
	"clamflow/models"
)

func ChecklistTemplateQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stage, err := models.ParseQCStage(chi.URLParam(r, "stage"))
		if err != nil {
			apperr.Write(w, r, svc.Log, apperr.Invalid(err.Error(), "stage"))
			return
		}
		render.JSON(w, r, Checklist(stage))
	}
}

func SubmitChecklistCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SubmitInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		in.LotNumber = chi.URLParam(r, "lotNumber")
		in.Stage = models.QCStage(chi.URLParam(r, "stage"))
		checklist, err := svc.Submit(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to save quality check")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if checklist.Passed {
			svc.Notify.Success("Quality check passed for lot " + in.LotNumber)
		} else {
			svc.Notify.Info("Quality check recorded with failures for lot " + in.LotNumber)
		}
		render.JSON(w, r, checklist)
	}
}

func ListChecklistsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checklists, err := svc.ListChecklists(r.Context(), chi.URLParam(r, "lotNumber"))
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, checklists)
	}
}

func ReleaseLotCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in ReleaseInput
		if err := apperr.Decode(r, &in); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		in.LotNumber = chi.URLParam(r, "lotNumber")
		release, err := svc.Release(r.Context(), in, time.Now())
		if err != nil {
			svc.Notify.Error("Failed to release lot " + in.LotNumber)
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Success("Lot " + in.LotNumber + " released")
		render.JSON(w, r, release)
	}
}
