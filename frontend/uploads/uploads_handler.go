package uploads

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
)

func ListPendingQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Queue.List(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		out := make([]PendingView, 0, len(entries))
		for _, e := range entries {
			out = append(out, viewOf(e))
		}
		render.JSON(w, r, out)
	}
}

// DrainCommandHandler replays the queue now instead of waiting for the schedule.
func DrainCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Queue.Drain(r.Context())
		if err != nil {
			svc.Notify.Error("Offline sync failed")
			apperr.Write(w, r, svc.Log, err)
			return
		}
		if res.Replayed > 0 {
			svc.Notify.Success(fmt.Sprintf("Synced %d offline submissions", res.Replayed))
		}
		if res.Dropped > 0 {
			svc.Notify.Error(fmt.Sprintf("%d offline submissions were rejected", res.Dropped))
		}
		svc.Log.Info("manual offline drain",
			zap.Int("replayed", res.Replayed),
			zap.Int("failed", res.Failed),
			zap.Int("dropped", res.Dropped),
		)
		render.JSON(w, r, res)
	}
}

func DiscardCommandHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Queue.Remove(r.Context(), id); err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		svc.Notify.Info("Offline submission discarded")
		w.WriteHeader(http.StatusNoContent)
	}
}
