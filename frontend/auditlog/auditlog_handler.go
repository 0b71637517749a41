package auditlog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
)

func ListEntriesQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := Filter{EntityType: q.Get("entityType"), EntityID: q.Get("entityId"), Action: q.Get("action")}
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				apperr.Write(w, r, svc.Log, apperr.Invalid("limit must be a number", "limit"))
				return
			}
			f.Limit = n
		}
		entries, err := svc.List(r.Context(), f)
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, entries)
	}
}

func LotTrailQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.LotTrail(r.Context(), chi.URLParam(r, "lotNumber"))
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, entries)
	}
}
