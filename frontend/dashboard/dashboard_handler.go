package dashboard

import (
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"clamflow/frontend/shared/apperr"
)

func SummaryQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context())
		if err != nil {
			apperr.Write(w, r, svc.Log, err)
			return
		}
		render.JSON(w, r, summary)
	}
}

// NotificationsQueryHandler lists recent operation outcomes, newest first.
func NotificationsQueryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		render.JSON(w, r, svc.Notify.Recent(limit))
	}
}
