package login

import (
	"net/http"

	"go.uber.org/zap"

	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/session"
	"clamflow/infrastructure/sqlite"
)

// LogoutHandler drops the session wherever it came from and clears the cookie.
func LogoutHandler(db *sqlite.DB, sessions *cache.SessionCache, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token, _ := session.TokenFromRequest(r); token != "" {
			sessions.Delete(token)
			if err := DeleteSessionByToken(r.Context(), db, token); err != nil {
				log.Error("delete session", zap.Error(err))
			}
		}
		http.SetCookie(w, session.Cookie("", -1))
		w.WriteHeader(http.StatusNoContent)
	}
}
