package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	sessioncontext "clamflow/frontend/shared/context"
	sessioncookie "clamflow/infrastructure/session"
)

const csrfHeaderName = "X-CSRF-Token"

// CSRFMiddleware guards cookie-authenticated sessions with a double-submit
// token. Bearer clients skip the check.
func (s *Server) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessioncontext.GetSessionFromContext(r.Context())
		if !ok || !session.FromCookie {
			next.ServeHTTP(w, r)
			return
		}

		token := csrfToken(w, r)
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		provided := strings.TrimSpace(r.Header.Get(csrfHeaderName))
		if provided == "" || subtle.ConstantTimeCompare([]byte(token), []byte(provided)) != 1 {
			s.Log.Warn("csrf token mismatch", zap.String("path", r.URL.Path), zap.Int64("operator_id", session.OperatorID))
			writeAuthError(w, r, http.StatusForbidden, "invalid csrf token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfToken returns the request's token cookie, issuing a fresh one when absent.
func csrfToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessioncookie.CSRFCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	token := sessioncookie.NewToken()
	http.SetCookie(w, sessioncookie.CSRFCookie(token, r.TLS != nil))
	return token
}
