package login

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/session"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Operator  models.Operator `json:"operator"`
}

// CreateLoginHandler authenticates an operator, sets the session cookie and
// also returns the token for bearer use by the mobile client.
func CreateLoginHandler(db *sqlite.DB, sessions *cache.SessionCache, ttl time.Duration, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := apperr.Decode(r, &req); err != nil {
			apperr.Write(w, r, log, err)
			return
		}
		if strings.TrimSpace(req.Username) == "" || req.Password == "" {
			apperr.Write(w, r, log, apperr.Invalid("username and password are required"))
			return
		}

		op, err := authenticateOperator(r.Context(), db, req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			log.Info("login rejected", zap.String("username", req.Username))
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, apperr.ErrorResponse{Error: err.Error()})
			return
		}
		if err != nil {
			apperr.Write(w, r, log, err)
			return
		}

		s := newSession(op, time.Now().UTC(), ttl)
		if err := persistSession(r.Context(), db, s); err != nil {
			apperr.Write(w, r, log, err)
			return
		}
		sessions.Add(s)
		log.Info("operator signed in", zap.Int64("operator_id", op.ID), zap.String("role", op.Role))

		http.SetCookie(w, session.Cookie(s.ID, ttl))
		render.JSON(w, r, loginResponse{Token: s.ID, ExpiresAt: s.ExpiresAt, Operator: op})
	}
}

func newSession(op models.Operator, now time.Time, ttl time.Duration) models.Session {
	return models.Session{
		ID:         session.NewToken(),
		OperatorID: op.ID,
		Operator:   &op,
		Roles:      []string{op.Role},
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
}
