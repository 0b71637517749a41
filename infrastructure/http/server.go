package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"clamflow/frontend/admin"
	"clamflow/frontend/auditlog"
	"clamflow/frontend/dashboard"
	"clamflow/frontend/depuration"
	"clamflow/frontend/exports"
	"clamflow/frontend/intake"
	loginflow "clamflow/frontend/login"
	"clamflow/frontend/lots"
	"clamflow/frontend/packaging"
	"clamflow/frontend/processing"
	"clamflow/frontend/quality"
	"clamflow/frontend/shared/apperr"
	sessioncontext "clamflow/frontend/shared/context"
	"clamflow/frontend/uploads"
	"clamflow/infrastructure/cache"
	"clamflow/infrastructure/metrics"
	"clamflow/infrastructure/rbac"
	sessioncookie "clamflow/infrastructure/session"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

var ShutdownTimeout = 5 * time.Second

// Services are the feature services the routes dispatch to.
type Services struct {
	Admin      *admin.Service
	Intake     *intake.Service
	Lots       *lots.Service
	Depuration *depuration.Service
	Processing *processing.Service
	Packaging  *packaging.Service
	Quality    *quality.Service
	Exports    *exports.Service
	Dashboard  *dashboard.Service
	Uploads    *uploads.Service
	AuditLog   *auditlog.Service
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	SessionTTL     time.Duration
}

// Server bundles dependencies and route wiring.
type Server struct {
	Addr   string
	ln     net.Listener
	server *http.Server
	router *chi.Mux

	DB         *sqlite.DB
	Sessions   *cache.SessionCache
	Rbac       *rbac.Rbac
	Metrics    *metrics.Registry
	Services   Services
	SessionTTL time.Duration
	Log        *zap.Logger
}

// NewServer creates a new http server.
func NewServer(opts Options, db *sqlite.DB, sessions *cache.SessionCache, r *rbac.Rbac, m *metrics.Registry, svcs Services, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	s := &Server{
		Addr:       opts.Addr,
		router:     chi.NewRouter(),
		DB:         db,
		Sessions:   sessions,
		Rbac:       r,
		Metrics:    m,
		Services:   svcs,
		SessionTTL: opts.SessionTTL,
		Log:        log,
		server: &http.Server{
			MaxHeaderBytes:    1 << 20,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Secure headers first.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	})

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", csrfHeaderName},
		AllowCredentials: true,
	}).Handler)
	s.router.Use(middleware.Compress(5))

	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		s.router.Handle("/metrics", m.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		s.RegisterLoginRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(s.AuthenticateMiddleware)
			r.Use(s.CSRFMiddleware)
			s.RegisterFrontendRoutes(r)
			s.RegisterAdminRoutes(r)
		})
	})

	s.server.Handler = s.router
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}

			switch {
			case status >= 500:
				log.Error("server error", fields...)
			case status >= 400:
				log.Warn("client error", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, apperr.ErrorResponse{Error: msg})
}

// AuthenticateMiddleware resolves the bearer or cookie session and applies RBAC
// to the requested path.
func (s *Server) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessioncookie.TokenFromRequest(r)
		if token == "" {
			writeAuthError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		session, ok := s.resolveSession(r.Context(), token)
		if !ok {
			s.Log.Debug("session not found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
			writeAuthError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		if session.Expired() {
			s.Sessions.Delete(token)
			if err := loginflow.DeleteSessionByToken(r.Context(), s.DB, token); err != nil {
				s.Log.Error("cannot delete expired session", zap.Error(err))
			}
			if fromCookie {
				http.SetCookie(w, sessioncookie.Cookie("", -1))
			}
			writeAuthError(w, r, http.StatusUnauthorized, "session expired")
			return
		}
		session.FromCookie = fromCookie

		if !s.Rbac.Permitted(session.Roles, r.Method, r.URL.Path) {
			s.Log.Warn("access denied",
				zap.Int64("operator_id", session.OperatorID),
				zap.Strings("roles", session.Roles),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			writeAuthError(w, r, http.StatusForbidden, "not permitted")
			return
		}

		ctx := sessioncontext.NewContextWithSession(r.Context(), session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveSession(ctx context.Context, token string) (models.Session, bool) {
	if cached, found := s.Sessions.Find(token); found {
		return cached, true
	}

	dbSession, err := loginflow.LoadSessionByToken(ctx, s.DB, token)
	if err != nil {
		if !apperr.IsNoRows(err) {
			s.Log.Error("load session from db failed", zap.Error(err))
		}
		return models.Session{}, false
	}
	s.Sessions.Add(dbSession)
	return dbSession, true
}

type meResponse struct {
	Operator    *models.Operator `json:"operator"`
	Roles       []string         `json:"roles"`
	Permissions []string         `json:"permissions"`
	ExpiresAt   time.Time        `json:"expiresAt"`
}

// MeQueryHandler describes the signed-in operator and the permission codes
// the client uses to decide which screens to show.
func (s *Server) MeQueryHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := sessioncontext.GetSessionFromContext(r.Context())
	if !ok {
		writeAuthError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	perms := s.Rbac.Codes(session.Roles)
	for _, role := range session.Roles {
		if role == rbac.RoleAdmin {
			perms = s.Rbac.AllCodes()
			break
		}
	}
	if perms == nil {
		perms = []string{}
	}
	render.JSON(w, r, meResponse{
		Operator:    session.Operator,
		Roles:       session.Roles,
		Permissions: perms,
		ExpiresAt:   session.ExpiresAt,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	var err error
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	s.Log.Info("http server listening", zap.String("addr", s.ln.Addr().String()))
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.ln == nil {
		return fmt.Errorf("HTTP server has not been started or is already stopped")
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	s.ln = nil
	return nil
}
