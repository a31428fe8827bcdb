package api

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/org/fleetadmin/internal/session"
	"github.com/rs/zerolog/log"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string
	TLSCertFile string
	TLSKeyFile  string
}

// Server is the HTTP front of the security subsystem. All domain logic
// lives behind the session manager; handlers only translate HTTP.
type Server struct {
	sessions *session.Manager
	cfg      Config
	httpSrv  *http.Server
}

// NewServer wraps a wired session manager.
func NewServer(sessions *session.Manager, cfg Config) *Server {
	return &Server{sessions: sessions, cfg: cfg}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(newRateLimiter(100, 200).middleware)

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/v1/sys/health", s.HealthHandler)
		r.Post("/v1/auth/login", s.LoginHandler)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware(s.sessions))

		r.Post("/v1/auth/logout", s.LogoutHandler)
		r.Get("/v1/auth/whoami", s.WhoamiHandler)
		r.Post("/v1/auth/change-password", s.ChangePasswordHandler)

		r.Post("/v1/accounts", s.AccountCreateHandler)
		r.Get("/v1/accounts", s.AccountListHandler)
		r.Delete("/v1/accounts/{handle}", s.AccountDeleteHandler)
		r.Put("/v1/accounts/{handle}/profile", s.AccountProfileHandler)
		r.Post("/v1/accounts/{handle}/reset-password", s.AccountResetPasswordHandler)

		r.Get("/v1/audit-log", s.AuditLogHandler)

		r.Post("/v1/backups", s.BackupCreateHandler)
		r.Get("/v1/backups", s.BackupListHandler)
		r.Post("/v1/backups/{id}/restore", s.BackupRestoreHandler)

		r.Post("/v1/restore-codes", s.RestoreCodeIssueHandler)
		r.Get("/v1/restore-codes", s.RestoreCodeListHandler)
		r.Post("/v1/restore-codes/redeem", s.RestoreCodeRedeemHandler)
		r.Post("/v1/restore-codes/revoke", s.RestoreCodeRevokeHandler)

		r.Post("/v1/travellers", s.TravellerCreateHandler)
		r.Get("/v1/travellers", s.TravellerListHandler)
		r.Get("/v1/travellers/{id}", s.TravellerGetHandler)
		r.Put("/v1/travellers/{id}", s.TravellerUpdateHandler)
		r.Delete("/v1/travellers/{id}", s.TravellerDeleteHandler)

		r.Post("/v1/scooters", s.ScooterCreateHandler)
		r.Get("/v1/scooters", s.ScooterListHandler)
		r.Get("/v1/scooters/{id}", s.ScooterGetHandler)
		r.Put("/v1/scooters/{id}", s.ScooterUpdateHandler)
		r.Patch("/v1/scooters/{id}/telemetry", s.ScooterTelemetryHandler)
		r.Delete("/v1/scooters/{id}", s.ScooterDeleteHandler)
	})

	return r
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	handler := s.BuildRouter()

	s.httpSrv = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
			CurvePreferences: []tls.CurveID{
				tls.CurveP256,
				tls.X25519,
			},
		}
		s.httpSrv.TLSConfig = tlsCfg
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTPS server")
		return s.httpSrv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
