package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/registration/internal/api/handlers"
	"github.com/Togather-Foundation/registration/internal/api/middleware"
	"github.com/Togather-Foundation/registration/internal/audit"
	"github.com/Togather-Foundation/registration/internal/auth"
	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/metrics"
)

// Services are the domain backends the HTTP surface is built on. Optional
// backends are left as untyped nil interfaces when not configured.
type Services struct {
	Intake        handlers.Submitter
	Email         handlers.EmailSender
	Roster        handlers.AthleteAppender
	RosterView    handlers.RosterReader
	Ranking       handlers.RankingReader
	Settings      handlers.SettingsService
	Registrations handlers.RegistrationAdmin
	Gate          *auth.AdminGate
	Pool          *pgxpool.Pool
	Build         BuildInfo
	// Components reports which optional backends are configured, for /health.
	Components map[string]bool
}

// Relay paths keep their historical wildcard CORS policy.
const (
	pathSendEmail     = "/api/send-registration-email"
	pathAppendAthlete = "/api/append-athlete"
)

func NewRouter(cfg config.Config, logger zerolog.Logger, svc Services) http.Handler {
	env := cfg.Environment
	auditLogger := audit.NewLoggerWithZerolog(logger)

	relays := handlers.NewRelayHandler(svc.Email, svc.Roster)
	registrationsHandler := handlers.NewRegistrationsHandler(svc.Intake, env)
	standingsHandler := handlers.NewStandingsHandler(svc.RosterView, svc.Ranking, env)
	settingsHandler := handlers.NewSettingsHandler(svc.Settings, auditLogger, env)
	adminHandler := handlers.NewAdminHandler(svc.Gate, svc.Registrations, auditLogger, env)
	health := handlers.NewHealthChecker(svc.Pool, svc.Build.Version, svc.Build.GitCommit, svc.Components)

	rateLimit := middleware.RateLimit(cfg.RateLimit)
	publicSize := middleware.PublicRequestSize()
	public := func(h http.HandlerFunc) http.Handler {
		return rateLimit(publicSize(h))
	}
	adminTier := middleware.WithRateLimitTierHandler(middleware.TierAdmin)
	adminAuth := middleware.AdminAuth(svc.Gate, env)
	adminSize := middleware.AdminRequestSize()
	admin := func(h http.HandlerFunc) http.Handler {
		return adminTier(rateLimit(adminAuth(adminSize(h))))
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", health.Readyz())
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /api/v1/openapi.json", OpenAPIHandler())
	mux.Handle("GET /api/v1/version", VersionHandler(svc.Build))

	// Relays answer any method themselves so they can reply 405 in their
	// own error shape.
	mux.Handle(pathSendEmail, middleware.RelayCORS(public(relays.SendRegistrationEmail)))
	mux.Handle(pathAppendAthlete, middleware.RelayCORS(public(relays.AppendAthlete)))

	mux.Handle("/api/v1/registrations", methodMux(map[string]http.Handler{
		http.MethodPost: public(registrationsHandler.Create),
	}))
	mux.Handle("/api/v1/roster", methodMux(map[string]http.Handler{
		http.MethodGet: public(standingsHandler.GetRoster),
	}))
	mux.Handle("/api/v1/ranking", methodMux(map[string]http.Handler{
		http.MethodGet: public(standingsHandler.GetRanking),
	}))
	mux.Handle("/api/v1/settings", methodMux(map[string]http.Handler{
		http.MethodGet: public(settingsHandler.Public),
	}))
	mux.Handle("/api/v1/settings/stream", methodMux(map[string]http.Handler{
		http.MethodGet: rateLimit(http.HandlerFunc(settingsHandler.Stream)),
	}))

	mux.Handle("/api/v1/admin/unlock", methodMux(map[string]http.Handler{
		http.MethodPost: public(adminHandler.Unlock),
	}))
	mux.Handle("/api/v1/admin/registrations", methodMux(map[string]http.Handler{
		http.MethodGet: admin(adminHandler.ListRegistrations),
	}))
	mux.Handle("/api/v1/admin/registrations/{id}", methodMux(map[string]http.Handler{
		http.MethodPatch:  admin(adminHandler.UpdateRegistration),
		http.MethodDelete: admin(adminHandler.DeleteRegistration),
	}))
	mux.Handle("/api/v1/admin/settings", methodMux(map[string]http.Handler{
		http.MethodGet: admin(settingsHandler.List),
	}))
	mux.Handle("/api/v1/admin/settings/{key}", methodMux(map[string]http.Handler{
		http.MethodPut: admin(settingsHandler.Update),
	}))

	measured := metrics.HTTPMiddleware(mux)

	// The relays must not pass through the allow-list CORS middleware,
	// which would answer their preflights itself.
	root := http.NewServeMux()
	root.Handle(pathSendEmail, measured)
	root.Handle(pathAppendAthlete, measured)
	root.Handle("/", middleware.CORS(cfg.CORS, logger)(measured))

	var handler http.Handler = root
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
