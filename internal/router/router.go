package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "petfolio/internal/docs" // registers the OpenAPI document
	"petfolio/internal/handlers/api/v1/badges"
	"petfolio/internal/middleware"
	"petfolio/internal/monitoring"
	"petfolio/internal/response"
)

// Dependencies holds everything the router mounts
type Dependencies struct {
	Badges          *badges.BadgeController
	Dashboard       *monitoring.Dashboard
	Gatherer        prometheus.Gatherer
	HTTPMetrics     *monitoring.HTTPMetrics
	ResponseBuilder *response.Builder
	Logging         *middleware.LoggingConfig
	CORSOrigin      string
	// Swagger mounts the API docs under /swagger/ when set.
	Swagger *middleware.SwaggerConfig
	// HealthTimeout bounds one /health request. Zero means 5s.
	HealthTimeout time.Duration
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(deps Dependencies, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.ResponseBuilder == nil {
		deps.ResponseBuilder = response.NewBuilder(nil, logger)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()

	// ===============================
	// MIDDLEWARE CHAIN (ORDER MATTERS)
	// ===============================

	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Recovery(deps.ResponseBuilder, logger))
	r.Use(middleware.StructuredLogging(logger, deps.Logging))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(deps.CORSOrigin))

	// ===============================
	// API V1
	// ===============================

	if deps.Badges != nil {
		api := r.PathPrefix("/api/v1").Subrouter()
		api.HandleFunc("/pets/{petID}/events", deps.Badges.PostEvent).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/pets/{petID}/badges", deps.Badges.GetBadges).Methods(http.MethodGet, http.MethodOptions)
		api.HandleFunc("/badges/stream", deps.Badges.Stream).Methods(http.MethodGet)
	}

	// ===============================
	// DOCS
	// ===============================

	if deps.Swagger != nil {
		r.PathPrefix("/swagger/").Handler(middleware.SwaggerHandler(deps.Swagger)).Methods(http.MethodGet)
	}

	// ===============================
	// MONITORING
	// ===============================

	SetupMonitoringRoutes(r, deps, logger)

	r.NotFoundHandler = notFoundHandler(deps.ResponseBuilder)
	r.MethodNotAllowedHandler = methodNotAllowedHandler(deps.ResponseBuilder)

	logger.Info("Router configured",
		zap.Bool("badge_api", deps.Badges != nil),
		zap.Bool("http_metrics", deps.HTTPMetrics != nil),
		zap.Bool("swagger", deps.Swagger != nil),
		zap.String("cors_origin", deps.CORSOrigin),
	)

	return r
}

// SetupMonitoringRoutes mounts /health, /healthz and /metrics
func SetupMonitoringRoutes(r *mux.Router, deps Dependencies, logger *zap.Logger) {
	timeout := deps.HealthTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if deps.Dashboard != nil {
		r.HandleFunc("/health", healthHandler(deps.Dashboard, deps.ResponseBuilder, timeout)).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.ContinueOnError,
	})).Methods(http.MethodGet)
}
