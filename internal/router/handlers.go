package router

import (
	"context"
	"net/http"
	"time"

	"petfolio/internal/monitoring"
	"petfolio/internal/response"
)

// healthHandler reports the dashboard's system health. Unhealthy maps to 503.
func healthHandler(dashboard *monitoring.Dashboard, builder *response.Builder, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		health := dashboard.GetSystemHealth(ctx)

		status := http.StatusOK
		if health.Status == monitoring.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		envelope := builder.Success(r.Context(), health)
		envelope.Success = status == http.StatusOK
		builder.WriteJSON(w, r, envelope, status)
	}
}

func notFoundHandler(builder *response.Builder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		builder.WriteError(w, r, response.NewNotFoundError("route not found"))
	})
}

func methodNotAllowedHandler(builder *response.Builder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		builder.WriteError(w, r, response.NewMethodNotAllowedError(r.Method))
	})
}
