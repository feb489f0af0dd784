package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"petfolio/internal/monitoring"
)

// Metrics records request counts and latency labelled by route template
func Metrics(metrics *monitoring.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			done := metrics.Begin()
			writer := wrapResponseWriter(w)

			next.ServeHTTP(writer, r)

			done(r.Method, routeTemplate(r), writer.Status())
		})
	}
}

// routeTemplate keeps label cardinality bounded by using the mux template
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
