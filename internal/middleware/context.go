package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var fallbackSeq atomic.Uint64

// generateFallbackID creates an ID when UUID generation fails
func generateFallbackID(start time.Time) string {
	return "req_" + start.Format("20060102150405") + "_" + strconv.FormatUint(fallbackSeq.Add(1), 10)
}

// getClientIP extracts the real client IP address
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can be "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		client, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(client)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
