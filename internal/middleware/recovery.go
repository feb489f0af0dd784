package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"petfolio/internal/contextutils"
	"petfolio/internal/response"
)

// Recovery turns a handler panic into a 500 JSON envelope
func Recovery(builder *response.Builder, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writer := wrapResponseWriter(w)

			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}

				contextutils.GetLogger(r.Context(), logger).Error("Panic recovered",
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()),
				)

				if writer.wroteHeader {
					return
				}
				builder.WriteError(writer, r, response.NewInternalError("panic while handling request", fmt.Errorf("%v", p)))
			}()

			next.ServeHTTP(writer, r)
		})
	}
}
