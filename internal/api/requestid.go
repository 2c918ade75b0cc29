package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cenderhq/cender/pkg/id"
)

type requestIDKey struct{}

// requestIDHeaders are checked in order for an upstream-assigned id.
var requestIDHeaders = []string{"X-Request-ID", "X-Request-Id", "X-Correlation-ID"}

// RequestID assigns each request a unique id, preserving upstream tracing
// ids when present. The id is stored in the context and echoed in the
// X-Request-ID response header.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var reqID string
			for _, header := range requestIDHeaders {
				if v := r.Header.Get(header); v != "" {
					reqID = v
					break
				}
			}
			if reqID == "" {
				reqID = id.NewULID()
			}

			w.Header().Set("X-Request-ID", reqID)
			ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the request id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	reqID, ok := ctx.Value(requestIDKey{}).(string)
	return reqID, ok
}

// RequestIDLogExtractor injects the request id into every log record
// written with the request context.
func RequestIDLogExtractor(ctx context.Context) (slog.Attr, bool) {
	reqID, ok := RequestIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return slog.String("request_id", reqID), true
}
