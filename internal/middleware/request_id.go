package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"model_settings/internal/logging"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const RequestIDKey ContextKey = "requestID"

// RequestID reuses a well-formed incoming X-Request-ID or assigns a new UUID,
// echoes it on the response and logs the request at debug level
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDKey, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		logging.Debugf("%s %s %s (%s)", id, r.Method, r.URL.Path, time.Since(start))
	})
}

// GetRequestID retrieves the request ID from the request context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
