package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mailforge/campaign-pipeline/internal/tracing"
)

// TraceID reads the X-Trace-ID header from the incoming request. If absent,
// a new UUID is generated. The value is stored on the request context via
// the tracing package and echoed back in the response header, and it rides
// along on every job and event the request produces.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Trace-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := tracing.WithTraceID(r.Context(), id)
		w.Header().Set("X-Trace-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
