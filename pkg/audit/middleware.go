package audit

import (
	"net/http"
)

// Middleware attaches the audit logger to each request and records every
// 403 response as an access-denied event. Mount it inside the
// authentication middleware so events carry the caller.
type Middleware struct {
	logger Logger
}

// NewMiddleware creates a new audit middleware
func NewMiddleware(logger Logger) *Middleware {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &Middleware{logger: logger}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps an HTTP handler with audit logging
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLogger(r.Context(), m.logger)
		ctx = WithClientIP(ctx, getClientIP(r))

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		if wrapped.statusCode == http.StatusForbidden {
			// Failures to audit never fail the request.
			_ = RecordDenied(ctx, ResourceRequest, r.Method+" "+r.URL.Path, "forbidden")
		}
	})
}
