package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/internal/tenant"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/logger"
)

const (
	tenantHeader    = "X-Tenant-ID"
	requestIDHeader = "X-Request-ID"
)

// withTenant extracts the tenant from the X-Tenant-ID header and attaches
// it to the request context. The auth layer in front of this service owns
// identity verification; an empty or missing header is rejected here as an
// invalid tenant.
func withTenant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get(tenantHeader)
		if tenantID == "" {
			writeError(w, apperrors.NewFatal(apperrors.ErrInvalidTenant, "missing %s header", tenantHeader))
			return
		}
		ctx := tenant.WithTenantID(r.Context(), tenantID)
		next(w, r.WithContext(ctx))
	}
}

// withRequestID propagates the caller's request ID or mints one, so every
// log line of the request carries it.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := tenant.WithRequestID(r.Context(), requestID)
		w.Header().Set(requestIDHeader, requestID)
		next(w, r.WithContext(ctx))
	}
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging emits one access log line per request.
func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		logger.FromContext(r.Context()).Info("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", recorder.status),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// withRecovery converts handler panics into 500 responses instead of
// tearing the connection down.
func withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("Handler panicked",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)
				writeError(w, apperrors.NewFatal(apperrors.ErrDatabase, "internal error"))
			}
		}()
		next(w, r)
	}
}

// chain applies the standard middleware stack to a handler: recovery on the
// outside, then request ID, logging and tenant extraction.
func chain(next http.HandlerFunc) http.HandlerFunc {
	return withRecovery(withRequestID(withLogging(withTenant(next))))
}
