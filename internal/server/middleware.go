package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	coreservices "github.com/iota-uz/varda/modules/core/services"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// sslSubjectHeader carries the client certificate subject DN, set by the
// terminating proxy. Requests reaching the reporting routes without it
// are anonymous.
const sslSubjectHeader = "X-Ssl-Client-S-Dn"

const requestIDHeader = "X-Request-Id"

// RequestID tags each request with an id, honoring one set by the edge
// proxy so log lines correlate across hops.
func RequestID() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(requestIDHeader, id)
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func RequestLogger(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start),
				"request_id": r.Header.Get(requestIDHeader),
			}).Info("request handled")
		})
	}
}

func Recovery(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithFields(logrus.Fields{
						"panic": rec,
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					}).Error("handler panicked")
					writeJSON(w, http.StatusInternalServerError, errorBody{
						Code:    "INTERNAL",
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ProvidePool binds the connection pool to every request context so the
// repository layer can open transactions.
func ProvidePool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// CertificateAuth resolves the proxied client certificate subject to a
// machine principal and binds it to the request context. The routes
// behind it serve only data-handover consumers.
func CertificateAuth(certs *coreservices.CertificateService) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := r.Header.Get(sslSubjectHeader)
			if subject == "" {
				writeError(w, serrors.Unauthenticated("client certificate required"))
				return
			}
			principal, err := certs.Authenticate(r.Context(), subject, r.URL.Path)
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithKayttaja(r.Context(), principal)))
		})
	}
}
