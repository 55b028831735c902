package app

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/calprompt/calprompt/internal/metrics"
	"github.com/calprompt/calprompt/internal/rest"
	"github.com/calprompt/calprompt/pkg/credential"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const RequestIdHeader = "X-Request-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(requestLogging(deps.Metrics))
	r.Use(recovery)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// requestLogging assigns a request id, then logs and counts the request once it is served.
func requestLogging(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			requestId := req.Header.Get(RequestIdHeader)
			if requestId == "" {
				requestId = uuid.NewString()
			}
			w.Header().Set(RequestIdHeader, requestId)

			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, req)

			route := req.URL.Path
			if current := mux.CurrentRoute(req); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			m.ObserveRequest(req.Method, route, recorder.status)
			log.WithFields(log.Fields{
				"requestId": requestId,
				"method":    req.Method,
				"path":      req.URL.Path,
				"status":    recorder.status,
				"duration":  time.Since(started),
			}).Info("request served")
		})
	}
}

// recovery turns a panicking handler into a 500 response.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.Errorf("panic serving %s %s: %v\n%s", req.Method, req.URL.Path, p, debug.Stack())
				rest.WriteError(w, fmt.Errorf("panic: %v", p))
			}
		}()
		next.ServeHTTP(w, req)
	})
}

// credentials attaches the caller's credential to the request context. Requests without one are
// rejected here, before any engine or store call.
func credentials(provider credential.Provider) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			c, err := provider.Credential(req.Context(), req)
			if err != nil {
				rest.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, req.WithContext(credential.WithCredential(req.Context(), c)))
		})
	}
}

// rateLimited rejects requests beyond the limiter's budget with 429. A nil limiter lets
// everything through.
func rateLimited(limiter *rate.Limiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !limiter.Allow() {
			rest.WriteError(w, rest.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, req)
	})
}
