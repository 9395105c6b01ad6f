package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/auth"
	"github.com/warp/time-tracking/tracking"
)

// accessLog emits one entry per request. 5xx log at error, 4xx at warn.
func accessLog(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"latency":    time.Since(start).String(),
				"bytes":      ww.BytesWritten(),
			})
			switch {
			case status >= 500:
				entry.Error("request")
			case status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
		})
	}
}

// authenticate resolves the bearer token, if any, into the request user.
// A request without Authorization stays anonymous; a bad token is a 401.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.Auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if u != nil {
			r = r.WithContext(auth.WithUser(r.Context(), *u))
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth rejects anonymous requests.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFrom(r.Context()); !ok {
			h.writeServiceError(w, r, tracking.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller returns the authenticated user. Routes behind requireAuth always
// have one.
func caller(r *http.Request) tracking.User {
	u, _ := auth.UserFrom(r.Context())
	return u
}

func (h *Handler) requestLog(r *http.Request) *logrus.Entry {
	return h.Log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	})
}

// baseURL is the absolute scheme://host prefix of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
