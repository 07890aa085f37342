package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerUserRole  = "X-User-Role"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
)

// RequestObserver records request latency.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

// RequestID keeps an incoming X-Request-ID or generates a ULID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogger logs request details and latency.
func RequestLogger(next http.Handler, logger *zap.Logger, observer RequestObserver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		// r.Pattern заполняется mux'ом только на копии запроса, поэтому берём маршрут из рекордера
		route := rec.route
		if route == "" {
			route = "unmatched"
		}
		if observer != nil {
			observer.ObserveHTTPRequest(r.Method, route, rec.status, duration)
		}

		logger.Info("http.request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("request_id", RequestIDFromContext(r.Context())),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	route  string
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRoute stores the matched pattern on the recorder for metrics.
func withRoute(pattern string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*statusRecorder); ok {
			rec.route = pattern
		}
		h(w, r)
	}
}

// Authenticate reads the caller identity set by the upstream gateway.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerUserID)), 10, 64)
		role := model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))))
		if err != nil || id <= 0 || !role.Valid() {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing or invalid caller identity")
			return
		}

		actor := model.Actor{UserID: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

func actorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}

// RateLimit applies a per-caller token bucket. Must run after Authenticate.
func RateLimit(next http.Handler, store *LimiterStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "anonymous"
		if actor, ok := actorFromContext(r.Context()); ok {
			key = "user:" + strconv.FormatInt(actor.UserID, 10)
		}

		if !store.Get(key).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
