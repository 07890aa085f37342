package http

import (
	"net/http"

	"go.uber.org/zap"
)

type RouterConfig struct {
	Handler  *Handler
	Metrics  http.Handler
	Observer RequestObserver
	Limiter  *LimiterStore
	Logger   *zap.Logger
}

// NewRouter builds the API mux. /health and /metrics are public; every other
// route requires caller identity headers and is rate limited per caller.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler

	api := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		api.HandleFunc(pattern, withRoute(pattern, fn))
	}

	route("POST /slots", h.createSlot)
	route("GET /slots/{id}", h.getSlot)
	route("POST /slots/{id}/reservations", h.reserve)
	route("GET /teachers/{id}/slots", h.listFreeSlots)
	route("GET /teachers/{id}/bookings", h.listTeacherBookings)
	route("POST /teachers/{id}/availability", h.createWeeklyAvailability)
	route("GET /teachers/{id}/availability", h.getWeeklyAvailability)
	route("DELETE /teachers/{id}/availability/{group}", h.deactivateWeeklyAvailability)
	route("GET /students/{id}/bookings", h.listStudentBookings)
	route("POST /projects/{id}/summons", h.summon)
	route("GET /projects/{id}/quota", h.quotaStatus)
	route("GET /bookings/{id}", h.getBooking)
	route("POST /bookings/{id}/cancel", h.cancelBooking)
	route("POST /bookings/{id}/complete", h.completeBooking)

	var protected http.Handler = api
	if cfg.Limiter != nil {
		protected = RateLimit(protected, cfg.Limiter)
	}
	protected = Authenticate(protected)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", withRoute("GET /health", HealthHandler))
	if cfg.Metrics != nil {
		root.Handle("GET /metrics", cfg.Metrics)
	}
	root.Handle("/", protected)

	return RequestID(RequestLogger(root, cfg.Logger, cfg.Observer))
}

// HealthHandler reports basic liveness for the service.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
