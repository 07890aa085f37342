package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/mentorship_slots/internal/service"
	"go.uber.org/zap"
)

const (
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeInvalidID              = "invalid_id"
	codeInvalidRange           = "invalid_range"
	codeInvalidSchedule        = "invalid_schedule"
	codeStudentsRequired       = "students_required"
	codeSlotNotFound           = "slot_not_found"
	codeSlotInPast             = "slot_in_past"
	codeBookingNotFound        = "booking_not_found"
	codeProjectContextRequired = "project_context_required"
	codeTeacherNotInProject    = "teacher_not_in_project"
	codeStudentNotInProject    = "student_not_in_project"
	codeQuotaExceeded          = "quota_exceeded"
	codeSlotAlreadyBooked      = "slot_already_booked"
	codeBookingNotActive       = "booking_not_active"
	codeUnauthorized           = "unauthorized"
	codeForbidden              = "forbidden"
	codeRateLimited            = "rate_limited"
	codeInternalError          = "internal_error"
)

const quotaHint = "Create more tasks in the project or cancel an existing booking."

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`

	BookingCount *int   `json:"booking_count,omitempty"`
	TaskCount    *int   `json:"task_count,omitempty"`
	Hint         string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorResponse(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(resp)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps service errors to HTTP responses. Unknown errors are
// logged and reported as 500 without details.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var quotaErr *service.QuotaExceededError
	switch {
	case errors.As(err, &quotaErr):
		writeErrorResponse(w, http.StatusConflict, errorResponse{
			Error:        quotaErr.Error(),
			Code:         codeQuotaExceeded,
			BookingCount: &quotaErr.BookingCount,
			TaskCount:    &quotaErr.TaskCount,
			Hint:         quotaHint,
		})
	case errors.Is(err, service.ErrSlotAlreadyBooked):
		writeErrorResponse(w, http.StatusConflict, errorResponse{
			Error:     err.Error(),
			Code:      codeSlotAlreadyBooked,
			Retryable: service.IsRetryable(err),
			Hint:      "Pick another free slot.",
		})
	case errors.Is(err, service.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, codeInvalidRange, err.Error())
	case errors.Is(err, service.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, codeInvalidSchedule, err.Error())
	case errors.Is(err, service.ErrStudentsRequired):
		writeError(w, http.StatusBadRequest, codeStudentsRequired, err.Error())
	case errors.Is(err, service.ErrSlotInPast):
		writeError(w, http.StatusBadRequest, codeSlotInPast, err.Error())
	case errors.Is(err, service.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
	case errors.Is(err, service.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
	case errors.Is(err, service.ErrProjectContextRequired):
		writeError(w, http.StatusUnprocessableEntity, codeProjectContextRequired, err.Error())
	case errors.Is(err, service.ErrTeacherNotInProject):
		writeError(w, http.StatusUnprocessableEntity, codeTeacherNotInProject, err.Error())
	case errors.Is(err, service.ErrStudentNotInProject):
		writeError(w, http.StatusUnprocessableEntity, codeStudentNotInProject, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, service.ErrBookingNotActive):
		writeError(w, http.StatusConflict, codeBookingNotActive, err.Error())
	default:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
