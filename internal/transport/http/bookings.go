package http

import (
	"net/http"
	"strconv"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/Freeeeeet/mentorship_slots/internal/service"
)

type reserveRequest struct {
	ProjectID  *int64  `json:"project_id" validate:"omitempty,gt=0"`
	Note       string  `json:"note" validate:"max=2000"`
	StudentIDs []int64 `json:"student_ids" validate:"omitempty,max=20,dive,gt=0"`
}

type summonRequest struct {
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=2000"`
	SlotID    *int64 `json:"slot_id" validate:"omitempty,gt=0"`
}

type completeRequest struct {
	Minutes    string `json:"minutes" validate:"required,max=10000"`
	Agreements string `json:"agreements" validate:"max=10000"`
}

type bookingsResponse struct {
	Bookings []*model.Booking `json:"bookings"`
}

// reserve: POST /slots/{id}/reservations
func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	slotID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	var req reserveRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	booking, err := h.reserver.Reserve(r.Context(), service.ReserveInput{
		SlotID:     slotID,
		ProjectID:  req.ProjectID,
		Note:       req.Note,
		Actor:      actor,
		StudentIDs: req.StudentIDs,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// summon: POST /projects/{id}/summons
func (h *Handler) summon(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	var req summonRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	booking, err := h.summoner.Summon(r.Context(), service.SummonInput{
		Actor:     actor,
		ProjectID: projectID,
		StudentID: req.StudentID,
		Reason:    req.Reason,
		SlotID:    req.SlotID,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// quotaStatus: GET /projects/{id}/quota?student_id=
// Студент видит только свою квоту.
func (h *Handler) quotaStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	studentID := actor.UserID
	if v := r.URL.Query().Get("student_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, "invalid student_id")
			return
		}
		studentID = id
	} else if actor.Role.IsStaff() {
		writeError(w, http.StatusBadRequest, codeStudentsRequired, "student_id is required")
		return
	}

	if actor.Role == model.RoleStudent && studentID != actor.UserID {
		writeError(w, http.StatusForbidden, codeForbidden, "students can only see their own quota")
		return
	}

	status, err := h.quota.Status(r.Context(), projectID, studentID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	booking, err := h.bookings.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	booking, err := h.bookings.Cancel(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) completeBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())

	var req completeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	booking, err := h.bookings.Complete(r.Context(), actor, id, req.Minutes, req.Agreements)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) listStudentBookings(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if actor.Role == model.RoleStudent && actor.UserID != studentID {
		writeError(w, http.StatusForbidden, codeForbidden, "students can only list their own bookings")
		return
	}

	bookings, err := h.bookings.ListForStudent(r.Context(), studentID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: bookings})
}

func (h *Handler) listTeacherBookings(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if !canActAsTeacher(actor, teacherID) {
		writeError(w, http.StatusForbidden, codeForbidden, "only the teacher or an admin can list teacher bookings")
		return
	}

	bookings, err := h.bookings.ListForTeacher(r.Context(), teacherID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: bookings})
}
