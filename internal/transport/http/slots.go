package http

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
)

const defaultListRange = 14 * 24 * time.Hour

type createSlotRequest struct {
	TeacherID int64     `json:"teacher_id" validate:"omitempty,gt=0"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type slotsResponse struct {
	Slots []*model.Slot `json:"slots"`
}

func (h *Handler) createSlot(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFromContext(r.Context())

	var req createSlotRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	teacherID := req.TeacherID
	if teacherID == 0 {
		teacherID = actor.UserID
	}
	if !canActAsTeacher(actor, teacherID) {
		writeError(w, http.StatusForbidden, codeForbidden, "only the teacher or an admin can create slots")
		return
	}

	slot, err := h.slots.CreateSlot(r.Context(), teacherID, req.StartTime, req.EndTime)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (h *Handler) getSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	slot, err := h.slots.GetSlot(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// listFreeSlots: GET /teachers/{id}/slots?from=RFC3339&to=RFC3339
func (h *Handler) listFreeSlots(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	from := h.clock.Now()
	to := from.Add(defaultListRange)
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRange, "invalid from")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRange, "invalid to")
			return
		}
		to = t
	}

	slots, err := h.slots.ListFreeSlots(r.Context(), teacherID, from, to)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if slots == nil {
		slots = []*model.Slot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Slots: slots})
}

type weeklyAvailabilityRequest struct {
	Weekdays        []int             `json:"weekdays" validate:"required,min=1,dive,min=0,max=6"`
	Times           []model.TimeOfDay `json:"times" validate:"required,min=1"`
	DurationMinutes int               `json:"duration_minutes" validate:"required,gte=15,lte=240"`
}

type createdAvailabilityResponse struct {
	GroupID uuid.UUID `json:"group_id"`
}

type weeklyAvailabilityResponse struct {
	Schedules []*model.RecurringSchedule `json:"schedules"`
}

func (h *Handler) createWeeklyAvailability(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if !canActAsTeacher(actor, teacherID) {
		writeError(w, http.StatusForbidden, codeForbidden, "only the teacher or an admin can manage availability")
		return
	}

	var req weeklyAvailabilityRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	groupID, err := h.slots.CreateWeeklyAvailability(r.Context(), teacherID, req.Weekdays, req.Times, req.DurationMinutes)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdAvailabilityResponse{GroupID: groupID})
}

func (h *Handler) getWeeklyAvailability(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	schedules, err := h.slots.GetWeeklyAvailability(r.Context(), teacherID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if schedules == nil {
		schedules = []*model.RecurringSchedule{}
	}
	writeJSON(w, http.StatusOK, weeklyAvailabilityResponse{Schedules: schedules})
}

func (h *Handler) deactivateWeeklyAvailability(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor, _ := actorFromContext(r.Context())
	if !canActAsTeacher(actor, teacherID) {
		writeError(w, http.StatusForbidden, codeForbidden, "only the teacher or an admin can manage availability")
		return
	}

	groupID, err := uuid.Parse(r.PathValue("group"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidID, "invalid group")
		return
	}

	if err := h.slots.DeactivateWeeklyAvailability(r.Context(), teacherID, groupID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
