package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"go.uber.org/zap"
)

const reservationKind = "reserve"

// ReserveInput describes a reservation attempt.
type ReserveInput struct {
	SlotID int64
	// ProjectID may be nil for student callers: their single in-progress
	// project is used then.
	ProjectID  *int64
	Note       string
	Actor      model.Actor
	StudentIDs []int64
}

// ReservationService claims teacher slots for project students.
type ReservationService struct {
	*sessionBooker
}

func NewReservationService(deps Dependencies, opts ...BookerOption) *ReservationService {
	return &ReservationService{sessionBooker: newSessionBooker(deps, opts...)}
}

// Reserve books a slot. Among concurrent callers for one slot exactly one
// succeeds; the others get ErrSlotAlreadyBooked.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	booking, err := s.reserve(ctx, in)
	s.Metrics.ObserveReservation(reservationKind, outcome(err))
	if err != nil {
		s.Logger.Info("Reservation rejected",
			zap.Int64("slot_id", in.SlotID),
			zap.Int64("user_id", in.Actor.UserID),
			zap.String("role", string(in.Actor.Role)),
			zap.Error(err),
		)
		return nil, err
	}
	return booking, nil
}

func (s *ReservationService) reserve(ctx context.Context, in ReserveInput) (*model.Booking, error) {
	if !in.Actor.Role.Valid() {
		return nil, ErrForbidden
	}

	slot, err := s.loadSlot(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}

	projectID, err := s.resolveProject(ctx, in)
	if err != nil {
		return nil, err
	}

	project, err := s.affiliatedProject(ctx, projectID, slot.TeacherID)
	if err != nil {
		return nil, err
	}

	studentIDs, err := resolveStudents(in)
	if err != nil {
		return nil, err
	}

	if err := s.checkEnrolled(ctx, projectID, studentIDs); err != nil {
		return nil, err
	}

	// Бронь от студента расходует квоту каждого участника
	var quotaStudentIDs []int64
	if !in.Actor.Role.IsStaff() {
		quotaStudentIDs = studentIDs
		for _, id := range quotaStudentIDs {
			if err := s.quota.Check(ctx, in.Actor.Role, projectID, id); err != nil {
				return nil, err
			}
		}
	}

	if err := s.checkBookable(slot); err != nil {
		return nil, err
	}

	participants, err := s.participants(ctx, studentIDs, slot.TeacherID)
	if err != nil {
		return nil, err
	}

	req := claimRequest{
		slot: slot,
		booking: &model.Booking{
			ProjectID:   projectID,
			StudentIDs:  studentIDs,
			Note:        in.Note,
			InitiatedBy: in.Actor.Role,
			Status:      model.BookingStatusConfirmed,
		},
		meetingURL:      s.meetingLink(ctx, slot, project, participants, in.Note),
		quotaStudentIDs: quotaStudentIDs,
	}

	if err := s.claim(ctx, req); err != nil {
		return nil, err
	}

	s.Logger.Info("Slot reserved",
		zap.Int64("booking_id", req.booking.ID),
		zap.Int64("slot_id", slot.ID),
		zap.Int64("project_id", projectID),
		zap.Int64s("student_ids", studentIDs),
		zap.String("initiated_by", string(in.Actor.Role)),
	)

	s.committed(ctx, req, participants, model.SessionKindBooked)
	return req.booking, nil
}

// resolveProject uses the explicit project or, for students, their single
// in-progress project.
func (s *ReservationService) resolveProject(ctx context.Context, in ReserveInput) (int64, error) {
	if in.ProjectID != nil {
		return *in.ProjectID, nil
	}
	if in.Actor.Role != model.RoleStudent {
		return 0, ErrProjectContextRequired
	}

	ids, err := s.Projects.ListActiveProjectIDsForStudent(ctx, in.Actor.UserID)
	if err != nil {
		return 0, fmt.Errorf("list student projects: %w", err)
	}
	if len(ids) != 1 {
		return 0, ErrProjectContextRequired
	}
	return ids[0], nil
}

// resolveStudents: students always book for themselves (plus optional
// teammates); staff must name at least one student.
func resolveStudents(in ReserveInput) ([]int64, error) {
	ids := slices.Clone(in.StudentIDs)
	if in.Actor.Role == model.RoleStudent {
		ids = append(ids, in.Actor.UserID)
	}

	ids = slices.DeleteFunc(ids, func(id int64) bool { return id <= 0 })
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if len(ids) == 0 {
		return nil, ErrStudentsRequired
	}
	return ids, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrTeacherNotInProject):
		return "teacher_not_in_project"
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrProjectContextRequired):
		return "project_context_required"
	case errors.Is(err, ErrStudentNotInProject):
		return "student_not_in_project"
	case errors.Is(err, ErrSlotInPast), errors.Is(err, ErrStudentsRequired), errors.Is(err, ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}
