package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"go.uber.org/zap"
)

const (
	summonKind       = "summon"
	summonNotePrefix = "[Mandatory summon] "

	defaultSummonHour     = 10
	defaultSummonDuration = 60 * time.Minute
)

type SummonInput struct {
	Actor     model.Actor
	ProjectID int64
	StudentID int64
	Reason    string
	// SlotID nil: a slot owned by the caller is created for tomorrow.
	SlotID *int64
}

// SummonService lets staff force a confirmed session with a student.
type SummonService struct {
	*sessionBooker

	hour     int
	duration time.Duration
	location *time.Location
}

type SummonOption func(*SummonService)

// WithSummonDefaults sets the start hour, duration and time zone of the
// slot created when no slot id is given.
func WithSummonDefaults(hour int, duration time.Duration, loc *time.Location) SummonOption {
	return func(s *SummonService) {
		if hour >= 0 && hour <= 23 {
			s.hour = hour
		}
		if duration > 0 {
			s.duration = duration
		}
		if loc != nil {
			s.location = loc
		}
	}
}

func NewSummonService(deps Dependencies, bookerOpts []BookerOption, opts ...SummonOption) *SummonService {
	s := &SummonService{
		sessionBooker: newSessionBooker(deps, bookerOpts...),
		hour:          defaultSummonHour,
		duration:      defaultSummonDuration,
		location:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summon creates a confirmed, quota-exempt booking for one student.
func (s *SummonService) Summon(ctx context.Context, in SummonInput) (*model.Booking, error) {
	booking, err := s.summon(ctx, in)
	s.Metrics.ObserveReservation(summonKind, outcome(err))
	if err != nil {
		s.Logger.Info("Summon rejected",
			zap.Int64("project_id", in.ProjectID),
			zap.Int64("student_id", in.StudentID),
			zap.Int64("user_id", in.Actor.UserID),
			zap.Error(err),
		)
		return nil, err
	}
	return booking, nil
}

func (s *SummonService) summon(ctx context.Context, in SummonInput) (*model.Booking, error) {
	if !in.Actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if in.StudentID <= 0 {
		return nil, ErrStudentsRequired
	}

	var slot *model.Slot
	if in.SlotID != nil {
		var err error
		if slot, err = s.loadSlot(ctx, *in.SlotID); err != nil {
			return nil, err
		}
		// учитель вызывает только в свои слоты, администратор в любые
		if in.Actor.Role == model.RoleTeacher && slot.TeacherID != in.Actor.UserID {
			return nil, ErrForbidden
		}
		if err := s.checkBookable(slot); err != nil {
			return nil, err
		}
	} else {
		slot = s.defaultSlot(in.Actor.UserID)
	}

	project, err := s.affiliatedProject(ctx, in.ProjectID, slot.TeacherID)
	if err != nil {
		return nil, err
	}

	studentIDs := []int64{in.StudentID}
	if err := s.checkEnrolled(ctx, project.ID, studentIDs); err != nil {
		return nil, err
	}

	participants, err := s.participants(ctx, studentIDs, slot.TeacherID)
	if err != nil {
		return nil, err
	}

	note := summonNotePrefix + strings.TrimSpace(in.Reason)
	req := claimRequest{
		slot: slot,
		booking: &model.Booking{
			ProjectID:   project.ID,
			StudentIDs:  studentIDs,
			Note:        note,
			InitiatedBy: in.Actor.Role,
			Status:      model.BookingStatusConfirmed,
		},
		meetingURL: s.meetingLink(ctx, slot, project, participants, note),
	}

	if err := s.claim(ctx, req); err != nil {
		if in.SlotID == nil {
			// слот создавался в той же транзакции и откатился вместе с ней
			slot.ID = 0
		}
		return nil, fmt.Errorf("summon: %w", err)
	}

	s.Logger.Info("Student summoned",
		zap.Int64("booking_id", req.booking.ID),
		zap.Int64("slot_id", slot.ID),
		zap.Int64("project_id", project.ID),
		zap.Int64("student_id", in.StudentID),
		zap.Int64("teacher_id", slot.TeacherID),
	)

	s.committed(ctx, req, participants, model.SessionKindSummon)
	return req.booking, nil
}

// defaultSlot builds the unsaved slot for tomorrow at the configured hour.
func (s *SummonService) defaultSlot(teacherID int64) *model.Slot {
	tomorrow := s.Clock.Now().In(s.location).AddDate(0, 0, 1)
	start := clock.At(tomorrow, s.location, s.hour, 0)

	return &model.Slot{
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   start.Add(s.duration),
	}
}
