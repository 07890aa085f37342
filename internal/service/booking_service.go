package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"go.uber.org/zap"
)

var activeStatuses = []model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed}

type BookingService struct {
	tx       Transactor
	bookings BookingStore
	slots    SlotStore
	users    UserDirectory
	notifier Notifier
	cache    SlotCache
	clock    clock.Clock
	logger   *zap.Logger
}

func NewBookingService(deps Dependencies) *BookingService {
	s := &BookingService{
		tx:       deps.Tx,
		bookings: deps.Bookings,
		slots:    deps.Slots,
		users:    deps.Users,
		notifier: deps.Notifier,
		cache:    deps.Cache,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.clock == nil {
		s.clock = clock.NewSystem()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Get возвращает бронирование, видимое участнику, учителю слота или админу
func (s *BookingService) Get(ctx context.Context, actor model.Actor, bookingID int64) (*model.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, booking) {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) GetActiveForSlot(ctx context.Context, slotID int64) (*model.Booking, error) {
	booking, err := s.bookings.GetActiveBySlotID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get active booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) ListForStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) ListForTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	bookings, err := s.bookings.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list teacher bookings: %w", err)
	}
	return bookings, nil
}

// Cancel отменяет активное бронирование и освобождает слот в одной транзакции.
// Отменённое бронирование больше не учитывается в квоте.
func (s *BookingService) Cancel(ctx context.Context, actor model.Actor, bookingID int64) (*model.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !canAccess(actor, booking) {
		return nil, ErrForbidden
	}
	if !booking.Status.IsActive() {
		return nil, ErrBookingNotActive
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		updated, err := s.bookings.UpdateStatus(ctx, booking.ID, activeStatuses, model.BookingStatusCanceled)
		if err != nil {
			return err
		}
		if !updated {
			return ErrBookingNotActive
		}

		released, err := s.slots.Release(ctx, booking.SlotID)
		if err != nil {
			return err
		}
		if !released {
			return fmt.Errorf("release slot %d: slot was not booked", booking.SlotID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = model.BookingStatusCanceled
	if booking.Slot != nil {
		booking.Slot.IsBooked = false
		booking.Slot.MeetingURL = nil
		booking.Slot.Version++
	}

	s.logger.Info("Booking canceled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("slot_id", booking.SlotID),
		zap.Int64("canceled_by", actor.UserID),
	)

	if booking.Slot != nil {
		s.cache.Invalidate(ctx, booking.Slot.TeacherID)
	}
	s.notify(ctx, booking, model.SessionKindCanceled, "")

	return booking, nil
}

// Complete отмечает встречу проведённой и сохраняет протокол
func (s *BookingService) Complete(ctx context.Context, actor model.Actor, bookingID int64, minutes, agreements string) (*model.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isSlotTeacherOrAdmin(actor, booking) {
		return nil, ErrForbidden
	}

	completed, err := s.bookings.Complete(ctx, booking.ID, minutes, agreements)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrBookingNotActive
	}

	booking.Status = model.BookingStatusCompleted
	booking.Minutes = &minutes
	booking.Agreements = &agreements

	s.logger.Info("Booking completed",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("completed_by", actor.UserID),
	)

	return booking, nil
}

// SendDueReminders уведомляет участников встреч, которые начнутся в ближайшие window.
// Каждое бронирование получает напоминание один раз.
func (s *BookingService) SendDueReminders(ctx context.Context, window time.Duration) (int, error) {
	now := s.clock.Now()
	bookings, err := s.bookings.ListDueReminders(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, booking := range bookings {
		if err := s.bookings.MarkReminded(ctx, booking.ID, now); err != nil {
			s.logger.Error("Failed to mark booking reminded", zap.Int64("booking_id", booking.ID), zap.Error(err))
			continue
		}

		meetingURL := ""
		if booking.Slot != nil && booking.Slot.MeetingURL != nil {
			meetingURL = *booking.Slot.MeetingURL
		}
		s.notify(ctx, booking, model.SessionKindReminder, meetingURL)
		sent++
	}

	return sent, nil
}

func (s *BookingService) notify(ctx context.Context, booking *model.Booking, kind model.SessionKind, meetingURL string) {
	if s.notifier == nil || booking.Slot == nil {
		return
	}

	ids := append([]int64{booking.Slot.TeacherID}, booking.StudentIDs...)
	recipients, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to load notification recipients", zap.Int64("booking_id", booking.ID), zap.Error(err))
		return
	}

	s.notifier.Dispatch(ctx, recipients, model.SessionSummary{
		Kind:       kind,
		BookingID:  booking.ID,
		ProjectID:  booking.ProjectID,
		Start:      booking.Slot.StartTime,
		End:        booking.Slot.EndTime,
		MeetingURL: meetingURL,
		Note:       booking.Note,
	})
}

func (s *BookingService) load(ctx context.Context, bookingID int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func canAccess(actor model.Actor, booking *model.Booking) bool {
	if isSlotTeacherOrAdmin(actor, booking) {
		return true
	}
	return actor.Role == model.RoleStudent && booking.HasStudent(actor.UserID)
}

func isSlotTeacherOrAdmin(actor model.Actor, booking *model.Booking) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return true
	case model.RoleTeacher:
		return booking.Slot != nil && booking.Slot.TeacherID == actor.UserID
	}
	return false
}

// IsRetryable reports whether the caller may retry with a different slot.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSlotAlreadyBooked)
}
