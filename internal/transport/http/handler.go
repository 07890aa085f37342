// Package http exposes the booking core over a JSON HTTP API.
package http

import (
	"context"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/Freeeeeet/mentorship_slots/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SlotManager interface {
	CreateSlot(ctx context.Context, teacherID int64, start, end time.Time) (*model.Slot, error)
	GetSlot(ctx context.Context, slotID int64) (*model.Slot, error)
	ListFreeSlots(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, error)
	CreateWeeklyAvailability(ctx context.Context, teacherID int64, weekdays []int, times []model.TimeOfDay, durationMinutes int) (uuid.UUID, error)
	GetWeeklyAvailability(ctx context.Context, teacherID int64) ([]*model.RecurringSchedule, error)
	DeactivateWeeklyAvailability(ctx context.Context, teacherID int64, groupID uuid.UUID) error
}

type Reserver interface {
	Reserve(ctx context.Context, in service.ReserveInput) (*model.Booking, error)
}

type Summoner interface {
	Summon(ctx context.Context, in service.SummonInput) (*model.Booking, error)
}

type BookingManager interface {
	Get(ctx context.Context, actor model.Actor, bookingID int64) (*model.Booking, error)
	Cancel(ctx context.Context, actor model.Actor, bookingID int64) (*model.Booking, error)
	Complete(ctx context.Context, actor model.Actor, bookingID int64, minutes, agreements string) (*model.Booking, error)
	ListForStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	ListForTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error)
}

type QuotaReader interface {
	Status(ctx context.Context, projectID, studentID int64) (*model.QuotaStatus, error)
}

type Handler struct {
	slots    SlotManager
	reserver Reserver
	summoner Summoner
	bookings BookingManager
	quota    QuotaReader
	clock    clock.Clock
	logger   *zap.Logger
}

type Services struct {
	Slots    SlotManager
	Reserver Reserver
	Summoner Summoner
	Bookings BookingManager
	Quota    QuotaReader
}

func NewHandler(svc Services, clk clock.Clock, logger *zap.Logger) *Handler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Handler{
		slots:    svc.Slots,
		reserver: svc.Reserver,
		summoner: svc.Summoner,
		bookings: svc.Bookings,
		quota:    svc.Quota,
		clock:    clk,
		logger:   logger,
	}
}

// canActAsTeacher: teachers act for themselves, admins for anyone.
func canActAsTeacher(actor model.Actor, teacherID int64) bool {
	return actor.Role == model.RoleAdmin || (actor.Role == model.RoleTeacher && actor.UserID == teacherID)
}
