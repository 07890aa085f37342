package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
)

// Transactor runs fn in one storage transaction; stores called with the
// ctx passed to fn join it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	ListFree(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, error)
	SlotExists(ctx context.Context, teacherID int64, startTime time.Time) (bool, error)
	Claim(ctx context.Context, slotID int64, meetingURL string) (bool, error)
	Release(ctx context.Context, slotID int64) (bool, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetActiveBySlotID(ctx context.Context, slotID int64) (*model.Booking, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error)
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	CountActiveForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error)
	LockStudentQuota(ctx context.Context, projectID, studentID int64) error
	UpdateStatus(ctx context.Context, id int64, from []model.BookingStatus, to model.BookingStatus) (bool, error)
	Complete(ctx context.Context, id int64, minutes, agreements string) (bool, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) error
}

type RecurringScheduleStore interface {
	Create(ctx context.Context, schedule *model.RecurringSchedule) error
	GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.RecurringSchedule, error)
	GetAllActive(ctx context.Context) ([]*model.RecurringSchedule, error)
	DeactivateGroup(ctx context.Context, teacherID int64, groupID uuid.UUID) (int64, error)
}

type ProjectDirectory interface {
	FindProjectWithTeacher(ctx context.Context, projectID, teacherID int64) (*model.Project, error)
	ListActiveProjectIDsForStudent(ctx context.Context, studentID int64) ([]int64, error)
	ListStudentIDs(ctx context.Context, projectID int64) ([]int64, error)
}

type TaskCounter interface {
	CountTasksForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error)
}

type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)
}

// MeetingLinkProvider creates a video session and returns its join URL.
type MeetingLinkProvider interface {
	CreateSession(ctx context.Context, req model.MeetingRequest) (string, error)
}

// Notifier delivers session summaries without blocking the caller.
// Delivery failures never reach the caller.
type Notifier interface {
	Dispatch(ctx context.Context, recipients []*model.User, summary model.SessionSummary)
}

// SlotCache caches free-slot listings. Implementations swallow their own errors.
type SlotCache interface {
	GetFree(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, bool)
	SetFree(ctx context.Context, teacherID int64, from, to time.Time, slots []*model.Slot)
	Invalidate(ctx context.Context, teacherID int64)
}

// Metrics records reservation outcomes.
type Metrics interface {
	ObserveReservation(kind, outcome string)
	ObserveMeetingLinkFallback()
}

type nopCache struct{}

func (nopCache) GetFree(context.Context, int64, time.Time, time.Time) ([]*model.Slot, bool) {
	return nil, false
}
func (nopCache) SetFree(context.Context, int64, time.Time, time.Time, []*model.Slot) {}
func (nopCache) Invalidate(context.Context, int64)                                   {}

type nopMetrics struct{}

func (nopMetrics) ObserveReservation(string, string) {}
func (nopMetrics) ObserveMeetingLinkFallback()       {}
