package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
)

// Allowed reports whether a booking initiated by role may be created when the
// student already has bookingCount active bookings for taskCount tasks.
// Teachers and admins are never limited; students need bookingCount < taskCount,
// so a student without tasks can never book.
func Allowed(role model.Role, bookingCount, taskCount int) bool {
	if role.IsStaff() {
		return true
	}
	return bookingCount < taskCount
}

type QuotaService struct {
	tasks    TaskCounter
	bookings BookingStore
}

func NewQuotaService(tasks TaskCounter, bookings BookingStore) *QuotaService {
	return &QuotaService{tasks: tasks, bookings: bookings}
}

// Status возвращает текущую квоту студента в проекте
func (s *QuotaService) Status(ctx context.Context, projectID, studentID int64) (*model.QuotaStatus, error) {
	taskCount, bookingCount, err := s.counts(ctx, projectID, studentID)
	if err != nil {
		return nil, err
	}

	remaining := taskCount - bookingCount
	if remaining < 0 {
		remaining = 0
	}

	return &model.QuotaStatus{
		ProjectID:    projectID,
		StudentID:    studentID,
		TaskCount:    taskCount,
		BookingCount: bookingCount,
		Remaining:    remaining,
	}, nil
}

// Check returns a *QuotaExceededError when role may not book another session.
func (s *QuotaService) Check(ctx context.Context, role model.Role, projectID, studentID int64) error {
	if role.IsStaff() {
		return nil
	}

	taskCount, bookingCount, err := s.counts(ctx, projectID, studentID)
	if err != nil {
		return err
	}

	if !Allowed(role, bookingCount, taskCount) {
		return &QuotaExceededError{BookingCount: bookingCount, TaskCount: taskCount}
	}
	return nil
}

func (s *QuotaService) counts(ctx context.Context, projectID, studentID int64) (taskCount, bookingCount int, err error) {
	taskCount, err = s.tasks.CountTasksForStudentInProject(ctx, projectID, studentID)
	if err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}

	bookingCount, err = s.bookings.CountActiveForStudentInProject(ctx, projectID, studentID)
	if err != nil {
		return 0, 0, fmt.Errorf("count bookings: %w", err)
	}

	return taskCount, bookingCount, nil
}
