package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRange           = errors.New("invalid slot time range")
	ErrSlotNotFound           = errors.New("slot not found")
	ErrSlotInPast             = errors.New("slot is in the past")
	ErrSlotAlreadyBooked      = errors.New("slot already booked")
	ErrProjectContextRequired = errors.New("project context required")
	ErrTeacherNotInProject    = errors.New("teacher is not assigned to the project")
	ErrStudentsRequired       = errors.New("at least one student is required")
	ErrStudentNotInProject    = errors.New("student is not enrolled in the project")
	ErrQuotaExceeded          = errors.New("booking quota exceeded")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrBookingNotActive       = errors.New("booking is not active")
	ErrForbidden              = errors.New("operation not permitted for this user")
	ErrInvalidSchedule        = errors.New("invalid recurring schedule")
)

// QuotaExceededError is returned when a student has as many active bookings
// as tasks in the project. It matches ErrQuotaExceeded with errors.Is.
type QuotaExceededError struct {
	BookingCount int
	TaskCount    int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("booking quota exceeded: %d bookings for %d tasks", e.BookingCount, e.TaskCount)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
