package model

import (
	"slices"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Зарезервирован, сейчас не используется
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено
	BookingStatusCompleted BookingStatus = "completed" // Завершено
	BookingStatusCanceled  BookingStatus = "canceled"  // Отменено
)

// IsActive reports whether the booking still holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID          int64         `json:"id"`
	SlotID      int64         `json:"slot_id"`
	ProjectID   int64         `json:"project_id"`
	StudentIDs  []int64       `json:"student_ids"`
	Note        string        `json:"note"`
	InitiatedBy Role          `json:"initiated_by"`
	Status      BookingStatus `json:"status"`
	Minutes     *string       `json:"minutes"`
	Agreements  *string       `json:"agreements"`
	RemindedAt  *time.Time    `json:"reminded_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из таблицы bookings)
	Slot *Slot `json:"slot,omitempty"`
}

// HasStudent проверяет входит ли студент в бронирование
func (b *Booking) HasStudent(studentID int64) bool {
	return slices.Contains(b.StudentIDs, studentID)
}
