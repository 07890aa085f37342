package model

import (
	"time"

	"github.com/google/uuid"
)

// Допустимая длительность слота регулярного расписания
const (
	MinScheduleDurationMinutes = 15
	MaxScheduleDurationMinutes = 240
)

// RecurringSchedule is a weekly availability template of a teacher.
// The background scheduler turns it into concrete slots ahead of time.
type RecurringSchedule struct {
	ID              int64     `json:"id"`
	GroupID         uuid.UUID `json:"group_id"` // идентификатор группы связанных расписаний
	TeacherID       int64     `json:"teacher_id"`
	Weekday         int       `json:"weekday"`          // 0 = Sunday, 6 = Saturday
	StartHour       int       `json:"start_hour"`       // 0-23
	StartMinute     int       `json:"start_minute"`     // 0-59
	DurationMinutes int       `json:"duration_minutes"` // длительность в минутах
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TimeOfDay is a wall-clock start time used when creating weekly availability.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}
