package model

import "time"

// Slot is a teacher-owned mentoring window. IsBooked and Version change only
// through the guarded claim/release writes of the slot repository.
type Slot struct {
	ID         int64     `json:"id"`
	TeacherID  int64     `json:"teacher_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	IsBooked   bool      `json:"is_booked"`
	MeetingURL *string   `json:"meeting_url"` // nil until the slot is claimed
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

// Duration возвращает длительность слота
func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
