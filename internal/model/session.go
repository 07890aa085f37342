package model

import "time"

// MeetingRequest describes the video session a meeting-link provider must create.
type MeetingRequest struct {
	Title          string
	Description    string
	Start          time.Time
	End            time.Time
	AttendeeEmails []string
}

type SessionKind string

const (
	SessionKindBooked   SessionKind = "booked"
	SessionKindSummon   SessionKind = "summon"
	SessionKindCanceled SessionKind = "canceled"
	SessionKindReminder SessionKind = "reminder"
)

// SessionSummary is the payload sent to participants about a mentoring session.
type SessionSummary struct {
	Kind       SessionKind
	BookingID  int64
	ProjectID  int64
	Start      time.Time
	End        time.Time
	MeetingURL string
	Note       string
}

// QuotaStatus is the derived booking quota of a student in a project.
type QuotaStatus struct {
	ProjectID    int64 `json:"project_id"`
	StudentID    int64 `json:"student_id"`
	TaskCount    int   `json:"task_count"`
	BookingCount int   `json:"booking_count"`
	Remaining    int   `json:"remaining"`
}
