package model

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

type Project struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Status     ProjectStatus `json:"status"`
	TeacherIDs []int64       `json:"teacher_ids"`
}
