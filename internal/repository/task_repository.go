package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mentorship_slots/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepository counts project tasks for the booking quota.
type TaskRepository struct {
	*base.Repository
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{Repository: base.NewRepository(pool)}
}

// CountTasksForStudentInProject считает задачи проекта, назначенные студенту или созданные им
func (r *TaskRepository) CountTasksForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM tasks
		WHERE project_id = $1
		  AND (assignee_id = $2 OR created_by = $2)
	`

	var count int
	if err := r.QueryRow(ctx, query, projectID, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks for student: %w", err)
	}

	return count, nil
}
