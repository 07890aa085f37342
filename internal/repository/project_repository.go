package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/Freeeeeet/mentorship_slots/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectRepository is the read-only project directory used for
// teacher affiliation checks and student project inference.
type ProjectRepository struct {
	*base.Repository
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{Repository: base.NewRepository(pool)}
}

// FindProjectWithTeacher возвращает проект, только если учитель в нём состоит
func (r *ProjectRepository) FindProjectWithTeacher(ctx context.Context, projectID, teacherID int64) (*model.Project, error) {
	query := `
		SELECT p.id, p.name, p.status,
		       (SELECT array_agg(pt2.teacher_id ORDER BY pt2.teacher_id)
		        FROM project_teachers pt2 WHERE pt2.project_id = p.id)
		FROM projects p
		WHERE p.id = $1
		  AND EXISTS (SELECT 1 FROM project_teachers pt WHERE pt.project_id = p.id AND pt.teacher_id = $2)
	`

	var project model.Project
	err := r.QueryRow(ctx, query, projectID, teacherID).Scan(
		&project.ID,
		&project.Name,
		&project.Status,
		&project.TeacherIDs,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find project with teacher: %w", err)
	}

	return &project, nil
}

// ListActiveProjectIDsForStudent возвращает ID проектов студента в статусе in_progress
func (r *ProjectRepository) ListActiveProjectIDsForStudent(ctx context.Context, studentID int64) ([]int64, error) {
	query := `
		SELECT p.id
		FROM projects p
		JOIN project_students ps ON ps.project_id = p.id
		WHERE ps.student_id = $1 AND p.status = 'in_progress'
		ORDER BY p.id
	`

	rows, err := r.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list active projects for student: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active projects for student: %w", err)
	}

	return ids, nil
}

// ListStudentIDs возвращает ID студентов проекта
func (r *ProjectRepository) ListStudentIDs(ctx context.Context, projectID int64) ([]int64, error) {
	rows, err := r.Query(ctx, `SELECT student_id FROM project_students WHERE project_id = $1 ORDER BY student_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project students: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan student id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list project students: %w", err)
	}

	return ids, nil
}
