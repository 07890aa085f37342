package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/Freeeeeet/mentorship_slots/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recurringColumns = `id, group_id, teacher_id, weekday, start_hour, start_minute, duration_minutes, is_active, created_at, updated_at`

// RecurringScheduleRepository управляет recurring расписаниями в базе данных
type RecurringScheduleRepository struct {
	*base.Repository
}

// NewRecurringScheduleRepository создаёт новый репозиторий
func NewRecurringScheduleRepository(pool *pgxpool.Pool) *RecurringScheduleRepository {
	return &RecurringScheduleRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новый recurring schedule
func (r *RecurringScheduleRepository) Create(ctx context.Context, schedule *model.RecurringSchedule) error {
	query := `
		INSERT INTO recurring_schedules (group_id, teacher_id, weekday, start_hour, start_minute, duration_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx,
		query,
		schedule.GroupID,
		schedule.TeacherID,
		schedule.Weekday,
		schedule.StartHour,
		schedule.StartMinute,
		schedule.DurationMinutes,
		schedule.IsActive,
	).Scan(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recurring schedule: %w", err)
	}

	return nil
}

// GetByTeacherID получает все recurring schedules учителя
func (r *RecurringScheduleRepository) GetByTeacherID(ctx context.Context, teacherID int64) ([]*model.RecurringSchedule, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_schedules
		WHERE teacher_id = $1
		ORDER BY weekday, start_hour, start_minute
	`
	return r.list(ctx, "get recurring schedules by teacher", query, teacherID)
}

// GetAllActive получает все активные recurring schedules
func (r *RecurringScheduleRepository) GetAllActive(ctx context.Context) ([]*model.RecurringSchedule, error) {
	query := `
		SELECT ` + recurringColumns + `
		FROM recurring_schedules
		WHERE is_active = TRUE
		ORDER BY teacher_id, weekday, start_hour, start_minute
	`
	return r.list(ctx, "get all active recurring schedules", query)
}

// DeactivateGroup деактивирует всю группу recurring schedules учителя
func (r *RecurringScheduleRepository) DeactivateGroup(ctx context.Context, teacherID int64, groupID uuid.UUID) (int64, error) {
	query := `
		UPDATE recurring_schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE group_id = $1 AND teacher_id = $2 AND is_active = TRUE
	`

	affected, err := r.ExecAffected(ctx, query, groupID, teacherID)
	if err != nil {
		return 0, fmt.Errorf("deactivate recurring schedule group: %w", err)
	}

	return affected, nil
}

func (r *RecurringScheduleRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.RecurringSchedule, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var schedules []*model.RecurringSchedule
	for rows.Next() {
		schedule, err := scanRecurringSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return schedules, nil
}

func scanRecurringSchedule(row pgx.Row) (*model.RecurringSchedule, error) {
	schedule := &model.RecurringSchedule{}
	err := row.Scan(
		&schedule.ID,
		&schedule.GroupID,
		&schedule.TeacherID,
		&schedule.Weekday,
		&schedule.StartHour,
		&schedule.StartMinute,
		&schedule.DurationMinutes,
		&schedule.IsActive,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return schedule, nil
}
