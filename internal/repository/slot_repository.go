package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/Freeeeeet/mentorship_slots/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, teacher_id, start_time, end_time, is_booked, meeting_url, version, created_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт новый свободный слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (teacher_id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING id, is_booked, version, created_at
	`

	err := r.QueryRow(ctx, query, slot.TeacherID, slot.StartTime, slot.EndTime).
		Scan(&slot.ID, &slot.IsBooked, &slot.Version, &slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	slot, err := scanSlot(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListFree получает свободные слоты учителя в заданном диапазоне времени
func (r *SlotRepository) ListFree(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE teacher_id = $1
		  AND is_booked = FALSE
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, teacherID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	defer rows.Close()

	var slots []*model.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}

	return slots, nil
}

// Claim is the only write that books a slot. It succeeds for exactly one
// caller per free slot; losers get false with a nil error.
func (r *SlotRepository) Claim(ctx context.Context, slotID int64, meetingURL string) (bool, error) {
	query := `
		UPDATE slots
		SET is_booked = TRUE, meeting_url = $2, version = version + 1
		WHERE id = $1 AND is_booked = FALSE
	`

	affected, err := r.ExecAffected(ctx, query, slotID, meetingURL)
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}

	return affected == 1, nil
}

// Release освобождает забронированный слот (при отмене бронирования)
func (r *SlotRepository) Release(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE slots
		SET is_booked = FALSE, meeting_url = NULL, version = version + 1
		WHERE id = $1 AND is_booked = TRUE
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}

	return affected == 1, nil
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.IsBooked,
		&slot.MeetingURL,
		&slot.Version,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// SlotExists проверяет существование слота для учителя в указанное время
func (r *SlotRepository) SlotExists(ctx context.Context, teacherID int64, startTime time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM slots
			WHERE teacher_id = $1 AND start_time = $2
		)
	`

	var exists bool
	if err := r.QueryRow(ctx, query, teacherID, startTime).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}

	return exists, nil
}
