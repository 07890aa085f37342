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

const bookingSelect = `
	SELECT b.id, b.slot_id, b.project_id, b.note, b.initiated_by, b.status,
	       b.minutes, b.agreements, b.reminded_at, b.created_at, b.updated_at,
	       COALESCE((SELECT array_agg(bs.student_id ORDER BY bs.student_id)
	                 FROM booking_students bs WHERE bs.booking_id = b.id), '{}'::BIGINT[]),
	       s.id, s.teacher_id, s.start_time, s.end_time, s.is_booked, s.meeting_url, s.version, s.created_at
	FROM bookings b
	JOIN slots s ON s.id = b.slot_id
`

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт бронирование вместе со списком студентов
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO bookings (slot_id, project_id, note, initiated_by, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at
		`

		err := r.QueryRow(
			ctx, query,
			booking.SlotID,
			booking.ProjectID,
			booking.Note,
			booking.InitiatedBy,
			booking.Status,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		_, err = r.Exec(ctx, `
			INSERT INTO booking_students (booking_id, student_id)
			SELECT $1, unnest($2::BIGINT[])
			ON CONFLICT DO NOTHING
		`, booking.ID, booking.StudentIDs)
		if err != nil {
			return fmt.Errorf("create booking students: %w", err)
		}

		return nil
	})
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := scanBooking(r.QueryRow(ctx, bookingSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetActiveBySlotID получает активное бронирование для слота
func (r *BookingRepository) GetActiveBySlotID(ctx context.Context, slotID int64) (*model.Booking, error) {
	query := bookingSelect + `
		WHERE b.slot_id = $1 AND b.status IN ('pending', 'confirmed')
		LIMIT 1
	`

	booking, err := scanBooking(r.QueryRow(ctx, query, slotID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by slot: %w", err)
	}

	return booking, nil
}

// ListByStudent получает все бронирования студента
func (r *BookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE EXISTS (SELECT 1 FROM booking_students bs WHERE bs.booking_id = b.id AND bs.student_id = $1)
		ORDER BY s.start_time DESC
	`
	return r.list(ctx, "list bookings by student", query, studentID)
}

// ListByTeacher получает все бронирования учителя
func (r *BookingRepository) ListByTeacher(ctx context.Context, teacherID int64) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE s.teacher_id = $1
		ORDER BY s.start_time DESC
	`
	return r.list(ctx, "list bookings by teacher", query, teacherID)
}

// ListDueReminders returns confirmed, not yet reminded bookings whose
// session starts in [from, to).
func (r *BookingRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	query := bookingSelect + `
		WHERE b.status = 'confirmed'
		  AND b.reminded_at IS NULL
		  AND s.start_time >= $1
		  AND s.start_time < $2
		ORDER BY s.start_time
	`
	return r.list(ctx, "list due reminders", query, from, to)
}

// CountActiveForStudentInProject считает неотменённые бронирования студента в проекте
func (r *BookingRepository) CountActiveForStudentInProject(ctx context.Context, projectID, studentID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings b
		JOIN booking_students bs ON bs.booking_id = b.id
		WHERE b.project_id = $1
		  AND bs.student_id = $2
		  AND b.status <> 'canceled'
	`

	var count int
	if err := r.QueryRow(ctx, query, projectID, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active bookings: %w", err)
	}

	return count, nil
}

// LockStudentQuota takes a transaction-scoped advisory lock for the
// (project, student) pair. Must be called inside WithTx.
func (r *BookingRepository) LockStudentQuota(ctx context.Context, projectID, studentID int64) error {
	key := fmt.Sprintf("booking_quota:%d:%d", projectID, studentID)
	if _, err := r.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock student quota: %w", err)
	}
	return nil
}

// UpdateStatus переводит бронирование из статуса from в статус to.
// Возвращает false, если бронирование уже не в статусе from.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id int64, from []model.BookingStatus, to model.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3::TEXT[])
	`

	affected, err := r.ExecAffected(ctx, query, to, id, statusStrings(from))
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}

	return affected == 1, nil
}

// Complete отмечает подтверждённое бронирование завершённым и сохраняет итоги встречи
func (r *BookingRepository) Complete(ctx context.Context, id int64, minutes, agreements string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = 'completed', minutes = $2, agreements = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'confirmed'
	`

	affected, err := r.ExecAffected(ctx, query, id, minutes, agreements)
	if err != nil {
		return false, fmt.Errorf("complete booking: %w", err)
	}

	return affected == 1, nil
}

// MarkReminded отмечает что напоминание отправлено
func (r *BookingRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	_, err := r.Exec(ctx, `UPDATE bookings SET reminded_at = $2 WHERE id = $1 AND reminded_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark booking reminded: %w", err)
	}
	return nil
}

func (r *BookingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	var slot model.Slot
	err := row.Scan(
		&booking.ID,
		&booking.SlotID,
		&booking.ProjectID,
		&booking.Note,
		&booking.InitiatedBy,
		&booking.Status,
		&booking.Minutes,
		&booking.Agreements,
		&booking.RemindedAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.StudentIDs,
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
	booking.Slot = &slot
	return &booking, nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
