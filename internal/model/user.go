package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid проверяет что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// IsStaff is true for roles that are not bound by the booking quota.
func (r Role) IsStaff() bool {
	return r == RoleTeacher || r == RoleAdmin
}

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	TelegramID *int64    `json:"telegram_id"` // nil - уведомления в Telegram не отправляются
	CreatedAt  time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	UserID int64
	Role   Role
}
