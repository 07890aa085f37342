// Package testutil provides Postgres helpers for integration tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const testDBLockID int64 = 733104219

// NewTestPool connects to TEST_DATABASE_URL and skips the test when it is
// unset or unreachable. The database is locked for the duration of the test.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	cfg.MaxConns = 24

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	t.Cleanup(pool.Close)

	lockTestDB(t, pool)
	applyMigrations(t, pool)
	truncateAll(t, pool)

	return pool
}

func applyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		t.Fatalf("set goose dialect: %v", err)
	}
	if err := goose.UpContext(context.Background(), db, "."); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
}

func truncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		TRUNCATE booking_students, bookings, recurring_schedules, slots, tasks,
		         project_students, project_teachers, projects, users
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertUser creates a user and returns its id.
func InsertUser(t *testing.T, pool *pgxpool.Pool, email, role string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id`, email, role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// InsertProject creates a project with its teachers and students.
func InsertProject(t *testing.T, pool *pgxpool.Pool, name, status string, teacherIDs, studentIDs []int64) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO projects (name, status) VALUES ($1, $2) RETURNING id`, name, status,
	).Scan(&id); err != nil {
		t.Fatalf("insert project: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO project_teachers (project_id, teacher_id) SELECT $1, unnest($2::BIGINT[])`, id, teacherIDs,
	); err != nil {
		t.Fatalf("insert project teachers: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO project_students (project_id, student_id) SELECT $1, unnest($2::BIGINT[])`, id, studentIDs,
	); err != nil {
		t.Fatalf("insert project students: %v", err)
	}
	return id
}

// InsertTasks creates n tasks assigned to the student.
func InsertTasks(t *testing.T, pool *pgxpool.Pool, projectID, studentID int64, n int) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO tasks (project_id, title, assignee_id)
		SELECT $1, 'task ' || g, $2 FROM generate_series(1, $3::INT) g`,
		projectID, studentID, n,
	)
	if err != nil {
		t.Fatalf("insert tasks: %v", err)
	}
}

func lockTestDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Release()
		t.Fatalf("acquire test lock: %v", err)
	}

	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Release()
	})
}
