package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newSlotService(t *testing.T, f *fixture) *SlotService {
	t.Helper()
	return NewSlotService(f.db, scheduleStore{db: f.db}, f.cache, clock.NewFixed(testNow), time.UTC, zaptest.NewLogger(t))
}

func TestSlotService_CreateSlot(t *testing.T) {
	f := newFixture(t, 0)
	svc := newSlotService(t, f)
	ctx := context.Background()

	slot, err := svc.CreateSlot(ctx, teacherID, testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.NotZero(t, slot.ID)
	assert.False(t, slot.IsBooked)
	assert.Equal(t, []int64{teacherID}, f.cache.invalidated)

	got, err := svc.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.StartTime, got.StartTime)

	_, err = svc.GetSlot(ctx, 404)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestSlotService_CreateSlotInvalidRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", testNow.Add(2 * time.Hour), testNow.Add(time.Hour)},
		{"empty range", testNow.Add(time.Hour), testNow.Add(time.Hour)},
		{"starts in the past", testNow.Add(-time.Hour), testNow.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			_, err := newSlotService(t, f).CreateSlot(context.Background(), teacherID, tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInvalidRange)
			assert.Zero(t, f.db.slotCount())
		})
	}
}

func TestSlotService_ListFreeSlotsReadsThroughCache(t *testing.T) {
	f := newFixture(t, 0)
	svc := newSlotService(t, f)
	ctx := context.Background()
	from, to := testNow, testNow.Add(7*24*time.Hour)

	_, err := svc.ListFreeSlots(ctx, teacherID, to, from)
	assert.ErrorIs(t, err, ErrInvalidRange)

	f.futureSlot(time.Hour)
	f.db.addSlot(otherTeacherID, testNow.Add(time.Hour))

	slots, err := svc.ListFreeSlots(ctx, teacherID, from, to)
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	// слот добавлен мимо сервиса, поэтому ответ берётся из кеша
	f.futureSlot(2 * time.Hour)
	slots, err = svc.ListFreeSlots(ctx, teacherID, from, to)
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	_, err = svc.CreateSlot(ctx, teacherID, testNow.Add(3*time.Hour), testNow.Add(4*time.Hour))
	require.NoError(t, err)

	slots, err = svc.ListFreeSlots(ctx, teacherID, from, to)
	require.NoError(t, err)
	assert.Len(t, slots, 3)
}

func TestSlotService_WeeklyAvailability(t *testing.T) {
	f := newFixture(t, 0)
	svc := newSlotService(t, f)
	ctx := context.Background()

	// testNow is Monday 09:00 UTC
	groupID, err := svc.CreateWeeklyAvailability(ctx, teacherID,
		[]int{int(time.Monday), int(time.Wednesday)},
		[]model.TimeOfDay{{Hour: 10}, {Hour: 15, Minute: 30}},
		45,
	)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, groupID)
	assert.Equal(t, 16, f.db.slotCount())

	schedules, err := svc.GetWeeklyAvailability(ctx, teacherID)
	require.NoError(t, err)
	require.Len(t, schedules, 4)
	for _, s := range schedules {
		assert.Equal(t, groupID, s.GroupID)
		assert.True(t, s.IsActive)
	}

	created, err := svc.GenerateSlotsForAllRecurringSchedules(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, created)

	created, err = svc.GenerateSlotsForAllRecurringSchedules(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, created)

	free, err := svc.ListFreeSlots(ctx, teacherID, testNow, testNow.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, free, 2)
	assert.Equal(t, 45*time.Minute, free[0].Duration())

	require.NoError(t, svc.DeactivateWeeklyAvailability(ctx, teacherID, groupID))
	created, err = svc.GenerateSlotsForAllRecurringSchedules(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, created)

	err = svc.DeactivateWeeklyAvailability(ctx, teacherID, groupID)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestSlotService_WeeklyAvailabilityDurationBounds(t *testing.T) {
	for _, minutes := range []int{model.MinScheduleDurationMinutes, model.MaxScheduleDurationMinutes} {
		f := newFixture(t, 0)
		_, err := newSlotService(t, f).CreateWeeklyAvailability(context.Background(), teacherID, []int{1}, []model.TimeOfDay{{Hour: 10}}, minutes)
		require.NoError(t, err, "duration %d", minutes)
		assert.NotZero(t, f.db.slotCount())
	}
}

func TestSlotService_WeeklyAvailabilityValidation(t *testing.T) {
	tests := []struct {
		name     string
		weekdays []int
		times    []model.TimeOfDay
		duration int
	}{
		{"no weekdays", nil, []model.TimeOfDay{{Hour: 10}}, 60},
		{"no times", []int{1}, nil, 60},
		{"weekday out of range", []int{7}, []model.TimeOfDay{{Hour: 10}}, 60},
		{"hour out of range", []int{1}, []model.TimeOfDay{{Hour: 24}}, 60},
		{"minute out of range", []int{1}, []model.TimeOfDay{{Hour: 10, Minute: 60}}, 60},
		{"zero duration", []int{1}, []model.TimeOfDay{{Hour: 10}}, 0},
		{"duration below 15 minutes", []int{1}, []model.TimeOfDay{{Hour: 10}}, 14},
		{"duration above 4 hours", []int{1}, []model.TimeOfDay{{Hour: 10}}, 241},
		{"huge duration", []int{1}, []model.TimeOfDay{{Hour: 10}}, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			_, err := newSlotService(t, f).CreateWeeklyAvailability(context.Background(), teacherID, tt.weekdays, tt.times, tt.duration)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
			assert.Zero(t, f.db.slotCount())
		})
	}
}
