package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummon_CreatesSlotForTomorrow(t *testing.T) {
	f := newFixture(t, 0)
	msk := time.FixedZone("MSK", 3*60*60)
	svc := NewSummonService(f.deps, nil, WithSummonDefaults(10, 90*time.Minute, msk))

	booking, err := svc.Summon(context.Background(), SummonInput{
		Actor:     teacherActor,
		ProjectID: projectID,
		StudentID: studentID,
		Reason:    "  missed two deadlines ",
	})
	require.NoError(t, err)

	assert.Equal(t, "[Mandatory summon] missed two deadlines", booking.Note)
	assert.Equal(t, []int64{studentID}, booking.StudentIDs)
	assert.Equal(t, model.RoleTeacher, booking.InitiatedBy)
	assert.Equal(t, model.BookingStatusConfirmed, booking.Status)

	require.NotNil(t, booking.Slot)
	slot := f.db.slot(booking.SlotID)
	assert.Equal(t, teacherID, slot.TeacherID)
	assert.True(t, slot.IsBooked)
	assert.True(t, slot.StartTime.Equal(time.Date(2030, 5, 7, 10, 0, 0, 0, msk)), slot.StartTime)
	assert.Equal(t, 90*time.Minute, slot.Duration())

	// квота не проверяется, даже без задач
	assert.Zero(t, f.db.quotaLocks)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, model.SessionKindSummon, sent[0].summary.Kind)
	assert.Equal(t, []int64{studentID, teacherID}, sent[0].recipients)
	assert.Equal(t, 1, f.metrics.outcomes["summon/success"])
}

func TestSummon_UsesGivenSlot(t *testing.T) {
	f := newFixture(t, 0)
	svc := NewSummonService(f.deps, nil)
	slotID := f.futureSlot(3 * time.Hour)

	booking, err := svc.Summon(context.Background(), SummonInput{
		Actor:     adminActor,
		ProjectID: projectID,
		StudentID: studentID,
		SlotID:    ptr(slotID),
	})
	require.NoError(t, err)

	assert.Equal(t, slotID, booking.SlotID)
	assert.Equal(t, "[Mandatory summon] ", booking.Note)
	assert.Equal(t, model.RoleAdmin, booking.InitiatedBy)
	assert.Equal(t, 1, f.db.slotCount())
}

func TestSummon_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		input   func(f *fixture) SummonInput
		wantErr error
	}{
		{
			name: "student caller",
			input: func(*fixture) SummonInput {
				return SummonInput{Actor: studentActor, ProjectID: projectID, StudentID: teammateID}
			},
			wantErr: ErrForbidden,
		},
		{
			name: "missing student",
			input: func(*fixture) SummonInput {
				return SummonInput{Actor: teacherActor, ProjectID: projectID}
			},
			wantErr: ErrStudentsRequired,
		},
		{
			name: "admin outside project without slot",
			input: func(*fixture) SummonInput {
				return SummonInput{Actor: adminActor, ProjectID: projectID, StudentID: studentID}
			},
			wantErr: ErrTeacherNotInProject,
		},
		{
			name: "slot of another project teacher",
			input: func(f *fixture) SummonInput {
				f.db.projects[projectID].TeacherIDs = append(f.db.projects[projectID].TeacherIDs, otherTeacherID)
				slotID := f.db.addSlot(otherTeacherID, testNow.Add(time.Hour))
				return SummonInput{Actor: teacherActor, ProjectID: projectID, StudentID: studentID, SlotID: &slotID}
			},
			wantErr: ErrForbidden,
		},
		{
			name: "admin picks a slot outside the project",
			input: func(f *fixture) SummonInput {
				slotID := f.db.addSlot(otherTeacherID, testNow.Add(time.Hour))
				return SummonInput{Actor: adminActor, ProjectID: projectID, StudentID: studentID, SlotID: &slotID}
			},
			wantErr: ErrTeacherNotInProject,
		},
		{
			name: "student outside the project",
			input: func(*fixture) SummonInput {
				return SummonInput{Actor: teacherActor, ProjectID: projectID, StudentID: 424242}
			},
			wantErr: ErrStudentNotInProject,
		},
		{
			name: "unknown slot",
			input: func(*fixture) SummonInput {
				return SummonInput{Actor: teacherActor, ProjectID: projectID, StudentID: studentID, SlotID: ptr(int64(404))}
			},
			wantErr: ErrSlotNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			svc := NewSummonService(f.deps, nil)
			in := tt.input(f)
			slotsBefore := f.db.slotCount()

			_, err := svc.Summon(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, slotsBefore, f.db.slotCount())
			assert.Empty(t, f.notifier.all())
		})
	}
}

func TestSummon_BookedSlot(t *testing.T) {
	f := newFixture(t, 1)
	slotID := f.futureSlot(time.Hour)

	_, err := NewReservationService(f.deps).Reserve(context.Background(), ReserveInput{SlotID: slotID, Actor: studentActor})
	require.NoError(t, err)

	_, err = NewSummonService(f.deps, nil).Summon(context.Background(), SummonInput{
		Actor: teacherActor, ProjectID: projectID, StudentID: teammateID, SlotID: &slotID,
	})
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	assert.Equal(t, 1, f.metrics.outcomes["summon/already_booked"])
}

func TestSummon_FailedInsertDropsCreatedSlot(t *testing.T) {
	f := newFixture(t, 1)
	f.db.failBookingCreate = errors.New("insert failed")
	svc := NewSummonService(f.deps, nil)

	_, err := svc.Summon(context.Background(), SummonInput{Actor: teacherActor, ProjectID: projectID, StudentID: studentID})
	require.Error(t, err)

	assert.Zero(t, f.db.slotCount())
	assert.Empty(t, f.notifier.all())
}
