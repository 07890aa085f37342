package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultWeeksAhead = 4

type SlotService struct {
	slots     SlotStore
	recurring RecurringScheduleStore
	cache     SlotCache
	clock     clock.Clock
	location  *time.Location
	logger    *zap.Logger
}

func NewSlotService(slots SlotStore, recurring RecurringScheduleStore, cache SlotCache, clk clock.Clock, loc *time.Location, logger *zap.Logger) *SlotService {
	if cache == nil {
		cache = nopCache{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotService{
		slots:     slots,
		recurring: recurring,
		cache:     cache,
		clock:     clk,
		location:  loc,
		logger:    logger,
	}
}

// CreateSlot создаёт свободный слот учителя
func (s *SlotService) CreateSlot(ctx context.Context, teacherID int64, start, end time.Time) (*model.Slot, error) {
	slot := &model.Slot{
		TeacherID: teacherID,
		StartTime: start,
		EndTime:   end,
	}
	if slot.Duration() <= 0 || start.Before(s.clock.Now()) {
		return nil, ErrInvalidRange
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, teacherID)

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Time("start_time", start),
		zap.Duration("duration", slot.Duration()),
	)

	return slot, nil
}

func (s *SlotService) GetSlot(ctx context.Context, slotID int64) (*model.Slot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

// ListFreeSlots возвращает свободные слоты учителя в диапазоне [from, to)
func (s *SlotService) ListFreeSlots(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, error) {
	if !from.Before(to) {
		return nil, ErrInvalidRange
	}

	if slots, ok := s.cache.GetFree(ctx, teacherID, from, to); ok {
		return slots, nil
	}

	slots, err := s.slots.ListFree(ctx, teacherID, from, to)
	if err != nil {
		return nil, err
	}

	s.cache.SetFree(ctx, teacherID, from, to, slots)
	return slots, nil
}

// CreateWeeklyAvailability создаёт группу регулярных расписаний с общим group_id
// и сразу генерирует слоты на несколько недель вперёд.
// weekdays: 0 = Sunday, 6 = Saturday
func (s *SlotService) CreateWeeklyAvailability(ctx context.Context, teacherID int64, weekdays []int, times []model.TimeOfDay, durationMinutes int) (uuid.UUID, error) {
	if len(weekdays) == 0 || len(times) == 0 {
		return uuid.Nil, ErrInvalidSchedule
	}
	if durationMinutes < model.MinScheduleDurationMinutes || durationMinutes > model.MaxScheduleDurationMinutes {
		return uuid.Nil, ErrInvalidSchedule
	}
	for _, wd := range weekdays {
		if wd < 0 || wd > 6 {
			return uuid.Nil, ErrInvalidSchedule
		}
	}
	for _, t := range times {
		if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			return uuid.Nil, ErrInvalidSchedule
		}
	}

	groupID := uuid.New()
	createdCount := 0
	for _, weekday := range weekdays {
		for _, t := range times {
			schedule := &model.RecurringSchedule{
				GroupID:         groupID,
				TeacherID:       teacherID,
				Weekday:         weekday,
				StartHour:       t.Hour,
				StartMinute:     t.Minute,
				DurationMinutes: durationMinutes,
				IsActive:        true,
			}

			if err := s.recurring.Create(ctx, schedule); err != nil {
				return uuid.Nil, fmt.Errorf("create recurring schedule: %w", err)
			}

			count := s.generateSlots(ctx, schedule, defaultWeeksAhead)
			s.logger.Debug("Generated initial slots",
				zap.Int64("recurring_schedule_id", schedule.ID),
				zap.Int("count", count))

			createdCount++
		}
	}

	s.cache.Invalidate(ctx, teacherID)

	s.logger.Info("Weekly availability created",
		zap.String("group_id", groupID.String()),
		zap.Int64("teacher_id", teacherID),
		zap.Int("total_created", createdCount),
	)

	return groupID, nil
}

func (s *SlotService) GetWeeklyAvailability(ctx context.Context, teacherID int64) ([]*model.RecurringSchedule, error) {
	return s.recurring.GetByTeacherID(ctx, teacherID)
}

// DeactivateWeeklyAvailability останавливает генерацию новых слотов группы.
// Уже созданные слоты остаются.
func (s *SlotService) DeactivateWeeklyAvailability(ctx context.Context, teacherID int64, groupID uuid.UUID) error {
	affected, err := s.recurring.DeactivateGroup(ctx, teacherID, groupID)
	if err != nil {
		return fmt.Errorf("deactivate recurring group: %w", err)
	}
	if affected == 0 {
		return ErrInvalidSchedule
	}

	s.logger.Info("Weekly availability deactivated",
		zap.String("group_id", groupID.String()),
		zap.Int64("teacher_id", teacherID),
		zap.Int64("schedules", affected),
	)
	return nil
}

// GenerateSlotsForAllRecurringSchedules генерирует слоты для всех активных recurring schedules.
// Вызывается периодически из планировщика.
func (s *SlotService) GenerateSlotsForAllRecurringSchedules(ctx context.Context, weeksAhead int) (int, error) {
	schedules, err := s.recurring.GetAllActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("get all active recurring schedules: %w", err)
	}

	totalCount := 0
	touched := make(map[int64]struct{})
	for _, schedule := range schedules {
		count := s.generateSlots(ctx, schedule, weeksAhead)
		if count > 0 {
			touched[schedule.TeacherID] = struct{}{}
		}
		totalCount += count
	}

	for teacherID := range touched {
		s.cache.Invalidate(ctx, teacherID)
	}

	s.logger.Info("Generated slots for all recurring schedules",
		zap.Int("total_schedules", len(schedules)),
		zap.Int("total_slots_created", totalCount),
	)

	return totalCount, nil
}

// generateSlots создаёт недостающие будущие слоты по шаблону; ошибки отдельных слотов только логируются
func (s *SlotService) generateSlots(ctx context.Context, schedule *model.RecurringSchedule, weeksAhead int) int {
	now := s.clock.Now().In(s.location)
	weekday := time.Weekday(schedule.Weekday)

	count := 0
	for i := 0; i < weeksAhead*7; i++ {
		date := now.AddDate(0, 0, i)
		if date.Weekday() != weekday {
			continue
		}

		startTime := clock.At(date, s.location, schedule.StartHour, schedule.StartMinute)
		endTime := startTime.Add(time.Duration(schedule.DurationMinutes) * time.Minute)

		// Пропускаем прошедшие слоты
		if startTime.Before(now) {
			continue
		}

		exists, err := s.slots.SlotExists(ctx, schedule.TeacherID, startTime)
		if err != nil {
			s.logger.Warn("Failed to check slot existence",
				zap.Error(err),
				zap.Time("start_time", startTime),
			)
			continue
		}
		if exists {
			continue
		}

		slot := &model.Slot{
			TeacherID: schedule.TeacherID,
			StartTime: startTime,
			EndTime:   endTime,
		}
		if err := s.slots.Create(ctx, slot); err != nil {
			s.logger.Warn("Failed to create slot",
				zap.Error(err),
				zap.Time("start_time", startTime),
			)
			continue
		}

		count++
	}

	return count
}
