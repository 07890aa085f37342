package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlotGenerator turns weekly availability into concrete slots.
type SlotGenerator interface {
	GenerateSlotsForAllRecurringSchedules(ctx context.Context, weeksAhead int) (int, error)
}

// ReminderSender notifies participants about upcoming sessions.
type ReminderSender interface {
	SendDueReminders(ctx context.Context, window time.Duration) (int, error)
}

type SchedulerConfig struct {
	SlotGenerationInterval time.Duration
	WeeksAhead             int
	ReminderInterval       time.Duration
	ReminderWindow         time.Duration
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	slots     SlotGenerator
	reminders ReminderSender
	cfg       SchedulerConfig
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(slots SlotGenerator, reminders ReminderSender, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.SlotGenerationInterval <= 0 {
		cfg.SlotGenerationInterval = 24 * time.Hour
	}
	if cfg.WeeksAhead <= 0 {
		cfg.WeeksAhead = 4
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = 15 * time.Minute
	}
	if cfg.ReminderWindow <= 0 {
		cfg.ReminderWindow = 24 * time.Hour
	}

	return &Scheduler{
		slots:     slots,
		reminders: reminders,
		cfg:       cfg,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler")

	s.run(ctx, "slot_generation", s.cfg.SlotGenerationInterval, s.generateSlots)
	s.run(ctx, "reminders", s.cfg.ReminderInterval, s.sendReminders)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// run выполняет задачу сразу при старте и затем по тикеру
func (s *Scheduler) run(ctx context.Context, name string, every time.Duration, job func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		job(ctx)

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				job(ctx)
			case <-s.stopChan:
				s.logger.Info("Background task stopped", zap.String("task", name))
				return
			case <-ctx.Done():
				s.logger.Info("Background task cancelled", zap.String("task", name))
				return
			}
		}
	}()
}

// generateSlots генерирует слоты для всех активных recurring schedules
func (s *Scheduler) generateSlots(ctx context.Context) {
	count, err := s.slots.GenerateSlotsForAllRecurringSchedules(ctx, s.cfg.WeeksAhead)
	if err != nil {
		s.logger.Error("Failed to generate slots", zap.Error(err))
		return
	}

	s.logger.Info("Automatic slot generation completed", zap.Int("created", count))
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	sent, err := s.reminders.SendDueReminders(ctx, s.cfg.ReminderWindow)
	if err != nil {
		s.logger.Error("Failed to send reminders", zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Reminders sent", zap.Int("count", sent))
	}
}
