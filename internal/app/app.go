package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/cache"
	"github.com/Freeeeeet/mentorship_slots/internal/clock"
	"github.com/Freeeeeet/mentorship_slots/internal/config"
	"github.com/Freeeeeet/mentorship_slots/internal/integration/meeting"
	"github.com/Freeeeeet/mentorship_slots/internal/integration/notify"
	"github.com/Freeeeeet/mentorship_slots/internal/metrics"
	"github.com/Freeeeeet/mentorship_slots/internal/repository"
	"github.com/Freeeeeet/mentorship_slots/internal/repository/base"
	"github.com/Freeeeeet/mentorship_slots/internal/service"
	transporthttp "github.com/Freeeeeet/mentorship_slots/internal/transport/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// Run собирает зависимости, запускает HTTP сервер и фоновые задачи
// и блокируется до отмены ctx.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := NewDBPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Connected to database")

	if cfg.MigrationsEnabled {
		migrator, err := NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	m := metrics.New()
	clk := clock.NewSystem()

	var slotCache service.SlotCache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
		slotCache = cache.NewSlotCache(rdb, logger, cache.WithTTL(cfg.SlotCacheTTL))
		logger.Info("Slot cache enabled")
	}

	var sender notify.Sender = notify.NewLogSender(logger)
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			return err
		}
		sender = tg
		logger.Info("Telegram notifications enabled")
	}
	dispatcher := notify.NewDispatcher(sender, logger,
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithLocation(cfg.Location),
		notify.WithFailureCounter(m),
	)

	var meetings service.MeetingLinkProvider = meeting.Disabled{}
	if cfg.MeetingAPIURL != "" {
		meetings = meeting.NewHTTPProvider(cfg.MeetingAPIURL, cfg.MeetingAPIToken)
	}

	slotRepo := repository.NewSlotRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	deps := service.Dependencies{
		Tx:       base.NewRepository(pool),
		Slots:    slotRepo,
		Bookings: bookingRepo,
		Projects: repository.NewProjectRepository(pool),
		Tasks:    repository.NewTaskRepository(pool),
		Users:    repository.NewUserRepository(pool),
		Meetings: meetings,
		Notifier: dispatcher,
		Cache:    slotCache,
		Metrics:  m,
		Clock:    clk,
		Logger:   logger,
	}
	bookerOpts := []service.BookerOption{
		service.WithMeetingTimeout(cfg.MeetingTimeout),
		service.WithFallbackBaseURL(cfg.MeetingFallbackBaseURL),
	}

	slotService := service.NewSlotService(slotRepo, repository.NewRecurringScheduleRepository(pool), slotCache, clk, cfg.Location, logger)
	bookingService := service.NewBookingService(deps)

	handler := transporthttp.NewHandler(transporthttp.Services{
		Slots:    slotService,
		Reserver: service.NewReservationService(deps, bookerOpts...),
		Summoner: service.NewSummonService(deps, bookerOpts,
			service.WithSummonDefaults(cfg.SummonDefaultHour, cfg.SummonDuration(), cfg.Location)),
		Bookings: bookingService,
		Quota:    service.NewQuotaService(deps.Tasks, deps.Bookings),
	}, clk, logger)

	limiter := transporthttp.NewLimiterStore(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartJanitor(ctx, 2*time.Minute)

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: transporthttp.NewRouter(transporthttp.RouterConfig{
			Handler:  handler,
			Metrics:  m.Handler(),
			Observer: m,
			Limiter:  limiter,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler := NewScheduler(slotService, bookingService, SchedulerConfig{
		ReminderInterval: cfg.ReminderInterval,
		ReminderWindow:   cfg.ReminderWindow,
	}, logger)
	scheduler.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()

	// Дожидаемся отправки уведомлений, начатых до остановки
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("Pending notifications were dropped", zap.Error(err))
	}

	return nil
}
