package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// FailureCounter counts notifications that could not be delivered.
type FailureCounter interface {
	ObserveNotificationFailure(kind string)
}

// Dispatcher sends notifications in the background. Dispatch never blocks on
// delivery and never reports delivery errors to the caller.
type Dispatcher struct {
	sender   Sender
	location *time.Location
	timeout  time.Duration
	failures FailureCounter
	logger   *zap.Logger

	wg sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithLocation(loc *time.Location) DispatcherOption {
	return func(d *Dispatcher) {
		if loc != nil {
			d.location = loc
		}
	}
}

func WithFailureCounter(c FailureCounter) DispatcherOption {
	return func(d *Dispatcher) { d.failures = c }
}

func NewDispatcher(sender Sender, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:   sender,
		location: time.UTC,
		timeout:  defaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch отправляет сводку всем получателям в отдельной горутине.
// Контекст запроса отвязывается от отмены, время отправки ограничено timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []*model.User, summary model.SessionSummary) {
	if len(recipients) == 0 {
		return
	}

	text := FormatSummary(summary, d.location)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()

		if err := Multi(sendCtx, d.sender, recipients, text); err != nil {
			if d.failures != nil {
				d.failures.ObserveNotificationFailure(string(summary.Kind))
			}
			d.logger.Warn("Failed to deliver notification",
				zap.String("kind", string(summary.Kind)),
				zap.Int64("booking_id", summary.BookingID),
				zap.Error(err),
			)
			return
		}

		d.logger.Debug("Notification delivered",
			zap.String("kind", string(summary.Kind)),
			zap.Int64("booking_id", summary.BookingID),
			zap.Int("recipients", len(recipients)),
		)
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
