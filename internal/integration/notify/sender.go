// Package notify delivers session summaries to participants.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoChannel is returned when a user cannot be reached by a sender.
var ErrNoChannel = errors.New("user has no notification channel")

// Sender delivers one rendered message to one user.
type Sender interface {
	Send(ctx context.Context, user *model.User, text string) error
}

// TelegramSender пишет пользователю в Telegram по его telegram_id
type TelegramSender struct {
	bot *bot.Bot
}

// NewTelegramSender creates the bot client without calling getMe, so startup
// does not depend on Telegram availability.
func NewTelegramSender(token string, opts ...bot.Option) (*TelegramSender, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: b}, nil
}

func (s *TelegramSender) Send(ctx context.Context, user *model.User, text string) error {
	if user.TelegramID == nil {
		return ErrNoChannel
	}

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    *user.TelegramID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// LogSender only logs messages. Used when no real channel is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, user *model.User, text string) error {
	s.logger.Info("Notification",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("text", text),
	)
	return nil
}

// Multi sends to every user concurrently and joins the failures.
// Users without a channel are skipped.
func Multi(ctx context.Context, sender Sender, users []*model.User, text string) error {
	g, ctx := errgroup.WithContext(ctx)
	errs := make([]error, len(users))

	for i, u := range users {
		g.Go(func() error {
			err := sender.Send(ctx, u, text)
			if err != nil && !errors.Is(err, ErrNoChannel) {
				errs[i] = fmt.Errorf("user %d: %w", u.ID, err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}
