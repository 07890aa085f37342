package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  map[int64]string
	fail  map[int64]error
	delay time.Duration
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: map[int64]string{}, fail: map[int64]error{}}
}

func (s *recordingSender) Send(ctx context.Context, user *model.User, text string) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := s.fail[user.ID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[user.ID] = text
	return nil
}

type failureCount struct {
	mu    sync.Mutex
	kinds []string
}

func (f *failureCount) ObserveNotificationFailure(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

func summary() model.SessionSummary {
	start := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	return model.SessionSummary{
		Kind:       model.SessionKindBooked,
		BookingID:  7,
		ProjectID:  1,
		Start:      start,
		End:        start.Add(time.Hour),
		MeetingURL: "https://meet.example.com/x",
		Note:       "обсудить <MVP>",
	}
}

func TestDispatcherDeliversToAllRecipients(t *testing.T) {
	sender := newRecordingSender()
	d := NewDispatcher(sender, zaptest.NewLogger(t))

	users := []*model.User{{ID: 1}, {ID: 2}, {ID: 3}}
	d.Dispatch(context.Background(), users, summary())
	require.NoError(t, d.Wait(context.Background()))

	require.Len(t, sender.sent, 3)
	assert.Contains(t, sender.sent[1], "https://meet.example.com/x")
	assert.Contains(t, sender.sent[1], "обсудить &lt;MVP&gt;")
	assert.Contains(t, sender.sent[1], "10:00-11:00 (1 ч)")
}

func TestDispatcherSurvivesCanceledRequestContext(t *testing.T) {
	sender := newRecordingSender()
	sender.delay = 20 * time.Millisecond
	d := NewDispatcher(sender, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, []*model.User{{ID: 1}}, summary())
	cancel()

	require.NoError(t, d.Wait(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestDispatcherCountsFailures(t *testing.T) {
	sender := newRecordingSender()
	sender.fail[2] = errors.New("telegram down")
	sender.fail[3] = ErrNoChannel
	counter := &failureCount{}
	d := NewDispatcher(sender, zaptest.NewLogger(t), WithFailureCounter(counter))

	d.Dispatch(context.Background(), []*model.User{{ID: 1}, {ID: 2}, {ID: 3}}, summary())
	require.NoError(t, d.Wait(context.Background()))

	assert.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"booked"}, counter.kinds)
}

func TestDispatcherTimeout(t *testing.T) {
	sender := newRecordingSender()
	sender.delay = time.Second
	counter := &failureCount{}
	d := NewDispatcher(sender, zaptest.NewLogger(t), WithTimeout(20*time.Millisecond), WithFailureCounter(counter))

	d.Dispatch(context.Background(), []*model.User{{ID: 1}}, summary())
	require.NoError(t, d.Wait(context.Background()))

	assert.Empty(t, sender.sent)
	assert.Len(t, counter.kinds, 1)
}

func TestFormatSummaryCanceledHidesLink(t *testing.T) {
	s := summary()
	s.Kind = model.SessionKindCanceled

	text := FormatSummary(s, time.UTC)
	assert.Contains(t, text, "Встреча отменена")
	assert.NotContains(t, text, "meet.example.com")
}
