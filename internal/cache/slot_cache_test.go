package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) *SlotCache {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rdb, err := NewClient(ctx, url)
	if err != nil {
		t.Skipf("redis is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	prefix := "test:slots:" + t.Name()
	return NewSlotCache(rdb, zaptest.NewLogger(t), WithPrefix(prefix), WithTTL(time.Minute))
}

func TestSlotCacheRoundTripAndInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)
	c.Invalidate(ctx, 42)

	_, ok := c.GetFree(ctx, 42, from, to)
	assert.False(t, ok)

	slots := []*model.Slot{{ID: 1, TeacherID: 42, StartTime: from.Add(time.Hour), EndTime: from.Add(2 * time.Hour)}}
	c.SetFree(ctx, 42, from, to, slots)

	got, ok := c.GetFree(ctx, 42, from, to)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	// другой диапазон кэшируется отдельно
	_, ok = c.GetFree(ctx, 42, from, to.Add(time.Hour))
	assert.False(t, ok)

	c.Invalidate(ctx, 42)
	_, ok = c.GetFree(ctx, 42, from, to)
	assert.False(t, ok)
}

func TestSlotCacheEmptyListIsCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	from := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	c.Invalidate(ctx, 7)

	c.SetFree(ctx, 7, from, to, nil)
	got, ok := c.GetFree(ctx, 7, from, to)
	require.True(t, ok)
	assert.Empty(t, got)
}
