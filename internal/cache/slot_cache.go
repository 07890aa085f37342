// Package cache keeps short-lived copies of free-slot listings in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Freeeeeet/mentorship_slots/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTTL = 30 * time.Second

// SlotCache stores one Redis hash per teacher; each field is a listed range.
// Invalidate drops the whole hash, so any write for a teacher clears all of
// the teacher's cached ranges at once.
type SlotCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

type Option func(*SlotCache)

func WithTTL(d time.Duration) Option {
	return func(c *SlotCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(c *SlotCache) { c.prefix = prefix }
}

func NewSlotCache(rdb *redis.Client, logger *zap.Logger, opts ...Option) *SlotCache {
	c := &SlotCache{
		rdb:    rdb,
		prefix: "slots:free:teacher",
		ttl:    defaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (c *SlotCache) key(teacherID int64) string {
	return c.prefix + ":" + strconv.FormatInt(teacherID, 10)
}

func field(from, to time.Time) string {
	return strconv.FormatInt(from.UnixNano(), 10) + "-" + strconv.FormatInt(to.UnixNano(), 10)
}

func (c *SlotCache) GetFree(ctx context.Context, teacherID int64, from, to time.Time) ([]*model.Slot, bool) {
	raw, err := c.rdb.HGet(ctx, c.key(teacherID), field(from, to)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Slot cache read failed", zap.Int64("teacher_id", teacherID), zap.Error(err))
		}
		return nil, false
	}

	var slots []*model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		c.logger.Warn("Slot cache entry is corrupted", zap.Int64("teacher_id", teacherID), zap.Error(err))
		return nil, false
	}
	return slots, true
}

func (c *SlotCache) SetFree(ctx context.Context, teacherID int64, from, to time.Time, slots []*model.Slot) {
	if slots == nil {
		slots = []*model.Slot{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		c.logger.Warn("Slot cache encode failed", zap.Error(err))
		return
	}

	key := c.key(teacherID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, field(from, to), raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Slot cache write failed", zap.Int64("teacher_id", teacherID), zap.Error(err))
	}
}

func (c *SlotCache) Invalidate(ctx context.Context, teacherID int64) {
	if err := c.rdb.Del(ctx, c.key(teacherID)).Err(); err != nil {
		c.logger.Warn("Slot cache invalidate failed", zap.Int64("teacher_id", teacherID), zap.Error(err))
	}
}
