// Package redisstore keeps short-lived reminder state in Redis.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// AlertMarker records alerted breaches with SET NX so concurrent sweeps agree.
type AlertMarker struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewAlertMarker keeps marks for ttl; after that the breach may alert again.
func NewAlertMarker(client redis.Cmdable, ttl time.Duration) *AlertMarker {
	return &AlertMarker{client: client, ttl: ttl}
}

func (m *AlertMarker) Mark(ctx context.Context, scheduleID uuid.UUID, missedCount int) (bool, error) {
	ok, err := m.client.SetNX(ctx, alertKey(scheduleID, missedCount), time.Now().Unix(), m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func alertKey(scheduleID uuid.UUID, missedCount int) string {
	return fmt.Sprintf("medreminder:sweep:alerted:%s:%d", scheduleID, missedCount)
}
