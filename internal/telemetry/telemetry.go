// Package telemetry mirrors in-progress event aggregates into Redis so
// UI and analytics consumers can read live counters without touching the
// record store.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-recorder/internal/data"
)

// Keys expire on their own if a recorder dies without closing the event.
const liveTTL = 15 * time.Minute

type Service struct {
	Redis *redis.Client
}

func NewService(client *redis.Client) *Service {
	return &Service{Redis: client}
}

func liveKey(eventID int64) string {
	return fmt.Sprintf("event_live:%d", eventID)
}

// MirrorAggregates implements recorder.AggregateMirror.
func (s *Service) MirrorAggregates(ctx context.Context, eventID int64, agg data.EventAggregates) error {
	key := liveKey(eventID)

	pipe := s.Redis.Pipeline()
	pipe.HSet(ctx, key,
		"length", agg.Length,
		"frames", agg.Frames,
		"alarm_frames", agg.AlarmFrames,
		"tot_score", agg.TotScore,
		"avg_score", agg.AvgScore(),
		"max_score", agg.MaxScore,
		"updated_at", time.Now().Unix(),
	)
	pipe.Expire(ctx, key, liveTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// Remove drops the live mirror once the event has been finalized; readers
// switch to the durable row.
func (s *Service) Remove(ctx context.Context, eventID int64) error {
	return s.Redis.Del(ctx, liveKey(eventID)).Err()
}
