package telemetry

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-recorder/internal/data"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(client), mr
}

func TestMirrorAggregates(t *testing.T) {
	s, mr := newTestService(t)

	agg := data.EventAggregates{Length: 2.0, Frames: 3, AlarmFrames: 2, TotScore: 8, MaxScore: 5}
	require.NoError(t, s.MirrorAggregates(context.Background(), 42, agg))

	assert.Equal(t, "3", mr.HGet("event_live:42", "frames"))
	assert.Equal(t, "2", mr.HGet("event_live:42", "alarm_frames"))
	assert.Equal(t, "8", mr.HGet("event_live:42", "tot_score"))
	assert.Equal(t, "4", mr.HGet("event_live:42", "avg_score"))
	assert.Equal(t, "5", mr.HGet("event_live:42", "max_score"))

	// Key must expire on its own if the recorder dies mid-event
	ttl := mr.TTL("event_live:42")
	assert.Greater(t, ttl.Seconds(), 0.0)
}

func TestMirrorAggregates_Overwrites(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.MirrorAggregates(ctx, 42, data.EventAggregates{Frames: 1}))
	require.NoError(t, s.MirrorAggregates(ctx, 42, data.EventAggregates{Frames: 2, AlarmFrames: 1, TotScore: 5, MaxScore: 5}))

	assert.Equal(t, "2", mr.HGet("event_live:42", "frames"))
	assert.Equal(t, "5", mr.HGet("event_live:42", "max_score"))
}

func TestRemove(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.MirrorAggregates(ctx, 42, data.EventAggregates{Frames: 1}))
	require.NoError(t, s.Remove(ctx, 42))

	assert.False(t, mr.Exists("event_live:42"))
}
