package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-recorder/internal/data"
)

type fakeConn struct {
	published [][]byte
	failures  int
}

func (c *fakeConn) Publish(subject string, payload []byte) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("nats down")
	}
	c.published = append(c.published, payload)
	return nil
}

func TestPublisher_EventClosedEnvelope(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "vms.recorder.events", 3, nil)

	agg := data.EventAggregates{Length: 2.0, Frames: 3, AlarmFrames: 2, TotScore: 8, MaxScore: 5}
	p.EventClosed(context.Background(), 42, 3, agg)

	require.Len(t, conn.published, 1)

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.published[0], &env))
	assert.Equal(t, "event.closed", env.Kind)
	assert.Equal(t, int64(42), env.EventID)
	assert.Equal(t, int64(3), env.MonitorID)
	assert.Equal(t, 3, env.Frames)
	assert.Equal(t, 2, env.AlarmFrames)
	assert.Equal(t, 5, env.MaxScore)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.EmittedAt.IsZero())
}

func TestPublisher_RetriesTransientFailures(t *testing.T) {
	conn := &fakeConn{failures: 2}
	p := NewPublisher(conn, "vms.recorder.events", 3, nil)

	p.EventOpened(context.Background(), 42, 3, "Motion", time.Now())
	assert.Len(t, conn.published, 1)
}

func TestPublisher_DedupSuppressesDuplicateClose(t *testing.T) {
	conn := &fakeConn{}
	p := NewPublisher(conn, "vms.recorder.events", 0, NewDedup(16, time.Minute))

	agg := data.EventAggregates{Frames: 3}
	p.EventClosed(context.Background(), 42, 3, agg)
	p.EventClosed(context.Background(), 42, 3, agg)

	assert.Len(t, conn.published, 1, "duplicate close within the window must not republish")

	// A different event still goes out
	p.EventClosed(context.Background(), 43, 3, agg)
	assert.Len(t, conn.published, 2)
}

func TestDedup_ExpiresAfterTTL(t *testing.T) {
	d := NewDedup(16, 20*time.Millisecond)

	assert.False(t, d.Seen("k"))
	assert.True(t, d.Seen("k"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, d.Seen("k"))
}
