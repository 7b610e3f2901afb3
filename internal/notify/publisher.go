// Package notify publishes event lifecycle notifications on NATS so
// downstream consumers (UI, analytics) learn about recordings without
// polling the record store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/ts-recorder/internal/data"
)

// Conn is the slice of nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Envelope is the wire format of one lifecycle notification.
type Envelope struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"` // "event.opened" | "event.closed"
	EventID     int64     `json:"event_id"`
	MonitorID   int64     `json:"monitor_id"`
	Cause       string    `json:"cause,omitempty"`
	StartTime   time.Time `json:"start_time,omitempty"`
	Length      float64   `json:"length,omitempty"`
	Frames      int       `json:"frames,omitempty"`
	AlarmFrames int       `json:"alarm_frames,omitempty"`
	MaxScore    int       `json:"max_score,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

type Publisher struct {
	conn       Conn
	subject    string
	maxRetries int
	dedup      *Dedup
}

func NewPublisher(conn Conn, subject string, maxRetries int, dedup *Dedup) *Publisher {
	return &Publisher{
		conn:       conn,
		subject:    subject,
		maxRetries: maxRetries,
		dedup:      dedup,
	}
}

func (p *Publisher) publish(env Envelope) error {
	env.ID = uuid.New().String()
	env.EmittedAt = time.Now().UTC()

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(p.subject, payload)
		if err == nil {
			return nil
		}
		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}

// EventOpened implements recorder.LifecycleNotifier. Publish failures are
// logged; notifications are advisory and never block recording.
func (p *Publisher) EventOpened(ctx context.Context, eventID, monitorID int64, cause string, start time.Time) {
	if p.dedup != nil && p.dedup.Seen(dedupKey("event.opened", eventID)) {
		return
	}
	err := p.publish(Envelope{
		Kind:      "event.opened",
		EventID:   eventID,
		MonitorID: monitorID,
		Cause:     cause,
		StartTime: start,
	})
	if err != nil {
		log.Printf("[ERROR] Notify: event.opened for event %d: %v", eventID, err)
	}
}

// EventClosed implements recorder.LifecycleNotifier.
func (p *Publisher) EventClosed(ctx context.Context, eventID, monitorID int64, agg data.EventAggregates) {
	if p.dedup != nil && p.dedup.Seen(dedupKey("event.closed", eventID)) {
		return
	}
	err := p.publish(Envelope{
		Kind:        "event.closed",
		EventID:     eventID,
		MonitorID:   monitorID,
		Length:      agg.Length,
		Frames:      agg.Frames,
		AlarmFrames: agg.AlarmFrames,
		MaxScore:    agg.MaxScore,
	})
	if err != nil {
		log.Printf("[ERROR] Notify: event.closed for event %d: %v", eventID, err)
	}
}

func dedupKey(kind string, eventID int64) string {
	return fmt.Sprintf("%s|%d", kind, eventID)
}
