package data

import (
	"context"
	"fmt"
	"time"
)

// ProvisionalName is the name every event row is created with. Finalize
// only overwrites it if nobody renamed the event during recording.
const ProvisionalName = "New Event"

// EventRow mirrors one row of the events table.
type EventRow struct {
	ID           int64
	MonitorID    int64
	StorageID    int64
	Name         string
	StartTime    time.Time
	EndTime      *time.Time
	Width        int
	Height       int
	Cause        string
	Notes        string
	StateID      int64
	Orientation  int
	Videoed      bool
	DefaultVideo string
	SaveJpegs    int
	Scheme       string
}

// EventAggregates is the running counter set external consumers read as
// the source of truth for an in-progress event.
type EventAggregates struct {
	Length      float64
	Frames      int
	AlarmFrames int
	TotScore    int
	MaxScore    int
}

// AvgScore derives the average alarm score, zero when no alarm frames exist.
func (a EventAggregates) AvgScore() int {
	if a.AlarmFrames > 0 {
		return a.TotScore / a.AlarmFrames
	}
	return 0
}

type EventModel struct {
	Store *Store
}

// Insert creates the durable event row and fills in the authoritative id.
// Free-text fields (cause, notes) travel as parameters, never interpolated.
func (m EventModel) Insert(ctx context.Context, e *EventRow) error {
	query := `
		INSERT INTO events (
			monitor_id, storage_id, name, start_time, width, height,
			cause, notes, state_id, orientation, videoed, default_video,
			save_jpegs, scheme
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err := m.Store.QueryRow(ctx, query,
		e.MonitorID, e.StorageID, e.Name, e.StartTime, e.Width, e.Height,
		e.Cause, e.Notes, e.StateID, e.Orientation, e.Videoed, e.DefaultVideo,
		e.SaveJpegs, e.Scheme,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if e.ID == 0 {
		return ErrNoEventID
	}
	return nil
}

// ActiveStateID returns the currently active run state, or 0 when none is
// marked active. Best effort: callers treat a missing state as state 0.
func (m EventModel) ActiveStateID(ctx context.Context) (int64, error) {
	var id int64
	err := m.Store.QueryRow(ctx, `SELECT id FROM states WHERE is_active = TRUE LIMIT 1`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m EventModel) SetDefaultVideo(ctx context.Context, id int64, videoName string) error {
	_, err := m.Store.Exec(ctx,
		`UPDATE events SET default_video = $1 WHERE id = $2`, videoName, id)
	return err
}

func (m EventModel) UpdateNotes(ctx context.Context, id int64, notes string) error {
	_, err := m.Store.Exec(ctx,
		`UPDATE events SET notes = $1 WHERE id = $2`, notes, id)
	return err
}

// UpdateAggregates writes the running counters for an in-progress event,
// blocking until the write lands or ctx is cancelled. These updates are
// never optional; a transient store outage stalls the caller, not the data.
func (m EventModel) UpdateAggregates(ctx context.Context, id int64, agg EventAggregates) error {
	query := `
		UPDATE events
		SET length = $1, frames = $2, alarm_frames = $3,
		    tot_score = $4, avg_score = $5, max_score = $6
		WHERE id = $7`

	return m.Store.RetryUntil(ctx, "event aggregate update", func() error {
		_, err := m.Store.Exec(ctx, query,
			agg.Length, agg.Frames, agg.AlarmFrames,
			agg.TotScore, agg.AvgScore(), agg.MaxScore, id)
		return err
	})
}

// Finalize writes the closing update: final name, end time and aggregates.
// The name clause is guarded on the provisional name; if the event was
// renamed during recording the guarded update affects no rows and we retry
// once more without touching the name.
func (m EventModel) Finalize(ctx context.Context, id int64, name string, endTime time.Time, agg EventAggregates) error {
	named := `
		UPDATE events
		SET name = $1, end_time = $2, length = $3, frames = $4,
		    alarm_frames = $5, tot_score = $6, avg_score = $7, max_score = $8
		WHERE id = $9 AND name = $10`

	var affected int64
	err := m.Store.RetryUntil(ctx, "event finalize", func() error {
		res, err := m.Store.Exec(ctx, named,
			name, endTime, agg.Length, agg.Frames,
			agg.AlarmFrames, agg.TotScore, agg.AvgScore(), agg.MaxScore,
			id, ProvisionalName)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Renamed during recording: keep the external name, update the rest.
	nameless := `
		UPDATE events
		SET end_time = $1, length = $2, frames = $3, alarm_frames = $4,
		    tot_score = $5, avg_score = $6, max_score = $7
		WHERE id = $8`

	return m.Store.RetryUntil(ctx, "event finalize (renamed)", func() error {
		_, err := m.Store.Exec(ctx, nameless,
			endTime, agg.Length, agg.Frames, agg.AlarmFrames,
			agg.TotScore, agg.AvgScore(), agg.MaxScore, id)
		return err
	})
}
