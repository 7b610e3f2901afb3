package data

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FrameRecord is one buffered frame pending durable insert. It is owned by
// the frame buffer until handed to InsertBatch, which consumes it.
type FrameRecord struct {
	EventID   int64
	FrameID   int
	Type      string
	Timestamp time.Time
	Delta     float64
	Score     int
}

type FrameModel struct {
	Store *Store
}

// InsertBatch issues one multi-row insert covering every record, in order.
// Single attempt: the caller logs a failure and drops the batch. Frame
// history is best effort; aggregates carry the truth.
func (m FrameModel) InsertBatch(ctx context.Context, records []*FrameRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO frames (event_id, frame_id, type, timestamp, delta, score) VALUES `)

	args := make([]any, 0, len(records)*6)
	for i, r := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, r.EventID, r.FrameID, r.Type, r.Timestamp, r.Delta, r.Score)
	}

	if _, err := m.Store.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %d frames: %w", len(records), err)
	}
	return nil
}

// ShiftDeltas subtracts offset seconds from every persisted delta of the
// event, realigning frame deltas with the actual video start. A zero
// offset issues no statement.
func (m FrameModel) ShiftDeltas(ctx context.Context, eventID int64, offset float64) error {
	if offset == 0 {
		return nil
	}
	_, err := m.Store.Exec(ctx,
		`UPDATE frames SET delta = delta - $1 WHERE event_id = $2`, offset, eventID)
	return err
}
