package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestEventInsert_ReturnsID(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	row := &EventRow{
		MonitorID: 3,
		Name:      ProvisionalName,
		StartTime: time.Now(),
		Cause:     "Motion",
		Scheme:    "Shallow",
	}
	require.NoError(t, m.Insert(context.Background(), row))
	assert.Equal(t, int64(42), row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventInsert_FailureIsHard(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	mock.ExpectQuery("INSERT INTO events").WillReturnError(sql.ErrConnDone)

	row := &EventRow{MonitorID: 3, StartTime: time.Now()}
	err := m.Insert(context.Background(), row)
	require.Error(t, err)
	assert.Zero(t, row.ID)
}

func TestUpdateAggregates_RetriesUntilSuccess(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	mock.ExpectExec("UPDATE events").WillReturnError(sql.ErrConnDone)
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 1))

	agg := EventAggregates{Length: 1.5, Frames: 3, AlarmFrames: 2, TotScore: 8, MaxScore: 5}
	err := m.UpdateAggregates(context.Background(), 42, agg)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAggregates_CancellationEscapes(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	// Store stays down; the retry loop must give up when the process
	// shutdown context fires.
	mock.ExpectExec("UPDATE events").WillReturnError(sql.ErrConnDone)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.UpdateAggregates(ctx, 42, EventAggregates{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFinalize_NameGuardHolds(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	// Guarded update lands: nobody renamed the event, one statement only.
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Finalize(context.Background(), 42, "Event-42", time.Now(), EventAggregates{Frames: 3})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalize_RenamedFallsBackWithoutName(t *testing.T) {
	store, mock := newTestStore(t)
	m := EventModel{Store: store}

	// Concurrent rename: guarded update affects nothing, the nameless
	// update carries the aggregates without clobbering the new name.
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE events").WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.Finalize(context.Background(), 42, "Event-42", time.Now(), EventAggregates{Frames: 3})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAggregates_AvgScore(t *testing.T) {
	assert.Equal(t, 0, EventAggregates{}.AvgScore())
	assert.Equal(t, 0, EventAggregates{TotScore: 10}.AvgScore())
	assert.Equal(t, 4, EventAggregates{TotScore: 8, AlarmFrames: 2}.AvgScore())
}
