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

func TestInsertBatch_Empty(t *testing.T) {
	store, mock := newTestStore(t)
	m := FrameModel{Store: store}

	// No records, no statement
	assert.NoError(t, m.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_MultiRowFIFO(t *testing.T) {
	store, mock := newTestStore(t)
	m := FrameModel{Store: store}

	ts1 := time.Unix(100, 500_000_000)
	ts2 := time.Unix(101, 0)

	mock.ExpectExec("INSERT INTO frames").
		WithArgs(
			int64(42), 1, "Normal", ts1, 0.5, 0,
			int64(42), 2, "Alarm", ts2, 1.0, 5,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	records := []*FrameRecord{
		{EventID: 42, FrameID: 1, Type: "Normal", Timestamp: ts1, Delta: 0.5, Score: 0},
		{EventID: 42, FrameID: 2, Type: "Alarm", Timestamp: ts2, Delta: 1.0, Score: 5},
	}
	require.NoError(t, m.InsertBatch(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatch_SingleAttempt(t *testing.T) {
	store, mock := newTestStore(t)
	m := FrameModel{Store: store}

	// One failed attempt, no retry: the caller drops the batch.
	mock.ExpectExec("INSERT INTO frames").WillReturnError(sql.ErrConnDone)

	records := []*FrameRecord{{EventID: 42, FrameID: 1, Type: "Normal", Timestamp: time.Unix(100, 0)}}
	err := m.InsertBatch(context.Background(), records)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftDeltas_ZeroIsNoop(t *testing.T) {
	store, mock := newTestStore(t)
	m := FrameModel{Store: store}

	assert.NoError(t, m.ShiftDeltas(context.Background(), 42, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftDeltas_SubtractsOffset(t *testing.T) {
	store, mock := newTestStore(t)
	m := FrameModel{Store: store}

	mock.ExpectExec("UPDATE frames").
		WithArgs(1.5, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	assert.NoError(t, m.ShiftDeltas(context.Background(), 42, 1.5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
