package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
)

func ts(h, m int) time.Time {
	return time.Date(2024, 1, 15, h, m, 0, 0, time.UTC)
}

func TestFindConflictsTxReportsEveryCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, user_id, start_time, end_time").
		WithArgs(uint64(1), uint64(0), ts(9, 0), ts(17, 0)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "start_time", "end_time"}).
			AddRow(7, 3, ts(10, 0), ts(12, 0)).
			AddRow(8, 4, ts(15, 0), ts(16, 0)))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewReservationRepo(db)
	occurrences := []booking.Interval{
		{Start: ts(9, 0), End: ts(10, 30)},  // collides with #7
		{Start: ts(12, 0), End: ts(13, 0)},  // boundary touch, no conflict
		{Start: ts(15, 30), End: ts(17, 0)}, // collides with #8
	}
	conflicts, err := repo.FindConflictsTx(context.Background(), tx, 1, occurrences, 0)
	require.NoError(t, err)

	require.Len(t, conflicts, 2)
	assert.Equal(t, uint64(7), conflicts[0].ReservationID)
	assert.Equal(t, uint64(3), conflicts[0].UserID)
	assert.Equal(t, ts(9, 0), conflicts[0].RequestedStart)
	assert.Equal(t, uint64(8), conflicts[1].ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindConflictsTxEmptyOccurrences(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReservationRepo(db)
	conflicts, err := repo.FindConflictsTx(context.Background(), nil, 1, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCreateBatchTxLinksSiblingsToAnchor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(13, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	tid := "b7a9c0de-0000-4000-8000-000000000001"
	rows := []*model.Reservation{
		{UserID: 2, RoomID: 1, StartTime: ts(9, 0), EndTime: ts(10, 0), Status: booking.StatusPending, IsRecurring: true, RecurringTemplateID: &tid},
		{UserID: 2, RoomID: 1, StartTime: ts(9, 0).AddDate(0, 0, 1), EndTime: ts(10, 0).AddDate(0, 0, 1), Status: booking.StatusPending, IsRecurring: true, RecurringTemplateID: &tid},
		{UserID: 2, RoomID: 1, StartTime: ts(9, 0).AddDate(0, 0, 2), EndTime: ts(10, 0).AddDate(0, 0, 2), Status: booking.StatusPending, IsRecurring: true, RecurringTemplateID: &tid},
	}
	repo := NewReservationRepo(db)
	require.NoError(t, repo.CreateBatchTx(context.Background(), tx, rows))

	assert.Equal(t, uint64(11), rows[0].ID)
	assert.Nil(t, rows[0].ParentReservationID)
	for _, sibling := range rows[1:] {
		require.NotNil(t, sibling.ParentReservationID)
		assert.Equal(t, uint64(11), *sibling.ParentReservationID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusTxMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewReservationRepo(db)
	err = repo.UpdateStatusTx(context.Background(), tx, 99, booking.StatusCancelled)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestBlockingSlotsTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := ts(11, 0)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, start_time, end_time").
		WithArgs(uint64(1), now).
		WillReturnRows(sqlmock.NewRows([]string{"status", "start_time", "end_time"}).
			AddRow(booking.StatusActive, ts(10, 0), ts(12, 0)).
			AddRow(booking.StatusApproved, ts(14, 0), ts(15, 0)))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewReservationRepo(db)
	slots, err := repo.BlockingSlotsTx(context.Background(), tx, 1, now)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, booking.RoomInUse, booking.DeriveRoomStatus(now, slots))
}
