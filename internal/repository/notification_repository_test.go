package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
)

func TestNotificationCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(21, 1))

	repo := NewNotificationRepo(db)
	n := model.Notification{UserID: 3, Type: model.NotifyReservationCreated, Title: "t", Message: "m"}
	require.NoError(t, repo.Create(context.Background(), &n))
	assert.Equal(t, uint64(21), n.ID)
}

func TestMarkReadAlreadyReadIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// MySQL reports zero affected rows when the flag is already set; the
	// follow-up existence check distinguishes that from a missing row.
	mock.ExpectExec("UPDATE notifications SET is_read").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))

	repo := NewNotificationRepo(db)
	assert.NoError(t, repo.MarkRead(context.Background(), 9, 3))
}

func TestMarkReadUnknownNotification(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE notifications SET is_read").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id FROM notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewNotificationRepo(db)
	assert.ErrorIs(t, repo.MarkRead(context.Background(), 404, 3), ErrNotificationNotFound)
}
