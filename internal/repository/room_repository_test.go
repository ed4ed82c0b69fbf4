package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
)

func roomRow(id uint64, name, status string) *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "name", "description", "capacity", "status", "is_active", "created_at", "updated_at"}).
		AddRow(id, name, nil, nil, status, true, now, now)
}

func TestGetByIDForUpdateTxLocksRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM rooms WHERE id = \\? FOR UPDATE").
		WithArgs(uint64(5)).
		WillReturnRows(roomRow(5, "R1", "FREE"))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := NewRoomRepo(db)
	rm, err := repo.GetByIDForUpdateTx(context.Background(), tx, 5)
	require.NoError(t, err)
	assert.Equal(t, "R1", rm.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM rooms WHERE id =").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewRoomRepo(db)
	_, err = repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestUpdateDuplicateName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE rooms SET").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'R1' for key 'rooms.name'"))

	repo := NewRoomRepo(db)
	rm := model.Room{ID: 5, Name: "R1", IsActive: true}
	err = repo.Update(context.Background(), &rm)
	assert.ErrorIs(t, err, ErrRoomNameExists)
}

func TestDeleteMissingRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM rooms").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewRoomRepo(db)
	err = repo.Delete(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
