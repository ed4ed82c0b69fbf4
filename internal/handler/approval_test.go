package handler

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

func newApprovalHandler(t *testing.T) (*ApprovalHandler, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	reservations := repository.NewReservationRepo(db)
	rooms := repository.NewRoomRepo(db)
	users := repository.NewUserRepo(db)
	notifier := service.NewNotifier(repository.NewNotificationRepo(db))
	return NewApprovalHandler(reservations, rooms, users, notifier), mock, db
}

func reservationRows(id, userID uint64, status string, start, end time.Time) *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "user_id", "room_id", "start_time", "end_time", "purpose", "status",
		"is_recurring", "recurring_pattern", "recurring_days_of_week", "recurring_end_date",
		"parent_reservation_id", "recurring_template_id", "created_at", "updated_at",
	}).AddRow(id, userID, 1, start, end, nil, status, false, nil, nil, nil, nil, nil, now, now)
}

func futureWindow() (time.Time, time.Time) {
	return time.Date(2030, 1, 15, 14, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 15, 16, 0, 0, 0, time.UTC)
}

func TestDecideApprovesPendingReservation(t *testing.T) {
	h, mock, db := newApprovalHandler(t)
	defer db.Close()

	start, end := futureWindow()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusPending, start, end))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusPending, start, end))
	mock.ExpectExec("UPDATE reservations SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT status, start_time, end_time").
		WillReturnRows(sqlmock.NewRows([]string{"status", "start_time", "end_time"}).
			AddRow(booking.StatusApproved, start, end))
	mock.ExpectExec("UPDATE rooms SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// Owner notification row; the broker publish fails fast in tests and
	// is swallowed by the notifier.
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newTestContext(http.MethodPost, "/v1/reservations/9/approval", `{"approved":true}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Decide(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"APPROVED"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideRejectsNonPendingReservation(t *testing.T) {
	h, mock, db := newApprovalHandler(t)
	defer db.Close()

	start, end := futureWindow()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectRollback()

	c, rec := newTestContext(http.MethodPost, "/v1/reservations/9/approval", `{"approved":true}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Decide(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "only pending reservations")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideElapsedPendingReadsAsCompleted(t *testing.T) {
	h, mock, db := newApprovalHandler(t)
	defer db.Close()

	// Interval fully in the past: the effective status is COMPLETED, so the
	// approval is a precondition failure even though the row still says
	// PENDING.
	start := time.Date(2020, 1, 15, 14, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 15, 16, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusPending, start, end))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusPending, start, end))
	mock.ExpectRollback()

	c, rec := newTestContext(http.MethodPost, "/v1/reservations/9/approval", `{"approved":true}`, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Decide(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"COMPLETED"`)
}

func TestCancelByNonOwnerReadsAsNotFound(t *testing.T) {
	h, mock, db := newApprovalHandler(t)
	defer db.Close()

	start, end := futureWindow()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectRollback()

	c, rec := newTestContext(http.MethodPost, "/v1/reservations/9/cancel", ``, 77, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelActiveReservationFreesRoom(t *testing.T) {
	h, mock, db := newApprovalHandler(t)
	defer db.Close()

	start, end := futureWindow()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("FROM reservations WHERE id =").
		WillReturnRows(reservationRows(9, 2, booking.StatusActive, start, end))
	mock.ExpectExec("UPDATE reservations SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT status, start_time, end_time").
		WillReturnRows(sqlmock.NewRows([]string{"status", "start_time", "end_time"}))
	mock.ExpectExec("UPDATE rooms SET status").
		WithArgs(booking.RoomFree, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))

	c, rec := newTestContext(http.MethodPost, "/v1/reservations/9/cancel", ``, 2, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues("9")

	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
