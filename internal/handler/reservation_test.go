package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

func newTestContext(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	// Mirror what the JWT middleware stores: numeric claims arrive as float64.
	c.Set("user_id", float64(userID))
	c.Set("role", role)
	return c, rec
}

func newReservationHandler(t *testing.T) (*ReservationHandler, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	reservations := repository.NewReservationRepo(db)
	rooms := repository.NewRoomRepo(db)
	users := repository.NewUserRepo(db)
	notifier := service.NewNotifier(repository.NewNotificationRepo(db))
	return NewReservationHandler(reservations, rooms, users, notifier), mock, db
}

func activeRoomRow() *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "name", "description", "capacity", "status", "is_active", "created_at", "updated_at"}).
		AddRow(1, "R1", nil, nil, booking.RoomFree, true, now, now)
}

func emptyConflictRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "start_time", "end_time"})
}

func TestCreateRejectsInvertedInterval(t *testing.T) {
	h, _, db := newReservationHandler(t)
	defer db.Close()

	body := `{"room_id":1,"start_time":"2024-01-15T16:00:00Z","end_time":"2024-01-15T14:00:00Z"}`
	c, rec := newTestContext(http.MethodPost, "/v1/reservations", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "start_time must be before end_time")
}

func TestCreateReturnsFullConflictList(t *testing.T) {
	h, mock, db := newReservationHandler(t)
	defer db.Close()

	existingStart := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	existingEnd := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("SELECT id, user_id, start_time, end_time").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "start_time", "end_time"}).
			AddRow(7, 3, existingStart, existingEnd))
	mock.ExpectRollback()

	body := `{"room_id":1,"start_time":"2024-01-15T15:00:00Z","end_time":"2024-01-15T17:00:00Z"}`
	c, rec := newTestContext(http.MethodPost, "/v1/reservations", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reservation_id":7`)
	assert.Contains(t, rec.Body.String(), "2024-01-15T14:00:00Z")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMemberBookingStartsPending(t *testing.T) {
	h, mock, db := newReservationHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(activeRoomRow())
	mock.ExpectQuery("SELECT id, user_id, start_time, end_time").WillReturnRows(emptyConflictRows())
	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectQuery("SELECT status, start_time, end_time").
		WillReturnRows(sqlmock.NewRows([]string{"status", "start_time", "end_time"}))
	mock.ExpectExec("UPDATE rooms SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"room_id":1,"start_time":"2030-01-15T14:00:00Z","end_time":"2030-01-15T16:00:00Z","purpose":"standup"}`
	c, rec := newTestContext(http.MethodPost, "/v1/reservations", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)
	assert.Contains(t, rec.Body.String(), `"id":42`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRecurringSelfConflict(t *testing.T) {
	h, _, db := newReservationHandler(t)
	defer db.Close()

	// A DAILY pattern with a 30-hour base interval overlaps its own next
	// occurrence; nothing must reach the database.
	body := `{"room_id":1,"start_time":"2024-01-15T09:00:00Z","end_time":"2024-01-16T15:00:00Z",` +
		`"recurrence":{"pattern":"DAILY","end_date":"2024-01-18"}}`
	c, rec := newTestContext(http.MethodPost, "/v1/reservations", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "conflicts with itself")
}

func TestCreateUnknownRoom(t *testing.T) {
	h, mock, db := newReservationHandler(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	body := `{"room_id":404,"start_time":"2030-01-15T14:00:00Z","end_time":"2030-01-15T16:00:00Z"}`
	c, rec := newTestContext(http.MethodPost, "/v1/reservations", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
