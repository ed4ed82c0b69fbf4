package handler

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/repository"
	"github.com/iliyamo/room-reservation/internal/service"
)

func newIncidentHandler(t *testing.T) (*IncidentHandler, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	incidents := repository.NewIncidentRepo(db)
	rooms := repository.NewRoomRepo(db)
	users := repository.NewUserRepo(db)
	notifier := service.NewNotifier(repository.NewNotificationRepo(db))
	return NewIncidentHandler(incidents, rooms, users, notifier), mock, db
}

func incidentRows(id, reportedBy uint64, status string) *sqlmock.Rows {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "title", "description", "priority", "status", "category",
		"reported_by_id", "assigned_to_id", "room_id", "item_id",
		"estimated_resolution_time", "actual_resolution_time", "resolution_notes",
		"created_at", "updated_at",
	}).AddRow(id, "Projector broken", "No signal on input 2", "MEDIUM", status, "EQUIPMENT",
		reportedBy, nil, 1, nil, nil, nil, nil, now, now)
}

func TestCreateIncidentRequiresExactlyOneTarget(t *testing.T) {
	h, _, db := newIncidentHandler(t)
	defer db.Close()

	body := `{"title":"t","description":"d","room_id":1,"item_id":2}`
	c, rec := newTestContext(http.MethodPost, "/v1/incidents", body, 2, model.RoleMember)

	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exactly one of room_id or item_id")
}

func TestPatchIgnoresFieldsOutsideCallerRole(t *testing.T) {
	h, mock, db := newIncidentHandler(t)
	defer db.Close()

	// The reporter may edit the description side but not drive the
	// workflow: status lands in ignored_fields and the title edit applies.
	mock.ExpectQuery("FROM incidents WHERE id =").
		WillReturnRows(incidentRows(4, 2, model.IncidentReported))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE incidents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"title":"Projector dead","status":"RESOLVED"}`
	c, rec := newTestContext(http.MethodPatch, "/v1/incidents/4", body, 2, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues("4")

	require.NoError(t, h.Patch(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ignored_fields":["status"]`)
	assert.Contains(t, rec.Body.String(), "Projector dead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchRejectsIllegalWorkflowJump(t *testing.T) {
	h, mock, db := newIncidentHandler(t)
	defer db.Close()

	mock.ExpectQuery("FROM incidents WHERE id =").
		WillReturnRows(incidentRows(4, 2, model.IncidentReported))

	// REPORTED cannot jump straight to RESOLVED.
	body := `{"status":"RESOLVED"}`
	c, rec := newTestContext(http.MethodPatch, "/v1/incidents/4", body, 1, model.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues("4")

	require.NoError(t, h.Patch(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot move incident")
}

func TestPatchByStrangerReadsAsNotFound(t *testing.T) {
	h, mock, db := newIncidentHandler(t)
	defer db.Close()

	mock.ExpectQuery("FROM incidents WHERE id =").
		WillReturnRows(incidentRows(4, 2, model.IncidentReported))

	body := `{"title":"x"}`
	c, rec := newTestContext(http.MethodPatch, "/v1/incidents/4", body, 99, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues("4")

	require.NoError(t, h.Patch(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
