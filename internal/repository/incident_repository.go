package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/room-reservation/internal/model"
)

// IncidentRepo provides access to incidents and their append-only status
// history.  Status history rows are only ever inserted; the workflow never
// rewrites past entries.
type IncidentRepo struct {
	db *sql.DB
}

// NewIncidentRepo returns a new IncidentRepo bound to the given database.
func NewIncidentRepo(db *sql.DB) *IncidentRepo { return &IncidentRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *IncidentRepo) DB() *sql.DB { return r.db }

const incidentColumns = `id, title, description, priority, status, category,
       reported_by_id, assigned_to_id, room_id, item_id,
       estimated_resolution_time, actual_resolution_time, resolution_notes,
       created_at, updated_at`

func scanIncident(row interface{ Scan(...any) error }) (model.Incident, error) {
	var in model.Incident
	var assigned, roomID, itemID sql.NullInt64
	var estimated, actual sql.NullTime
	var notes sql.NullString
	err := row.Scan(
		&in.ID, &in.Title, &in.Description, &in.Priority, &in.Status, &in.Category,
		&in.ReportedByID, &assigned, &roomID, &itemID,
		&estimated, &actual, &notes,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return model.Incident{}, err
	}
	if assigned.Valid {
		v := uint64(assigned.Int64)
		in.AssignedToID = &v
	}
	if roomID.Valid {
		v := uint64(roomID.Int64)
		in.RoomID = &v
	}
	if itemID.Valid {
		v := uint64(itemID.Int64)
		in.ItemID = &v
	}
	if estimated.Valid {
		v := estimated.Time
		in.EstimatedResolutionTime = &v
	}
	if actual.Valid {
		v := actual.Time
		in.ActualResolutionTime = &v
	}
	if notes.Valid {
		v := notes.String
		in.ResolutionNotes = &v
	}
	return in, nil
}

// Create inserts a new incident in REPORTED status and records the initial
// history entry in one transaction.
func (r *IncidentRepo) Create(ctx context.Context, in *model.Incident) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO incidents
               (title, description, priority, status, category, reported_by_id, room_id, item_id, estimated_resolution_time)
               VALUES (?, ?, ?, 'REPORTED', ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		in.Title, in.Description, in.Priority, in.Category,
		in.ReportedByID, in.RoomID, in.ItemID, in.EstimatedResolutionTime)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	in.ID = uint64(id)
	in.Status = model.IncidentReported
	if err := r.appendHistoryTx(ctx, tx, in.ID, "", model.IncidentReported, in.ReportedByID, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads an incident.  Returns ErrIncidentNotFound when it does not exist.
func (r *IncidentRepo) GetByID(ctx context.Context, id uint64) (model.Incident, error) {
	const q = `SELECT ` + incidentColumns + ` FROM incidents WHERE id = ?`
	in, err := scanIncident(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Incident{}, ErrIncidentNotFound
	}
	return in, err
}

// IncidentFilter narrows List results.  Zero values mean "no filter".
type IncidentFilter struct {
	Status       string
	AssignedToID uint64
	RoomID       uint64
}

// List returns incidents matching the filter, newest first.
func (r *IncidentRepo) List(ctx context.Context, f IncidentFilter) ([]model.Incident, error) {
	q := `SELECT ` + incidentColumns + ` FROM incidents`
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.AssignedToID != 0 {
		where = append(where, "assigned_to_id = ?")
		args = append(args, f.AssignedToID)
	}
	if f.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Incident, 0)
	for rows.Next() {
		in, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update rewrites an incident's mutable columns and, when the status
// changed, appends a history entry, all in one transaction.  changedBy is
// the acting user for the history record.
func (r *IncidentRepo) Update(ctx context.Context, in *model.Incident, prevStatus string, changedBy uint64, note *string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `UPDATE incidents
               SET title = ?, description = ?, priority = ?, status = ?, category = ?,
                   assigned_to_id = ?, estimated_resolution_time = ?, actual_resolution_time = ?,
                   resolution_notes = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q,
		in.Title, in.Description, in.Priority, in.Status, in.Category,
		in.AssignedToID, in.EstimatedResolutionTime, in.ActualResolutionTime,
		in.ResolutionNotes, in.ID); err != nil {
		return err
	}
	if in.Status != prevStatus {
		if err := r.appendHistoryTx(ctx, tx, in.ID, prevStatus, in.Status, changedBy, note); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// History returns an incident's status changes, oldest first.
func (r *IncidentRepo) History(ctx context.Context, incidentID uint64) ([]model.IncidentStatusChange, error) {
	const q = `SELECT id, incident_id, from_status, to_status, changed_by_id, note, created_at
               FROM incident_status_history WHERE incident_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.IncidentStatusChange, 0)
	for rows.Next() {
		var h model.IncidentStatusChange
		var note sql.NullString
		if err := rows.Scan(&h.ID, &h.IncidentID, &h.FromStatus, &h.ToStatus, &h.ChangedByID, &note, &h.CreatedAt); err != nil {
			return nil, err
		}
		if note.Valid {
			v := note.String
			h.Note = &v
		}
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *IncidentRepo) appendHistoryTx(ctx context.Context, tx *sql.Tx, incidentID uint64, from, to string, changedBy uint64, note *string) error {
	const q = `INSERT INTO incident_status_history (incident_id, from_status, to_status, changed_by_id, note)
               VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, incidentID, from, to, changedBy, note)
	return err
}
