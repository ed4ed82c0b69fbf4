package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/room-reservation/internal/model"
)

// RoomRepo provides CRUD operations for rooms and owns the per-room lock
// used by the booking and approval flows.  The stored status column is a
// cache; callers recompute it from the reservation set and write it through
// UpdateStatusTx inside the same transaction that mutates reservations.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *RoomRepo) DB() *sql.DB { return r.db }

const roomColumns = `id, name, description, capacity, status, is_active, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (model.Room, error) {
	var rm model.Room
	var desc sql.NullString
	var capacity sql.NullInt64
	err := row.Scan(&rm.ID, &rm.Name, &desc, &capacity, &rm.Status, &rm.IsActive, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return model.Room{}, err
	}
	if desc.Valid {
		d := desc.String
		rm.Description = &d
	}
	if capacity.Valid {
		c := uint32(capacity.Int64)
		rm.Capacity = &c
	}
	return rm, nil
}

// Create inserts a room and populates the generated ID.  New rooms start
// FREE and active.
func (r *RoomRepo) Create(ctx context.Context, rm *model.Room) error {
	const q = `INSERT INTO rooms (name, description, capacity, status, is_active) VALUES (?, ?, ?, 'FREE', TRUE)`
	res, err := r.db.ExecContext(ctx, q, rm.Name, rm.Description, rm.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rm.ID = uint64(id)
	const sel = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	got, err := scanRoom(r.db.QueryRowContext(ctx, sel, rm.ID))
	if err != nil {
		return err
	}
	*rm = got
	return nil
}

// GetByID loads a room.  Returns ErrRoomNotFound when it does not exist.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	rm, err := scanRoom(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return rm, err
}

// GetByIDForUpdateTx loads a room inside a transaction and takes a row lock
// on it (SELECT ... FOR UPDATE).  Holding the lock for the whole
// check-then-write span serializes concurrent booking attempts on the same
// room, so two overlapping requests can never both pass the conflict check.
func (r *RoomRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? FOR UPDATE`
	rm, err := scanRoom(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, ErrRoomNotFound
	}
	return rm, err
}

// List returns all rooms ordered by name.  Pass activeOnly to hide
// deactivated rooms from non-admin listings.
func (r *RoomRepo) List(ctx context.Context, activeOnly bool) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Room, 0)
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update rewrites a room's editable attributes.  Returns ErrRoomNotFound
// when no row matched.
func (r *RoomRepo) Update(ctx context.Context, rm *model.Room) error {
	const q = `UPDATE rooms SET name = ?, description = ?, capacity = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, rm.Name, rm.Description, rm.Capacity, rm.IsActive, rm.ID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrRoomNameExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is missing or nothing changed; distinguish by re-reading.
		if _, err := r.GetByID(ctx, rm.ID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatusTx writes the cached room status inside a transaction.
func (r *RoomRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, roomID uint64, status string) error {
	const q = `UPDATE rooms SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, status, roomID)
	return err
}

// Delete removes a room.  Returns ErrRoomNotFound when it does not exist.
func (r *RoomRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM rooms WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// ErrRoomNameExists is returned when a room name collides with an existing one.
var ErrRoomNameExists = errors.New("room name already exists")
