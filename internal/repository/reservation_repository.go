package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/room-reservation/internal/booking"
	"github.com/iliyamo/room-reservation/internal/model"
)

// ReservationRepo provides persistence for reservations, including the
// conflict query used by the booking flow and batch creation of recurring
// occurrence sets.  All timestamp columns are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, user_id, room_id, start_time, end_time, purpose, status,
       is_recurring, recurring_pattern, recurring_days_of_week, recurring_end_date,
       parent_reservation_id, recurring_template_id, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (model.Reservation, error) {
	var res model.Reservation
	var purpose, pattern, days, templateID sql.NullString
	var endDate sql.NullTime
	var parentID sql.NullInt64
	err := row.Scan(
		&res.ID, &res.UserID, &res.RoomID, &res.StartTime, &res.EndTime, &purpose, &res.Status,
		&res.IsRecurring, &pattern, &days, &endDate,
		&parentID, &templateID, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return model.Reservation{}, err
	}
	if purpose.Valid {
		v := purpose.String
		res.Purpose = &v
	}
	if pattern.Valid {
		v := pattern.String
		res.RecurringPattern = &v
	}
	if days.Valid {
		v := days.String
		res.RecurringDaysOfWeek = &v
	}
	if endDate.Valid {
		v := endDate.Time
		res.RecurringEndDate = &v
	}
	if parentID.Valid {
		v := uint64(parentID.Int64)
		res.ParentReservationID = &v
	}
	if templateID.Valid {
		v := templateID.String
		res.RecurringTemplateID = &v
	}
	return res, nil
}

// FindConflictsTx returns every collision between the requested occurrences
// and the room's blocking reservations (PENDING, ACTIVE, APPROVED).  The
// whole conflict set is returned, not just the first hit, so the caller can
// report all problems at once.  excludeID removes a reservation from its
// own conflict check during updates; pass zero otherwise.
//
// The query loads blocking rows overlapping the batch envelope in one round
// trip and the per-occurrence check runs in memory with the half-open
// predicate.  Must run inside the transaction that holds the room row lock.
func (r *ReservationRepo) FindConflictsTx(ctx context.Context, tx *sql.Tx, roomID uint64, occurrences []booking.Interval, excludeID uint64) ([]booking.Conflict, error) {
	if len(occurrences) == 0 {
		return nil, nil
	}
	envStart, envEnd := occurrences[0].Start, occurrences[0].End
	for _, occ := range occurrences[1:] {
		if occ.Start.Before(envStart) {
			envStart = occ.Start
		}
		if occ.End.After(envEnd) {
			envEnd = occ.End
		}
	}
	const q = `SELECT id, user_id, start_time, end_time
               FROM reservations
               WHERE room_id = ? AND id <> ?
                 AND status IN ('PENDING', 'ACTIVE', 'APPROVED')
                 AND NOT (end_time <= ? OR start_time >= ?)
               ORDER BY start_time ASC`
	rows, err := tx.QueryContext(ctx, q, roomID, excludeID, envStart, envEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type existing struct {
		id     uint64
		userID uint64
		iv     booking.Interval
	}
	var blocking []existing
	for rows.Next() {
		var e existing
		if err := rows.Scan(&e.id, &e.userID, &e.iv.Start, &e.iv.End); err != nil {
			return nil, err
		}
		blocking = append(blocking, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var conflicts []booking.Conflict
	for _, occ := range occurrences {
		for _, e := range blocking {
			if booking.Overlaps(occ, e.iv) {
				conflicts = append(conflicts, booking.Conflict{
					RequestedStart: occ.Start,
					RequestedEnd:   occ.End,
					ReservationID:  e.id,
					UserID:         e.userID,
					Start:          e.iv.Start,
					End:            e.iv.End,
				})
			}
		}
	}
	return conflicts, nil
}

// CreateBatchTx persists an occurrence set as a linked group.  The first row
// becomes the anchor: it is inserted with a null parent and its generated ID
// is written into every sibling's ParentReservationID before the siblings
// are inserted.  The caller owns the transaction, so either all rows commit
// or none do.  Generated IDs are populated on the provided records.
func (r *ReservationRepo) CreateBatchTx(ctx context.Context, tx *sql.Tx, rows []*model.Reservation) error {
	if len(rows) == 0 {
		return nil
	}
	const q = `INSERT INTO reservations
               (user_id, room_id, start_time, end_time, purpose, status,
                is_recurring, recurring_pattern, recurring_days_of_week, recurring_end_date,
                parent_reservation_id, recurring_template_id)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insert := func(res *model.Reservation) error {
		result, err := tx.ExecContext(ctx, q,
			res.UserID, res.RoomID, res.StartTime, res.EndTime, res.Purpose, res.Status,
			res.IsRecurring, res.RecurringPattern, res.RecurringDaysOfWeek, res.RecurringEndDate,
			res.ParentReservationID, res.RecurringTemplateID,
		)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		res.ID = uint64(id)
		return nil
	}
	anchor := rows[0]
	anchor.ParentReservationID = nil
	if err := insert(anchor); err != nil {
		return err
	}
	for _, sibling := range rows[1:] {
		parent := anchor.ID
		sibling.ParentReservationID = &parent
		if err := insert(sibling); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a reservation.  Returns ErrReservationNotFound when it does
// not exist.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// GetByIDTx is GetByID within a transaction.
func (r *ReservationRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(tx.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrReservationNotFound
	}
	return res, err
}

// UpdateStatusTx writes a reservation's status inside a transaction.  The
// legality of the transition is the caller's responsibility (see
// booking.Transition); this method only persists it.
func (r *ReservationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// DeleteTx removes a reservation row inside a transaction.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `DELETE FROM reservations WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// ReservationFilter narrows List results.  Zero values mean "no filter".
type ReservationFilter struct {
	RoomID uint64
	UserID uint64
	Status string
}

// List returns reservations matching the filter, ordered by start time
// ascending.  It has no side effects.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	var where []string
	var args []any
	if f.RoomID != 0 {
		where = append(where, "room_id = ?")
		args = append(args, f.RoomID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY start_time ASC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// BlockingSlotsTx loads the room's ACTIVE and APPROVED intervals that have
// not yet ended, inside a transaction.  The result feeds
// booking.DeriveRoomStatus; past rows cannot influence the derived status
// and are filtered in SQL.
func (r *ReservationRepo) BlockingSlotsTx(ctx context.Context, tx *sql.Tx, roomID uint64, now time.Time) ([]booking.Slot, error) {
	const q = `SELECT status, start_time, end_time
               FROM reservations
               WHERE room_id = ? AND status IN ('ACTIVE', 'APPROVED') AND end_time > ?
               ORDER BY start_time ASC`
	rows, err := tx.QueryContext(ctx, q, roomID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []booking.Slot
	for rows.Next() {
		var s booking.Slot
		if err := rows.Scan(&s.Status, &s.Start, &s.End); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}

// SiblingIDsTx returns the ids of every reservation sharing the given
// recurring template, inside a transaction.  Used when cancelling a whole
// recurring set.
func (r *ReservationRepo) SiblingIDsTx(ctx context.Context, tx *sql.Tx, templateID string) ([]uint64, error) {
	const q = `SELECT id FROM reservations WHERE recurring_template_id = ? ORDER BY start_time ASC`
	rows, err := tx.QueryContext(ctx, q, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
