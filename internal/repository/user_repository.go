package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/utils"
)

// ErrEmailExists is returned when registration hits the unique email index.
var ErrEmailExists = errors.New("email already exists")

// UserRepo provides access to the 'users' table.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// Create hashes the password and inserts a user, returning the new id.
// Emails are stored lowercased so lookups are case-insensitive.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	const q = `INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, email, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userColumns = `id, email, password_hash, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// ListAdminIDs returns the ids of all active administrators.  The booking
// flow fans "reservation created" notifications out to this set.
func (r *UserRepo) ListAdminIDs(ctx context.Context) ([]uint64, error) {
	const q = `SELECT id FROM users WHERE role = ? AND is_active = TRUE`
	rows, err := r.db.QueryContext(ctx, q, model.RoleAdmin)
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
