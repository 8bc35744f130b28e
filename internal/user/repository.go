package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"go-talk/internal/apperr"
	"go-talk/internal/db"
)

type Repository struct {
	db db.Pool
}

func NewRepository(pool db.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	const q = `INSERT INTO users (id, username, password) VALUES ($1, $2, $3) RETURNING status, created_at`
	err := r.db.QueryRow(ctx, q, u.ID, u.Username, u.Password).Scan(&u.Status, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: username %q is taken", apperr.ErrConflict, u.Username)
	}
	if err != nil {
		return fmt.Errorf("%w: create user: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	const q = `SELECT id, username, password, status, created_at FROM users WHERE username = $1`
	return r.getUser(ctx, q, username)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*User, error) {
	const q = `SELECT id, username, password, status, created_at FROM users WHERE id = $1`
	return r.getUser(ctx, q, id)
}

func (r *Repository) getUser(ctx context.Context, q string, arg string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.Password, &u.Status, &u.CreatedAt)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: user", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", apperr.ErrUpstream, err)
	}
	return u, nil
}

// SearchUsers matches usernames case-insensitively, excluding the caller.
func (r *Repository) SearchUsers(ctx context.Context, query, excludeID string) ([]User, error) {
	const q = `SELECT id, username, status, created_at FROM users
WHERE username ILIKE $1 AND id <> $2 ORDER BY username LIMIT 10`
	rows, err := r.db.Query(ctx, q, "%"+query+"%", excludeID)
	if err != nil {
		return nil, fmt.Errorf("%w: search users: %v", apperr.ErrUpstream, err)
	}
	return collectUsers(rows)
}

// SetStatus persists the presence status of a user.
func (r *Repository) SetStatus(ctx context.Context, id, status string) error {
	const q = `UPDATE users SET status = $2 WHERE id = $1`
	if _, err := r.db.Exec(ctx, q, id, status); err != nil {
		return fmt.Errorf("%w: set status: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// Contacts returns the ids of the user's contacts.
func (r *Repository) Contacts(ctx context.Context, id string) ([]string, error) {
	const q = `SELECT contact_id FROM contacts WHERE user_id = $1`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("%w: contacts: %v", apperr.ErrUpstream, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: contacts: %v", apperr.ErrUpstream, err)
	}
	return ids, nil
}

func (r *Repository) Friends(ctx context.Context, id string) ([]User, error) {
	const q = `SELECT u.id, u.username, u.status, u.created_at FROM contacts c
JOIN users u ON u.id = c.contact_id WHERE c.user_id = $1 ORDER BY u.username`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("%w: friends: %v", apperr.ErrUpstream, err)
	}
	return collectUsers(rows)
}

func (r *Repository) CreateFriendRequest(ctx context.Context, fromID, toID string) error {
	const q = `INSERT INTO friend_requests (from_id, to_id) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, q, fromID, toID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: friend request already sent", apperr.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("%w: friend request: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// AcceptFriendRequest consumes the pending request from fromID to toID and
// records the contact in both directions.
func (r *Repository) AcceptFriendRequest(ctx context.Context, fromID, toID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperr.ErrUpstream, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM friend_requests WHERE from_id = $1 AND to_id = $2`, fromID, toID)
	if err != nil {
		return fmt.Errorf("%w: accept friend request: %v", apperr.ErrUpstream, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: friend request", apperr.ErrNotFound)
	}

	const q = `INSERT INTO contacts (user_id, contact_id) VALUES ($1, $2), ($2, $1) ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, q, fromID, toID); err != nil {
		return fmt.Errorf("%w: add contacts: %v", apperr.ErrUpstream, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Username, &u.Status, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan users: %v", apperr.ErrUpstream, err)
	}
	return users, nil
}
