package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"go-talk/internal/apperr"
	"go-talk/internal/db"
)

const messageColumns = `id, sender_id, recipient_id, group_id, content, kind, file_url, file_name, file_size, read, created_at`

type Repository struct {
	db db.Pool
}

func NewRepository(pool db.Pool) *Repository {
	return &Repository{db: pool}
}

func (r *Repository) SaveMessage(ctx context.Context, m *Message) error {
	const q = `INSERT INTO messages (` + messageColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.Exec(ctx, q,
		m.ID, m.SenderID, nullable(m.RecipientID), nullable(m.GroupID), m.Content, string(m.Kind),
		nullable(m.FileURL), nullable(m.FileName), nullableSize(m.FileSize), m.Read, m.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: recipient or group", apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%w: save message: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	rows, err := r.db.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get message: %v", apperr.ErrUpstream, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMessage)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: message", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get message: %v", apperr.ErrUpstream, err)
	}
	return &m, nil
}

func (r *Repository) MarkRead(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `UPDATE messages SET read = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: mark read: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// DirectHistory returns the latest messages exchanged by a and b, oldest first.
func (r *Repository) DirectHistory(ctx context.Context, a, b string, limit int) ([]Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM (
    SELECT ` + messageColumns + ` FROM messages
    WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
    ORDER BY created_at DESC LIMIT $3
) latest ORDER BY created_at ASC`
	return r.history(ctx, q, a, b, limit)
}

// GroupHistory returns the latest messages of a group, oldest first.
func (r *Repository) GroupHistory(ctx context.Context, groupID string, limit int) ([]Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM (
    SELECT ` + messageColumns + ` FROM messages WHERE group_id = $1
    ORDER BY created_at DESC LIMIT $2
) latest ORDER BY created_at ASC`
	return r.history(ctx, q, groupID, limit)
}

func (r *Repository) history(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", apperr.ErrUpstream, err)
	}
	msgs, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", apperr.ErrUpstream, err)
	}
	return msgs, nil
}

func (r *Repository) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: group members: %v", apperr.ErrUpstream, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%w: group members: %v", apperr.ErrUpstream, err)
	}
	return ids, nil
}

// CreateGroup inserts the group, its creator as admin and the initial members.
func (r *Repository) CreateGroup(ctx context.Context, g *Group, memberIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperr.ErrUpstream, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertGroup = `INSERT INTO groups (id, name, description, creator_id, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, insertGroup, g.ID, g.Name, g.Description, g.CreatorID, g.CreatedAt); err != nil {
		return fmt.Errorf("%w: create group: %v", apperr.ErrUpstream, err)
	}

	const insertMember = `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, insertMember, g.ID, g.CreatorID, string(RoleAdmin)); err != nil {
		return fmt.Errorf("%w: add creator: %v", apperr.ErrUpstream, err)
	}
	for _, id := range memberIDs {
		_, err := tx.Exec(ctx, insertMember, g.ID, id, string(RoleMember))
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %s", apperr.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("%w: add member: %v", apperr.ErrUpstream, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id string) (*Group, error) {
	const q = `SELECT id, name, description, COALESCE(creator_id, ''), created_at FROM groups WHERE id = $1`
	g := &Group{}
	err := r.db.QueryRow(ctx, q, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.CreatedAt)
	if db.IsNoRows(err) {
		return nil, fmt.Errorf("%w: group", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get group: %v", apperr.ErrUpstream, err)
	}
	return g, nil
}

func (r *Repository) GroupsForUser(ctx context.Context, userID string) ([]Group, error) {
	const q = `SELECT g.id, g.name, g.description, COALESCE(g.creator_id, ''), g.created_at
FROM groups g JOIN group_members m ON m.group_id = g.id
WHERE m.user_id = $1 ORDER BY g.created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list groups: %v", apperr.ErrUpstream, err)
	}
	groups, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Group, error) {
		var g Group
		err := row.Scan(&g.ID, &g.Name, &g.Description, &g.CreatorID, &g.CreatedAt)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list groups: %v", apperr.ErrUpstream, err)
	}
	return groups, nil
}

func (r *Repository) Members(ctx context.Context, groupID string) ([]Member, error) {
	const q = `SELECT m.user_id, u.username, m.role, m.joined_at
FROM group_members m JOIN users u ON u.id = m.user_id
WHERE m.group_id = $1 ORDER BY m.joined_at`
	rows, err := r.db.Query(ctx, q, groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: members: %v", apperr.ErrUpstream, err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Member, error) {
		var m Member
		var role string
		err := row.Scan(&m.UserID, &m.Username, &role, &m.JoinedAt)
		m.Role = Role(role)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: members: %v", apperr.ErrUpstream, err)
	}
	return members, nil
}

// MemberRole returns the user's role in the group, or ErrNotFound if the user
// is not a member.
func (r *Repository) MemberRole(ctx context.Context, groupID, userID string) (Role, error) {
	var role string
	err := r.db.QueryRow(ctx, `SELECT role FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID).Scan(&role)
	if db.IsNoRows(err) {
		return "", fmt.Errorf("%w: membership", apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%w: member role: %v", apperr.ErrUpstream, err)
	}
	return Role(role), nil
}

func (r *Repository) AddMember(ctx context.Context, groupID, userID string, role Role) error {
	_, err := r.db.Exec(ctx, `INSERT INTO group_members (group_id, user_id, role) VALUES ($1, $2, $3)`, groupID, userID, string(role))
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: already a member", apperr.ErrConflict)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: user", apperr.ErrNotFound)
	case err != nil:
		return fmt.Errorf("%w: add member: %v", apperr.ErrUpstream, err)
	}
	return nil
}

func (r *Repository) RemoveMember(ctx context.Context, groupID, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("%w: remove member: %v", apperr.ErrUpstream, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: membership", apperr.ErrNotFound)
	}
	return nil
}

func scanMessage(row pgx.CollectableRow) (Message, error) {
	var (
		m                                    Message
		kind                                 string
		recipientID, groupID, fileURL, fName *string
		fileSize                             *int64
	)
	err := row.Scan(&m.ID, &m.SenderID, &recipientID, &groupID, &m.Content, &kind,
		&fileURL, &fName, &fileSize, &m.Read, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.Kind = Kind(kind)
	m.RecipientID = deref(recipientID)
	m.GroupID = deref(groupID)
	m.FileURL = deref(fileURL)
	m.FileName = deref(fName)
	if fileSize != nil {
		m.FileSize = *fileSize
	}
	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableSize(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
