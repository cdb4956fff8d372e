package store

import (
	"context"
	"time"

	"github.com/taskapp/accounts/internal/dbx"
)

// SessionRepository handles persistence for session tokens. Each mutation is
// a single statement keyed by (user_id, token), so concurrent logins and
// logouts on the same account cannot lose updates.
type SessionRepository struct {
	db dbx.DBTX
}

func NewSessionRepository(db dbx.DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, userID int, token string) error {
	const query = `
		INSERT INTO sessions (user_id, token, created_at)
		VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, userID, token, time.Now())
	return err
}

// Delete removes exactly the matching token. Deleting an absent token is a
// no-op: the session is gone either way.
func (r *SessionRepository) Delete(ctx context.Context, userID int, token string) error {
	const query = `DELETE FROM sessions WHERE user_id = $1 AND token = $2`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID int) error {
	const query = `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
