package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskapp/accounts/internal/dbx"
)

// AvatarRepository stores avatar bytes inline on the user row. This is the
// default backend; object-storage backends live in internal/storage.
type AvatarRepository struct {
	db dbx.DBTX
}

func NewAvatarRepository(db dbx.DBTX) *AvatarRepository {
	return &AvatarRepository{db: db}
}

func (r *AvatarRepository) Put(ctx context.Context, userID int, data []byte) error {
	const query = `UPDATE users SET avatar = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, data, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AvatarRepository) Get(ctx context.Context, userID int) ([]byte, error) {
	const query = `SELECT avatar FROM users WHERE id = $1`
	var data []byte
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

func (r *AvatarRepository) Delete(ctx context.Context, userID int) error {
	const query = `UPDATE users SET avatar = NULL, updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
