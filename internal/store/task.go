package store

import (
	"context"
	"time"

	"github.com/taskapp/accounts/internal/dbx"
	"github.com/taskapp/accounts/types"
)

// TaskRepository covers the slice of the task store the account service
// needs: creating tasks on behalf of a user and removing them all when the
// account is deleted.
type TaskRepository struct {
	db dbx.DBTX
}

func NewTaskRepository(db dbx.DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (owner_id, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.OwnerID,
		task.Description,
		task.Completed,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID int) error {
	const query = `DELETE FROM tasks WHERE owner_id = $1`
	_, err := r.db.ExecContext(ctx, query, ownerID)
	return err
}

func (r *TaskRepository) CountByOwner(ctx context.Context, ownerID int) (int, error) {
	const query = `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
