package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"facility-notify/internal/models"
)

// GetTask fetches the task fields the enrichment resolver consumes.
func (d *DB) GetTask(ctx context.Context, taskID string) (models.Task, error) {
	var t models.Task
	err := d.Pool.QueryRow(ctx, `
        SELECT id, title, created_at, completed_at, assigned_staff_id, assigned_to
        FROM tasks
        WHERE id = $1`, taskID).Scan(
		&t.ID, &t.Title, &t.CreatedAt, &t.CompletedAt, &t.AssignedStaffID, &t.AssignedTo)
	if err != nil {
		if err == pgx.ErrNoRows {
			return models.Task{}, fmt.Errorf("no task found for id %s", taskID)
		}
		return models.Task{}, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return t, nil
}
