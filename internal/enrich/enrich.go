package enrich

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"facility-notify/internal/models"
)

// TaskDirectory is the read-only task lookup the resolver uses.
type TaskDirectory interface {
	GetTask(ctx context.Context, taskID string) (models.Task, error)
}

// Resolver augments task-scoped notifications with assignment and
// completion timing pulled from the task directory.
type Resolver struct {
	tasks  TaskDirectory
	logger *logrus.Logger
	now    func() time.Time
}

func NewResolver(tasks TaskDirectory, logger *logrus.Logger) *Resolver {
	return &Resolver{tasks: tasks, logger: logger, now: time.Now}
}

// Enrich returns an augmented copy of n, or n unchanged when there is
// nothing to do. Lookup failures are logged and never block delivery: the
// record comes back with whatever data it already had.
func (r *Resolver) Enrich(ctx context.Context, n models.Notification) models.Notification {
	if n.TaskID == nil {
		return n
	}
	if len(n.Data) > 0 {
		// Backend trigger already embedded the task details.
		return n
	}

	task, err := r.tasks.GetTask(ctx, *n.TaskID)
	if err != nil {
		r.logger.Errorf("Failed to fetch task %s for notification %s: %v", *n.TaskID, n.ID, err)
		return n
	}

	out := n.Clone()
	if out.Data == nil {
		out.Data = make(map[string]interface{})
	}
	out.Data["assigned_at"] = task.CreatedAt.Format(time.RFC3339)
	out.Data["assigned_time"] = FormatDateTime(task.CreatedAt, r.now())
	if task.CompletedAt != nil {
		out.Data["completed_at"] = task.CompletedAt.Format(time.RFC3339)
		out.Data["completed_time"] = FormatDateTime(*task.CompletedAt, r.now())
	}
	return out
}
