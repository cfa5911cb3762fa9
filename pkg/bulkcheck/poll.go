package bulkcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/domain"
)

// PollStatus checks the task every interval until the service reports a
// terminal status. "exported" returns the final task; "failed" returns the
// task together with a *TaskFailedError. Any other status is treated as
// pending. There is no deadline and no backoff: the loop only ends on a
// terminal status, a check error, ctx cancellation, or MaxPollAttempts when
// that is configured. interval <= 0 uses the client default.
func (c *Client) PollStatus(ctx context.Context, taskID, userID string, interval time.Duration) (domain.Task, error) {
	if interval <= 0 {
		interval = c.pollInterval
	}

	for attempt := 1; ; attempt++ {
		task, err := c.CheckStatus(ctx, taskID, userID)
		if err != nil {
			return domain.Task{}, err
		}

		c.metrics.ObservePoll(task.Status.String())
		c.reportProgress(attempt, task)

		switch task.Status {
		case domain.StatusExported:
			c.log.InfoObj("task exported", "task_result", map[string]any{
				"task_id":    task.TaskID,
				"result_url": task.ResultURL,
				"success":    task.Success,
				"total":      task.Total,
			})
			return task, nil
		case domain.StatusFailed:
			c.log.WarnObj("task failed", "task_result", map[string]any{
				"task_id": task.TaskID,
				"success": task.Success,
				"total":   task.Total,
			})
			return task, &TaskFailedError{Task: task}
		}

		if c.maxPollAttempts > 0 && attempt >= c.maxPollAttempts {
			return task, fmt.Errorf("%w: task %s still %q after %d checks", ErrPollAttemptsExhausted, task.TaskID, task.Status, attempt)
		}

		if err := c.sleep(ctx, interval); err != nil {
			return task, fmt.Errorf("poll task %s: %w", taskID, err)
		}
	}
}

func (c *Client) reportProgress(attempt int, task domain.Task) {
	c.log.InfoObj("task status polled", "task_progress", map[string]any{
		"task_id": task.TaskID,
		"attempt": attempt,
		"status":  task.Status,
		"success": task.Success,
		"total":   task.Total,
	})
	if c.progress != nil {
		c.progress(task)
	}
}
