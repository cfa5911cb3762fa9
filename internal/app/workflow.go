package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/domain"
	"github.com/samvad-hq/bulkcheck/internal/storage"
	"github.com/samvad-hq/bulkcheck/pkg/bulkcheck"
	"github.com/samvad-hq/bulkcheck/pkg/providers"
	"github.com/samvad-hq/bulkcheck/pkg/publishers"
)

// RunRequest describes one end-to-end batch check.
type RunRequest struct {
	ProviderID string
	Numbers    []string
	InputPath  string
	OutputPath string
	// Interval overrides the configured poll interval when positive.
	Interval  time.Duration
	KeepInput bool
	Progress  bulkcheck.ProgressFunc
	// Submitted is called once the upload has been accepted.
	Submitted func(task domain.Task)
}

// RunResult is the outcome of a batch check.
type RunResult struct {
	Provider   providers.Provider
	Task       domain.Task
	InputPath  string
	OutputPath string
}

// Run creates the input file, uploads it, polls the task to a terminal status
// and downloads the results when the service exposes them.
func (r *Runtime) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	p, err := r.Provider(req.ProviderID)
	if err != nil {
		return RunResult{}, err
	}
	client, err := r.NewClient(p, req.Progress)
	if err != nil {
		return RunResult{}, err
	}
	defer client.Close()

	res := RunResult{Provider: p}

	inputPath := firstNonEmpty(req.InputPath, r.cfg.InputFile, bulkcheck.DefaultInputFile)
	if res.InputPath, err = client.CreateInputFile(inputPath, req.Numbers...); err != nil {
		return res, err
	}

	uploaded, err := client.Upload(ctx, res.InputPath)
	if err != nil {
		return res, err
	}
	userID := firstNonEmpty(r.cfg.UserID, uploaded.UserID, p.UserID)
	if uploaded.UserID == "" {
		uploaded.UserID = userID
	}
	res.Task = uploaded
	r.journal(p.ID, uploaded, res.InputPath, "")
	if req.Submitted != nil {
		req.Submitted(uploaded)
	}
	r.log.InfoObj("task submitted", "task", map[string]any{
		"provider_id": p.ID,
		"task_id":     uploaded.TaskID,
		"status":      uploaded.Status,
		"count":       len(req.Numbers),
	})

	interval := req.Interval
	if interval <= 0 {
		interval = r.cfg.PollInterval
	}
	final, err := client.PollStatus(ctx, uploaded.TaskID, userID, interval)
	if final.Status == "" {
		// no status response was decoded; keep the upload snapshot
		final = uploaded
	}
	final = withIdentity(final, uploaded.TaskID, userID)
	res.Task = final

	var failed *bulkcheck.TaskFailedError
	switch {
	case errors.As(err, &failed):
		r.journal(p.ID, final, "", "")
		r.metrics.ObserveFinished(final.Status.String())
		r.publish(ctx, publishers.NewEvent(publishers.EventTaskFailed, p.ID, final, ""))
		return res, err
	case err != nil:
		r.journal(p.ID, final, "", "")
		return res, err
	}

	if final.HasResult() {
		outputPath := firstNonEmpty(req.OutputPath, r.cfg.OutputFile, bulkcheck.DefaultResultsFile)
		if res.OutputPath, err = client.DownloadResults(ctx, final.ResultURL, outputPath); err != nil {
			r.journal(p.ID, final, "", "")
			return res, err
		}
	} else {
		r.log.WarnObj("task exported without a result url", "task_id", final.TaskID)
	}

	r.journal(p.ID, final, "", res.OutputPath)
	r.metrics.ObserveFinished(final.Status.String())
	r.publish(ctx, publishers.NewEvent(publishers.EventTaskExported, p.ID, final, res.OutputPath))

	if !req.KeepInput && !r.cfg.KeepInput {
		if err := os.Remove(res.InputPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.WarnObj("input file cleanup failed", "error", err.Error())
		}
	}
	return res, nil
}

// Upload submits an existing numbers file and journals the new task.
func (r *Runtime) Upload(ctx context.Context, providerID, path string) (domain.Task, error) {
	p, err := r.Provider(providerID)
	if err != nil {
		return domain.Task{}, err
	}
	client, err := r.NewClient(p, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer client.Close()

	task, err := client.Upload(ctx, path)
	if err != nil {
		return domain.Task{}, err
	}
	if task.UserID == "" {
		task.UserID = firstNonEmpty(r.cfg.UserID, p.UserID)
	}
	r.journal(p.ID, task, path, "")
	return task, nil
}

// Status performs a single status check and journals the result.
func (r *Runtime) Status(ctx context.Context, providerID, taskID, userID string) (domain.Task, error) {
	p, err := r.Provider(providerID)
	if err != nil {
		return domain.Task{}, err
	}
	client, err := r.NewClient(p, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer client.Close()

	userID = r.userIDFor(p, taskID, userID)
	task, err := client.CheckStatus(ctx, taskID, userID)
	if err != nil {
		return domain.Task{}, err
	}
	r.journal(p.ID, withIdentity(task, taskID, userID), "", "")
	return task, nil
}

// Poll waits for an already submitted task to reach a terminal status.
func (r *Runtime) Poll(ctx context.Context, providerID, taskID, userID string, interval time.Duration, progress bulkcheck.ProgressFunc) (domain.Task, error) {
	p, err := r.Provider(providerID)
	if err != nil {
		return domain.Task{}, err
	}
	client, err := r.NewClient(p, progress)
	if err != nil {
		return domain.Task{}, err
	}
	defer client.Close()

	userID = r.userIDFor(p, taskID, userID)
	task, err := client.PollStatus(ctx, taskID, userID, interval)
	if task.Status != "" {
		r.journal(p.ID, withIdentity(task, taskID, userID), "", "")
	}
	return task, err
}

// Download fetches a result file. The credential is never sent.
func (r *Runtime) Download(ctx context.Context, providerID, resultURL, outputPath string) (string, error) {
	p, err := r.Provider(providerID)
	if err != nil {
		return "", err
	}
	client, err := r.NewClient(p, nil)
	if err != nil {
		return "", err
	}
	defer client.Close()

	return client.DownloadResults(ctx, resultURL, firstNonEmpty(outputPath, r.cfg.OutputFile, bulkcheck.DefaultResultsFile))
}

// History lists journaled tasks, newest first.
func (r *Runtime) History(limit int) ([]storage.TaskRecord, error) {
	recs, err := r.store.ListTasks(limit)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return recs, nil
}

// journal records task state; failures are logged and never fatal.
func (r *Runtime) journal(providerID string, task domain.Task, inputPath, outputPath string) {
	if strings.TrimSpace(task.TaskID) == "" {
		return
	}
	err := r.store.SaveTask(storage.TaskRecord{
		ProviderID: providerID,
		Task:       task,
		InputPath:  inputPath,
		OutputPath: outputPath,
	})
	if err != nil {
		r.log.WarnObj("journal save failed", "journal_error", map[string]any{
			"task_id": task.TaskID,
			"error":   err.Error(),
		})
	}
}

// publish fans the event out; failures are logged and never fatal.
func (r *Runtime) publish(ctx context.Context, evt publishers.Event) {
	if r.fanout.Size() == 0 {
		return
	}
	delivered, err := r.fanout.Publish(ctx, evt)
	if err != nil {
		r.log.ErrorObj("event publish failed", "publish_error", map[string]any{
			"event_id":  evt.ID,
			"type":      evt.Type,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	r.log.InfoObj("event published", "event", map[string]any{
		"event_id":  evt.ID,
		"type":      evt.Type,
		"delivered": delivered,
	})
}

// withIdentity fills identifiers the status response may omit.
func withIdentity(task domain.Task, taskID, userID string) domain.Task {
	if task.TaskID == "" {
		task.TaskID = taskID
	}
	if task.UserID == "" {
		task.UserID = userID
	}
	return task
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
