package bulkcheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/domain"
)

func newPollClient(t *testing.T, fake *scriptedClient, clock *fakeClock, opts Options) *Client {
	t.Helper()
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://example.com/tasks"
	}
	client, err := New(opts, WithHTTPClient(fake), WithDownloadClient(&scriptedClient{}), WithSleep(clock.Sleep))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestPollStatusScenarioProcessingThenExported(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		jsonResponse(`{"status":"processing","success":0,"total":2}`),
		jsonResponse(`{"status":"exported","success":2,"total":2,"result_url":"https://x/r1"}`),
	}}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{})

	task, err := client.PollStatus(context.Background(), "t1", "test", 5*time.Second)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if task.Status != domain.StatusExported || task.ResultURL != "https://x/r1" || task.Success != 2 || task.Total != 2 {
		t.Fatalf("unexpected final task %+v", task)
	}
	if len(fake.getCalls) != 2 {
		t.Fatalf("expected 2 status checks, got %d", len(fake.getCalls))
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 5*time.Second {
		t.Fatalf("expected exactly one 5s sleep, got %v", clock.sleeps)
	}
}

func TestPollStatusNonTerminalResponsesKeepPolling(t *testing.T) {
	const pending = 4
	gets := make([]fakeResponse, 0, pending+1)
	statuses := []string{"queued", "processing", "validating", ""}
	for i := 0; i < pending; i++ {
		gets = append(gets, jsonResponse(`{"status":"`+statuses[i]+`"}`))
	}
	gets = append(gets, jsonResponse(`{"status":"exported"}`))

	fake := &scriptedClient{gets: gets}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{})

	if _, err := client.PollStatus(context.Background(), "t1", "test", time.Second); err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if len(fake.getCalls) != pending+1 {
		t.Fatalf("expected %d calls, got %d", pending+1, len(fake.getCalls))
	}
	if len(clock.sleeps) != pending {
		t.Fatalf("expected %d sleeps, got %d", pending, len(clock.sleeps))
	}
}

func TestPollStatusExportedFirstReturnsWithoutSleeping(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		jsonResponse(`{"status":"exported","result_url":"https://x/r1"}`),
	}}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{})

	task, err := client.PollStatus(context.Background(), "t1", "test", time.Second)
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if task.ResultURL != "https://x/r1" {
		t.Fatalf("unexpected task %+v", task)
	}
	if len(fake.getCalls) != 1 || len(clock.sleeps) != 0 {
		t.Fatalf("expected 1 call and no sleep, got %d calls %d sleeps", len(fake.getCalls), len(clock.sleeps))
	}
}

func TestPollStatusFailedStopsPolling(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		jsonResponse(`{"task_id":"t1","status":"failed","success":0,"total":3}`),
		jsonResponse(`{"status":"exported"}`),
	}}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{})

	task, err := client.PollStatus(context.Background(), "t1", "test", time.Second)
	var failed *TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected TaskFailedError, got %v", err)
	}
	if !errors.Is(err, ErrTaskFailed) {
		t.Fatalf("expected errors.Is ErrTaskFailed")
	}
	if failed.Task.Total != 3 || task.Status != domain.StatusFailed {
		t.Fatalf("unexpected failed task %+v / %+v", failed.Task, task)
	}
	if len(fake.getCalls) != 1 || len(clock.sleeps) != 0 {
		t.Fatalf("expected polling to stop after failed, got %d calls", len(fake.getCalls))
	}
}

func TestPollStatusCheckErrorIsNotRetried(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		{body: "boom", statusCode: 500},
		jsonResponse(`{"status":"exported"}`),
	}}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{})

	_, err := client.PollStatus(context.Background(), "t1", "test", time.Second)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != 500 {
		t.Fatalf("expected RequestError 500, got %v", err)
	}
	if len(fake.getCalls) != 1 {
		t.Fatalf("expected no retry, got %d calls", len(fake.getCalls))
	}
}

func TestPollStatusReportsProgressEachCheck(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		jsonResponse(`{"status":"processing","success":1,"total":3}`),
		jsonResponse(`{"status":"processing","success":2,"total":3}`),
		jsonResponse(`{"status":"exported","success":3,"total":3}`),
	}}
	var seen []domain.Task
	client := newPollClient(t, fake, &fakeClock{}, Options{
		Progress: func(task domain.Task) { seen = append(seen, task) },
	})

	if _, err := client.PollStatus(context.Background(), "t1", "test", time.Second); err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 progress notifications, got %d", len(seen))
	}
	if seen[1].Success != 2 || seen[2].Status != domain.StatusExported {
		t.Fatalf("unexpected progress sequence %+v", seen)
	}
}

func TestPollStatusUsesDefaultInterval(t *testing.T) {
	fake := &scriptedClient{gets: []fakeResponse{
		jsonResponse(`{"status":"processing"}`),
		jsonResponse(`{"status":"exported"}`),
	}}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{PollInterval: 3 * time.Second})

	if _, err := client.PollStatus(context.Background(), "t1", "test", 0); err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 3*time.Second {
		t.Fatalf("expected configured 3s interval, got %v", clock.sleeps)
	}
}

func TestPollStatusMaxAttempts(t *testing.T) {
	fake := &scriptedClient{}
	clock := &fakeClock{}
	client := newPollClient(t, fake, clock, Options{MaxPollAttempts: 3})

	task, err := client.PollStatus(context.Background(), "t1", "test", time.Second)
	if !errors.Is(err, ErrPollAttemptsExhausted) {
		t.Fatalf("expected ErrPollAttemptsExhausted, got %v", err)
	}
	if task.Status != domain.StatusProcessing {
		t.Fatalf("expected last seen task, got %+v", task)
	}
	if len(fake.getCalls) != 3 || len(clock.sleeps) != 2 {
		t.Fatalf("expected 3 checks and 2 sleeps, got %d/%d", len(fake.getCalls), len(clock.sleeps))
	}
}

func TestPollStatusStopsOnContextCancel(t *testing.T) {
	fake := &scriptedClient{}
	client, err := New(Options{APIKey: "k"}, WithHTTPClient(fake), WithDownloadClient(&scriptedClient{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.PollStatus(ctx, "t1", "test", time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fake.getCalls) != 1 {
		t.Fatalf("expected a single check before cancellation, got %d", len(fake.getCalls))
	}
}
