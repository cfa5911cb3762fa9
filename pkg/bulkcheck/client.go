package bulkcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/domain"
	"github.com/samvad-hq/bulkcheck/pkg/httpclient"
)

const (
	DefaultBaseURL         = "https://api.checknumber.ai/x/api/simple/tasks"
	DefaultRequestTimeout  = 30 * time.Second
	DefaultDownloadTimeout = 300 * time.Second
	DefaultPollInterval    = 5 * time.Second

	// APIKeyHeader carries the credential on every API request.
	APIKeyHeader = "X-API-Key"

	uploadField       = "file"
	uploadContentType = "text/plain"

	opUpload      = "upload"
	opCheckStatus = "check status"
	opDownload    = "download"
)

// ProgressFunc is called once per status check while polling.
type ProgressFunc func(task domain.Task)

// Options configures a Client.
type Options struct {
	APIKey          string
	BaseURL         string
	Headers         map[string]string
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	// MaxPollAttempts bounds PollStatus; zero polls until a terminal status.
	MaxPollAttempts int
	Progress        ProgressFunc
	Logger          Logger
	Metrics         MetricsRecorder
}

// Option overrides client collaborators, mostly for tests.
type Option func(*Client)

// WithHTTPClient replaces the transport used for API calls.
func WithHTTPClient(c httpclient.Client) Option {
	return func(cl *Client) { cl.api = c }
}

// WithDownloadClient replaces the transport used for result downloads.
func WithDownloadClient(c httpclient.Client) Option {
	return func(cl *Client) { cl.download = c }
}

// WithSleep replaces the poll delay, e.g. with a fake clock.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(cl *Client) { cl.sleep = fn }
}

// Client talks to the bulk check service. A Client keeps no task state
// between calls; it only owns the credential and its transports. Callers must
// Close it on every exit path.
type Client struct {
	apiKey          string
	baseURL         string
	headers         map[string]string
	api             httpclient.Client
	download        httpclient.Client
	pollInterval    time.Duration
	maxPollAttempts int
	progress        ProgressFunc
	log             Logger
	metrics         MetricsRecorder
	sleep           func(ctx context.Context, d time.Duration) error
	closeOnce       sync.Once
}

// New builds a Client from opts.
func New(opts Options, extra ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", baseURL)
	}
	if opts.MaxPollAttempts < 0 {
		return nil, errors.New("max poll attempts must not be negative")
	}

	c := &Client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		headers:         opts.Headers,
		pollInterval:    positiveOr(opts.PollInterval, DefaultPollInterval),
		maxPollAttempts: opts.MaxPollAttempts,
		progress:        opts.Progress,
		log:             ensureLogger(opts.Logger),
		metrics:         opts.Metrics,
		sleep:           sleepContext,
	}
	for _, o := range extra {
		o(c)
	}

	if c.api == nil {
		c.api = httpclient.NewRestyClient(positiveOr(opts.RequestTimeout, DefaultRequestTimeout))
	}
	if c.download == nil {
		c.download = httpclient.NewRestyClient(positiveOr(opts.DownloadTimeout, DefaultDownloadTimeout))
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c, nil
}

// BaseURL returns the task endpoint this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends the file at filePath as a new bulk check task.
func (c *Client) Upload(ctx context.Context, filePath string) (domain.Task, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Task{}, &NotFoundError{Path: filePath, Err: err}
		}
		return domain.Task{}, &IOError{Op: "open input file", Path: filePath, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return domain.Task{}, &IOError{Op: "stat input file", Path: filePath, Err: err}
	}
	if info.IsDir() {
		return domain.Task{}, &IOError{Op: "open input file", Path: filePath, Err: errors.New("is a directory")}
	}

	start := time.Now()
	resp, err := c.api.PostMultipart(ctx, c.baseURL, c.requestHeaders(), httpclient.FormFile{
		Field:       uploadField,
		FileName:    filepath.Base(filePath),
		ContentType: uploadContentType,
		Reader:      file,
	})
	task, err := c.decodeTask(opUpload, c.baseURL, resp, err, start)
	if err != nil {
		return domain.Task{}, err
	}
	if strings.TrimSpace(task.TaskID) == "" {
		return domain.Task{}, &DecodeError{Op: opUpload, Err: errors.New("response has no task_id")}
	}

	c.log.InfoObj("task created", "task", map[string]any{
		"task_id": task.TaskID,
		"status":  task.Status,
		"file":    filePath,
		"bytes":   info.Size(),
	})
	return task, nil
}

// CheckStatus fetches the current state of a task once.
func (c *Client) CheckStatus(ctx context.Context, taskID, userID string) (domain.Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.Task{}, ErrEmptyTaskID
	}

	statusURL := c.statusURL(taskID, userID)
	start := time.Now()
	resp, err := c.api.Get(ctx, statusURL, c.requestHeaders())
	return c.decodeTask(opCheckStatus, statusURL, resp, err, start)
}

// Close releases the underlying connections. Safe to call more than once.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		if c.api != nil {
			c.api.Close()
		}
		if c.download != nil {
			c.download.Close()
		}
	})
}

func (c *Client) statusURL(taskID, userID string) string {
	q := url.Values{}
	q.Set("user_id", userID)
	return c.baseURL + "/" + url.PathEscape(taskID) + "?" + q.Encode()
}

func (c *Client) requestHeaders() map[string]string {
	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	headers[APIKeyHeader] = c.apiKey
	return headers
}

// decodeTask maps a transport result onto the error taxonomy and parses the task.
func (c *Client) decodeTask(op, target string, resp httpclient.Response, err error, start time.Time) (domain.Task, error) {
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(op, 0, elapsed)
		return domain.Task{}, &TransportError{Op: op, URL: target, Err: err}
	}

	c.metrics.ObserveRequest(op, resp.StatusCode(), elapsed)
	if !isSuccess(resp.StatusCode()) {
		return domain.Task{}, &RequestError{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode(),
			Body:       httpclient.Snippet(resp.Body(), resp.Header("Content-Type")),
		}
	}

	var task domain.Task
	if err := json.Unmarshal(resp.Body(), &task); err != nil {
		return domain.Task{}, &DecodeError{Op: op, Err: err}
	}
	return task, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
