package bulkcheck

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/bulkcheck/internal/domain"
)

var (
	// ErrTaskFailed matches any TaskFailedError via errors.Is.
	ErrTaskFailed = errors.New("task failed")
	// ErrPollAttemptsExhausted is returned when MaxPollAttempts checks saw no terminal status.
	ErrPollAttemptsExhausted = errors.New("poll attempts exhausted")
	ErrEmptyTaskID           = errors.New("task id is empty")
	ErrEmptyResultURL        = errors.New("result url is empty")
)

// NotFoundError reports a missing local input file. It is returned before any
// network call is made.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("input file not found: %s", e.Path) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// TransportError wraps connection-level failures: refused connections,
// timeouts, TLS errors, bodies cut off mid-stream.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request to %s: %v", e.Op, e.URL, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

// RequestError is a non-2xx response from the service.
type RequestError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s returned status %d body: %s", e.Op, e.StatusCode, e.Body)
}

// DecodeError is a 2xx response whose body is not a usable task payload.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s response: %v", e.Op, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// TaskFailedError is returned by PollStatus when the service reports "failed".
type TaskFailedError struct {
	Task domain.Task
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("task %s failed (success %d/%d)", e.Task.TaskID, e.Task.Success, e.Task.Total)
}
func (e *TaskFailedError) Is(target error) bool { return target == ErrTaskFailed }

// IOError is a local file create or write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
