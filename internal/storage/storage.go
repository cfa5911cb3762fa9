package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/bulkcheck/internal/domain"
)

// Package storage keeps a local journal of submitted check tasks.

// TaskRecord is the journal entry for one submitted task.
type TaskRecord struct {
	ProviderID  string      `json:"provider_id"`
	Task        domain.Task `json:"task"`
	InputPath   string      `json:"input_path,omitempty"`
	OutputPath  string      `json:"output_path,omitempty"`
	SubmittedAt time.Time   `json:"submitted_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Store tracks submitted tasks and their last known state.
type Store interface {
	Close() error
	// SaveTask inserts or updates the record keyed by rec.Task.TaskID. An
	// existing SubmittedAt is kept; UpdatedAt and ExpiresAt are refreshed.
	SaveTask(rec TaskRecord) error
	LookupTask(taskID string) (TaskRecord, bool, error)
	// ListTasks returns live records, most recently submitted first.
	ListTasks(limit int) ([]TaskRecord, error)
}

// ErrInvalidConfig marks journal settings that can never open a store.
var ErrInvalidConfig = errors.New("invalid journal config")

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TaskTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTaskTTL         = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("%w: bbolt storage requires a path", ErrInvalidConfig)
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported storage type %q", ErrInvalidConfig, typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TaskTTL <= 0 {
		opts.TaskTTL = defaultTaskTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// Disabled returns a store that records nothing.
func Disabled() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Close() error                                { return nil }
func (noopStore) SaveTask(TaskRecord) error                   { return nil }
func (noopStore) LookupTask(string) (TaskRecord, bool, error) { return TaskRecord{}, false, nil }
func (noopStore) ListTasks(int) ([]TaskRecord, error)         { return nil, nil }
