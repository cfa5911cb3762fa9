package domain

// Domain contains core models shared by the client, journal and publishers.

// TaskStatus is the remote status string of a bulk check task. Values other
// than the terminal ones are opaque and treated as still pending.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "queued"
	StatusProcessing TaskStatus = "processing"
	StatusExported   TaskStatus = "exported"
	StatusFailed     TaskStatus = "failed"
)

// String returns the raw status value.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether polling should stop on this status.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusExported || s == StatusFailed
}

// Task mirrors the task payload returned by the check service.
type Task struct {
	TaskID    string     `json:"task_id"`
	UserID    string     `json:"user_id,omitempty"`
	Status    TaskStatus `json:"status"`
	Total     int        `json:"total"`
	Success   int        `json:"success"`
	Failure   int        `json:"failure"`
	ResultURL string     `json:"result_url,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
	UpdatedAt string     `json:"updated_at,omitempty"`
}

// HasResult reports whether the task carries a downloadable result.
func (t Task) HasResult() bool {
	return t.ResultURL != ""
}
