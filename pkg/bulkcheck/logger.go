package bulkcheck

import "time"

// Logger defines the logging surface the client relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}

// MetricsRecorder receives request and polling measurements.
type MetricsRecorder interface {
	ObserveRequest(operation string, statusCode int, elapsed time.Duration)
	ObservePoll(taskStatus string)
	ObserveDownload(n int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) ObservePoll(string)                        {}
func (noopMetrics) ObserveDownload(int64)                     {}
