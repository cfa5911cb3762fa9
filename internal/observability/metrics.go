package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the client-side metrics of the check workflow.
type Metrics struct {
	registry *prometheus.Registry

	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	PollChecksTotal    *prometheus.CounterVec
	DownloadBytesTotal prometheus.Counter
	TasksFinishedTotal *prometheus.CounterVec
}

// NewMetrics registers every metric on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulkcheck_api_requests_total",
				Help: "Total number of requests sent to the check service",
			},
			[]string{"operation", "status"}, // status: http code or "transport_error"
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulkcheck_api_request_duration_seconds",
				Help:    "Duration of requests sent to the check service",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
			[]string{"operation"},
		),

		PollChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulkcheck_poll_checks_total",
				Help: "Status checks performed while polling, by observed task status",
			},
			[]string{"task_status"},
		),

		DownloadBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bulkcheck_download_bytes_total",
				Help: "Bytes of result files written to disk",
			},
		),

		TasksFinishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulkcheck_tasks_finished_total",
				Help: "Tasks that reached a terminal status",
			},
			[]string{"task_status"},
		),
	}
}

// ObserveRequest records one API call. statusCode 0 marks a transport failure.
func (m *Metrics) ObserveRequest(operation string, statusCode int, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "transport_error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.APIRequestsTotal.WithLabelValues(operation, status).Inc()
	m.APIRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObservePoll records a status check performed by the poll loop.
func (m *Metrics) ObservePoll(taskStatus string) {
	if m == nil {
		return
	}
	m.PollChecksTotal.WithLabelValues(taskStatus).Inc()
}

// ObserveDownload adds written result bytes.
func (m *Metrics) ObserveDownload(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DownloadBytesTotal.Add(float64(n))
}

// ObserveFinished records a task reaching a terminal status.
func (m *Metrics) ObserveFinished(taskStatus string) {
	if m == nil {
		return
	}
	m.TasksFinishedTotal.WithLabelValues(taskStatus).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
