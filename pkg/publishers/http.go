package publishers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/bulkcheck/pkg/httpclient"
)

// Webhook headers carried on every delivery so receivers can route and
// deduplicate without parsing the body.
const (
	HeaderEventType  = "X-Bulkcheck-Event"
	HeaderEventID    = "X-Bulkcheck-Event-Id"
	HeaderProviderID = "X-Bulkcheck-Provider"
)

// webhookPublisher posts task events as JSON to a configured URL.
type webhookPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	client  *resty.Client
	log     Logger
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	return &webhookPublisher{
		id:      cfg.ID,
		method:  cfg.HTTP.Method,
		url:     cfg.HTTP.URL,
		headers: cfg.HTTP.Headers,
		client:  httpclient.NewRestyHTTPClient(time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second),
		log:     ensureLogger(log),
	}, nil
}

func (w *webhookPublisher) ID() string   { return w.id }
func (w *webhookPublisher) Type() string { return TypeHTTP }

// Publish delivers evt. Anything outside 2xx is an error carrying a body snippet.
func (w *webhookPublisher) Publish(ctx context.Context, evt Event) error {
	req := w.client.R().
		SetContext(ctx).
		SetHeaders(w.headers).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderEventType, evt.Type).
		SetHeader(HeaderEventID, evt.ID).
		SetBody(evt)
	if evt.ProviderID != "" {
		req.SetHeader(HeaderProviderID, evt.ProviderID)
	}

	resp, err := req.Execute(w.method, w.url)
	if err != nil {
		return fmt.Errorf("deliver %s to %s: %w", evt.Type, w.url, err)
	}
	if !resp.IsSuccess() {
		snippet := httpclient.Snippet(resp.Body(), resp.Header().Get("Content-Type"))
		return fmt.Errorf("webhook %s answered status %d: %s", w.url, resp.StatusCode(), snippet)
	}

	w.log.DebugObj("webhook delivered task event", "webhook_delivery", map[string]any{
		"publisher_id": w.id,
		"event_id":     evt.ID,
		"event_type":   evt.Type,
		"task_id":      evt.Task.TaskID,
		"status":       resp.StatusCode(),
	})
	return nil
}

func (w *webhookPublisher) Close() error {
	w.client.GetClient().CloseIdleConnections()
	return nil
}
