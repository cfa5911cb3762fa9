package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/bulkcheck/internal/config"
	"github.com/samvad-hq/bulkcheck/internal/logger"
	"github.com/samvad-hq/bulkcheck/internal/observability"
	"github.com/samvad-hq/bulkcheck/internal/storage"
	"github.com/samvad-hq/bulkcheck/pkg/bulkcheck"
	"github.com/samvad-hq/bulkcheck/pkg/providers"
	"github.com/samvad-hq/bulkcheck/pkg/publishers"
)

// Runtime wires the check client to the provider registry, the task journal
// and the completion publishers.
type Runtime struct {
	cfg         *config.Config
	providerReg *providers.Registry
	fanout      *publishers.Fanout
	store       storage.Store
	metrics     *observability.Metrics
	log         logger.Logger
	clientOpts  []bulkcheck.Option
}

// RuntimeOption customizes a Runtime.
type RuntimeOption func(*Runtime)

// WithClientOptions forwards options to every client the runtime builds.
func WithClientOptions(opts ...bulkcheck.Option) RuntimeOption {
	return func(r *Runtime) { r.clientOpts = append(r.clientOpts, opts...) }
}

// WithPublishers replaces the publishers loaded from config.
func WithPublishers(pubs ...publishers.Publisher) RuntimeOption {
	return func(r *Runtime) { r.fanout = publishers.NewFanout(pubs) }
}

// NewRuntime builds a runtime from config files.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, metrics *observability.Metrics, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	providerReg, err := providers.Load(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("load providers registry: %w", err)
	}
	providerIDs := make([]string, 0)
	for _, p := range providerReg.Providers() {
		providerIDs = append(providerIDs, p.ID)
	}
	log.InfoObj("providers registry loaded", "providers_meta", map[string]any{
		"count": len(providerIDs),
		"ids":   providerIDs,
		"file":  cfg.ProvidersFile,
	})

	r := &Runtime{
		cfg:         cfg,
		providerReg: providerReg,
		metrics:     metrics,
		log:         log,
	}
	for _, o := range opts {
		o(r)
	}

	if r.fanout == nil {
		fanout, err := buildFanout(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		r.fanout = fanout
	}

	storeOpts := storage.Options{
		TaskTTL:         cfg.JournalTTL,
		CleanupInterval: cfg.JournalCleanupInterval,
	}
	store, err := storage.NewStore(cfg.JournalType, cfg.JournalPath, storeOpts)
	switch {
	case errors.Is(err, storage.ErrInvalidConfig):
		_ = r.fanout.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	case err != nil:
		// usually another bulkcheck process holds the journal lock
		log.WarnObj("journal unavailable, continuing without it", "journal_error", map[string]any{
			"path":  cfg.JournalPath,
			"error": err.Error(),
		})
		r.store = storage.Disabled()
		return r, nil
	}
	r.store = store
	log.InfoObj("journal initialized", "journal_config", map[string]any{
		"type":                     cfg.JournalType,
		"path":                     cfg.JournalPath,
		"ttl_seconds":              int(cfg.JournalTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.JournalCleanupInterval.Seconds()),
	})

	return r, nil
}

// buildFanout loads the optional publishers file. Without one, completion
// events go nowhere.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		log.DebugObj("no publishers file configured", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabledPublishers := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Provider resolves a provider id, defaulting to the configured one.
func (r *Runtime) Provider(id string) (providers.Provider, error) {
	if strings.TrimSpace(id) == "" {
		id = r.cfg.Provider
	}
	return r.providerReg.Resolve(id)
}

// NewClient builds a check client for the given provider.
func (r *Runtime) NewClient(p providers.Provider, progress bulkcheck.ProgressFunc) (*bulkcheck.Client, error) {
	opts := bulkcheck.Options{
		APIKey:          r.cfg.APIKey,
		BaseURL:         p.BaseURL,
		Headers:         p.Headers(),
		RequestTimeout:  p.RequestTimeout(r.cfg.RequestTimeout),
		DownloadTimeout: r.cfg.DownloadTimeout,
		PollInterval:    r.cfg.PollInterval,
		MaxPollAttempts: r.cfg.MaxPollAttempts,
		Progress:        progress,
		Logger:          r.log,
	}
	if r.metrics != nil {
		opts.Metrics = r.metrics
	}

	client, err := bulkcheck.New(opts, r.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("build client for provider %q: %w", p.ID, err)
	}
	return client, nil
}

// Journal exposes the task journal.
func (r *Runtime) Journal() storage.Store {
	return r.store
}

// Close releases the journal and publishers, logging any errors encountered.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.ErrorObj("journal close failed", "error", err)
		}
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publishers close failed", "error", err)
	}
}

// userIDFor picks the user id for status checks: explicit value, then
// config, then the journaled task, then the provider default.
func (r *Runtime) userIDFor(p providers.Provider, taskID, explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.cfg.UserID); v != "" {
		return v
	}
	if rec, ok, err := r.store.LookupTask(taskID); err == nil && ok && rec.Task.UserID != "" {
		return rec.Task.UserID
	}
	return p.UserID
}
