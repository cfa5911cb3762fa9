package publishers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builder turns one publishers file entry into a live Publisher.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	PublisherFor(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)
	Types() []string
}

type builderTable struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry seeded with builders.
func NewRegistry(builders map[string]Builder) Registry {
	t := &builderTable{builders: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		t.Register(typ, b)
	}
	return t
}

// Register binds typ to builder. Blank types and nil builders are ignored.
func (t *builderTable) Register(typ string, builder Builder) {
	typ = normalizeType(typ)
	if typ == "" || builder == nil {
		return
	}
	t.mu.Lock()
	t.builders[typ] = builder
	t.mu.Unlock()
}

// Types lists registered publisher types, sorted.
func (t *builderTable) Types() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	types := make([]string, 0, len(t.builders))
	for typ := range t.builders {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// PublisherFor builds the publisher described by cfg.
func (t *builderTable) PublisherFor(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	typ := normalizeType(cfg.Type)
	if typ == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}

	t.mu.RLock()
	builder := t.builders[typ]
	t.mu.RUnlock()
	if builder == nil {
		return nil, fmt.Errorf("publisher %q: unknown type %q (known: %s)", cfg.ID, cfg.Type, strings.Join(t.Types(), ", "))
	}

	pub, err := builder(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("publisher %q (%s): %w", cfg.ID, typ, err)
	}
	return pub, nil
}

// DefaultRegistry knows every sink a task event can be sent to.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	})
}

// BuildAll builds a publisher per config. If any build fails, the ones
// already built are closed and nothing is returned.
func BuildAll(ctx context.Context, reg Registry, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.PublisherFor(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

func normalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}
