package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package providers holds the check endpoints (platforms) the client can talk to.

// Provider describes one check endpoint of the remote service.
type Provider struct {
	ID                    string         `json:"id" yaml:"id"`
	Name                  string         `json:"name" yaml:"name"`
	BaseURL               string         `json:"base_url" yaml:"base_url"`
	UserID                string         `json:"user_id" yaml:"user_id"`
	RequestTimeoutSeconds int            `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	Config                map[string]any `json:"config" yaml:"config"`
}

const (
	// DefaultProviderID is the provider used when none is configured.
	DefaultProviderID = "x"
	// DefaultUserID is sent on status checks when a provider sets none.
	DefaultUserID = "test"

	xBaseURL = "https://api.checknumber.ai/x/api/simple/tasks"
)

// Registry is an immutable, validated set of providers keyed by id.
type Registry struct {
	providers []Provider
	idx       map[string]Provider
}

type registryFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// Builtin returns the registry used when no providers file is configured.
func Builtin() *Registry {
	reg, err := newRegistry([]Provider{{
		ID:      DefaultProviderID,
		Name:    "X (Twitter)",
		BaseURL: xBaseURL,
		UserID:  DefaultUserID,
	}})
	if err != nil {
		panic(fmt.Sprintf("builtin providers: %v", err))
	}
	return reg
}

// Load reads a provider registry from a YAML or JSON file. An empty path
// yields the builtin registry.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Providers) == 0 {
		return nil, errors.New("providers file contains no providers entries")
	}
	return newRegistry(parsed.Providers)
}

func newRegistry(list []Provider) (*Registry, error) {
	reg := &Registry{
		providers: make([]Provider, 0, len(list)),
		idx:       make(map[string]Provider, len(list)),
	}
	for i := range list {
		p := sanitizeProvider(list[i])
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider[%d]: %w", i, err)
		}
		if _, exists := reg.idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		reg.providers = append(reg.providers, p)
		reg.idx[p.ID] = p
	}
	return reg, nil
}

// Providers returns a copy of the registry entries in file order.
func (r *Registry) Providers() []Provider {
	if r == nil || len(r.providers) == 0 {
		return nil
	}
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ByID returns the provider entry for the given id.
func (r *Registry) ByID(id string) (Provider, bool) {
	id = strings.TrimSpace(id)
	if r == nil || id == "" {
		return Provider{}, false
	}
	p, ok := r.idx[id]
	return p, ok
}

// Resolve returns the provider for id, falling back to DefaultProviderID when
// id is blank. Unknown ids list the known ones in the error.
func (r *Registry) Resolve(id string) (Provider, error) {
	if strings.TrimSpace(id) == "" {
		id = DefaultProviderID
	}
	if p, ok := r.ByID(id); ok {
		return p, nil
	}

	known := make([]string, 0, len(r.Providers()))
	for _, p := range r.Providers() {
		known = append(known, p.ID)
	}
	sort.Strings(known)
	return Provider{}, fmt.Errorf("unknown provider %q (known: %s)", id, strings.Join(known, ", "))
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	p.UserID = strings.TrimSpace(p.UserID)

	if p.Config == nil {
		p.Config = map[string]any{}
	}
	if p.UserID == "" {
		p.UserID = DefaultUserID
	}
	if p.RequestTimeoutSeconds < 0 {
		p.RequestTimeoutSeconds = 0
	}
	return p
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for provider %q", p.ID)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for provider %q", p.ID)
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url for provider %q must be an absolute http(s) url", p.ID)
	}
	return nil
}

// RequestTimeout returns the provider override, or fallback when unset.
func (p Provider) RequestTimeout(fallback time.Duration) time.Duration {
	if p.RequestTimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}
