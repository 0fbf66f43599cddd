// Package ai obtains the AI second opinion. Providers only move prompts and
// raw completions; the shared parser turns completions into decisions and
// Client adds timeouts, retries, a circuit breaker and a concurrency cap.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Prompt is one rendered request to a model.
type Prompt struct {
	System        string
	User          string
	ApplicationID string
	RuleSet       string
}

// Provider is the interface every AI backend implements.
type Provider interface {
	// ID returns a unique identifier for this provider instance
	ID() string

	// Model returns the model the provider is configured for
	Model() string

	// Complete sends the prompt and returns the raw completion text
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Config selects and configures a provider. It is resolved once at startup.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	APIVersion  string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client

	// Static provider answers
	StaticDecision   string
	StaticConfidence float64
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Factory builds a provider from configuration.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(ProviderOpenAI, NewOpenAI)
	_ = r.Register(ProviderAzureOpenAI, NewAzureOpenAI)
	_ = r.Register(ProviderOllama, NewOllama)
	_ = r.Register(ProviderStatic, NewStatic)
	return r
}

// Register adds a factory to the registry
func (r *Registry) Register(name string, f Factory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("ai provider %s already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New builds the provider named by cfg.Provider.
func (r *Registry) New(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NewProviderError(ErrorConfiguration, name, "no such provider", ErrUnknownProvider)
	}
	return f(cfg)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
