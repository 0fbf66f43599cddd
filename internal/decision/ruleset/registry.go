package ruleset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	dErrors "underwriter/pkg/domain-errors"
)

// Snapshot is one immutable generation of loaded rule sets.
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time
	sets       map[string]*RuleSet
	names      []string
}

// Get returns the named rule set from this snapshot.
func (s *Snapshot) Get(name string) (*RuleSet, error) {
	rs, ok := s.sets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "rule set %q not found", name)
	}
	return rs, nil
}

// Names returns the rule set names in lexical order.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Subscriber delivers reload notifications. RedisSource implements it.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan string, error)
}

// ReloadListener is told about every successful reload.
type ReloadListener func(ctx context.Context, snap *Snapshot)

// Registry holds the current snapshot. Reloads build a complete new snapshot
// and swap it in atomically; callers holding a *RuleSet keep using it.
type Registry struct {
	source    Source
	current   atomic.Pointer[Snapshot]
	reloadMu  sync.Mutex
	logger    *slog.Logger
	listeners []ReloadListener
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithReloadListener registers fn to run after each successful reload.
func WithReloadListener(fn ReloadListener) Option {
	return func(r *Registry) {
		r.listeners = append(r.listeners, fn)
	}
}

// NewRegistry creates an empty registry. Call Load before serving.
func NewRegistry(source Source, opts ...Option) (*Registry, error) {
	if source == nil {
		return nil, fmt.Errorf("rule set source is required")
	}
	r := &Registry{source: source, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(&Snapshot{sets: map[string]*RuleSet{}})
	return r, nil
}

// Load fetches and validates every document from the source. Any invalid
// document fails the whole reload and the current snapshot stays in place.
func (r *Registry) Load(ctx context.Context) (*Snapshot, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	names, err := r.source.Names(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfig, "list rule sets")
	}
	if len(names) == 0 {
		return nil, dErrors.New(dErrors.CodeConfig, "rule set source is empty")
	}

	sets := make(map[string]*RuleSet, len(names))
	for _, name := range names {
		data, err := r.source.Fetch(ctx, name)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeConfig, fmt.Sprintf("fetch rule set %q", name))
		}
		rs, err := Parse(name, data)
		if err != nil {
			return nil, err
		}
		if _, dup := sets[rs.Name]; dup {
			return nil, dErrors.Newf(dErrors.CodeConfig, "rule set %q is defined more than once", rs.Name)
		}
		sets[rs.Name] = rs
	}
	sorted := make([]string, 0, len(sets))
	for name := range sets {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	prev := r.current.Load()
	next := &Snapshot{
		Generation: prev.Generation + 1,
		LoadedAt:   time.Now(),
		sets:       sets,
		names:      sorted,
	}
	r.current.Store(next)

	r.logger.InfoContext(ctx, "rule sets loaded",
		"generation", next.Generation,
		"rule_sets", sorted,
	)
	for _, fn := range r.listeners {
		fn(ctx, next)
	}
	return next, nil
}

// Current returns the active snapshot.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Get returns the named rule set from the active snapshot.
func (r *Registry) Get(name string) (*RuleSet, error) {
	return r.Current().Get(name)
}

// Names lists the rule sets in the active snapshot.
func (r *Registry) Names() []string {
	return r.Current().Names()
}

// Info describes the named rule set.
func (r *Registry) Info(name string) (Info, error) {
	rs, err := r.Get(name)
	if err != nil {
		return Info{}, err
	}
	return rs.Info(), nil
}

// Watch reloads on every notification until ctx ends. Failed reloads are
// logged and the previous snapshot keeps serving.
func (r *Registry) Watch(ctx context.Context, sub Subscriber) error {
	updates, err := sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("rule set subscription closed")
			}
			if _, err := r.Load(ctx); err != nil {
				r.logger.ErrorContext(ctx, "rule set reload failed",
					"rule_set", name,
					"error", err,
				)
			}
		}
	}
}
