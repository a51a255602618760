// Package session carries visitor cookies and the in-memory funnel instances
// they own.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
)

var (
	// ErrFunnelNotFound is returned for unknown or swept funnel ids.
	ErrFunnelNotFound = errors.New("session: funnel not found")
	// ErrRegistryFull is returned when the registry holds its maximum number of funnels.
	ErrRegistryFull = errors.New("session: too many active funnels")
	// ErrOrderInProgress is returned by Claim while another order for the
	// funnel is being submitted.
	ErrOrderInProgress = errors.New("session: order already in progress")
)

type entry struct {
	mu       sync.Mutex
	id       string
	product  string
	funnel   *funnel.Funnel
	lastUsed atomic.Int64
	done     chan struct{}
	claimed  bool
}

func (e *entry) touch(now time.Time) { e.lastUsed.Store(now.UnixNano()) }

// RegistryConfig bounds the registry.
type RegistryConfig struct {
	IdleTTL    time.Duration
	MaxFunnels int
	Now        func() time.Time
	Logger     *zap.Logger
	Meter      metric.Meter
}

const metricNamespace = "funnel/session"

// Registry keeps live funnels keyed by ULID. Funnel subjects are not safe
// for concurrent use, so every access goes through With, which holds a
// per-funnel lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	max     int
	now     func() time.Time
	logger  *zap.Logger

	created metric.Int64Counter
	removed metric.Int64Counter
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.Named("registry")
	meter := cfg.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}
	created, err := meter.Int64Counter(
		"funnel.registry.created",
		metric.WithDescription("Count of funnels created"),
	)
	if err != nil {
		logger.Warn("unable to register created metric", zap.Error(err))
	}
	removed, err := meter.Int64Counter(
		"funnel.registry.removed",
		metric.WithDescription("Count of funnels removed, by reason"),
	)
	if err != nil {
		logger.Warn("unable to register removed metric", zap.Error(err))
	}
	return &Registry{
		entries: make(map[string]*entry),
		ttl:     cfg.IdleTTL,
		max:     cfg.MaxFunnels,
		now:     cfg.Now,
		logger:  logger,
		created: created,
		removed: removed,
	}
}

func (r *Registry) countRemoved(n int, reason string) {
	if r.removed == nil || n == 0 {
		return
	}
	r.removed.Add(context.Background(), int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}

// Create builds a funnel for product and returns its id.
func (r *Registry) Create(product string, cfg funnel.Config) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.entries) >= r.max {
		return "", ErrRegistryFull
	}
	id := ulid.Make().String()
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	cfg.Logger = cfg.Logger.With(zap.String("funnel_id", id))
	e := &entry{
		id:      id,
		product: product,
		funnel:  funnel.New(cfg),
		done:    make(chan struct{}),
	}
	e.touch(r.now())
	r.entries[id] = e
	if r.created != nil {
		r.created.Add(context.Background(), 1)
	}
	r.logger.Debug("funnel created", zap.String("funnel_id", id), zap.String("product", product))
	return id, nil
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// With runs fn while holding the funnel's lock.
func (r *Registry) With(id string, fn func(f *funnel.Funnel) error) error {
	e, ok := r.lookup(id)
	if !ok {
		return ErrFunnelNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.funnel == nil {
		return ErrFunnelNotFound
	}
	e.touch(r.now())
	return fn(e.funnel)
}

// Claim reserves a funnel for a single order submission. The returned
// release makes the funnel claimable again; it is safe to call after the
// funnel was removed.
func (r *Registry) Claim(id string) (release func(), err error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, ErrFunnelNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.funnel == nil {
		return nil, ErrFunnelNotFound
	}
	if e.claimed {
		return nil, ErrOrderInProgress
	}
	e.claimed = true
	e.touch(r.now())
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			e.claimed = false
			e.mu.Unlock()
		})
	}, nil
}

// Touch marks a funnel as in use without locking it.
func (r *Registry) Touch(id string) bool {
	e, ok := r.lookup(id)
	if ok {
		e.touch(r.now())
	}
	return ok
}

// Product returns the product slug a funnel sells.
func (r *Registry) Product(id string) (string, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return "", false
	}
	return e.product, true
}

// Done returns a channel closed when the funnel is removed.
func (r *Registry) Done(id string) (<-chan struct{}, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	return e.done, true
}

// Len reports the number of live funnels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Remove discards a funnel. Unknown ids are ignored.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		r.release(e)
		r.countRemoved(1, "removed")
	}
}

// Sweep removes funnels idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl).UnixNano()
	var stale []*entry

	r.mu.Lock()
	for id, e := range r.entries {
		if e.lastUsed.Load() < cutoff {
			stale = append(stale, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		r.release(e)
	}
	r.countRemoved(len(stale), "idle")
	if len(stale) > 0 {
		r.logger.Info("idle funnels swept", zap.Int("removed", len(stale)), zap.Int("remaining", r.Len()))
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close removes every funnel.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		r.release(e)
	}
	r.countRemoved(len(entries), "shutdown")
}

func (r *Registry) release(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.funnel == nil {
		return
	}
	e.funnel.Close()
	e.funnel = nil
	close(e.done)
}
