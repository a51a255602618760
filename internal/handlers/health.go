package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/httpx"
)

// Check reports the readiness of one dependency.
type Check func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	now     func() time.Time
	version string
	checks  map[string]Check
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		started: time.Now(),
		now:     time.Now,
		checks:  make(map[string]Check),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithVersion reports a build version on /healthz.
func WithVersion(version string) HealthOption {
	return func(h *HealthHandlers) { h.version = strings.TrimSpace(version) }
}

// WithCheck registers a readiness check.
func WithCheck(name string, check Check) HealthOption {
	return func(h *HealthHandlers) {
		if name = strings.TrimSpace(name); name != "" && check != nil {
			h.checks[name] = check
		}
	}
}

// Healthz answers liveness probes.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"uptime":    h.now().Sub(h.started).Round(time.Second).String(),
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if h.version != "" {
		payload["version"] = h.version
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// Readyz runs every registered check.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.checks))
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}
	httpx.WriteJSON(w, status, map[string]any{"status": state, "checks": results})
}
