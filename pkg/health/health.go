// Package health serves liveness and readiness probes.
//
// Checks are executed on demand when a probe endpoint is hit. All checks of a
// probe run concurrently, each bounded by its own timeout.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc reports whether a component is healthy. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health holds the registered checks and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New creates a Health in the not-ready state. Call SetReady(true) once the
// service has finished initialization.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check reported by /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, fn: fn})
}

// AddReadinessCheck registers a check reported by /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness flag. It is set to false at the start
// of graceful shutdown so load balancers stop routing traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the manual readiness flag.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]check(nil), h.liveness...)
	h.mu.RUnlock()

	writeResponse(w, runChecks(r.Context(), checks))
}

// ReadyEndpoint serves /readyz. The service is ready when it was marked
// ready and every readiness check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := append([]check(nil), h.readiness...)
	h.mu.RUnlock()

	failures := runChecks(r.Context(), checks)
	if !h.ready.Load() {
		failures = append(failures, failure{name: "_readiness", reason: "service is not ready"})
	}
	writeResponse(w, failures)
}

type failure struct {
	name   string
	reason string
}

// runChecks executes checks concurrently and returns the failed ones sorted
// by name.
func runChecks(ctx context.Context, checks []check) []failure {
	var (
		mu       sync.Mutex
		failures []failure
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			if err := c.fn(checkCtx); err != nil {
				mu.Lock()
				failures = append(failures, failure{name: c.name, reason: err.Error()})
				mu.Unlock()
			}
			// A failing check must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].name < failures[j].name })
	return failures
}

func writeResponse(w http.ResponseWriter, failures []failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failures) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		for _, f := range failures {
			e.FieldStart(f.name)
			e.Str(f.reason)
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// The status is already written; a failed write means the client left.
	_, _ = w.Write(e.Bytes())
}
