// Package scraper implements marketplace listing fetching: the adapter
// interface, the name → adapter registry, request pacing and the bounded
// scrape pool.
package scraper

import (
	"context"
	"sort"
	"sync"
	"time"

	"retrievr/monitor-service/internal/model"
)

const httpTimeout = 15 * time.Second

// Query is one marketplace search derived from a profile.
type Query struct {
	Text     string // make + model + search terms
	Location string // free-text owner location, may be empty
}

// Scraper fetches candidate listings from one marketplace. Implementations
// must honor ctx cancellation and deadlines on every request.
type Scraper interface {
	Marketplace() string
	Search(ctx context.Context, q Query) ([]model.RawListing, error)
}

// Registry maps marketplace names to adapters. Adding a marketplace means
// registering an adapter here; nothing in the cycle code changes.
type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[string]Scraper)}
}

// Register adds s under its marketplace name, replacing any previous entry.
func (r *Registry) Register(s Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Marketplace()] = s
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Scraper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[name]
	return s, ok
}

// Available returns the registered marketplace names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scrapers))
	for name := range r.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pacer enforces a minimum delay between consecutive requests to one
// marketplace. Concurrent waiters are queued: each reserves the next slot
// under the lock, so request spacing holds even across scrape tasks.
type Pacer struct {
	mu   sync.Mutex
	min  time.Duration
	last time.Time
}

// NewPacer returns a Pacer with the given minimum inter-request delay.
// A zero or negative delay disables pacing.
func NewPacer(min time.Duration) *Pacer {
	return &Pacer{min: min}
}

// Wait blocks until the caller may issue its request, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.min <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	next := p.last.Add(p.min)
	var wait time.Duration
	if next.After(now) {
		wait = next.Sub(now)
		p.last = next
	} else {
		p.last = now
	}
	p.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
