package scraper

import (
	"context"
	"log"
	"sync"
	"time"

	"retrievr/monitor-service/internal/model"
)

const scrapeTaskTimeout = 60 * time.Second

// Task is one scrape unit: a marketplace paired with a profile-derived query.
type Task struct {
	Marketplace string
	Query       Query
}

// BuildTasks derives the distinct (marketplace, query, location) scrape
// tasks for a cycle. Profiles sharing a query and location collapse into one
// task per marketplace, so overlapping profiles never scrape twice.
func BuildTasks(marketplaces []string, profiles []model.SearchProfile) []Task {
	seen := make(map[string]struct{})
	var tasks []Task
	for _, p := range profiles {
		q := p.SearchQuery()
		if q == "" {
			continue
		}
		for _, m := range marketplaces {
			key := m + "|" + q + "|" + p.Location
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tasks = append(tasks, Task{
				Marketplace: m,
				Query:       Query{Text: q, Location: p.Location},
			})
		}
	}
	return tasks
}

// Pool fans scrape tasks out to adapters under a global concurrency cap.
type Pool struct {
	registry      *Registry
	maxConcurrent int
	taskTimeout   time.Duration
}

// NewPool returns a Pool running at most maxConcurrent tasks at once.
func NewPool(registry *Registry, maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		registry:      registry,
		maxConcurrent: maxConcurrent,
		taskTimeout:   scrapeTaskTimeout,
	}
}

// Run executes all tasks and returns the flattened candidates plus the
// number of failed tasks. Tasks beyond the concurrency cap queue on the
// semaphore. A task failure (timeout, network error, bad payload) is logged
// and counted; sibling tasks are unaffected. No ordering is guaranteed
// across tasks; within a task, listings preserve source order.
func (p *Pool) Run(ctx context.Context, tasks []Task) ([]model.RawListing, int) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []model.RawListing
		errCount int
	)

	sem := make(chan struct{}, p.maxConcurrent)

	for _, t := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return // canceled while queued
			}

			s, ok := p.registry.Get(t.Marketplace)
			if !ok {
				log.Printf("[pool] No scraper registered for marketplace %q", t.Marketplace)
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}

			taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
			defer cancel()

			batch, err := s.Search(taskCtx, t.Query)
			if err != nil {
				log.Printf("[pool] Scrape error (%s, %q): %v — continuing",
					t.Marketplace, t.Query.Text, err)
				mu.Lock()
				errCount++
				mu.Unlock()
				return
			}
			if len(batch) == 0 {
				return
			}

			mu.Lock()
			results = append(results, batch...)
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	return results, errCount
}
