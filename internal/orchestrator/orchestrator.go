// Package orchestrator drives one monitoring cycle end to end: fetch
// profiles, scrape, deduplicate, match, notify, summarize.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"retrievr/monitor-service/internal/events"
	"retrievr/monitor-service/internal/listing"
	"retrievr/monitor-service/internal/matcher"
	"retrievr/monitor-service/internal/model"
	"retrievr/monitor-service/internal/notify"
	"retrievr/monitor-service/internal/scraper"
)

// ErrCycleInProgress is returned when a cycle is requested while another
// one is still running. The caller simply waits for the next tick.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// ProfileSource lists the profiles a cycle works for.
type ProfileSource interface {
	ListActive(ctx context.Context) ([]model.SearchProfile, error)
}

// ListingAdmitter is the slice of the listing store a cycle writes through.
type ListingAdmitter interface {
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
	Admit(ctx context.Context, raw model.RawListing) (model.Listing, bool, error)
	ListNew(ctx context.Context) ([]model.Listing, error)
}

// ScrapeRunner fans scrape tasks out to the marketplace adapters.
type ScrapeRunner interface {
	Run(ctx context.Context, tasks []scraper.Task) ([]model.RawListing, int)
}

// MatchRunner scores new listings against the active profiles.
type MatchRunner interface {
	Run(ctx context.Context, listings []model.Listing, profiles []model.SearchProfile) matcher.Outcome
}

// AlertDispatcher pushes pending results out to the owners.
type AlertDispatcher interface {
	DispatchPending(ctx context.Context) (notify.Outcome, error)
}

// Orchestrator wires the cycle stages together. One instance never runs
// two cycles at once.
type Orchestrator struct {
	profiles     ProfileSource
	listings     ListingAdmitter
	pool         ScrapeRunner
	pipeline     MatchRunner
	dispatcher   AlertDispatcher
	marketplaces []string
	state        *Manager
	events       *events.Publisher
}

func New(profiles ProfileSource, listings ListingAdmitter, pool ScrapeRunner, pipeline MatchRunner, dispatcher AlertDispatcher, marketplaces []string, pub *events.Publisher) *Orchestrator {
	return &Orchestrator{
		profiles:     profiles,
		listings:     listings,
		pool:         pool,
		pipeline:     pipeline,
		dispatcher:   dispatcher,
		marketplaces: marketplaces,
		state:        NewManager(),
		events:       pub,
	}
}

// State exposes the phase tracker for the admin API.
func (o *Orchestrator) State() *Manager {
	return o.state
}

// Running reports whether a cycle is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.state.Running()
}

// RunCycle executes one full monitoring cycle. A second invocation while
// one is in flight fails fast with ErrCycleInProgress. Failure to fetch
// the profile set aborts the cycle; every later failure is logged,
// counted in the summary and the cycle continues.
func (o *Orchestrator) RunCycle(ctx context.Context) (model.CycleSummary, error) {
	cycleID := uuid.NewString()
	if !o.state.TryBegin(cycleID) {
		return model.CycleSummary{}, ErrCycleInProgress
	}

	started := time.Now().UTC()
	summary := model.CycleSummary{CycleID: cycleID, StartedAt: started}
	log.Printf("[orchestrator] Cycle %s started", cycleID)

	profiles, err := o.profiles.ListActive(ctx)
	if err != nil {
		err = fmt.Errorf("fetch active profiles: %w", err)
		o.state.Fail(err)
		return model.CycleSummary{}, err
	}
	summary.SearchProfiles = len(profiles)

	if len(profiles) == 0 {
		log.Printf("[orchestrator] Cycle %s: no active profiles, nothing to do", cycleID)
		summary.Duration = time.Since(started)
		o.finish(ctx, summary)
		return summary, nil
	}

	if err := ctx.Err(); err != nil {
		o.state.Fail(err)
		return model.CycleSummary{}, err
	}

	o.state.SetPhase(PhaseScraping)
	tasks := scraper.BuildTasks(o.marketplaces, profiles)
	raw, scrapeErrs := o.pool.Run(ctx, tasks)
	summary.Errors += scrapeErrs
	o.state.AddLog(fmt.Sprintf("Scraped %d listings across %d tasks", len(raw), len(tasks)))

	if err := ctx.Err(); err != nil {
		o.state.Fail(err)
		return model.CycleSummary{}, err
	}

	o.state.SetPhase(PhaseDeduplicating)
	summary.NewListings = o.admitListings(ctx, raw, &summary)
	o.state.AddLog(fmt.Sprintf("Admitted %d new listings", summary.NewListings))

	if err := ctx.Err(); err != nil {
		o.state.Fail(err)
		return model.CycleSummary{}, err
	}

	o.state.SetPhase(PhaseMatching)
	toScore, err := o.listings.ListNew(ctx)
	if err != nil {
		log.Printf("[orchestrator] List new listings failed: %v", err)
		summary.Errors++
	} else if len(toScore) > 0 {
		out := o.pipeline.Run(ctx, toScore, profiles)
		summary.MatchesFound = out.Matches
		summary.Errors += out.Errors
		o.state.AddLog(fmt.Sprintf("Scored %d pairs, %d matches", out.Analyzed, out.Matches))
	}

	if err := ctx.Err(); err != nil {
		o.state.Fail(err)
		return model.CycleSummary{}, err
	}

	o.state.SetPhase(PhaseNotifying)
	sent, err := o.dispatcher.DispatchPending(ctx)
	if err != nil {
		log.Printf("[orchestrator] Dispatch failed: %v", err)
		summary.Errors++
	}
	summary.NotificationsSent = sent.Sent
	summary.Errors += sent.Errors

	o.state.SetPhase(PhaseSummarizing)
	summary.Duration = time.Since(started)
	o.finish(ctx, summary)

	log.Printf("[orchestrator] Cycle %s complete in %s: %d profiles, %d new, %d matches, %d notified, %d errors",
		cycleID, summary.Duration.Round(time.Millisecond), summary.SearchProfiles,
		summary.NewListings, summary.MatchesFound, summary.NotificationsSent, summary.Errors)
	return summary, nil
}

// admitListings filters scraped candidates down to genuinely new listings
// and inserts them at status new. Dedup happens on the canonical URL,
// first against the known set, then within the batch, with the store's
// unique constraint as the last word under concurrent inserts.
func (o *Orchestrator) admitListings(ctx context.Context, raw []model.RawListing, summary *model.CycleSummary) int {
	known, err := o.listings.ExistingURLs(ctx)
	if err != nil {
		// Degraded but not fatal: Admit still dedupes row by row.
		log.Printf("[orchestrator] URL prefetch failed: %v", err)
		summary.Errors++
		known = make(map[string]struct{})
	}

	admitted := 0
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if ctx.Err() != nil {
			break
		}

		key := listing.CanonicalURL(r.URL)
		if key == "" {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		r.URL = key
		if _, inserted, err := o.listings.Admit(ctx, r); err != nil {
			log.Printf("[orchestrator] Admit failed (%s): %v", key, err)
			summary.Errors++
		} else if inserted {
			admitted++
		}
	}
	return admitted
}

func (o *Orchestrator) finish(ctx context.Context, s model.CycleSummary) {
	o.events.Publish(ctx, events.ChannelCycleCompleted, s)
	o.state.Complete(s)
}
