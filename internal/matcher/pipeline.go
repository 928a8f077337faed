package matcher

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"retrievr/monitor-service/internal/listing"
	"retrievr/monitor-service/internal/model"
)

// oracleCallTimeout bounds a single scoring call so one stuck request
// cannot stall the whole cycle.
const oracleCallTimeout = 45 * time.Second

// ResultStore persists scored pairs. Insert reports false when the
// (listing, profile) pair already holds a result.
type ResultStore interface {
	Insert(ctx context.Context, res *model.AnalysisResult) (bool, error)
}

// StatusStore advances a listing through its status machine.
type StatusStore interface {
	UpdateStatus(ctx context.Context, id string, from, to listing.Status) error
}

// Outcome aggregates one pipeline run for the cycle summary.
type Outcome struct {
	Analyzed int // pairs scored and stored
	Matches  int // stored results at or above the match threshold
	Errors   int // oracle, validation and store failures
}

// Pipeline scores new listings against active profiles and advances
// listing status from the results.
type Pipeline struct {
	oracle         Oracle
	results        ResultStore
	statuses       StatusStore
	matchThreshold float64
	highThreshold  float64
	concurrency    int
}

func NewPipeline(o Oracle, results ResultStore, statuses StatusStore, matchThreshold, highThreshold float64, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		oracle:         o,
		results:        results,
		statuses:       statuses,
		matchThreshold: matchThreshold,
		highThreshold:  highThreshold,
		concurrency:    concurrency,
	}
}

// Classify maps a score to the stored recommendation. The model's own
// recommendation field is validated on parse; the persisted value is
// derived from the score and the configured thresholds.
func (p *Pipeline) Classify(score float64) string {
	switch {
	case score >= p.highThreshold:
		return model.RecommendationHighPriority
	case score >= p.matchThreshold:
		return model.RecommendationInvestigate
	default:
		return model.RecommendationIgnore
	}
}

// Run scores every listing against every profile. Listings are processed
// concurrently; the profiles of one listing run sequentially so its status
// writes never race.
func (p *Pipeline) Run(ctx context.Context, listings []model.Listing, profiles []model.SearchProfile) Outcome {
	if len(listings) == 0 || len(profiles) == 0 {
		return Outcome{}
	}

	var (
		mu    sync.Mutex
		total Outcome
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, l := range listings {
		g.Go(func() error {
			out := p.analyzeListing(gCtx, l, profiles)
			mu.Lock()
			total.Analyzed += out.Analyzed
			total.Matches += out.Matches
			total.Errors += out.Errors
			mu.Unlock()
			return nil
		})
	}

	// Per-pair failures are counted in the outcome; the group itself
	// never carries an error.
	_ = g.Wait()

	return total
}

func (p *Pipeline) analyzeListing(ctx context.Context, l model.Listing, profiles []model.SearchProfile) Outcome {
	var (
		out    Outcome
		best   float64
		scored int
	)

	for _, prof := range profiles {
		if ctx.Err() != nil {
			break
		}

		report, err := p.score(ctx, l, prof)
		if err != nil {
			log.Printf("[matcher] Analysis failed (listing %s, profile %s): %v", l.ID, prof.ID, err)
			out.Errors++
			continue
		}

		rec := p.Classify(report.Score)
		inserted, err := p.results.Insert(ctx, &model.AnalysisResult{
			ListingID:       l.ID,
			ProfileID:       prof.ID,
			MatchScore:      report.Score,
			Reasoning:       report.Reasoning,
			ConfidenceLevel: report.Confidence,
			KeyIndicators:   report.KeyIndicators,
			Concerns:        report.Concerns,
			Recommendation:  rec,
			ModelUsed:       report.ModelUsed,
			AnalysisVersion: AnalysisVersion,
		})
		if err != nil {
			log.Printf("[matcher] Store result failed (listing %s, profile %s): %v", l.ID, prof.ID, err)
			out.Errors++
			continue
		}

		// A pair counts as scored only once its result is persisted, so a
		// store outage leaves the listing at new for the next cycle.
		scored++
		if report.Score > best {
			best = report.Score
		}
		if !inserted {
			continue
		}

		out.Analyzed++
		if rec != model.RecommendationIgnore {
			out.Matches++
			log.Printf("[matcher] Match found: %q scored %.1f for profile %s (%s)", l.Title, report.Score, prof.Name, rec)
		}
	}

	// One status write per listing, after every profile had its turn.
	// A listing no pair could score stays new and is retried next cycle.
	switch {
	case best >= p.matchThreshold:
		p.advance(ctx, l, listing.StatusMatchFound, &out)
	case scored > 0:
		p.advance(ctx, l, listing.StatusAnalyzed, &out)
	}

	return out
}

func (p *Pipeline) score(ctx context.Context, l model.Listing, prof model.SearchProfile) (*model.MatchReport, error) {
	callCtx, cancel := context.WithTimeout(ctx, oracleCallTimeout)
	defer cancel()
	return p.oracle.Score(callCtx, l, prof)
}

func (p *Pipeline) advance(ctx context.Context, l model.Listing, to listing.Status, out *Outcome) {
	if err := p.statuses.UpdateStatus(ctx, l.ID, listing.StatusNew, to); err != nil {
		log.Printf("[matcher] Status update failed (listing %s -> %s): %v", l.ID, to, err)
		out.Errors++
	}
}
