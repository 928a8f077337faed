package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"retrievr/monitor-service/internal/listing"
	"retrievr/monitor-service/internal/model"
)

// --- mock oracle ---

type mockOracle struct {
	calls   atomic.Int32
	scoreFn func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error)
}

func (m *mockOracle) Score(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
	m.calls.Add(1)
	if m.scoreFn != nil {
		return m.scoreFn(ctx, l, p)
	}
	return report(0), nil
}

// --- mock result store ---

type mockResults struct {
	mu       sync.Mutex
	inserted []model.AnalysisResult
	existing map[string]bool // "listingID|profileID" pairs already stored
	err      error
}

func (m *mockResults) Insert(ctx context.Context, res *model.AnalysisResult) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existing[res.ListingID+"|"+res.ProfileID] {
		return false, nil
	}
	res.ID = fmt.Sprintf("res-%d", len(m.inserted)+1)
	m.inserted = append(m.inserted, *res)
	return true, nil
}

// --- mock status store ---

type mockStatuses struct {
	mu      sync.Mutex
	updates map[string]listing.Status
	err     error
}

func (m *mockStatuses) UpdateStatus(ctx context.Context, id string, from, to listing.Status) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == nil {
		m.updates = make(map[string]listing.Status)
	}
	m.updates[id] = to
	return nil
}

// --- helpers ---

func report(score float64) *model.MatchReport {
	return &model.MatchReport{
		Score:          score,
		Reasoning:      "test reasoning",
		Confidence:     "medium",
		Recommendation: model.RecommendationInvestigate,
		ModelUsed:      "test-model",
	}
}

func testPipeline(o Oracle, r *mockResults, s *mockStatuses) *Pipeline {
	return NewPipeline(o, r, s, 7.0, 8.0, 2)
}

func oneListing() []model.Listing {
	return []model.Listing{{ID: "l1", URL: "https://m1/l1", Title: "Trek Domane SL 7 blue", Status: listing.StatusNew}}
}

func oneProfile() []model.SearchProfile {
	return []model.SearchProfile{{ID: "p1", Name: "Trek Domane", ItemMake: "Trek", ItemModel: "Domane SL 7"}}
}

// --- classification ---

func TestClassify(t *testing.T) {
	p := testPipeline(&mockOracle{}, &mockResults{}, &mockStatuses{})

	cases := []struct {
		score float64
		want  string
	}{
		{9.5, model.RecommendationHighPriority},
		{8.0, model.RecommendationHighPriority},
		{7.9, model.RecommendationInvestigate},
		{7.0, model.RecommendationInvestigate},
		{6.9, model.RecommendationIgnore},
		{3.0, model.RecommendationIgnore},
		{0, model.RecommendationIgnore},
	}

	for _, tc := range cases {
		if got := p.Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%.1f) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

// --- run outcomes ---

func TestRun_HighScoreStoresAndAdvancesToMatchFound(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return report(8.5), nil
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), oneProfile())

	if out.Analyzed != 1 || out.Matches != 1 || out.Errors != 0 {
		t.Fatalf("Outcome = %+v, want {Analyzed:1 Matches:1 Errors:0}", out)
	}
	if len(results.inserted) != 1 {
		t.Fatalf("inserted = %d results, want 1", len(results.inserted))
	}
	res := results.inserted[0]
	if res.MatchScore != 8.5 || res.Recommendation != model.RecommendationHighPriority {
		t.Errorf("stored result = score %.1f rec %q, want 8.5 high_priority", res.MatchScore, res.Recommendation)
	}
	if res.AnalysisVersion != AnalysisVersion {
		t.Errorf("AnalysisVersion = %q, want %q", res.AnalysisVersion, AnalysisVersion)
	}
	if got := statuses.updates["l1"]; got != listing.StatusMatchFound {
		t.Errorf("status = %q, want %q", got, listing.StatusMatchFound)
	}
}

func TestRun_LowScoreStoresAndAdvancesToAnalyzed(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return report(3.0), nil
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), oneProfile())

	if out.Analyzed != 1 || out.Matches != 0 {
		t.Fatalf("Outcome = %+v, want {Analyzed:1 Matches:0}", out)
	}
	if got := results.inserted[0].Recommendation; got != model.RecommendationIgnore {
		t.Errorf("recommendation = %q, want ignore", got)
	}
	if got := statuses.updates["l1"]; got != listing.StatusAnalyzed {
		t.Errorf("status = %q, want %q", got, listing.StatusAnalyzed)
	}
}

func TestRun_OracleFailureLeavesListingNew(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return nil, errors.New("model unreachable")
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), oneProfile())

	if out.Errors != 1 || out.Analyzed != 0 {
		t.Fatalf("Outcome = %+v, want {Analyzed:0 Errors:1}", out)
	}
	if len(results.inserted) != 0 {
		t.Errorf("inserted = %d results, want 0", len(results.inserted))
	}
	// No status write: the listing stays new and is retried next cycle.
	if len(statuses.updates) != 0 {
		t.Errorf("status updates = %v, want none", statuses.updates)
	}
}

func TestRun_InvalidResponseSkipsPairOnly(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		if p.ID == "p1" {
			return nil, &InvalidResponseError{Reason: "match_score 12.00 outside 0-10"}
		}
		return report(8.5), nil
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	profiles := []model.SearchProfile{
		{ID: "p1", Name: "bad"},
		{ID: "p2", Name: "good"},
	}
	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), profiles)

	if out.Errors != 1 || out.Matches != 1 || out.Analyzed != 1 {
		t.Fatalf("Outcome = %+v, want {Analyzed:1 Matches:1 Errors:1}", out)
	}
	if len(results.inserted) != 1 || results.inserted[0].ProfileID != "p2" {
		t.Errorf("inserted = %+v, want one result for p2", results.inserted)
	}
	if got := statuses.updates["l1"]; got != listing.StatusMatchFound {
		t.Errorf("status = %q, want match_found", got)
	}
}

func TestRun_ExistingPairNotRecounted(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return report(8.5), nil
	}}
	results := &mockResults{existing: map[string]bool{"l1|p1": true}}
	statuses := &mockStatuses{}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), oneProfile())

	if out.Analyzed != 0 || out.Matches != 0 || out.Errors != 0 {
		t.Fatalf("Outcome = %+v, want all zero", out)
	}
	// The pair was still scored, so the status advance happens.
	if got := statuses.updates["l1"]; got != listing.StatusMatchFound {
		t.Errorf("status = %q, want match_found", got)
	}
}

func TestRun_BestScoreAcrossProfilesDecidesStatus(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		if p.ID == "p1" {
			return report(3.0), nil
		}
		return report(7.5), nil
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	profiles := []model.SearchProfile{{ID: "p1"}, {ID: "p2"}}
	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), profiles)

	if out.Analyzed != 2 || out.Matches != 1 {
		t.Fatalf("Outcome = %+v, want {Analyzed:2 Matches:1}", out)
	}
	if got := statuses.updates["l1"]; got != listing.StatusMatchFound {
		t.Errorf("status = %q, want match_found", got)
	}
}

func TestRun_StoreOutageLeavesListingNew(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return report(8.5), nil
	}}
	results := &mockResults{err: errors.New("connection refused")}
	statuses := &mockStatuses{}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), oneListing(), oneProfile())

	if out.Errors != 1 || out.Analyzed != 0 {
		t.Fatalf("Outcome = %+v, want {Analyzed:0 Errors:1}", out)
	}
	if len(statuses.updates) != 0 {
		t.Errorf("status updates = %v, want none (listing must stay new)", statuses.updates)
	}
}

func TestRun_EmptyInputsAreNoops(t *testing.T) {
	oracle := &mockOracle{}

	out := testPipeline(oracle, &mockResults{}, &mockStatuses{}).Run(context.Background(), nil, oneProfile())
	if out != (Outcome{}) {
		t.Errorf("Outcome with no listings = %+v, want zero", out)
	}

	out = testPipeline(oracle, &mockResults{}, &mockStatuses{}).Run(context.Background(), oneListing(), nil)
	if out != (Outcome{}) {
		t.Errorf("Outcome with no profiles = %+v, want zero", out)
	}

	if oracle.calls.Load() != 0 {
		t.Errorf("oracle calls = %d, want 0", oracle.calls.Load())
	}
}

func TestRun_EveryListingVisitsEveryProfile(t *testing.T) {
	oracle := &mockOracle{scoreFn: func(ctx context.Context, l model.Listing, p model.SearchProfile) (*model.MatchReport, error) {
		return report(1.0), nil
	}}
	results := &mockResults{}
	statuses := &mockStatuses{}

	listings := []model.Listing{
		{ID: "l1", URL: "https://m/1"},
		{ID: "l2", URL: "https://m/2"},
		{ID: "l3", URL: "https://m/3"},
	}
	profiles := []model.SearchProfile{{ID: "p1"}, {ID: "p2"}}

	out := testPipeline(oracle, results, statuses).Run(context.Background(), listings, profiles)

	if got := oracle.calls.Load(); got != 6 {
		t.Errorf("oracle calls = %d, want 6", got)
	}
	if out.Analyzed != 6 {
		t.Errorf("Analyzed = %d, want 6", out.Analyzed)
	}
	for _, id := range []string{"l1", "l2", "l3"} {
		if got := statuses.updates[id]; got != listing.StatusAnalyzed {
			t.Errorf("status[%s] = %q, want analyzed", id, got)
		}
	}
}
