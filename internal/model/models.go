// Package model defines shared data structures for the monitor service.
package model

import (
	"strings"
	"time"

	"retrievr/monitor-service/internal/listing"
)

// SearchProfile mirrors the search_profiles table row describing one stolen
// item. Profiles are created by the owner-facing app; the monitor only reads
// them.
type SearchProfile struct {
	ID             string
	Name           string
	ItemMake       string
	ItemModel      string
	Color          string
	Size           string
	Description    string
	UniqueFeatures string
	Location       string
	PriceMin       *float64
	PriceMax       *float64
	SearchTerms    []string
	OwnerEmail     string // always non-empty, enforced by the store schema
	OwnerPhone     string // optional; gates SMS alerts
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SearchQuery derives the marketplace search string: make, model and the
// profile's extra terms joined by spaces, empty parts dropped.
func (p SearchProfile) SearchQuery() string {
	parts := make([]string, 0, 2+len(p.SearchTerms))
	for _, s := range append([]string{p.ItemMake, p.ItemModel}, p.SearchTerms...) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// RawListing is a candidate scraped from a marketplace, before dedup.
type RawListing struct {
	URL         string
	Title       string
	Description string
	Price       *float64
	Location    string
	ImageURLs   []string
	Marketplace string
	ExternalID  string
}

// Listing is a persisted marketplace listing. URL is canonical and unique —
// it is the dedup key for the whole system.
type Listing struct {
	ID          string
	URL         string
	Title       string
	Description string
	Price       *float64
	Location    string
	ImageURLs   []string
	Marketplace string
	ExternalID  string
	Status      listing.Status
	ScrapedAt   time.Time
}

// MatchReport is the validated output of one oracle scoring call.
type MatchReport struct {
	Score          float64
	Reasoning      string
	Confidence     string // low | medium | high
	KeyIndicators  []string
	Concerns       []string
	Recommendation string // investigate | ignore | high_priority
	ModelUsed      string
}

// Recommendation values stored on an analysis result.
const (
	RecommendationHighPriority = "high_priority"
	RecommendationInvestigate  = "investigate"
	RecommendationIgnore       = "ignore"
)

// AnalysisResult is one scored (listing, profile) pair. The pair is unique:
// re-analysis inserts only if absent.
type AnalysisResult struct {
	ID                 string
	ListingID          string
	ProfileID          string
	MatchScore         float64
	Reasoning          string
	ConfidenceLevel    string
	KeyIndicators      []string
	Concerns           []string
	Recommendation     string
	ModelUsed          string
	AnalysisVersion    string
	NotificationSent   bool
	NotificationSentAt *time.Time
	ReviewedByHuman    bool
	IsFalsePositive    bool
	AnalyzedAt         time.Time
}

// Alert bundles everything a notification channel needs to describe a match
// to the item's owner.
type Alert struct {
	Result  AnalysisResult
	Listing Listing
	Profile SearchProfile
}

// CycleSummary is the transient result of one monitoring cycle. It is
// returned to the caller, retained for the status endpoint, and published on
// the cycle-completed event channel.
type CycleSummary struct {
	CycleID           string        `json:"cycleId"`
	SearchProfiles    int           `json:"searchProfiles"`
	NewListings       int           `json:"newListings"`
	MatchesFound      int           `json:"matchesFound"`
	NotificationsSent int           `json:"notificationsSent"`
	Errors            int           `json:"errors"`
	StartedAt         time.Time     `json:"startedAt"`
	Duration          time.Duration `json:"durationNs"`
}

// ProfileAnalytics aggregates analysis history for one search profile.
type ProfileAnalytics struct {
	ProfileID           string     `json:"profileId"`
	TotalAnalyses       int        `json:"totalAnalyses"`
	AverageScore        float64    `json:"averageScore"`
	HighConfidenceCount int        `json:"highConfidenceCount"` // score ≥ 8
	NotifiedCount       int        `json:"notifiedCount"`
	FalsePositiveCount  int        `json:"falsePositiveCount"`
	LastAnalysisAt      *time.Time `json:"lastAnalysisAt"`
}

// DashboardStats is the service-wide snapshot served on /dashboard.
type DashboardStats struct {
	ActiveProfiles int `json:"activeProfiles"`
	TotalListings  int `json:"totalListings"`
	MatchesFound   int `json:"matchesFound"`
	RecentListings int `json:"recentListings"` // scraped in the last 24h
}
