package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retrievr/monitor-service/internal/listing"
	"retrievr/monitor-service/internal/model"
)

// AnalysisStore persists scored (listing, profile) pairs and tracks
// notification delivery state.
type AnalysisStore struct {
	pool *pgxpool.Pool
}

// NewAnalysisStore returns an AnalysisStore backed by pool.
func NewAnalysisStore(pool *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
}

// Insert stores one analysis result, keyed by (listing_id, profile_id).
// Re-analysis is insert-if-absent: the returned bool is false when the pair
// was already scored, and the stored row is left untouched.
func (s *AnalysisStore) Insert(ctx context.Context, res *model.AnalysisResult) (bool, error) {
	if res.KeyIndicators == nil {
		res.KeyIndicators = []string{}
	}
	if res.Concerns == nil {
		res.Concerns = []string{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO analysis_results
		   (listing_id, profile_id, match_score, reasoning, confidence_level,
		    key_indicators, concerns, recommendation, model_used, analysis_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (listing_id, profile_id) DO NOTHING
		 RETURNING id, analyzed_at`,
		res.ListingID, res.ProfileID, res.MatchScore, res.Reasoning,
		res.ConfidenceLevel, res.KeyIndicators, res.Concerns,
		res.Recommendation, res.ModelUsed, res.AnalysisVersion,
	).Scan(&res.ID, &res.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert analysis result: %w", err)
	}
	return true, nil
}

// MarkNotified flips notification_sent false→true with a compare-and-set.
// Replaying on an already-sent result is a no-op, keeping the transition
// at-most-once.
func (s *AnalysisStore) MarkNotified(ctx context.Context, resultID string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results
		 SET notification_sent = true, notification_sent_at = $2
		 WHERE id = $1 AND notification_sent = false`,
		resultID, at,
	)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ListPending returns qualifying results that still need a notification:
// recommendation investigate or high_priority, not yet sent, profile still
// active. Oldest first so earlier failures are retried before new matches.
func (s *AnalysisStore) ListPending(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.listing_id, r.profile_id, r.match_score, r.reasoning,
		        r.confidence_level, r.key_indicators, r.concerns,
		        r.recommendation, r.model_used, r.analysis_version,
		        r.notification_sent, r.analyzed_at,
		        l.url, l.title, l.price, l.location, l.marketplace, l.status,
		        p.name, p.owner_email, p.owner_phone
		 FROM analysis_results r
		 JOIN listings l        ON l.id = r.listing_id
		 JOIN search_profiles p ON p.id = r.profile_id
		 WHERE r.notification_sent = false
		   AND r.recommendation IN ('investigate', 'high_priority')
		   AND p.active = true
		 ORDER BY r.analyzed_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending notifications: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var (
			a  model.Alert
			st string
		)
		if err := rows.Scan(
			&a.Result.ID, &a.Result.ListingID, &a.Result.ProfileID,
			&a.Result.MatchScore, &a.Result.Reasoning, &a.Result.ConfidenceLevel,
			&a.Result.KeyIndicators, &a.Result.Concerns, &a.Result.Recommendation,
			&a.Result.ModelUsed, &a.Result.AnalysisVersion,
			&a.Result.NotificationSent, &a.Result.AnalyzedAt,
			&a.Listing.URL, &a.Listing.Title, &a.Listing.Price,
			&a.Listing.Location, &a.Listing.Marketplace, &st,
			&a.Profile.Name, &a.Profile.OwnerEmail, &a.Profile.OwnerPhone,
		); err != nil {
			return nil, fmt.Errorf("scan pending notification: %w", err)
		}
		a.Listing.ID = a.Result.ListingID
		a.Listing.Status = listing.Status(st)
		a.Profile.ID = a.Result.ProfileID
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ProfileAnalytics aggregates the analysis history for one profile.
// Returns ErrNotFound for an unknown profile id.
func (s *AnalysisStore) ProfileAnalytics(ctx context.Context, profileID string) (model.ProfileAnalytics, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM search_profiles WHERE id = $1)`, profileID,
	).Scan(&exists)
	if err != nil {
		return model.ProfileAnalytics{}, fmt.Errorf("check profile exists: %w", err)
	}
	if !exists {
		return model.ProfileAnalytics{}, ErrNotFound
	}

	stats := model.ProfileAnalytics{ProfileID: profileID}
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COALESCE(AVG(match_score), 0),
		        COUNT(*) FILTER (WHERE match_score >= 8.0),
		        COUNT(*) FILTER (WHERE notification_sent),
		        COUNT(*) FILTER (WHERE is_false_positive),
		        MAX(analyzed_at)
		 FROM analysis_results
		 WHERE profile_id = $1`,
		profileID,
	).Scan(
		&stats.TotalAnalyses, &stats.AverageScore, &stats.HighConfidenceCount,
		&stats.NotifiedCount, &stats.FalsePositiveCount, &stats.LastAnalysisAt,
	)
	if err != nil {
		return model.ProfileAnalytics{}, fmt.Errorf("profile analytics: %w", err)
	}
	return stats, nil
}

// DashboardStats returns the service-wide counters for the dashboard.
func (s *AnalysisStore) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM search_profiles WHERE active = true),
		   (SELECT COUNT(*) FROM listings),
		   (SELECT COUNT(*) FROM listings WHERE status = 'match_found'),
		   (SELECT COUNT(*) FROM listings WHERE scraped_at > NOW() - INTERVAL '24 hours')`,
	).Scan(
		&stats.ActiveProfiles, &stats.TotalListings,
		&stats.MatchesFound, &stats.RecentListings,
	)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
