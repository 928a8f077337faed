package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retrievr/monitor-service/internal/listing"
	"retrievr/monitor-service/internal/model"
)

// ListingStore is the dedup boundary for scraped listings. The UNIQUE
// constraint on url guarantees at most one row per canonical URL no matter
// how many concurrent scrape tasks discover it.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore returns a ListingStore backed by pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// ExistingURLs returns the set of all known canonical URLs. The orchestrator
// prefetches it once per cycle so candidates can be filtered before any
// insert attempt.
func (s *ListingStore) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("query listing urls: %w", err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan listing url: %w", err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

// Exists reports whether a listing with the given canonical URL is known.
func (s *ListingStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE url = $1)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check listing exists: %w", err)
	}
	return exists, nil
}

// Admit inserts a candidate at status new, deduplicating on url. The
// returned bool is false when the URL was already known — an expected
// outcome under concurrent discovery, never an error. The caller must pass
// a canonical URL.
func (s *ListingStore) Admit(ctx context.Context, raw model.RawListing) (model.Listing, bool, error) {
	l := model.Listing{
		URL:         raw.URL,
		Title:       raw.Title,
		Description: raw.Description,
		Price:       raw.Price,
		Location:    raw.Location,
		ImageURLs:   raw.ImageURLs,
		Marketplace: raw.Marketplace,
		ExternalID:  raw.ExternalID,
		Status:      listing.StatusNew,
	}
	if l.ImageURLs == nil {
		l.ImageURLs = []string{}
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO listings (url, title, description, price, location,
		                       image_urls, marketplace, external_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'new')
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id, scraped_at`,
		l.URL, l.Title, l.Description, l.Price, l.Location,
		l.ImageURLs, l.Marketplace, l.ExternalID,
	).Scan(&l.ID, &l.ScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race or seen in an earlier cycle: already known.
		return model.Listing{}, false, nil
	}
	if err != nil {
		return model.Listing{}, false, fmt.Errorf("insert listing: %w", err)
	}

	return l, true, nil
}

// ListNew returns every listing still at status new, oldest first. This is
// the matcher's work queue: fresh admissions plus listings whose scoring
// failed in earlier cycles.
func (s *ListingStore) ListNew(ctx context.Context) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, title, description, price, location, image_urls,
		        marketplace, external_id, status, scraped_at
		 FROM listings
		 WHERE status = 'new'
		 ORDER BY scraped_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query new listings: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// UpdateStatus advances a listing's status. The transition is validated
// against the state machine, then applied with a compare-and-set on the
// expected current status so concurrent writers cannot regress a listing.
// Returns ErrStatusConflict when no row matched.
func (s *ListingStore) UpdateStatus(ctx context.Context, id string, from, to listing.Status) error {
	if !listing.IsTransitionAllowed(from, to) {
		return fmt.Errorf("transition %s → %s is not allowed", from, to)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func scanListing(rows pgx.Rows) (model.Listing, error) {
	var (
		l  model.Listing
		st string
	)
	if err := rows.Scan(
		&l.ID, &l.URL, &l.Title, &l.Description, &l.Price, &l.Location,
		&l.ImageURLs, &l.Marketplace, &l.ExternalID, &st, &l.ScrapedAt,
	); err != nil {
		return model.Listing{}, fmt.Errorf("scan listing: %w", err)
	}
	l.Status = listing.Status(st)
	return l, nil
}
