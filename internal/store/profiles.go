package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"retrievr/monitor-service/internal/model"
)

// ProfileStore reads search profiles. Profiles are owned by the registration
// app; the monitor never writes them.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore returns a ProfileStore backed by pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// ListActive fetches all active = true search profiles.
func (s *ProfileStore) ListActive(ctx context.Context) ([]model.SearchProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, item_make, item_model, color, size, description,
		        unique_features, location, price_min, price_max, search_terms,
		        owner_email, owner_phone, active, created_at, updated_at
		 FROM search_profiles
		 WHERE active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query search_profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.SearchProfile
	for rows.Next() {
		var p model.SearchProfile
		if err := rows.Scan(
			&p.ID, &p.Name, &p.ItemMake, &p.ItemModel, &p.Color, &p.Size,
			&p.Description, &p.UniqueFeatures, &p.Location,
			&p.PriceMin, &p.PriceMax, &p.SearchTerms,
			&p.OwnerEmail, &p.OwnerPhone, &p.Active,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan search_profile: %w", err)
		}
		profiles = append(profiles, p)
	}

	return profiles, rows.Err()
}
