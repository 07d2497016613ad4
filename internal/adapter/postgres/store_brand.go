package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sispromo/sispromo/internal/domain/brand"
)

// brandLinksQuery returns one row per brand/store link; brands without
// links appear once with NULL store columns.
const brandLinksQuery = `
	SELECT b.id, b.name, b.created_at, b.updated_at, bs.store_id, s.name, bs.visit_frequency
	FROM brands b
	LEFT JOIN brand_stores bs ON bs.brand_id = b.id
	LEFT JOIN stores s ON s.id = bs.store_id`

func collectBrands(rows pgx.Rows) ([]brand.Brand, error) {
	defer rows.Close()

	var brands []brand.Brand
	index := make(map[string]int)
	for rows.Next() {
		var (
			b         brand.Brand
			storeID   *string
			storeName *string
			freq      *int
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt, &storeID, &storeName, &freq); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		i, ok := index[b.ID]
		if !ok {
			b.Stores = []brand.StoreLink{}
			brands = append(brands, b)
			i = len(brands) - 1
			index[b.ID] = i
		}
		if storeID != nil {
			link := brand.StoreLink{StoreID: *storeID}
			if storeName != nil {
				link.StoreName = *storeName
			}
			if freq != nil {
				link.VisitFrequency = *freq
			}
			brands[i].Stores = append(brands[i].Stores, link)
		}
	}
	return brands, rows.Err()
}

func (s *Store) ListBrands(ctx context.Context) ([]brand.Brand, error) {
	rows, err := s.pool.Query(ctx, brandLinksQuery+` ORDER BY b.name, s.name`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	brands, err := collectBrands(rows)
	if err != nil {
		return nil, err
	}
	return orEmpty(brands), nil
}

func (s *Store) GetBrand(ctx context.Context, id string) (*brand.Brand, error) {
	rows, err := s.pool.Query(ctx, brandLinksQuery+` WHERE b.id = $1 ORDER BY s.name`, id)
	if err != nil {
		return nil, wrapErr(err, "get brand %s", id)
	}
	brands, err := collectBrands(rows)
	if err != nil {
		return nil, wrapErr(err, "get brand %s", id)
	}
	if len(brands) == 0 {
		return nil, wrapErr(pgx.ErrNoRows, "get brand %s", id)
	}
	return &brands[0], nil
}

// GetOrCreateBrand inserts the brand unless the name exists. The no-op
// DO UPDATE makes RETURNING yield the existing row; xmax = 0 only for a
// freshly inserted tuple.
func (s *Store) GetOrCreateBrand(ctx context.Context, id, name string) (*brand.Brand, bool, error) {
	now := time.Now().UTC()
	var (
		b       brand.Brand
		created bool
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO brands (id, name, created_at, updated_at) VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at, updated_at, (xmax = 0)`, id, name, now).
		Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt, &created)
	if err != nil {
		return nil, false, wrapErr(err, "get or create brand %q", name)
	}
	b.Stores = []brand.StoreLink{}
	return &b, created, nil
}

func (s *Store) RenameBrand(ctx context.Context, id, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE brands SET name = $2, updated_at = $3 WHERE id = $1`, id, name, time.Now().UTC())
	return execExpectOne(tag, err, "rename brand %s", id)
}

func (s *Store) DeleteBrand(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM brands WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete brand %s", id)
}

func (s *Store) UpsertBrandStore(ctx context.Context, brandID, storeID string, visitFrequency int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO brand_stores (brand_id, store_id, visit_frequency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (brand_id, store_id) DO UPDATE
			SET visit_frequency = EXCLUDED.visit_frequency, updated_at = EXCLUDED.updated_at`,
		brandID, storeID, visitFrequency, time.Now().UTC())
	if err != nil {
		return wrapErr(err, "upsert brand store %s/%s", brandID, storeID)
	}
	return nil
}

func (s *Store) DeleteBrandStore(ctx context.Context, brandID, storeID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM brand_stores WHERE brand_id = $1 AND store_id = $2`, brandID, storeID)
	return execExpectOne(tag, err, "delete brand store %s/%s", brandID, storeID)
}
