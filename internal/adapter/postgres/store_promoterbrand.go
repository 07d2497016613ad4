package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
)

const promoterBrandSelect = `
	SELECT pb.id, pb.promoter_id, trim(u.first_name || ' ' || u.last_name), pb.brand_id, b.name,
		pb.created_at, pb.updated_at
	FROM promoter_brands pb
	JOIN users u ON u.id = pb.promoter_id
	JOIN brands b ON b.id = pb.brand_id`

func scanAssignment(row scannable) (promoterbrand.Assignment, error) {
	var a promoterbrand.Assignment
	err := row.Scan(&a.ID, &a.PromoterID, &a.PromoterName, &a.BrandID, &a.BrandName, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *Store) ListPromoterBrands(ctx context.Context, f promoterbrand.Filter) ([]promoterbrand.Assignment, error) {
	var w whereBuilder
	if f.PromoterID != "" {
		w.add("pb.promoter_id = $%d", f.PromoterID)
	}
	if f.BrandID != "" {
		w.add("pb.brand_id = $%d", f.BrandID)
	}
	rows, err := s.pool.Query(ctx, promoterBrandSelect+w.sql()+` ORDER BY u.first_name, u.last_name, b.name`, w.args...)
	if err != nil {
		return nil, wrapErr(err, "list promoter brands")
	}
	defer rows.Close()

	var out []promoterbrand.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promoter brand: %w", err)
		}
		out = append(out, a)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) GetPromoterBrand(ctx context.Context, id string) (*promoterbrand.Assignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx, promoterBrandSelect+` WHERE pb.id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get promoter brand %s", id)
	}
	return &a, nil
}

func (s *Store) CreatePromoterBrand(ctx context.Context, a *promoterbrand.Assignment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO promoter_brands (id, promoter_id, brand_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`, a.ID, a.PromoterID, a.BrandID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create promoter brand")
	}
	return nil
}

func (s *Store) DeletePromoterBrand(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM promoter_brands WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete promoter brand %s", id)
}
