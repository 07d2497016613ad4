package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain/visitprice"
)

const visitPriceSelect = `
	SELECT vp.id, vp.store_id, s.name, vp.brand_id, b.name, vp.price::float8, vp.created_at, vp.updated_at
	FROM visit_prices vp
	JOIN stores s ON s.id = vp.store_id
	JOIN brands b ON b.id = vp.brand_id`

func scanVisitPrice(row scannable) (visitprice.VisitPrice, error) {
	var vp visitprice.VisitPrice
	err := row.Scan(&vp.ID, &vp.StoreID, &vp.StoreName, &vp.BrandID, &vp.BrandName, &vp.Price, &vp.CreatedAt, &vp.UpdatedAt)
	return vp, err
}

func (s *Store) ListVisitPrices(ctx context.Context) ([]visitprice.VisitPrice, error) {
	rows, err := s.pool.Query(ctx, visitPriceSelect+` ORDER BY s.name, b.name`)
	if err != nil {
		return nil, fmt.Errorf("list visit prices: %w", err)
	}
	defer rows.Close()

	var out []visitprice.VisitPrice
	for rows.Next() {
		vp, err := scanVisitPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit price: %w", err)
		}
		out = append(out, vp)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) GetVisitPrice(ctx context.Context, id string) (*visitprice.VisitPrice, error) {
	vp, err := scanVisitPrice(s.pool.QueryRow(ctx, visitPriceSelect+` WHERE vp.id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get visit price %s", id)
	}
	return &vp, nil
}

func (s *Store) CreateVisitPrice(ctx context.Context, vp *visitprice.VisitPrice) error {
	now := time.Now().UTC()
	vp.CreatedAt = now
	vp.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO visit_prices (id, store_id, brand_id, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`, vp.ID, vp.StoreID, vp.BrandID, vp.Price, vp.CreatedAt, vp.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create visit price")
	}
	return nil
}

func (s *Store) UpdateVisitPrice(ctx context.Context, id string, price float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE visit_prices SET price = $2, updated_at = $3 WHERE id = $1`, id, price, time.Now().UTC())
	return execExpectOne(tag, err, "update visit price %s", id)
}

func (s *Store) DeleteVisitPrice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM visit_prices WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete visit price %s", id)
}
