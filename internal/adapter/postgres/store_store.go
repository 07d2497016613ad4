package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain/store"
)

const storeColumns = `id, name, number, city, district, COALESCE(state, ''), cnpj, created_at, updated_at`

func scanStore(row scannable) (store.Store, error) {
	var st store.Store
	err := row.Scan(&st.ID, &st.Name, &st.Number, &st.City, &st.District, &st.State, &st.CNPJ, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func (s *Store) ListStores(ctx context.Context) ([]store.Store, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY name, number NULLS FIRST`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var stores []store.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, st)
	}
	return orEmpty(stores), rows.Err()
}

func (s *Store) GetStore(ctx context.Context, id string) (*store.Store, error) {
	st, err := scanStore(s.pool.QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get store %s", id)
	}
	return &st, nil
}

func (s *Store) CreateStore(ctx context.Context, st *store.Store) error {
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stores (id, name, number, city, district, state, cnpj, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		st.ID, st.Name, st.Number, st.City, st.District, nullIfEmpty(st.State), st.CNPJ, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return wrapErr(err, "create store")
	}
	return nil
}

func (s *Store) UpdateStore(ctx context.Context, st *store.Store) error {
	st.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE stores SET name = $2, number = $3, city = $4, district = $5, state = $6, cnpj = $7, updated_at = $8
		WHERE id = $1`,
		st.ID, st.Name, st.Number, st.City, st.District, nullIfEmpty(st.State), st.CNPJ, st.UpdatedAt,
	)
	return execExpectOne(tag, err, "update store %s", st.ID)
}

func (s *Store) DeleteStore(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete store %s", id)
}
