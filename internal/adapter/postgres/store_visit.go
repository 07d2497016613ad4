package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/visit"
)

const visitSelect = `
	SELECT v.id, v.promoter_id, trim(u.first_name || ' ' || u.last_name), v.store_id, s.name, s.number,
		v.brand_id, b.name, v.visit_date, v.status, v.created_at, v.updated_at`

const visitFrom = `
	FROM visits v
	JOIN users u ON u.id = v.promoter_id
	JOIN stores s ON s.id = v.store_id
	JOIN brands b ON b.id = v.brand_id`

func scanVisit(row scannable, extra ...any) (visit.Visit, error) {
	var (
		v    visit.Visit
		date time.Time
	)
	dest := []any{&v.ID, &v.PromoterID, &v.PromoterName, &v.StoreID, &v.StoreName, &v.StoreNumber,
		&v.BrandID, &v.BrandName, &date, &v.Status, &v.CreatedAt, &v.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return v, err
	}
	v.VisitDate = formatDate(date)
	v.Label()
	return v, nil
}

// visitWhere translates a filter into SQL conditions.
func visitWhere(f visit.Filter) whereBuilder {
	var w whereBuilder
	if f.PromoterID != "" {
		w.add("v.promoter_id = $%d", f.PromoterID)
	}
	if f.StoreID != "" {
		w.add("v.store_id = $%d", f.StoreID)
	}
	if f.BrandID != "" {
		w.add("v.brand_id = $%d", f.BrandID)
	}
	if f.Status != 0 {
		w.add("v.status = $%d", int(f.Status))
	}
	if f.StartDate != nil {
		w.add("v.visit_date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("v.visit_date <= $%d", *f.EndDate)
	}
	return w
}

func pageClause(w *whereBuilder, f visit.Filter) string {
	var out string
	if f.Limit > 0 {
		w.args = append(w.args, f.Limit)
		out += fmt.Sprintf(" LIMIT $%d", len(w.args))
	}
	if f.Offset > 0 {
		w.args = append(w.args, f.Offset)
		out += fmt.Sprintf(" OFFSET $%d", len(w.args))
	}
	return out
}

func (s *Store) ListVisits(ctx context.Context, f visit.Filter) ([]visit.Visit, error) {
	w := visitWhere(f)
	where := w.sql()
	page := pageClause(&w, f)
	rows, err := s.pool.Query(ctx,
		visitSelect+visitFrom+where+` ORDER BY v.visit_date DESC, v.created_at DESC`+page, w.args...)
	if err != nil {
		return nil, wrapErr(err, "list visits")
	}
	defer rows.Close()

	var out []visit.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, wrapErr(err, "scan visit")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list visits")
	}
	return orEmpty(out), nil
}

func (s *Store) GetVisit(ctx context.Context, id string) (*visit.Visit, error) {
	v, err := scanVisit(s.pool.QueryRow(ctx, visitSelect+visitFrom+` WHERE v.id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get visit %s", id)
	}
	return &v, nil
}

func (s *Store) CreateVisit(ctx context.Context, v *visit.Visit) error {
	date, err := visit.ParseDate(v.VisitDate)
	if err != nil {
		return fmt.Errorf("create visit: %w", domain.Invalid(err))
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err = s.pool.Exec(ctx, `
		INSERT INTO visits (id, promoter_id, store_id, brand_id, visit_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.PromoterID, v.StoreID, v.BrandID, date, int(v.Status), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create visit")
	}
	v.Label()
	return nil
}

func (s *Store) UpdateVisit(ctx context.Context, v *visit.Visit) error {
	date, err := visit.ParseDate(v.VisitDate)
	if err != nil {
		return fmt.Errorf("update visit: %w", domain.Invalid(err))
	}
	v.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE visits SET promoter_id = $2, store_id = $3, brand_id = $4, visit_date = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		v.ID, v.PromoterID, v.StoreID, v.BrandID, date, int(v.Status), v.UpdatedAt)
	if err := execExpectOne(tag, err, "update visit %s", v.ID); err != nil {
		return err
	}
	v.Label()
	return nil
}

// UpdateVisitStatus is a compare-and-set on the status column.
func (s *Store) UpdateVisitStatus(ctx context.Context, id string, from, to visit.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE visits SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, int(from), int(to), time.Now().UTC())
	if err != nil {
		return wrapErr(err, "update visit status %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetVisit(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("update visit status %s: %w: status changed concurrently", id, domain.ErrConflict)
	}
	return nil
}

func (s *Store) DeleteVisit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete visit %s", id)
}

func (s *Store) VisitReport(ctx context.Context, f visit.Filter) ([]visit.ReportRow, error) {
	w := visitWhere(f)
	rows, err := s.pool.Query(ctx, visitSelect+`, COALESCE(vp.price, 0)::float8`+visitFrom+`
	LEFT JOIN visit_prices vp ON vp.store_id = v.store_id AND vp.brand_id = v.brand_id`+
		w.sql()+` ORDER BY v.visit_date, u.first_name, s.name`, w.args...)
	if err != nil {
		return nil, wrapErr(err, "visit report")
	}
	defer rows.Close()

	var out []visit.ReportRow
	for rows.Next() {
		var price float64
		v, err := scanVisit(rows, &price)
		if err != nil {
			return nil, wrapErr(err, "scan report row")
		}
		out = append(out, visit.ReportRow{Visit: v, Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "visit report")
	}
	return orEmpty(out), nil
}
