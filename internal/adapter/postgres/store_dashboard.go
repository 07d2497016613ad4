package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sispromo/sispromo/internal/domain/dashboard"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
)

// progressColumns counts the joined visits per group. Visits are joined
// with the range (and optional promoter) in the ON clause so groups without
// visits still appear with zero counts.
const progressColumns = `
	count(v.id) FILTER (WHERE v.status = 3),
	count(v.id) FILTER (WHERE v.status = 1),
	count(v.id)`

func collectProgress(rows pgx.Rows, withNumber bool) ([]dashboard.Progress, error) {
	defer rows.Close()

	var out []dashboard.Progress
	for rows.Next() {
		var p dashboard.Progress
		dest := []any{&p.ID, &p.Name}
		if withNumber {
			dest = append(dest, &p.Number)
		}
		dest = append(dest, &p.VisitsDone, &p.VisitsPending, &p.TotalVisits)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) VisitTotals(ctx context.Context, promoterID string, r dashboard.Range) (dashboard.Totals, error) {
	var t dashboard.Totals
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE status = 3), count(*) FILTER (WHERE status = 1)
		FROM visits
		WHERE visit_date BETWEEN $1 AND $2 AND ($3 = '' OR promoter_id::text = $3)`,
		r.Start, r.End, promoterID).Scan(&t.Total, &t.Completed, &t.Pending)
	if err != nil {
		return t, wrapErr(err, "visit totals")
	}
	return t, nil
}

func (s *Store) BrandProgress(ctx context.Context, promoterID string, r dashboard.Range) ([]dashboard.Progress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT b.id, b.name,`+progressColumns+`
		FROM brands b
		LEFT JOIN visits v ON v.brand_id = b.id
			AND v.visit_date BETWEEN $1 AND $2
			AND ($3 = '' OR v.promoter_id::text = $3)
		GROUP BY b.id, b.name
		ORDER BY b.name`, r.Start, r.End, promoterID)
	if err != nil {
		return nil, wrapErr(err, "brand progress")
	}
	return collectProgress(rows, false)
}

func (s *Store) PromoterProgress(ctx context.Context, r dashboard.Range) ([]dashboard.Progress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, trim(u.first_name || ' ' || u.last_name),`+progressColumns+`
		FROM users u
		LEFT JOIN visits v ON v.promoter_id = u.id AND v.visit_date BETWEEN $1 AND $2
		WHERE u.role = $3
		GROUP BY u.id, u.first_name, u.last_name
		ORDER BY u.first_name, u.last_name`, r.Start, r.End, string(user.RolePromoter))
	if err != nil {
		return nil, wrapErr(err, "promoter progress")
	}
	return collectProgress(rows, false)
}

func (s *Store) StoreProgress(ctx context.Context, r dashboard.Range) ([]dashboard.Progress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT st.id, st.name, st.number,`+progressColumns+`
		FROM stores st
		LEFT JOIN visits v ON v.store_id = st.id AND v.visit_date BETWEEN $1 AND $2
		GROUP BY st.id, st.name, st.number
		ORDER BY st.name, st.number NULLS FIRST`, r.Start, r.End)
	if err != nil {
		return nil, wrapErr(err, "store progress")
	}
	return collectProgress(rows, true)
}

func (s *Store) NextPendingVisits(ctx context.Context, promoterID string, r dashboard.Range, limit int) ([]visit.Visit, error) {
	rows, err := s.pool.Query(ctx, visitSelect+visitFrom+`
		WHERE v.status = $1 AND v.visit_date BETWEEN $2 AND $3 AND ($4 = '' OR v.promoter_id::text = $4)
		ORDER BY v.visit_date, s.name
		LIMIT $5`, int(visit.StatusPending), r.Start, r.End, promoterID, limit)
	if err != nil {
		return nil, wrapErr(err, "next pending visits")
	}
	defer rows.Close()

	var out []visit.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, wrapErr(err, "scan pending visit")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "next pending visits")
	}
	return orEmpty(out), nil
}
