package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/dashboard"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/port/database"
)

// DashboardService builds the weekly progress dashboards.
type DashboardService struct {
	db      database.Store
	cache   *LookupCache
	metrics *otel.Metrics
	now     func() time.Time
}

// NewDashboardService creates a DashboardService. cache may be nil.
func NewDashboardService(db database.Store, cache *LookupCache) *DashboardService {
	return &DashboardService{db: db, cache: cache, now: time.Now}
}

// SetMetrics attaches metric instruments.
func (s *DashboardService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// ResolveRange parses start and end (YYYY-MM-DD). Missing bounds default
// to the current week.
func (s *DashboardService) ResolveRange(start, end string) (dashboard.Range, error) {
	r := dashboard.WeekRange(s.now().UTC())
	if start != "" {
		d, err := visit.ParseDate(start)
		if err != nil {
			return r, domain.Invalid(errors.New("start_date must be YYYY-MM-DD"))
		}
		r.Start = d
	}
	if end != "" {
		d, err := visit.ParseDate(end)
		if err != nil {
			return r, domain.Invalid(errors.New("end_date must be YYYY-MM-DD"))
		}
		r.End = d
	}
	if r.Start.After(r.End) {
		return r, domain.Invalid(errors.New("start_date must not be after end_date"))
	}
	return r, nil
}

// Get returns the dashboard for actor over r. Promoters see their own
// visits and their next pending stores; managers and analysts see everyone
// with per-promoter and per-store breakdowns.
func (s *DashboardService) Get(ctx context.Context, actor *user.User, r dashboard.Range) (*dashboard.Data, error) {
	scope := "all"
	promoterID := ""
	if !privileged(actor) {
		promoterID = actor.ID
		scope = promoterID
	}
	key := KeyDashboard + scope + ":" + r.Start.Format(visit.DateLayout) + ":" + r.End.Format(visit.DateLayout)
	return cached(ctx, s.cache, key, func(ctx context.Context) (*dashboard.Data, error) {
		return s.build(ctx, promoterID, r)
	})
}

func (s *DashboardService) build(ctx context.Context, promoterID string, r dashboard.Range) (*dashboard.Data, error) {
	ctx, span := otel.StartDashboardSpan(ctx, promoterID, r.Start, r.End)
	defer span.End()
	began := time.Now()

	var (
		totals    dashboard.Totals
		brands    []dashboard.Progress
		promoters []dashboard.Progress
		stores    []dashboard.Progress
		pending   []visit.Visit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.db.VisitTotals(gctx, promoterID, r)
		return err
	})
	g.Go(func() (err error) {
		brands, err = s.db.BrandProgress(gctx, promoterID, r)
		return err
	})
	if promoterID == "" {
		g.Go(func() (err error) {
			promoters, err = s.db.PromoterProgress(gctx, r)
			return err
		})
		g.Go(func() (err error) {
			stores, err = s.db.StoreProgress(gctx, r)
			return err
		})
	} else {
		g.Go(func() (err error) {
			pending, err = s.db.NextPendingVisits(gctx, promoterID, r, dashboard.PendingStoresLimit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i := range pending {
		pending[i].Label()
	}

	scope := "all"
	if promoterID != "" {
		scope = "promoter"
	}
	s.metrics.RecordDashboard(ctx, scope, time.Since(began).Seconds())
	return dashboard.New(r, totals, brands, promoters, stores, pending), nil
}
