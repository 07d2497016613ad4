package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/port/database/databasetest"
)

func newDashboardFixture(t *testing.T) (*DashboardService, *databasetest.Store) {
	t.Helper()
	db := seededStore()
	db.Visits = []visit.Visit{
		{ID: "v1", PromoterID: "p1", StoreID: "s1", BrandID: "b1", VisitDate: "2024-03-04", Status: visit.StatusCompleted},
		{ID: "v2", PromoterID: "p1", StoreID: "s1", BrandID: "b1", VisitDate: "2024-03-06", Status: visit.StatusPending},
		{ID: "v3", PromoterID: "p2", StoreID: "s1", BrandID: "b1", VisitDate: "2024-03-05", Status: visit.StatusPending},
		{ID: "v4", PromoterID: "p1", StoreID: "s1", BrandID: "b1", VisitDate: "2024-03-20", Status: visit.StatusPending},
	}
	svc := NewDashboardService(db, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC) }
	return svc, db
}

func TestDashboardService_ResolveRange(t *testing.T) {
	svc, _ := newDashboardFixture(t)

	r, err := svc.ResolveRange("", "")
	if err != nil {
		t.Fatal(err)
	}
	if r.Start.Format(visit.DateLayout) != "2024-03-04" || r.End.Format(visit.DateLayout) != "2024-03-10" {
		t.Errorf("default range = %v..%v, want current week", r.Start, r.End)
	}

	r, err = svc.ResolveRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatal(err)
	}
	if r.End.Format(visit.DateLayout) != "2024-03-31" {
		t.Errorf("end = %v", r.End)
	}

	for _, tc := range [][2]string{{"bad", ""}, {"", "2024/03/01"}, {"2024-03-10", "2024-03-01"}} {
		if _, err := svc.ResolveRange(tc[0], tc[1]); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ResolveRange(%q, %q): expected validation error, got %v", tc[0], tc[1], err)
		}
	}
}

func TestDashboardService_Promoter(t *testing.T) {
	svc, _ := newDashboardFixture(t)
	ctx := context.Background()
	r, _ := svc.ResolveRange("", "")

	d, err := svc.Get(ctx, promoter1, r)
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalVisits != 2 || d.TotalCompleted != 1 || d.TotalPending != 1 {
		t.Errorf("totals = %d/%d/%d, want 2/1/1", d.TotalVisits, d.TotalCompleted, d.TotalPending)
	}
	if d.CompletionRate != 0.5 {
		t.Errorf("completion rate = %v", d.CompletionRate)
	}
	if len(d.PendingStores) != 1 || d.PendingStores[0].ID != "v2" || d.PendingStores[0].StatusLabel != "pending" {
		t.Errorf("pending stores = %+v", d.PendingStores)
	}
	if len(d.PromotersProgress) != 0 || len(d.StoresProgress) != 0 {
		t.Error("promoters get no per-promoter or per-store breakdown")
	}
}

func TestDashboardService_Manager(t *testing.T) {
	svc, _ := newDashboardFixture(t)
	ctx := context.Background()
	r, _ := svc.ResolveRange("", "")

	d, err := svc.Get(ctx, manager, r)
	if err != nil {
		t.Fatal(err)
	}
	if d.TotalVisits != 3 {
		t.Errorf("total visits = %d, want 3", d.TotalVisits)
	}
	if len(d.PromotersProgress) != 2 {
		t.Errorf("promoters progress = %+v", d.PromotersProgress)
	}
	if len(d.StoresProgress) != 1 || d.StoresProgress[0].TotalVisits != 3 {
		t.Errorf("stores progress = %+v", d.StoresProgress)
	}
	if len(d.PendingStores) != 0 {
		t.Error("pending stores are a promoter view")
	}
}

func TestDashboardService_Cached(t *testing.T) {
	svc, db := newDashboardFixture(t)
	mem := newMemTiered()
	svc.cache = NewLookupCache(mem, nil, "a", testCacheConfig())
	ctx := context.Background()
	r, _ := svc.ResolveRange("", "")

	for range 2 {
		if _, err := svc.Get(ctx, promoter1, r); err != nil {
			t.Fatal(err)
		}
	}
	if db.TotalsCalls != 1 {
		t.Errorf("store queried %d times, want 1", db.TotalsCalls)
	}
	if _, ok := mem.shared[KeyDashboard+"p1:2024-03-04:2024-03-10"]; !ok {
		t.Errorf("expected promoter-scoped key, have %v", mem.shared)
	}

	// A different actor scope does not reuse the promoter's entry.
	if _, err := svc.Get(ctx, analyst, r); err != nil {
		t.Fatal(err)
	}
	if db.TotalsCalls != 2 {
		t.Errorf("store queried %d times, want 2", db.TotalsCalls)
	}
}
