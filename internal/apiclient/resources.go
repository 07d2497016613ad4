package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/domain/dashboard"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
	"github.com/sispromo/sispromo/internal/domain/state"
	"github.com/sispromo/sispromo/internal/domain/store"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/domain/visitprice"
)

// Typed wrappers around Get/Post/Patch/Delete. Every list read accepts
// force to bypass a fresh cached copy.

func (c *Client) Me(ctx context.Context) (*user.User, error) {
	var u user.User
	if _, err := c.Get(ctx, "/users/me", nil, &u, true); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) ChangePassword(ctx context.Context, req user.ChangePasswordRequest) error {
	return c.Post(ctx, "/auth/change-password", req, nil)
}

// --- Stores ---

func (c *Client) ListStores(ctx context.Context, force bool) ([]store.Store, Meta, error) {
	var out []store.Store
	m, err := c.Get(ctx, "/stores", nil, &out, force)
	return out, m, err
}

func (c *Client) GetStore(ctx context.Context, id string) (*store.Store, Meta, error) {
	var out store.Store
	m, err := c.Get(ctx, "/stores/"+url.PathEscape(id), nil, &out, false)
	if err != nil {
		return nil, m, err
	}
	return &out, m, nil
}

func (c *Client) CreateStore(ctx context.Context, req store.CreateRequest) (*store.Store, error) {
	var out store.Store
	if err := c.Post(ctx, "/stores", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStore(ctx context.Context, id string, req store.UpdateRequest) (*store.Store, error) {
	var out store.Store
	if err := c.Patch(ctx, "/stores/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteStore(ctx context.Context, id string) error {
	return c.Delete(ctx, "/stores/"+url.PathEscape(id))
}

// --- Brands ---

// ListBrands returns one row per brand/store pair.
func (c *Client) ListBrands(ctx context.Context, force bool) ([]brand.Row, Meta, error) {
	var out []brand.Row
	m, err := c.Get(ctx, "/brands", nil, &out, force)
	return out, m, err
}

func (c *Client) CreateBrand(ctx context.Context, req brand.CreateRequest) (*brand.Brand, error) {
	var out brand.Brand
	if err := c.Post(ctx, "/brands", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBrand(ctx context.Context, id string, req brand.UpdateRequest) (*brand.Brand, error) {
	var out brand.Brand
	if err := c.Patch(ctx, "/brands/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteBrand(ctx context.Context, id string) error {
	return c.Delete(ctx, "/brands/"+url.PathEscape(id))
}

// RemoveBrandStore unlinks a store from a brand.
func (c *Client) RemoveBrandStore(ctx context.Context, brandID, storeID string) error {
	return c.Delete(ctx, "/brands/"+url.PathEscape(brandID)+"/stores/"+url.PathEscape(storeID))
}

// --- Promoters ---

func (c *Client) ListPromoters(ctx context.Context, force bool) ([]user.User, Meta, error) {
	var out []user.User
	m, err := c.Get(ctx, "/promoters", nil, &out, force)
	return out, m, err
}

func (c *Client) CreatePromoter(ctx context.Context, req user.CreateRequest) (*user.User, error) {
	var out user.User
	if err := c.Post(ctx, "/promoters", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePromoter(ctx context.Context, id string) error {
	return c.Delete(ctx, "/promoters/"+url.PathEscape(id))
}

// --- Promoter brands ---

func (c *Client) ListPromoterBrands(ctx context.Context, f promoterbrand.Filter, force bool) ([]promoterbrand.Assignment, Meta, error) {
	q := url.Values{}
	setIf(q, "promoter_id", f.PromoterID)
	setIf(q, "brand_id", f.BrandID)
	var out []promoterbrand.Assignment
	m, err := c.Get(ctx, "/promoter-brands", q, &out, force)
	return out, m, err
}

func (c *Client) AssignBrand(ctx context.Context, req promoterbrand.CreateRequest) (*promoterbrand.Assignment, error) {
	var out promoterbrand.Assignment
	if err := c.Post(ctx, "/promoter-brands", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnassignBrand(ctx context.Context, id string) error {
	return c.Delete(ctx, "/promoter-brands/"+url.PathEscape(id))
}

// --- Visit prices ---

func (c *Client) ListVisitPrices(ctx context.Context, force bool) ([]visitprice.VisitPrice, Meta, error) {
	var out []visitprice.VisitPrice
	m, err := c.Get(ctx, "/visit-prices", nil, &out, force)
	return out, m, err
}

func (c *Client) CreateVisitPrice(ctx context.Context, req visitprice.CreateRequest) (*visitprice.VisitPrice, error) {
	var out visitprice.VisitPrice
	if err := c.Post(ctx, "/visit-prices", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVisitPrice(ctx context.Context, id string) error {
	return c.Delete(ctx, "/visit-prices/"+url.PathEscape(id))
}

// --- Visits ---

// VisitParams encodes f as query parameters understood by the visit endpoints.
func VisitParams(f visit.Filter) url.Values {
	q := url.Values{}
	setIf(q, "promoter_id", f.PromoterID)
	setIf(q, "store_id", f.StoreID)
	setIf(q, "brand_id", f.BrandID)
	if f.Status != 0 {
		q.Set("status", strconv.Itoa(int(f.Status)))
	}
	if f.StartDate != nil {
		q.Set("start_date", f.StartDate.Format(visit.DateLayout))
	}
	if f.EndDate != nil {
		q.Set("end_date", f.EndDate.Format(visit.DateLayout))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

func (c *Client) ListVisits(ctx context.Context, f visit.Filter, force bool) ([]visit.Visit, Meta, error) {
	var out []visit.Visit
	m, err := c.Get(ctx, "/visits", VisitParams(f), &out, force)
	return out, m, err
}

func (c *Client) CreateVisit(ctx context.Context, req visit.CreateRequest) (*visit.Visit, error) {
	var out visit.Visit
	if err := c.Post(ctx, "/visits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateVisit(ctx context.Context, id string, req visit.UpdateRequest) (*visit.Visit, error) {
	var out visit.Visit
	if err := c.Patch(ctx, "/visits/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetVisitStatus(ctx context.Context, id string, status visit.Status) (*visit.Visit, error) {
	var out visit.Visit
	if err := c.Patch(ctx, "/visits/"+url.PathEscape(id)+"/status", visit.StatusRequest{Status: status}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteVisit(ctx context.Context, id string) error {
	return c.Delete(ctx, "/visits/"+url.PathEscape(id))
}

func (c *Client) VisitReport(ctx context.Context, f visit.Filter, force bool) (*visit.Report, Meta, error) {
	var out visit.Report
	m, err := c.Get(ctx, "/visits/report", VisitParams(f), &out, force)
	if err != nil {
		return nil, m, err
	}
	return &out, m, nil
}

// ExportVisits downloads the report as CSV. Exports are never cached.
func (c *Client) ExportVisits(ctx context.Context, f visit.Filter) ([]byte, error) {
	return c.send(ctx, http.MethodGet, "/visits/report/export", VisitParams(f), nil)
}

// --- Reference data ---

func (c *Client) ListStates(ctx context.Context) ([]state.State, Meta, error) {
	var out []state.State
	m, err := c.Get(ctx, "/states", nil, &out, false)
	return out, m, err
}

// Dashboard returns progress for the given YYYY-MM-DD range; empty bounds
// select the current week.
func (c *Client) Dashboard(ctx context.Context, start, end string, force bool) (*dashboard.Data, Meta, error) {
	q := url.Values{}
	setIf(q, "start_date", start)
	setIf(q, "end_date", end)
	var out dashboard.Data
	m, err := c.Get(ctx, "/dashboard", q, &out, force)
	if err != nil {
		return nil, m, err
	}
	return &out, m, nil
}

func setIf(q url.Values, k, v string) {
	if v != "" {
		q.Set(k, v)
	}
}
