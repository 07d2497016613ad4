// Package databasetest provides an in-memory database.Store for handler and
// service tests.
package databasetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/domain/dashboard"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
	"github.com/sispromo/sispromo/internal/domain/store"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/domain/visitprice"
	"github.com/sispromo/sispromo/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store is an in-memory database.Store. Fields may be seeded directly
// before use; the Err fields inject failures.
type Store struct {
	mu sync.Mutex

	Users         []user.User
	RefreshTokens []user.RefreshToken
	Revoked       map[string]time.Time
	Stores        []store.Store
	Brands        []brand.Brand
	Assignments   []promoterbrand.Assignment
	Prices        []visitprice.VisitPrice
	Visits        []visit.Visit

	RevokedErr     error
	CreateVisitErr error
	StatusErr      error
	TotalsCalls    int
}

// --- users ---

func (m *Store) ListUsers(_ context.Context, role user.Role) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []user.User
	for i := range m.Users {
		if role == "" || m.Users[i].Role == role {
			out = append(out, m.Users[i])
		}
	}
	return out, nil
}

func (m *Store) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].ID == id {
			u := m.Users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) GetUserByLogin(_ context.Context, login string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].Username == login || m.Users[i].Email == login {
			u := m.Users[i]
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) CreateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].Username == u.Username || m.Users[i].Email == u.Email {
			return domain.ErrConflict
		}
	}
	m.Users = append(m.Users, *u)
	return nil
}

func (m *Store) UpdateUser(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].ID == u.ID {
			m.Users[i] = *u
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) UpdatePassword(_ context.Context, id, hash string, mustChange bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users[i].PasswordHash = hash
			m.Users[i].MustChangePassword = mustChange
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Visits {
		if m.Visits[i].PromoterID == id {
			return domain.ErrConflict
		}
	}
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users = append(m.Users[:i], m.Users[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) CountUsers(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Users), nil
}

func (m *Store) RecordLoginFailure(_ context.Context, id string, maxAttempts int) (int, user.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users[i].FailedLoginAttempts++
			if m.Users[i].FailedLoginAttempts >= maxAttempts {
				m.Users[i].Status = user.StatusInactive
			}
			return m.Users[i].FailedLoginAttempts, m.Users[i].Status, nil
		}
	}
	return 0, "", domain.ErrNotFound
}

func (m *Store) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users[i].FailedLoginAttempts = 0
			m.Users[i].LastLogin = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- tokens ---

func (m *Store) CreateRefreshToken(_ context.Context, rt *user.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshTokens = append(m.RefreshTokens, *rt)
	return nil
}

func (m *Store) GetRefreshTokenByHash(_ context.Context, hash string) (*user.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.RefreshTokens {
		if m.RefreshTokens[i].TokenHash == hash {
			rt := m.RefreshTokens[i]
			return &rt, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) RotateRefreshToken(_ context.Context, oldID string, next *user.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.RefreshTokens {
		if m.RefreshTokens[i].ID == oldID {
			m.RefreshTokens[i] = *next
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.RefreshTokens {
		if m.RefreshTokens[i].ID == id {
			m.RefreshTokens = append(m.RefreshTokens[:i], m.RefreshTokens[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Store) DeleteRefreshTokensByUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.RefreshTokens[:0]
	for _, rt := range m.RefreshTokens {
		if rt.UserID != userID {
			kept = append(kept, rt)
		}
	}
	m.RefreshTokens = kept
	return nil
}

func (m *Store) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Revoked == nil {
		m.Revoked = make(map[string]time.Time)
	}
	m.Revoked[jti] = expiresAt
	return nil
}

func (m *Store) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RevokedErr != nil {
		return false, m.RevokedErr
	}
	_, ok := m.Revoked[jti]
	return ok, nil
}

func (m *Store) PurgeExpiredTokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	kept := m.RefreshTokens[:0]
	for _, rt := range m.RefreshTokens {
		if rt.ExpiresAt.Before(now) {
			n++
			continue
		}
		kept = append(kept, rt)
	}
	m.RefreshTokens = kept
	for jti, exp := range m.Revoked {
		if exp.Before(now) {
			delete(m.Revoked, jti)
			n++
		}
	}
	return n, nil
}

// --- stores ---

func (m *Store) ListStores(_ context.Context) ([]store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Store(nil), m.Stores...), nil
}

func (m *Store) GetStore(_ context.Context, id string) (*store.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stores {
		if m.Stores[i].ID == id {
			s := m.Stores[i]
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) CreateStore(_ context.Context, s *store.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stores {
		if m.Stores[i].CNPJ == s.CNPJ {
			return domain.ErrConflict
		}
	}
	m.Stores = append(m.Stores, *s)
	return nil
}

func (m *Store) UpdateStore(_ context.Context, s *store.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stores {
		if m.Stores[i].ID == s.ID {
			m.Stores[i] = *s
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteStore(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Stores {
		if m.Stores[i].ID == id {
			m.Stores = append(m.Stores[:i], m.Stores[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) storeName(id string) string {
	for i := range m.Stores {
		if m.Stores[i].ID == id {
			return m.Stores[i].Name
		}
	}
	return ""
}

// --- brands ---

func (m *Store) ListBrands(_ context.Context) ([]brand.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]brand.Brand(nil), m.Brands...), nil
}

func (m *Store) GetBrand(_ context.Context, id string) (*brand.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].ID == id {
			b := m.Brands[i]
			b.Stores = append([]brand.StoreLink(nil), b.Stores...)
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) GetOrCreateBrand(_ context.Context, id, name string) (*brand.Brand, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].Name == name {
			b := m.Brands[i]
			return &b, false, nil
		}
	}
	m.Brands = append(m.Brands, brand.Brand{ID: id, Name: name})
	return &brand.Brand{ID: id, Name: name}, true, nil
}

func (m *Store) RenameBrand(_ context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].Name == name && m.Brands[i].ID != id {
			return domain.ErrConflict
		}
	}
	for i := range m.Brands {
		if m.Brands[i].ID == id {
			m.Brands[i].Name = name
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteBrand(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].ID == id {
			m.Brands = append(m.Brands[:i], m.Brands[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) UpsertBrandStore(_ context.Context, brandID, storeID string, freq int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].ID != brandID {
			continue
		}
		for j := range m.Brands[i].Stores {
			if m.Brands[i].Stores[j].StoreID == storeID {
				m.Brands[i].Stores[j].VisitFrequency = freq
				return nil
			}
		}
		m.Brands[i].Stores = append(m.Brands[i].Stores, brand.StoreLink{
			StoreID: storeID, StoreName: m.storeName(storeID), VisitFrequency: freq,
		})
		return nil
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteBrandStore(_ context.Context, brandID, storeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Brands {
		if m.Brands[i].ID != brandID {
			continue
		}
		for j := range m.Brands[i].Stores {
			if m.Brands[i].Stores[j].StoreID == storeID {
				m.Brands[i].Stores = append(m.Brands[i].Stores[:j], m.Brands[i].Stores[j+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

// --- promoter brands ---

func (m *Store) ListPromoterBrands(_ context.Context, f promoterbrand.Filter) ([]promoterbrand.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []promoterbrand.Assignment
	for _, a := range m.Assignments {
		if (f.PromoterID == "" || a.PromoterID == f.PromoterID) && (f.BrandID == "" || a.BrandID == f.BrandID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Store) GetPromoterBrand(_ context.Context, id string) (*promoterbrand.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Assignments {
		if m.Assignments[i].ID == id {
			a := m.Assignments[i]
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) CreatePromoterBrand(_ context.Context, a *promoterbrand.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Assignments {
		if m.Assignments[i].PromoterID == a.PromoterID && m.Assignments[i].BrandID == a.BrandID {
			return domain.ErrConflict
		}
	}
	m.Assignments = append(m.Assignments, *a)
	return nil
}

func (m *Store) DeletePromoterBrand(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Assignments {
		if m.Assignments[i].ID == id {
			m.Assignments = append(m.Assignments[:i], m.Assignments[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- visit prices ---

func (m *Store) ListVisitPrices(_ context.Context) ([]visitprice.VisitPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]visitprice.VisitPrice(nil), m.Prices...), nil
}

func (m *Store) GetVisitPrice(_ context.Context, id string) (*visitprice.VisitPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Prices {
		if m.Prices[i].ID == id {
			vp := m.Prices[i]
			return &vp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) CreateVisitPrice(_ context.Context, vp *visitprice.VisitPrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Prices {
		if m.Prices[i].StoreID == vp.StoreID && m.Prices[i].BrandID == vp.BrandID {
			return domain.ErrConflict
		}
	}
	m.Prices = append(m.Prices, *vp)
	return nil
}

func (m *Store) UpdateVisitPrice(_ context.Context, id string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Prices {
		if m.Prices[i].ID == id {
			m.Prices[i].Price = price
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteVisitPrice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Prices {
		if m.Prices[i].ID == id {
			m.Prices = append(m.Prices[:i], m.Prices[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// --- visits ---

func matchVisit(v *visit.Visit, f visit.Filter) bool {
	if f.PromoterID != "" && v.PromoterID != f.PromoterID {
		return false
	}
	if f.StoreID != "" && v.StoreID != f.StoreID {
		return false
	}
	if f.BrandID != "" && v.BrandID != f.BrandID {
		return false
	}
	if f.Status != 0 && v.Status != f.Status {
		return false
	}
	d, _ := visit.ParseDate(v.VisitDate)
	if f.StartDate != nil && d.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && d.After(*f.EndDate) {
		return false
	}
	return true
}

func (m *Store) ListVisits(_ context.Context, f visit.Filter) ([]visit.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []visit.Visit
	for i := range m.Visits {
		if matchVisit(&m.Visits[i], f) {
			out = append(out, m.Visits[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VisitDate > out[j].VisitDate })
	return out, nil
}

func (m *Store) GetVisit(_ context.Context, id string) (*visit.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Visits {
		if m.Visits[i].ID == id {
			v := m.Visits[i]
			return &v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Store) CreateVisit(_ context.Context, v *visit.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateVisitErr != nil {
		return m.CreateVisitErr
	}
	m.Visits = append(m.Visits, *v)
	return nil
}

func (m *Store) UpdateVisit(_ context.Context, v *visit.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Visits {
		if m.Visits[i].ID == v.ID {
			m.Visits[i] = *v
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) UpdateVisitStatus(_ context.Context, id string, from, to visit.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatusErr != nil {
		return m.StatusErr
	}
	for i := range m.Visits {
		if m.Visits[i].ID != id {
			continue
		}
		if m.Visits[i].Status != from {
			return domain.ErrConflict
		}
		m.Visits[i].Status = to
		return nil
	}
	return domain.ErrNotFound
}

func (m *Store) DeleteVisit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Visits {
		if m.Visits[i].ID == id {
			m.Visits = append(m.Visits[:i], m.Visits[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *Store) VisitReport(ctx context.Context, f visit.Filter) ([]visit.ReportRow, error) {
	visits, _ := m.ListVisits(ctx, f)
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]visit.ReportRow, 0, len(visits))
	for _, v := range visits {
		row := visit.ReportRow{Visit: v}
		for _, p := range m.Prices {
			if p.StoreID == v.StoreID && p.BrandID == v.BrandID {
				row.Price = p.Price
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// --- dashboard ---

func (m *Store) inRange(promoterID string, r dashboard.Range) []visit.Visit {
	start, end := r.Start, r.End
	var out []visit.Visit
	for i := range m.Visits {
		if matchVisit(&m.Visits[i], visit.Filter{PromoterID: promoterID, StartDate: &start, EndDate: &end}) {
			out = append(out, m.Visits[i])
		}
	}
	return out
}

func (m *Store) VisitTotals(_ context.Context, promoterID string, r dashboard.Range) (dashboard.Totals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalsCalls++
	var t dashboard.Totals
	for _, v := range m.inRange(promoterID, r) {
		t.Total++
		switch v.Status {
		case visit.StatusCompleted:
			t.Completed++
		case visit.StatusPending:
			t.Pending++
		}
	}
	return t, nil
}

func (m *Store) progress(vs []visit.Visit, key func(*visit.Visit) string) []dashboard.Progress {
	idx := map[string]int{}
	var out []dashboard.Progress
	for i := range vs {
		k := key(&vs[i])
		j, ok := idx[k]
		if !ok {
			j = len(out)
			idx[k] = j
			out = append(out, dashboard.Progress{ID: k, Name: k})
		}
		out[j].TotalVisits++
		switch vs[i].Status {
		case visit.StatusCompleted:
			out[j].VisitsDone++
		case visit.StatusPending:
			out[j].VisitsPending++
		}
	}
	return out
}

func (m *Store) BrandProgress(_ context.Context, promoterID string, r dashboard.Range) ([]dashboard.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress(m.inRange(promoterID, r), func(v *visit.Visit) string { return v.BrandID }), nil
}

func (m *Store) PromoterProgress(_ context.Context, r dashboard.Range) ([]dashboard.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress(m.inRange("", r), func(v *visit.Visit) string { return v.PromoterID }), nil
}

func (m *Store) StoreProgress(_ context.Context, r dashboard.Range) ([]dashboard.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress(m.inRange("", r), func(v *visit.Visit) string { return v.StoreID }), nil
}

func (m *Store) NextPendingVisits(_ context.Context, promoterID string, r dashboard.Range, limit int) ([]visit.Visit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []visit.Visit
	for _, v := range m.inRange(promoterID, r) {
		if v.Status == visit.StatusPending {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].VisitDate < out[j].VisitDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) Ping(_ context.Context) error { return nil }
