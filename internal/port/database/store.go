// Package database defines the database store port (interfaces).
// Services depend on the narrow interfaces; adapters implement Store.
package database

import (
	"context"
	"time"

	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/domain/dashboard"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
	"github.com/sispromo/sispromo/internal/domain/store"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/domain/visitprice"
)

// Store is the port interface for all database operations.
type Store interface {
	UserStore
	TokenStore
	StoreStore
	BrandStore
	PromoterBrandStore
	VisitPriceStore
	VisitStore
	DashboardStore

	Ping(ctx context.Context) error
}

// UserStore persists users. Promoters are users with role promoter.
type UserStore interface {
	// ListUsers returns users ordered by name. An empty role lists everyone.
	ListUsers(ctx context.Context, role user.Role) ([]user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	// GetUserByLogin matches the username or the email.
	GetUserByLogin(ctx context.Context, login string) (*user.User, error)
	CreateUser(ctx context.Context, u *user.User) error
	UpdateUser(ctx context.Context, u *user.User) error
	UpdatePassword(ctx context.Context, id, hash string, mustChange bool) error
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int, error)

	// RecordLoginFailure increments the failure counter and deactivates the
	// account once it reaches maxAttempts, in one statement.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int) (attempts int, status user.Status, err error)
	// RecordLoginSuccess resets the failure counter and stamps last_login.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}

// TokenStore persists refresh tokens and revoked access-token IDs.
type TokenStore interface {
	CreateRefreshToken(ctx context.Context, rt *user.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*user.RefreshToken, error)
	// RotateRefreshToken deletes oldID and inserts next atomically. It returns
	// ErrNotFound when oldID was already consumed.
	RotateRefreshToken(ctx context.Context, oldID string, next *user.RefreshToken) error
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error

	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// PurgeExpiredTokens drops expired refresh tokens and revocations.
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// StoreStore persists retail stores.
type StoreStore interface {
	ListStores(ctx context.Context) ([]store.Store, error)
	GetStore(ctx context.Context, id string) (*store.Store, error)
	CreateStore(ctx context.Context, s *store.Store) error
	UpdateStore(ctx context.Context, s *store.Store) error
	DeleteStore(ctx context.Context, id string) error
}

// BrandStore persists brands and their store links.
type BrandStore interface {
	ListBrands(ctx context.Context) ([]brand.Brand, error)
	GetBrand(ctx context.Context, id string) (*brand.Brand, error)
	// GetOrCreateBrand returns the brand named name, creating it with id when
	// absent. created reports which happened.
	GetOrCreateBrand(ctx context.Context, id, name string) (b *brand.Brand, created bool, err error)
	RenameBrand(ctx context.Context, id, name string) error
	DeleteBrand(ctx context.Context, id string) error
	// UpsertBrandStore links a brand to a store or updates the frequency.
	UpsertBrandStore(ctx context.Context, brandID, storeID string, visitFrequency int) error
	DeleteBrandStore(ctx context.Context, brandID, storeID string) error
}

// PromoterBrandStore persists promoter/brand assignments.
type PromoterBrandStore interface {
	ListPromoterBrands(ctx context.Context, f promoterbrand.Filter) ([]promoterbrand.Assignment, error)
	GetPromoterBrand(ctx context.Context, id string) (*promoterbrand.Assignment, error)
	CreatePromoterBrand(ctx context.Context, a *promoterbrand.Assignment) error
	DeletePromoterBrand(ctx context.Context, id string) error
}

// VisitPriceStore persists per-store brand visit prices.
type VisitPriceStore interface {
	ListVisitPrices(ctx context.Context) ([]visitprice.VisitPrice, error)
	GetVisitPrice(ctx context.Context, id string) (*visitprice.VisitPrice, error)
	CreateVisitPrice(ctx context.Context, vp *visitprice.VisitPrice) error
	UpdateVisitPrice(ctx context.Context, id string, price float64) error
	DeleteVisitPrice(ctx context.Context, id string) error
}

// VisitStore persists visits.
type VisitStore interface {
	// ListVisits returns visits matching f, newest visit_date first.
	ListVisits(ctx context.Context, f visit.Filter) ([]visit.Visit, error)
	GetVisit(ctx context.Context, id string) (*visit.Visit, error)
	CreateVisit(ctx context.Context, v *visit.Visit) error
	UpdateVisit(ctx context.Context, v *visit.Visit) error
	// UpdateVisitStatus moves the visit only if it is still in status from;
	// otherwise it returns ErrConflict.
	UpdateVisitStatus(ctx context.Context, id string, from, to visit.Status) error
	DeleteVisit(ctx context.Context, id string) error
	// VisitReport returns matching visits joined with their visit price.
	VisitReport(ctx context.Context, f visit.Filter) ([]visit.ReportRow, error)
}

// DashboardStore computes dashboard aggregates over a date range. An empty
// promoterID aggregates every promoter.
type DashboardStore interface {
	VisitTotals(ctx context.Context, promoterID string, r dashboard.Range) (dashboard.Totals, error)
	BrandProgress(ctx context.Context, promoterID string, r dashboard.Range) ([]dashboard.Progress, error)
	PromoterProgress(ctx context.Context, r dashboard.Range) ([]dashboard.Progress, error)
	StoreProgress(ctx context.Context, r dashboard.Range) ([]dashboard.Progress, error)
	// NextPendingVisits returns the earliest pending visits in the range.
	NextPendingVisits(ctx context.Context, promoterID string, r dashboard.Range, limit int) ([]visit.Visit, error)
}
