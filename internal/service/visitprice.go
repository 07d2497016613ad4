package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/visitprice"
	"github.com/sispromo/sispromo/internal/port/database"
)

// VisitPriceService manages what each brand pays per visit in each store.
type VisitPriceService struct {
	db    database.Store
	cache *LookupCache
}

// NewVisitPriceService creates a VisitPriceService. cache may be nil.
func NewVisitPriceService(db database.Store, cache *LookupCache) *VisitPriceService {
	return &VisitPriceService{db: db, cache: cache}
}

// List returns all visit prices.
func (s *VisitPriceService) List(ctx context.Context) ([]visitprice.VisitPrice, error) {
	return cached(ctx, s.cache, KeyVisitPrices+"list", s.db.ListVisitPrices)
}

// Get returns one visit price.
func (s *VisitPriceService) Get(ctx context.Context, id string) (*visitprice.VisitPrice, error) {
	return s.db.GetVisitPrice(ctx, id)
}

// Create sets the price of a store/brand pair. The pair must be new.
func (s *VisitPriceService) Create(ctx context.Context, req *visitprice.CreateRequest) (*visitprice.VisitPrice, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	if _, err := s.db.GetStore(ctx, req.StoreID); err != nil {
		return nil, referenceErr(err, "store_id")
	}
	if _, err := s.db.GetBrand(ctx, req.BrandID); err != nil {
		return nil, referenceErr(err, "brand_id")
	}

	vp := &visitprice.VisitPrice{
		ID:      uuid.NewString(),
		StoreID: req.StoreID,
		BrandID: req.BrandID,
		Price:   visitprice.Round(req.Price),
	}
	if err := s.db.CreateVisitPrice(ctx, vp); err != nil {
		return nil, fmt.Errorf("create visit price: %w", err)
	}
	s.cache.Invalidate(ctx, KeyVisitPrices)
	return s.db.GetVisitPrice(ctx, vp.ID)
}

// Update changes the price.
func (s *VisitPriceService) Update(ctx context.Context, id string, req visitprice.UpdateRequest) (*visitprice.VisitPrice, error) {
	if err := visitprice.ValidatePrice(req.Price); err != nil {
		return nil, domain.Invalid(err)
	}
	if err := s.db.UpdateVisitPrice(ctx, id, visitprice.Round(req.Price)); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, KeyVisitPrices)
	return s.db.GetVisitPrice(ctx, id)
}

// Delete removes a visit price.
func (s *VisitPriceService) Delete(ctx context.Context, id string) error {
	if err := s.db.DeleteVisitPrice(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, KeyVisitPrices)
	return nil
}
