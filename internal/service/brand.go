package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/port/database"
)

// BrandService manages brands and the stores they are tracked in.
type BrandService struct {
	db    database.Store
	cache *LookupCache
}

// NewBrandService creates a BrandService. cache may be nil.
func NewBrandService(db database.Store, cache *LookupCache) *BrandService {
	return &BrandService{db: db, cache: cache}
}

// List returns all brands with their store links.
func (s *BrandService) List(ctx context.Context) ([]brand.Brand, error) {
	return cached(ctx, s.cache, KeyBrands+"list", s.db.ListBrands)
}

// Get returns a brand with its store links.
func (s *BrandService) Get(ctx context.Context, id string) (*brand.Brand, error) {
	return cached(ctx, s.cache, KeyBrands+id, func(ctx context.Context) (*brand.Brand, error) {
		return s.db.GetBrand(ctx, id)
	})
}

// Create finds the brand by name or creates it, then links it to the
// store. An existing link gets the new visit frequency.
func (s *BrandService) Create(ctx context.Context, req *brand.CreateRequest) (*brand.Brand, bool, error) {
	req.BrandName = strings.TrimSpace(req.BrandName)
	if err := req.Validate(); err != nil {
		return nil, false, domain.Invalid(err)
	}
	if _, err := s.db.GetStore(ctx, req.StoreID); err != nil {
		return nil, false, referenceErr(err, "store_id")
	}

	b, created, err := s.db.GetOrCreateBrand(ctx, uuid.NewString(), req.BrandName)
	if err != nil {
		return nil, false, err
	}
	if err := s.db.UpsertBrandStore(ctx, b.ID, req.StoreID, req.VisitFrequency); err != nil {
		return nil, false, err
	}
	s.invalidate(ctx)
	if created {
		slog.InfoContext(ctx, "brand created", "brand_id", b.ID, "name", b.Name)
	}

	full, err := s.db.GetBrand(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	return full, created, nil
}

// Update renames a brand and optionally sets one link's visit frequency.
func (s *BrandService) Update(ctx context.Context, id string, req brand.UpdateRequest) (*brand.Brand, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	if _, err := s.db.GetBrand(ctx, id); err != nil {
		return nil, err
	}
	if req.BrandName != nil {
		if err := s.db.RenameBrand(ctx, id, strings.TrimSpace(*req.BrandName)); err != nil {
			return nil, err
		}
	}
	if req.VisitFrequency != nil {
		if _, err := s.db.GetStore(ctx, req.StoreID); err != nil {
			return nil, referenceErr(err, "store_id")
		}
		if err := s.db.UpsertBrandStore(ctx, id, req.StoreID, *req.VisitFrequency); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx)
	return s.db.GetBrand(ctx, id)
}

// Delete removes a brand with its links, assignments, prices and visits.
func (s *BrandService) Delete(ctx context.Context, id string) error {
	if err := s.db.DeleteBrand(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// RemoveStore unlinks a brand from one store.
func (s *BrandService) RemoveStore(ctx context.Context, brandID, storeID string) error {
	if err := s.db.DeleteBrandStore(ctx, brandID, storeID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *BrandService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, KeyBrands, KeyVisitPrices, KeyDashboard)
}

// referenceErr turns a missing referenced record into a validation error
// naming the offending field.
func referenceErr(err error, field string) error {
	if isNotFound(err) {
		return domain.Invalid(fmt.Errorf("%s does not exist", field))
	}
	return err
}
