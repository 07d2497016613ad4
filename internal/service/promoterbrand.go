package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/port/database"
)

// PromoterBrandService assigns promoters to brands.
type PromoterBrandService struct {
	db database.Store
}

// NewPromoterBrandService creates a PromoterBrandService.
func NewPromoterBrandService(db database.Store) *PromoterBrandService {
	return &PromoterBrandService{db: db}
}

// List returns assignments matching f.
func (s *PromoterBrandService) List(ctx context.Context, f promoterbrand.Filter) ([]promoterbrand.Assignment, error) {
	return s.db.ListPromoterBrands(ctx, f)
}

// Get returns one assignment.
func (s *PromoterBrandService) Get(ctx context.Context, id string) (*promoterbrand.Assignment, error) {
	return s.db.GetPromoterBrand(ctx, id)
}

// Create assigns a promoter to a brand. The pair must be new.
func (s *PromoterBrandService) Create(ctx context.Context, req *promoterbrand.CreateRequest) (*promoterbrand.Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	u, err := s.db.GetUser(ctx, req.PromoterID)
	if err != nil {
		return nil, referenceErr(err, "promoter_id")
	}
	if u.Role != user.RolePromoter {
		return nil, domain.Invalid(errors.New("promoter_id must reference a promoter"))
	}
	if _, err := s.db.GetBrand(ctx, req.BrandID); err != nil {
		return nil, referenceErr(err, "brand_id")
	}

	a := &promoterbrand.Assignment{
		ID:         uuid.NewString(),
		PromoterID: req.PromoterID,
		BrandID:    req.BrandID,
	}
	if err := s.db.CreatePromoterBrand(ctx, a); err != nil {
		return nil, fmt.Errorf("create promoter brand: %w", err)
	}
	return s.db.GetPromoterBrand(ctx, a.ID)
}

// Delete removes an assignment.
func (s *PromoterBrandService) Delete(ctx context.Context, id string) error {
	return s.db.DeletePromoterBrand(ctx, id)
}
