package service

import (
	"context"
	"fmt"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/port/database"
)

// PromoterService manages promoters: users whose role is promoter.
type PromoterService struct {
	store database.Store
	auth  *AuthService
	users *UserService
}

// NewPromoterService creates a PromoterService.
func NewPromoterService(store database.Store, auth *AuthService, users *UserService) *PromoterService {
	return &PromoterService{store: store, auth: auth, users: users}
}

// List returns every promoter.
func (s *PromoterService) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx, user.RolePromoter)
}

// Get returns a promoter. Users with other roles are reported as not found.
func (s *PromoterService) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != user.RolePromoter {
		return nil, fmt.Errorf("promoter %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// Create registers a new promoter account.
func (s *PromoterService) Create(ctx context.Context, req *user.CreateRequest) (*user.User, error) {
	req.Role = user.RolePromoter
	return s.auth.Register(ctx, req)
}

// Update changes a promoter's profile.
func (s *PromoterService) Update(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.users.Update(ctx, id, req)
}

// Delete removes a promoter that has no visits.
func (s *PromoterService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteUser(ctx, id)
}
