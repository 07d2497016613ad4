package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/port/database"
)

// UserService administers accounts of every role.
type UserService struct {
	store database.Store
}

// NewUserService creates a UserService.
func NewUserService(store database.Store) *UserService {
	return &UserService{store: store}
}

// List returns users, optionally restricted to one role.
func (s *UserService) List(ctx context.Context, role user.Role) ([]user.User, error) {
	if role != "" && !user.ValidRoles[role] {
		return nil, domain.Invalid(errors.New("invalid role filter"))
	}
	return s.store.ListUsers(ctx, role)
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*user.User, error) {
	return s.store.GetUser(ctx, id)
}

// Update applies a partial update. Deactivating an account signs it out.
func (s *UserService) Update(ctx context.Context, id string, req user.UpdateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := u.Active()
	req.Apply(u)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if wasActive && !u.Active() {
		if err := s.store.DeleteRefreshTokensByUser(ctx, u.ID); err != nil {
			slog.WarnContext(ctx, "failed to revoke sessions of deactivated user", "user_id", u.ID, "error", err)
		}
	}
	return u, nil
}

// UpdateRole changes a user's role.
func (s *UserService) UpdateRole(ctx context.Context, id string, req user.RoleRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == req.Role {
		return u, nil
	}
	prev := u.Role
	u.Role = req.Role
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	slog.InfoContext(ctx, "user role changed", "user_id", u.ID, "from", prev, "to", u.Role)
	return u, nil
}

// Delete removes a user. Actors cannot delete themselves, and users with
// visits cannot be deleted.
func (s *UserService) Delete(ctx context.Context, actor *user.User, id string) error {
	if actor != nil && actor.ID == id {
		return domain.Invalid(errors.New("cannot delete your own account"))
	}
	return s.store.DeleteUser(ctx, id)
}
