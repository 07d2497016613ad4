package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/state"
	"github.com/sispromo/sispromo/internal/domain/store"
	"github.com/sispromo/sispromo/internal/port/database"
)

// StoreService manages retail stores.
type StoreService struct {
	db    database.Store
	cache *LookupCache
}

// NewStoreService creates a StoreService. cache may be nil.
func NewStoreService(db database.Store, cache *LookupCache) *StoreService {
	return &StoreService{db: db, cache: cache}
}

// List returns all stores.
func (s *StoreService) List(ctx context.Context) ([]store.Store, error) {
	return cached(ctx, s.cache, KeyStores+"list", s.db.ListStores)
}

// Get returns a store by ID.
func (s *StoreService) Get(ctx context.Context, id string) (*store.Store, error) {
	return cached(ctx, s.cache, KeyStores+id, func(ctx context.Context) (*store.Store, error) {
		return s.db.GetStore(ctx, id)
	})
}

// Create registers a store.
func (s *StoreService) Create(ctx context.Context, req *store.CreateRequest) (*store.Store, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	st := &store.Store{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Number:   req.Number,
		City:     req.City,
		District: req.District,
		State:    req.State,
		CNPJ:     req.CNPJ,
	}
	if err := s.db.CreateStore(ctx, st); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	s.invalidate(ctx)
	return st, nil
}

// Update applies a partial update.
func (s *StoreService) Update(ctx context.Context, id string, req store.UpdateRequest) (*store.Store, error) {
	st, err := s.db.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.Apply(st); err != nil {
		return nil, domain.Invalid(err)
	}
	if err := s.db.UpdateStore(ctx, st); err != nil {
		return nil, fmt.Errorf("update store: %w", err)
	}
	s.invalidate(ctx)
	return st, nil
}

// Delete removes a store together with its brand links, prices and visits.
func (s *StoreService) Delete(ctx context.Context, id string) error {
	if err := s.db.DeleteStore(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Store names appear in brand links, price listings and dashboards.
func (s *StoreService) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, KeyStores, KeyBrands, KeyVisitPrices, KeyDashboard)
}

// StateService serves the static UF list.
type StateService struct {
	cache *LookupCache
}

// NewStateService creates a StateService. cache may be nil.
func NewStateService(cache *LookupCache) *StateService {
	return &StateService{cache: cache}
}

// List returns the 27 UFs ordered by code.
func (s *StateService) List(ctx context.Context) ([]state.State, error) {
	return cached(ctx, s.cache, KeyStates+"list", func(context.Context) ([]state.State, error) {
		return state.All(), nil
	})
}
