// Package store defines the retail store domain model.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/state"
)

// Store is a retail location promoters visit.
type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Number    *int      `json:"number,omitempty"`
	City      string    `json:"city"`
	District  string    `json:"district"`
	State     string    `json:"state,omitempty"`
	CNPJ      string    `json:"cnpj"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the input for registering a store.
type CreateRequest struct {
	Name     string `json:"name"`
	Number   *int   `json:"number,omitempty"`
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state,omitempty"`
	CNPJ     string `json:"cnpj"`
}

// Validate checks required fields, the UF code and the CNPJ check digits.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 255 {
		return errors.New("name must be at most 255 characters")
	}
	if strings.TrimSpace(r.City) == "" {
		return errors.New("city is required")
	}
	if strings.TrimSpace(r.District) == "" {
		return errors.New("district is required")
	}
	if r.Number != nil && *r.Number < 0 {
		return errors.New("number must not be negative")
	}
	if r.State != "" && !state.Valid(strings.ToUpper(r.State)) {
		return errors.New("invalid state")
	}
	if r.CNPJ == "" {
		return errors.New("cnpj is required")
	}
	if !domain.ValidCNPJ(r.CNPJ) {
		return errors.New("invalid cnpj")
	}
	return nil
}

// Normalize trims names, upper-cases the UF and strips CNPJ formatting.
func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.City = strings.TrimSpace(r.City)
	r.District = strings.TrimSpace(r.District)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.CNPJ = domain.OnlyDigits(r.CNPJ)
}

// UpdateRequest is a partial update. Nil fields are unchanged.
type UpdateRequest struct {
	Name     *string `json:"name,omitempty"`
	Number   *int    `json:"number,omitempty"`
	City     *string `json:"city,omitempty"`
	District *string `json:"district,omitempty"`
	State    *string `json:"state,omitempty"`
	CNPJ     *string `json:"cnpj,omitempty"`
}

// Apply merges the update into s and validates the result.
func (r *UpdateRequest) Apply(s *Store) error {
	c := CreateRequest{Name: s.Name, Number: s.Number, City: s.City, District: s.District, State: s.State, CNPJ: s.CNPJ}
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.Number != nil {
		c.Number = r.Number
	}
	if r.City != nil {
		c.City = *r.City
	}
	if r.District != nil {
		c.District = *r.District
	}
	if r.State != nil {
		c.State = *r.State
	}
	if r.CNPJ != nil {
		c.CNPJ = *r.CNPJ
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.Normalize()
	s.Name, s.Number, s.City, s.District, s.State, s.CNPJ = c.Name, c.Number, c.City, c.District, c.State, c.CNPJ
	return nil
}
