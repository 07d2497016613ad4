// Package promoterbrand defines which promoters work for which brands.
package promoterbrand

import (
	"errors"
	"time"
)

// Assignment links a promoter to a brand. At most one per pair.
type Assignment struct {
	ID           string    `json:"id"`
	PromoterID   string    `json:"promoter_id"`
	PromoterName string    `json:"promoter_name"`
	BrandID      string    `json:"brand_id"`
	BrandName    string    `json:"brand_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateRequest assigns a promoter to a brand.
type CreateRequest struct {
	PromoterID string `json:"promoter_id"`
	BrandID    string `json:"brand_id"`
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if r.PromoterID == "" {
		return errors.New("promoter_id is required")
	}
	if r.BrandID == "" {
		return errors.New("brand_id is required")
	}
	return nil
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	PromoterID string
	BrandID    string
}
