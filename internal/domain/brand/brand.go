// Package brand defines product brands and the per-store visit frequency
// each brand contracts.
package brand

import (
	"errors"
	"strings"
	"time"
)

// Brand is a product brand.
type Brand struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Stores    []StoreLink `json:"stores"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StoreLink is a brand's presence in one store.
type StoreLink struct {
	StoreID        string `json:"store_id"`
	StoreName      string `json:"store_name"`
	VisitFrequency int    `json:"visit_frequency"`
}

// Row is the flattened listing shape: one row per brand/store link.
// Brands without stores appear once with empty store fields.
type Row struct {
	BrandID        string `json:"brand_id"`
	BrandName      string `json:"brand_name"`
	StoreID        string `json:"store_id,omitempty"`
	StoreName      string `json:"store_name,omitempty"`
	VisitFrequency int    `json:"visit_frequency,omitempty"`
}

// Flatten converts brands into listing rows.
func Flatten(brands []Brand) []Row {
	rows := make([]Row, 0, len(brands))
	for i := range brands {
		b := &brands[i]
		if len(b.Stores) == 0 {
			rows = append(rows, Row{BrandID: b.ID, BrandName: b.Name})
			continue
		}
		for _, s := range b.Stores {
			rows = append(rows, Row{
				BrandID:        b.ID,
				BrandName:      b.Name,
				StoreID:        s.StoreID,
				StoreName:      s.StoreName,
				VisitFrequency: s.VisitFrequency,
			})
		}
	}
	return rows
}

// CreateRequest creates the brand if no brand with that name exists, then
// links it to the store (or updates the existing link's frequency).
type CreateRequest struct {
	BrandName      string `json:"brand_name"`
	StoreID        string `json:"store_id"`
	VisitFrequency int    `json:"visit_frequency"`
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.BrandName) == "" {
		return errors.New("brand_name is required")
	}
	if len(r.BrandName) > 255 {
		return errors.New("brand_name must be at most 255 characters")
	}
	if r.StoreID == "" {
		return errors.New("store_id is required")
	}
	if r.VisitFrequency <= 0 {
		return errors.New("visit_frequency must be greater than zero")
	}
	return nil
}

// UpdateRequest renames a brand and optionally updates one store link.
type UpdateRequest struct {
	BrandName      *string `json:"brand_name,omitempty"`
	StoreID        string  `json:"store_id,omitempty"`
	VisitFrequency *int    `json:"visit_frequency,omitempty"`
}

// Validate checks the fields that are present.
func (r *UpdateRequest) Validate() error {
	if r.BrandName != nil && strings.TrimSpace(*r.BrandName) == "" {
		return errors.New("brand_name must not be empty")
	}
	if r.VisitFrequency != nil {
		if r.StoreID == "" {
			return errors.New("store_id is required with visit_frequency")
		}
		if *r.VisitFrequency <= 0 {
			return errors.New("visit_frequency must be greater than zero")
		}
	}
	return nil
}
