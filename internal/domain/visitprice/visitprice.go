// Package visitprice defines what a brand pays per visit in a given store.
package visitprice

import (
	"errors"
	"math"
	"time"
)

// MaxPrice is the exclusive upper bound of a NUMERIC(10,2) column.
const MaxPrice = 100_000_000

// VisitPrice is the amount paid for one visit of a brand in a store.
// At most one per (store, brand).
type VisitPrice struct {
	ID        string    `json:"id"`
	StoreID   string    `json:"store_id"`
	StoreName string    `json:"store_name"`
	BrandID   string    `json:"brand_id"`
	BrandName string    `json:"brand_name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest sets the price for a store/brand pair.
type CreateRequest struct {
	StoreID string  `json:"store_id"`
	BrandID string  `json:"brand_id"`
	Price   float64 `json:"price"`
}

// Validate checks required fields and the price range.
func (r *CreateRequest) Validate() error {
	if r.StoreID == "" {
		return errors.New("store_id is required")
	}
	if r.BrandID == "" {
		return errors.New("brand_id is required")
	}
	return ValidatePrice(r.Price)
}

// UpdateRequest changes the price.
type UpdateRequest struct {
	Price float64 `json:"price"`
}

// ValidatePrice requires a positive amount that fits NUMERIC(10,2).
func ValidatePrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return errors.New("price must be a number")
	}
	if p <= 0 {
		return errors.New("price must be greater than zero")
	}
	if p >= MaxPrice {
		return errors.New("price must be less than 100000000")
	}
	return nil
}

// Round returns p rounded to cents.
func Round(p float64) float64 {
	return math.Round(p*100) / 100
}
