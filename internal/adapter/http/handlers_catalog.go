package http

import (
	"net/http"
	"net/url"

	"github.com/sispromo/sispromo/internal/domain/brand"
	"github.com/sispromo/sispromo/internal/domain/promoterbrand"
)

// --- Stores ---

// ListStores handles GET /api/v1/stores.
func (h *Handlers) ListStores(w http.ResponseWriter, r *http.Request) {
	handleList(h.Stores.List)(w, r)
}

// GetStore handles GET /api/v1/stores/{id}.
func (h *Handlers) GetStore(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Stores.Get, "store not found")(w, r)
}

// CreateStore handles POST /api/v1/stores.
func (h *Handlers) CreateStore(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.bodyLimit(), h.Stores.Create)(w, r)
}

// UpdateStore handles PATCH and PUT /api/v1/stores/{id}.
func (h *Handlers) UpdateStore(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Stores.Update, "store not found")(w, r)
}

// DeleteStore handles DELETE /api/v1/stores/{id}.
func (h *Handlers) DeleteStore(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Stores.Delete, "store not found")(w, r)
}

// --- Brands ---

// ListBrands handles GET /api/v1/brands. Each brand/store link is one row.
func (h *Handlers) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.Brands.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, brand.Flatten(brands))
}

// GetBrand handles GET /api/v1/brands/{id}.
func (h *Handlers) GetBrand(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Brands.Get, "brand not found")(w, r)
}

// CreateBrand handles POST /api/v1/brands. Linking an existing brand to a
// store answers 200; creating a new brand answers 201.
func (h *Handlers) CreateBrand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[brand.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	b, created, err := h.Brands.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "store not found")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, b)
}

// UpdateBrand handles PATCH and PUT /api/v1/brands/{id}.
func (h *Handlers) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Brands.Update, "brand not found")(w, r)
}

// DeleteBrand handles DELETE /api/v1/brands/{id}.
func (h *Handlers) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Brands.Delete, "brand not found")(w, r)
}

// RemoveBrandStore handles DELETE /api/v1/brands/{id}/stores/{storeID}.
func (h *Handlers) RemoveBrandStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Brands.RemoveStore(r.Context(), urlParam(r, "id"), urlParam(r, "storeID")); err != nil {
		writeDomainError(w, err, "brand store link not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Promoter brands ---

func parsePromoterBrandFilter(q url.Values) (promoterbrand.Filter, error) {
	return promoterbrand.Filter{
		PromoterID: q.Get("promoter_id"),
		BrandID:    q.Get("brand_id"),
	}, nil
}

// ListPromoterBrands handles GET /api/v1/promoter-brands[?promoter_id=&brand_id=].
func (h *Handlers) ListPromoterBrands(w http.ResponseWriter, r *http.Request) {
	handleListQuery(parsePromoterBrandFilter, h.PromoterBrands.List)(w, r)
}

// GetPromoterBrand handles GET /api/v1/promoter-brands/{id}.
func (h *Handlers) GetPromoterBrand(w http.ResponseWriter, r *http.Request) {
	handleGet(h.PromoterBrands.Get, "assignment not found")(w, r)
}

// CreatePromoterBrand handles POST /api/v1/promoter-brands.
func (h *Handlers) CreatePromoterBrand(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.bodyLimit(), h.PromoterBrands.Create)(w, r)
}

// DeletePromoterBrand handles DELETE /api/v1/promoter-brands/{id}.
func (h *Handlers) DeletePromoterBrand(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.PromoterBrands.Delete, "assignment not found")(w, r)
}

// --- Visit prices ---

// ListVisitPrices handles GET /api/v1/visit-prices.
func (h *Handlers) ListVisitPrices(w http.ResponseWriter, r *http.Request) {
	handleList(h.VisitPrices.List)(w, r)
}

// GetVisitPrice handles GET /api/v1/visit-prices/{id}.
func (h *Handlers) GetVisitPrice(w http.ResponseWriter, r *http.Request) {
	handleGet(h.VisitPrices.Get, "visit price not found")(w, r)
}

// CreateVisitPrice handles POST /api/v1/visit-prices.
func (h *Handlers) CreateVisitPrice(w http.ResponseWriter, r *http.Request) {
	handleCreate(h.bodyLimit(), h.VisitPrices.Create)(w, r)
}

// UpdateVisitPrice handles PATCH and PUT /api/v1/visit-prices/{id}.
func (h *Handlers) UpdateVisitPrice(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.VisitPrices.Update, "visit price not found")(w, r)
}

// DeleteVisitPrice handles DELETE /api/v1/visit-prices/{id}.
func (h *Handlers) DeleteVisitPrice(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.VisitPrices.Delete, "visit price not found")(w, r)
}
