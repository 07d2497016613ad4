package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/visit"
)

const maxVisitPageSize = 500

// visitFilter parses the visit filter plus limit/offset paging.
func visitFilter(r *http.Request) (visit.Filter, error) {
	f, err := visit.ParseFilter(r.URL.Query())
	if err != nil {
		return f, domain.Invalid(err)
	}
	if f.Limit, err = queryInt(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Limit > maxVisitPageSize {
		f.Limit = maxVisitPageSize
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

// ListVisits handles GET /api/v1/visits. Promoters only see their own.
func (h *Handlers) ListVisits(w http.ResponseWriter, r *http.Request) {
	f, err := visitFilter(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	visits, err := h.Visits.List(r.Context(), actor(r), f)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	if visits == nil {
		visits = []visit.Visit{}
	}
	writeJSON(w, http.StatusOK, visits)
}

// GetVisit handles GET /api/v1/visits/{id}.
func (h *Handlers) GetVisit(w http.ResponseWriter, r *http.Request) {
	v, err := h.Visits.Get(r.Context(), actor(r), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "visit not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CreateVisit handles POST /api/v1/visits.
func (h *Handlers) CreateVisit(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[visit.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	v, err := h.Visits.Create(r.Context(), actor(r), &req)
	if err != nil {
		writeDomainError(w, err, "referenced resource not found")
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// UpdateVisit handles PATCH and PUT /api/v1/visits/{id}.
func (h *Handlers) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[visit.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	v, err := h.Visits.Update(r.Context(), actor(r), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "visit not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdateVisitStatus handles PATCH /api/v1/visits/{id}/status.
func (h *Handlers) UpdateVisitStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[visit.StatusRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	v, err := h.Visits.UpdateStatus(r.Context(), actor(r), urlParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, err, "visit not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DeleteVisit handles DELETE /api/v1/visits/{id}.
func (h *Handlers) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	if err := h.Visits.Delete(r.Context(), actor(r), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "visit not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VisitReport handles GET /api/v1/visits/report.
func (h *Handlers) VisitReport(w http.ResponseWriter, r *http.Request) {
	f, err := visitFilter(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	report, err := h.Visits.Report(r.Context(), f)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExportVisitReport handles GET /api/v1/visits/report/export. The CSV is
// rendered fully before the first byte is sent so failures still produce
// a JSON error.
func (h *Handlers) ExportVisitReport(w http.ResponseWriter, r *http.Request) {
	f, err := visitFilter(r)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	var buf bytes.Buffer
	if err := h.Visits.ExportCSV(r.Context(), f, &buf); err != nil {
		writeDomainError(w, err, "")
		return
	}
	name := fmt.Sprintf("visits-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetDashboard handles GET /api/v1/dashboard[?start_date=&end_date=].
// The range defaults to the current week.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := h.Dashboard.ResolveRange(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	data, err := h.Dashboard.Get(r.Context(), actor(r), rng)
	if err != nil {
		writeDomainError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, data)
}
