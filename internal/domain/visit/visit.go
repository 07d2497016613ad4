// Package visit defines visit records: a promoter visiting a store on
// behalf of a brand on a given date.
package visit

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DateLayout is the wire and query format of visit dates.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of a visit.
type Status int

const (
	StatusPending    Status = 1
	StatusInProgress Status = 2
	StatusCompleted  Status = 3
	StatusCancelled  Status = 4
)

var statusLabels = map[Status]string{
	StatusPending:    "pending",
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusCancelled:  "cancelled",
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) String() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus accepts a status number ("3") or label ("completed").
func ParseStatus(s string) (Status, error) {
	for st, l := range statusLabels {
		if s == l || s == strconv.Itoa(int(st)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether a visit may move from s to next.
// Pending may go anywhere; in-progress only forward; terminal states stay put.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() || s == next {
		return false
	}
	switch s {
	case StatusPending:
		return true
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Visit is one scheduled or performed visit.
type Visit struct {
	ID           string    `json:"id"`
	PromoterID   string    `json:"promoter_id"`
	PromoterName string    `json:"promoter_name"`
	StoreID      string    `json:"store_id"`
	StoreName    string    `json:"store_name"`
	StoreNumber  *int      `json:"store_number,omitempty"`
	BrandID      string    `json:"brand_id"`
	BrandName    string    `json:"brand_name"`
	VisitDate    string    `json:"visit_date"`
	Status       Status    `json:"status"`
	StatusLabel  string    `json:"status_label"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateRequest schedules a visit. Status defaults to pending.
type CreateRequest struct {
	PromoterID string `json:"promoter_id"`
	StoreID    string `json:"store_id"`
	BrandID    string `json:"brand_id"`
	VisitDate  string `json:"visit_date"`
	Status     Status `json:"status,omitempty"`
}

// Validate checks required fields, the date format and the status.
func (r *CreateRequest) Validate() error {
	if r.PromoterID == "" {
		return errors.New("promoter_id is required")
	}
	if r.StoreID == "" {
		return errors.New("store_id is required")
	}
	if r.BrandID == "" {
		return errors.New("brand_id is required")
	}
	if r.VisitDate == "" {
		return errors.New("visit_date is required")
	}
	if _, err := ParseDate(r.VisitDate); err != nil {
		return errors.New("visit_date must be YYYY-MM-DD")
	}
	if r.Status == 0 {
		r.Status = StatusPending
	}
	if !r.Status.Valid() {
		return errors.New("invalid status: must be 1, 2, 3 or 4")
	}
	return nil
}

// UpdateRequest reschedules or reassigns a visit. Nil fields are unchanged.
type UpdateRequest struct {
	PromoterID *string `json:"promoter_id,omitempty"`
	StoreID    *string `json:"store_id,omitempty"`
	BrandID    *string `json:"brand_id,omitempty"`
	VisitDate  *string `json:"visit_date,omitempty"`
	Status     *Status `json:"status,omitempty"`
}

// Validate checks the fields that are present.
func (r *UpdateRequest) Validate() error {
	if r.PromoterID != nil && *r.PromoterID == "" {
		return errors.New("promoter_id must not be empty")
	}
	if r.StoreID != nil && *r.StoreID == "" {
		return errors.New("store_id must not be empty")
	}
	if r.BrandID != nil && *r.BrandID == "" {
		return errors.New("brand_id must not be empty")
	}
	if r.VisitDate != nil {
		if _, err := ParseDate(*r.VisitDate); err != nil {
			return errors.New("visit_date must be YYYY-MM-DD")
		}
	}
	if r.Status != nil && !r.Status.Valid() {
		return errors.New("invalid status: must be 1, 2, 3 or 4")
	}
	return nil
}

// StatusRequest moves a visit to a new status.
type StatusRequest struct {
	Status Status `json:"status"`
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Filter narrows visit listings and reports. Empty fields match everything.
type Filter struct {
	PromoterID string
	StoreID    string
	BrandID    string
	Status     Status
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}

// ParseFilter reads a Filter from query parameters. Both the short
// ("promoter") and the explicit ("promoter_id") names are accepted.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		PromoterID: first(q, "promoter_id", "promoter"),
		StoreID:    first(q, "store_id", "store"),
		BrandID:    first(q, "brand_id", "brand"),
	}
	if s := q.Get("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			return f, errors.New("invalid status filter")
		}
		f.Status = st
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{{"start_date", &f.StartDate}, {"end_date", &f.EndDate}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		d, err := ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("%s must be YYYY-MM-DD", p.key)
		}
		*p.dst = &d
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, errors.New("start_date must not be after end_date")
	}
	return f, nil
}

func first(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// ReportRow is one visit in a report, priced by the store/brand visit price.
type ReportRow struct {
	Visit
	Price float64 `json:"price"`
}

// Report aggregates a filtered set of visits.
type Report struct {
	Rows           []ReportRow `json:"visits"`
	TotalVisits    int         `json:"total_visits"`
	TotalCompleted int         `json:"total_completed"`
	TotalValue     float64     `json:"total_value"` // sum of prices of completed visits
}

// NewReport computes the report totals over rows.
func NewReport(rows []ReportRow) Report {
	r := Report{Rows: rows, TotalVisits: len(rows)}
	if r.Rows == nil {
		r.Rows = []ReportRow{}
	}
	var cents int64
	for i := range rows {
		if rows[i].Status == StatusCompleted {
			r.TotalCompleted++
			cents += int64(rows[i].Price*100 + 0.5)
		}
	}
	r.TotalValue = float64(cents) / 100
	return r
}

// Label fills StatusLabel from Status.
func (v *Visit) Label() {
	v.StatusLabel = v.Status.String()
}
