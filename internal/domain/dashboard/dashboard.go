// Package dashboard defines the weekly progress summaries shown to
// promoters (their own visits) and to managers and analysts (everyone).
package dashboard

import (
	"time"

	"github.com/sispromo/sispromo/internal/domain/visit"
)

// PendingStoresLimit caps the promoter's "next stores" list.
const PendingStoresLimit = 5

// Progress counts visits for one brand, promoter or store.
type Progress struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Number        *int   `json:"number,omitempty"` // stores only
	VisitsDone    int    `json:"visits_done"`
	VisitsPending int    `json:"visits_pending"`
	TotalVisits   int    `json:"total_visits"`
}

// Data is the dashboard payload.
type Data struct {
	StartDate         string        `json:"start_date"`
	EndDate           string        `json:"end_date"`
	TotalVisits       int           `json:"total_visits"`
	TotalCompleted    int           `json:"total_completed"`
	TotalPending      int           `json:"total_pending"`
	CompletionRate    float64       `json:"completion_rate"`
	BrandsProgress    []Progress    `json:"brands_progress"`
	PromotersProgress []Progress    `json:"promoters_progress"`
	StoresProgress    []Progress    `json:"stores_progress"`
	PendingStores     []visit.Visit `json:"pending_stores"`
}

// Totals holds the headline counters.
type Totals struct {
	Total     int
	Completed int
	Pending   int
}

// Range is an inclusive date range.
type Range struct {
	Start time.Time
	End   time.Time
}

// WeekRange returns Monday..Sunday of the ISO week containing t, as dates
// at midnight in t's location.
func WeekRange(t time.Time) Range {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start := day.AddDate(0, 0, -offset)
	return Range{Start: start, End: start.AddDate(0, 0, 6)}
}

// New assembles the payload, normalizing nil slices to empty ones.
func New(r Range, totals Totals, brands, promoters, stores []Progress, pending []visit.Visit) *Data {
	d := &Data{
		StartDate:         r.Start.Format(visit.DateLayout),
		EndDate:           r.End.Format(visit.DateLayout),
		TotalVisits:       totals.Total,
		TotalCompleted:    totals.Completed,
		TotalPending:      totals.Pending,
		BrandsProgress:    orEmpty(brands),
		PromotersProgress: orEmpty(promoters),
		StoresProgress:    orEmpty(stores),
		PendingStores:     pending,
	}
	if d.PendingStores == nil {
		d.PendingStores = []visit.Visit{}
	}
	if totals.Total > 0 {
		d.CompletionRate = float64(totals.Completed) / float64(totals.Total)
	}
	return d
}

func orEmpty(p []Progress) []Progress {
	if p == nil {
		return []Progress{}
	}
	return p
}
