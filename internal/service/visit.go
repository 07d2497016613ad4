package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/sispromo/sispromo/internal/adapter/otel"
	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/user"
	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/port/database"
	"github.com/sispromo/sispromo/internal/port/messagequeue"
)

// VisitService schedules visits and moves them through their lifecycle.
// Promoters only ever see and touch their own visits.
type VisitService struct {
	db      database.Store
	events  *EventPublisher
	cache   *LookupCache
	metrics *otel.Metrics
}

// NewVisitService creates a VisitService. events and cache may be nil.
func NewVisitService(db database.Store, events *EventPublisher, cache *LookupCache) *VisitService {
	return &VisitService{db: db, events: events, cache: cache}
}

// SetMetrics attaches metric instruments.
func (s *VisitService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// List returns visits matching f. Promoters are restricted to their own.
func (s *VisitService) List(ctx context.Context, actor *user.User, f visit.Filter) ([]visit.Visit, error) {
	if !privileged(actor) {
		f.PromoterID = actor.ID
	}
	visits, err := s.db.ListVisits(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range visits {
		visits[i].Label()
	}
	return visits, nil
}

// Get returns a visit. Another promoter's visit reads as not found.
func (s *VisitService) Get(ctx context.Context, actor *user.User, id string) (*visit.Visit, error) {
	v, err := s.db.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	if !privileged(actor) && v.PromoterID != actor.ID {
		return nil, domain.ErrNotFound
	}
	v.Label()
	return v, nil
}

// Create schedules a visit. A promoter may omit promoter_id; naming
// anyone else is forbidden.
func (s *VisitService) Create(ctx context.Context, actor *user.User, req *visit.CreateRequest) (*visit.Visit, error) {
	if !privileged(actor) {
		if req.PromoterID == "" {
			req.PromoterID = actor.ID
		} else if req.PromoterID != actor.ID {
			return nil, fmt.Errorf("%w: promoters may only schedule their own visits", domain.ErrForbidden)
		}
	}
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	if err := s.checkRefs(ctx, req.PromoterID, req.StoreID, req.BrandID); err != nil {
		return nil, err
	}

	v := &visit.Visit{
		ID:         uuid.NewString(),
		PromoterID: req.PromoterID,
		StoreID:    req.StoreID,
		BrandID:    req.BrandID,
		VisitDate:  req.VisitDate,
		Status:     req.Status,
	}
	ctx, span := otel.StartVisitSpan(ctx, "create", v.ID)
	defer span.End()

	if err := s.db.CreateVisit(ctx, v); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	s.metrics.RecordVisitCreated(ctx, v.Status.String())

	created, err := s.db.GetVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	created.Label()
	s.changed(ctx, messagequeue.SubjectVisitCreated, created, actor)
	return created, nil
}

// Update reschedules or reassigns a visit. A status change here follows
// the same transition rules as UpdateStatus.
func (s *VisitService) Update(ctx context.Context, actor *user.User, id string, req visit.UpdateRequest) (*visit.Visit, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Invalid(err)
	}
	v, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.PromoterID != nil && *req.PromoterID != v.PromoterID && !privileged(actor) {
		return nil, fmt.Errorf("%w: promoters cannot reassign visits", domain.ErrForbidden)
	}

	ctx, span := otel.StartVisitSpan(ctx, "update", id)
	defer span.End()

	from := v.Status
	if req.PromoterID != nil {
		v.PromoterID = *req.PromoterID
	}
	if req.StoreID != nil {
		v.StoreID = *req.StoreID
	}
	if req.BrandID != nil {
		v.BrandID = *req.BrandID
	}
	if req.VisitDate != nil {
		v.VisitDate = *req.VisitDate
	}
	if req.Status != nil && *req.Status != from {
		if !from.CanTransition(*req.Status) {
			return nil, domain.Invalid(transitionErr(from, *req.Status))
		}
		v.Status = *req.Status
	}
	if err := s.checkRefs(ctx, v.PromoterID, v.StoreID, v.BrandID); err != nil {
		return nil, err
	}

	if err := s.db.UpdateVisit(ctx, v); err != nil {
		return nil, fmt.Errorf("update visit: %w", err)
	}
	if v.Status != from {
		s.metrics.RecordTransition(ctx, from.String(), v.Status.String())
	}

	updated, err := s.db.GetVisit(ctx, id)
	if err != nil {
		return nil, err
	}
	updated.Label()
	s.changed(ctx, messagequeue.SubjectVisitUpdated, updated, actor)
	return updated, nil
}

// UpdateStatus moves a visit to a new status. Concurrent changes to the
// same visit are detected and reported as a conflict.
func (s *VisitService) UpdateStatus(ctx context.Context, actor *user.User, id string, next visit.Status) (*visit.Visit, error) {
	if !next.Valid() {
		return nil, domain.Invalid(errors.New("invalid status: must be 1, 2, 3 or 4"))
	}
	v, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !v.Status.CanTransition(next) {
		return nil, domain.Invalid(transitionErr(v.Status, next))
	}

	ctx, span := otel.StartVisitSpan(ctx, "status", id)
	defer span.End()

	if err := s.db.UpdateVisitStatus(ctx, id, v.Status, next); err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(ctx, v.Status.String(), next.String())

	v.Status = next
	v.Label()
	s.changed(ctx, messagequeue.SubjectVisitUpdated, v, actor)
	return v, nil
}

// Delete removes a visit. Promoters can only delete their own.
func (s *VisitService) Delete(ctx context.Context, actor *user.User, id string) error {
	v, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteVisit(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, messagequeue.SubjectVisitDeleted, v, actor)
	return nil
}

// Report aggregates the visits matching f with their visit prices.
func (s *VisitService) Report(ctx context.Context, f visit.Filter) (visit.Report, error) {
	rows, err := s.db.VisitReport(ctx, f)
	if err != nil {
		return visit.Report{}, err
	}
	for i := range rows {
		rows[i].Label()
	}
	return visit.NewReport(rows), nil
}

// csvHeader is the column order of exported reports.
var csvHeader = []string{
	"id", "visit_date", "promoter", "store", "store_number", "brand", "status", "price",
}

// ExportCSV writes the report for f as CSV to w.
func (s *VisitService) ExportCSV(ctx context.Context, f visit.Filter, w io.Writer) error {
	report, err := s.Report(ctx, f)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range report.Rows {
		r := &report.Rows[i]
		number := ""
		if r.StoreNumber != nil {
			number = strconv.Itoa(*r.StoreNumber)
		}
		rec := []string{
			r.ID,
			r.VisitDate,
			r.PromoterName,
			r.StoreName,
			number,
			r.BrandName,
			r.StatusLabel,
			strconv.FormatFloat(r.Price, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkRefs verifies that the referenced promoter, store and brand exist.
func (s *VisitService) checkRefs(ctx context.Context, promoterID, storeID, brandID string) error {
	p, err := s.db.GetUser(ctx, promoterID)
	if err != nil {
		return referenceErr(err, "promoter_id")
	}
	if p.Role != user.RolePromoter {
		return domain.Invalid(errors.New("promoter_id must reference a promoter"))
	}
	if _, err := s.db.GetStore(ctx, storeID); err != nil {
		return referenceErr(err, "store_id")
	}
	if _, err := s.db.GetBrand(ctx, brandID); err != nil {
		return referenceErr(err, "brand_id")
	}
	return nil
}

func (s *VisitService) changed(ctx context.Context, subject string, v *visit.Visit, actor *user.User) {
	s.cache.Invalidate(ctx, KeyDashboard)
	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	s.events.VisitChanged(ctx, subject, v, actorID)
}

func transitionErr(from, to visit.Status) error {
	return fmt.Errorf("cannot change status from %s to %s", from, to)
}
