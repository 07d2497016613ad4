package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sispromo"

// Metrics holds the SisPromo metric instruments.
type Metrics struct {
	VisitsCreated     metric.Int64Counter
	VisitTransitions  metric.Int64Counter
	LoginsFailed      metric.Int64Counter
	AccountsLocked    metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	DashboardDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.VisitsCreated, err = meter.Int64Counter("sispromo.visits.created",
		metric.WithDescription("Number of visits scheduled"))
	if err != nil {
		return nil, err
	}

	m.VisitTransitions, err = meter.Int64Counter("sispromo.visits.transitions",
		metric.WithDescription("Number of visit status changes"))
	if err != nil {
		return nil, err
	}

	m.LoginsFailed, err = meter.Int64Counter("sispromo.auth.logins_failed",
		metric.WithDescription("Number of rejected login attempts"))
	if err != nil {
		return nil, err
	}

	m.AccountsLocked, err = meter.Int64Counter("sispromo.auth.accounts_locked",
		metric.WithDescription("Number of accounts deactivated after repeated failures"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("sispromo.cache.hits",
		metric.WithDescription("Lookup cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("sispromo.cache.misses",
		metric.WithDescription("Lookup cache misses"))
	if err != nil {
		return nil, err
	}

	m.DashboardDuration, err = meter.Float64Histogram("sispromo.dashboard.duration_seconds",
		metric.WithDescription("Dashboard aggregation time in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTransition counts a visit status change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.VisitTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("visit.from", from),
		attribute.String("visit.to", to),
	))
}

// RecordCache counts a lookup cache hit or miss for a key class.
func (m *Metrics) RecordCache(ctx context.Context, class string, hit bool) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("cache.class", class))
	if hit {
		m.CacheHits.Add(ctx, 1, opt)
		return
	}
	m.CacheMisses.Add(ctx, 1, opt)
}

// RecordVisitCreated counts a scheduled visit.
func (m *Metrics) RecordVisitCreated(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.VisitsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("visit.status", status)))
}

// RecordDashboard records how long one dashboard aggregation took.
func (m *Metrics) RecordDashboard(ctx context.Context, scope string, seconds float64) {
	if m == nil {
		return
	}
	m.DashboardDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("dashboard.scope", scope)))
}
