package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sispromo/sispromo/internal/domain/visit"
	"github.com/sispromo/sispromo/internal/port/broadcast"
	"github.com/sispromo/sispromo/internal/port/messagequeue"
)

// EventPublisher announces visit changes. With a queue, events go through
// NATS and every instance relays them to its dashboards; without one they
// are broadcast locally.
type EventPublisher struct {
	queue messagequeue.Queue
	hub   broadcast.Broadcaster
}

// NewEventPublisher creates an EventPublisher. Either argument may be nil.
func NewEventPublisher(queue messagequeue.Queue, hub broadcast.Broadcaster) *EventPublisher {
	return &EventPublisher{queue: queue, hub: hub}
}

// VisitChanged publishes subject (one of the visits.* subjects) for v.
func (p *EventPublisher) VisitChanged(ctx context.Context, subject string, v *visit.Visit, actorID string) {
	if p == nil {
		return
	}
	payload := messagequeue.VisitEventPayload{
		VisitID:    v.ID,
		PromoterID: v.PromoterID,
		StoreID:    v.StoreID,
		BrandID:    v.BrandID,
		VisitDate:  v.VisitDate,
		Status:     int(v.Status),
		ActorID:    actorID,
	}

	if p.queue == nil {
		if p.hub != nil {
			p.hub.BroadcastEvent(ctx, eventType(subject), payload)
		}
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal visit event", "error", err)
		return
	}
	if err := p.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish visit event failed", "subject", subject, "visit_id", v.ID, "error", err)
	}
}

// RelayVisitEvents returns a queue handler that forwards visit events to
// the local dashboards.
func RelayVisitEvents(hub broadcast.Broadcaster) messagequeue.Handler {
	return func(ctx context.Context, subject string, data []byte) error {
		var payload messagequeue.VisitEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		hub.BroadcastEvent(ctx, eventType(subject), payload)
		return nil
	}
}

// eventType maps "visits.created" to "visit.created".
func eventType(subject string) string {
	switch strings.TrimPrefix(subject, "visits.") {
	case "created":
		return broadcast.EventVisitCreated
	case "deleted":
		return broadcast.EventVisitDeleted
	default:
		return broadcast.EventVisitUpdated
	}
}
