package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sispromo/sispromo/internal/port/broadcast"
)

// BroadcastEvent marshals a typed event and broadcasts it. Payloads that
// name an audience (visit events name their promoter) reach that audience
// plus every see-all subscriber; anything else reaches see-all subscribers
// only.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var audience []string
	if t, ok := payload.(broadcast.Targeted); ok {
		audience = t.Audience()
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	}, audience...)
}
