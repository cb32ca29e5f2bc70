package services

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
)

// deliver pushes an event to one live connection, best effort.
// A dead or saturated connection must never propagate a failure into the
// router's control flow: the error is logged and counted, nothing more.
// The recipient catches up via history fetch.
func deliver(ctx context.Context, log *slog.Logger, monitoring *observability.MonitoringManager,
	conn contract.Connection, e event.DomainEvent, attrs ...any) {
	if err := conn.Consume(ctx, e); err != nil {
		monitoring.IncrDeliveryDrops()
		log.Warn("Delivery failed, recipient will catch up via history",
			append([]any{"event", e.EventName(), "error", err}, attrs...)...)
		return
	}
	monitoring.IncrDeliveries()
}
