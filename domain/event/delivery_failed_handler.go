package event

import (
	"hire-chat/errors"
	"log/slog"
)

// DeliveryFailedHandler tracks events dropped on stale or slow connections.
type DeliveryFailedHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewDeliveryFailedHandler(log *slog.Logger, counter *Counter) *DeliveryFailedHandler {
	return &DeliveryFailedHandler{log: log, counter: counter}
}

func (h *DeliveryFailedHandler) Handle(event Event) {
	if event.Type != DeliveryFailedType {
		return
	}
	payload, ok := event.Payload.(DeliveryFailed)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}
	h.counter.Increment(DeliveryFailedType)
	h.log.Warn("Event not delivered",
		"room_id", payload.Room,
		"connection_id", payload.ConnectionID,
		"reason", payload.Reason,
		"total", h.counter.Get(DeliveryFailedType))
}
