package event

import (
	"hire-chat/errors"
	"log/slog"
)

// MessageSentHandler handles events when a message is sent or a read receipt is emitted.
// Useful for updating observability metrics, logging, or telemetry.
type MessageSentHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewMessageSentHandler(log *slog.Logger, counter *Counter) *MessageSentHandler {
	return &MessageSentHandler{log: log, counter: counter}
}

func (h *MessageSentHandler) Handle(event Event) {
	switch event.Type {
	case MessageSentType:
		payload, ok := event.Payload.(MessageSent)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(MessageSentType)
		h.log.Debug("Message delivered",
			"room_id", payload.Room,
			"sender_id", payload.SenderID,
			"recipients", payload.Recipients,
			"total", h.counter.Get(MessageSentType))
	case ReadReceiptType:
		payload, ok := event.Payload.(ReadReceipt)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Add(ReadReceiptType, uint64(payload.Count))
		h.log.Debug("Messages marked as read",
			"room_id", payload.Room,
			"reader_id", payload.ReaderID,
			"count", payload.Count)
	}
}
