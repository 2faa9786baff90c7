package event

import (
	"hire-chat/errors"
	"log/slog"
	"sync/atomic"
)

// ConnectionHandler keeps the number of live connections seen through telemetry.
type ConnectionHandler struct {
	log    *slog.Logger
	active atomic.Int64
}

func NewConnectionHandler(log *slog.Logger) *ConnectionHandler {
	return &ConnectionHandler{log: log}
}

func (h *ConnectionHandler) Handle(event Event) {
	if event.Type != ConnectionType {
		return
	}
	payload, ok := event.Payload.(ConnectionChanged)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}
	var active int64
	switch payload.State {
	case Connected:
		active = h.active.Add(1)
	case Disconnected:
		active = h.active.Add(-1)
	}
	h.log.Debug("Connection changed",
		"user_id", payload.UserID,
		"connection_id", payload.ConnectionID,
		"state", payload.State,
		"active", active)
}

func (h *ConnectionHandler) Active() int64 {
	return h.active.Load()
}
