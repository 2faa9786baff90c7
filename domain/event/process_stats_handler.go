package event

import (
	"fmt"
	"hire-chat/errors"
	"log/slog"
)

type ProcessStatsHandler struct {
	log *slog.Logger
}

func NewProcessStatsHandler(log *slog.Logger) *ProcessStatsHandler {
	return &ProcessStatsHandler{log: log}
}

func (h ProcessStatsHandler) Handle(event Event) {
	if event.Type != ProcessStatsType {
		return
	}
	payload, ok := event.Payload.(ProcessStats)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error())
		return
	}
	h.log.Info(fmt.Sprintf("[HUB] PID %d | STATUS %s | CPU %.2f%% | RSS %d MB | users %d | connections %d | rooms %d",
		payload.PID, payload.Status, payload.Cpu, payload.RssBytes>>20,
		payload.Users, payload.Connections, payload.Rooms))
}
