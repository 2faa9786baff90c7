package workers

import (
	"context"
	"hire-chat/domain/event"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the capacity and length of the process channels.
// len and cap are read without blocking the owners of the channels. A sample
// dropped now and then is fine.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	telemetryChan  chan event.Event
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel, telemetryChan chan event.Event,
	metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log: log, channels: channels,
		telemetryChan:  telemetryChan,
		metricInterval: metricInterval,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				v := reflect.ValueOf(nc.Channel)
				if v.Kind() != reflect.Chan {
					w.log.Error("Provided object is not a channel", "name", nc.Name)
					continue
				}
				e := event.NewEvent(event.ChannelCapacityType, event.ChannelCapacity{
					ChannelName: nc.Name,
					Capacity:    v.Cap(),
					Length:      v.Len(),
				})
				select {
				case <-ctx.Done():
					return nil
				case w.telemetryChan <- e:
				default:
					w.log.Debug("Observability telemetry event lost")
				}
			}
		}
	}
}
