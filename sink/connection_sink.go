package sink

import (
	"context"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConnectionSink is the server side of one live client connection.
// Events consumed here are drained by the transport writer (gRPC stream or WebSocket).
type ConnectionSink struct {
	id              chat.ConnectionID
	token           string
	events          chan event.DomainEvent
	closed          chan struct{}
	once            sync.Once
	deliveryTimeout time.Duration
}

func NewConnectionSink(token string, bufferSize int, deliveryTimeout time.Duration) *ConnectionSink {
	return &ConnectionSink{
		id:              chat.ConnectionID(uuid.NewString()),
		token:           token,
		events:          make(chan event.DomainEvent, bufferSize),
		closed:          make(chan struct{}),
		deliveryTimeout: deliveryTimeout,
	}
}

func (s *ConnectionSink) ID() chat.ConnectionID { return s.id }

func (s *ConnectionSink) Token() string { return s.token }

// Consume is called by the broadcaster.
// A full buffer is given deliveryTimeout to drain, after which the
// connection is closed as stale: a reader that slow has already lost events.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		return errors.ErrStaleConnection
	default:
	}

	select {
	case s.events <- e:
		return nil
	default:
	}

	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()

	select {
	case s.events <- e:
		return nil
	case <-s.closed:
		return errors.ErrStaleConnection
	case <-timer.C:
		s.Close()
		return errors.ErrStaleConnection
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events is read by the transport writer only.
// The channel is never closed, select on Done to stop reading.
func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

func (s *ConnectionSink) Done() <-chan struct{} {
	return s.closed
}

func (s *ConnectionSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *ConnectionSink) Alive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}
