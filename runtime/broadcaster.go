package runtime

import (
	"context"
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"log/slog"
	"sync"
)

// roomMembers holds the delivery set of a room.
// publishMu serializes Publish calls on the same room so that every
// subscriber observes the room's events in the same order.
type roomMembers struct {
	publishMu sync.Mutex
	members   connectionSet
}

// Broadcaster routes room events to the connections subscribed to each room.
// Subscriptions are derived state, rebuilt on every connect.
type Broadcaster struct {
	mu            sync.RWMutex
	log           *slog.Logger
	rooms         map[chat.RoomID]*roomMembers
	subscriptions map[chat.ConnectionID]map[chat.RoomID]struct{}
	telemetryChan chan event.Event
}

func NewBroadcaster(log *slog.Logger, telemetryChan chan event.Event) *Broadcaster {
	return &Broadcaster{
		log:           log,
		rooms:         make(map[chat.RoomID]*roomMembers),
		subscriptions: make(map[chat.ConnectionID]map[chat.RoomID]struct{}),
		telemetryChan: telemetryChan,
	}
}

// Subscribe adds the connection to the room's delivery set.
// If the room does not yet exist in the broadcaster, it is initialized on the fly.
// A closed connection is ignored: disconnect closes before UnsubscribeAll, so a
// subscription racing with it can never outlive the cleanup.
func (b *Broadcaster) Subscribe(conn contract.Connection, roomID chat.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !conn.Alive() {
		b.log.Debug("Ignoring subscription of a closed connection", "connection_id", conn.ID(), "room_id", roomID)
		return
	}
	room, ok := b.rooms[roomID]
	if !ok {
		room = &roomMembers{members: make(connectionSet)}
		b.rooms[roomID] = room
	}
	room.members[conn.ID()] = conn

	if _, ok := b.subscriptions[conn.ID()]; !ok {
		b.subscriptions[conn.ID()] = make(map[chat.RoomID]struct{})
	}
	b.subscriptions[conn.ID()][roomID] = struct{}{}
}

// Unsubscribe removes the connection from one room.
func (b *Broadcaster) Unsubscribe(conn contract.Connection, roomID chat.RoomID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribe(conn.ID(), roomID)
}

// UnsubscribeAll removes the connection from every room it belongs to.
// It must be called on disconnect, otherwise rooms keep dead members forever.
func (b *Broadcaster) UnsubscribeAll(conn contract.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for roomID := range b.subscriptions[conn.ID()] {
		b.unsubscribe(conn.ID(), roomID)
	}
	delete(b.subscriptions, conn.ID())
}

// unsubscribe expects b.mu to be held.
// Empty sets are removed so that rooms nobody listens to do not pile up.
func (b *Broadcaster) unsubscribe(connID chat.ConnectionID, roomID chat.RoomID) {
	if room, ok := b.rooms[roomID]; ok {
		delete(room.members, connID)
		if len(room.members) == 0 {
			delete(b.rooms, roomID)
		}
	}
	if rooms, ok := b.subscriptions[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(b.subscriptions, connID)
		}
	}
}

// Publish delivers e to every connection currently subscribed to the room and
// returns the number of successful deliveries.
// A stale connection only loses its own copy: the failure is logged and the
// remaining members are still served. Nothing is reported to the caller.
func (b *Broadcaster) Publish(ctx context.Context, roomID chat.RoomID, e event.DomainEvent) int {
	b.mu.RLock()
	room, ok := b.rooms[roomID]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	room.publishMu.Lock()
	defer room.publishMu.Unlock()

	// Snapshot under the read lock, deliver without it
	b.mu.RLock()
	targets := make([]contract.Connection, 0, len(room.members))
	for _, conn := range room.members {
		targets = append(targets, conn)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Consume(ctx, e); err != nil {
			b.log.Warn("failed to push event to connection",
				"room_id", roomID,
				"connection_id", conn.ID(),
				"event", e.Name(),
				"error", err)
			b.emit(event.NewEvent(event.DeliveryFailedType, event.DeliveryFailed{
				Room:         roomID,
				ConnectionID: conn.ID(),
				Reason:       err.Error(),
			}))
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) emit(e event.Event) {
	if b.telemetryChan == nil {
		return
	}
	select {
	case b.telemetryChan <- e:
	default:
		b.log.Debug("Observability telemetry event lost")
	}
}

// SubscriptionsOf returns the rooms the connection currently listens to.
func (b *Broadcaster) SubscriptionsOf(conn contract.Connection) []chat.RoomID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rooms := b.subscriptions[conn.ID()]
	if len(rooms) == 0 {
		return nil
	}
	res := make([]chat.RoomID, 0, len(rooms))
	for roomID := range rooms {
		res = append(res, roomID)
	}
	return res
}

// Rooms is the number of rooms with at least one subscriber.
func (b *Broadcaster) Rooms() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}
