//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is the handle of one live transport socket.
// A user owns zero or more of them at the same time (multi-device).
type Connection interface {
	EventSink
	ID() chat.ConnectionID
	// Token is the raw credential presented when the socket was opened.
	Token() string
	Alive() bool
	Close()
}

// IConnectionRegistry maps a user identity to its live connections.
type IConnectionRegistry interface {
	Register(user chat.UserID, conn Connection)
	Unregister(user chat.UserID, conn Connection)
	ConnectionsOf(user chat.UserID) []Connection
	Snapshot() []Connection
	Len() (users int, connections int)
}

// IRoomBroadcaster maps a room to the connections subscribed to it.
type IRoomBroadcaster interface {
	Subscribe(conn Connection, roomID chat.RoomID)
	Unsubscribe(conn Connection, roomID chat.RoomID)
	UnsubscribeAll(conn Connection)
	Publish(ctx context.Context, roomID chat.RoomID, e event.DomainEvent) int
	SubscriptionsOf(conn Connection) []chat.RoomID
	Rooms() int
}

// SessionLifecycle is the part of the session handler driven by the runtime.
type SessionLifecycle interface {
	OnConnect(ctx context.Context, conn Connection) error
	OnDisconnect(ctx context.Context, conn Connection)
}
