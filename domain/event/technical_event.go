package event

import (
	"hire-chat/domain/chat"
	"time"
)

type Type string

const (
	MessageSentType         Type = "MESSAGE_SENT"
	ReadReceiptType         Type = "READ_RECEIPT"
	DeliveryFailedType      Type = "DELIVERY_FAILED"
	ConnectionType          Type = "CONNECTION"
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	ProcessStatsType        Type = "PROCESS_STATS"
)

// Event is a telemetry envelope. It never reaches a client.
type Event struct {
	Type      Type
	CreatedAt time.Time
	Payload   any
}

func NewEvent(t Type, payload any) Event {
	return Event{Type: t, CreatedAt: time.Now().UTC(), Payload: payload}
}

type MessageSent struct {
	Room       chat.RoomID
	SenderID   chat.UserID
	Recipients int
}

type ReadReceipt struct {
	Room     chat.RoomID
	ReaderID chat.UserID
	Count    int
}

type DeliveryFailed struct {
	Room         chat.RoomID
	ConnectionID chat.ConnectionID
	Reason       string
}

type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

type ConnectionChanged struct {
	UserID       chat.UserID
	ConnectionID chat.ConnectionID
	State        ConnectionState
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type ProcessStats struct {
	PID         int32
	Status      string
	Cpu         float64
	RssBytes    uint64
	Users       int
	Connections int
	Rooms       int
}
