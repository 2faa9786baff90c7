package event

import (
	"hire-chat/domain/chat"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is pushed by the server to every connection subscribed to a room.
type DomainEvent interface {
	RoomID() chat.RoomID
	Name() string
}

const (
	ReceiveMessageName       = "ReceiveMessage"
	MessagesMarkedAsReadName = "MessagesMarkedAsRead"
)

// MessageReceived carries the encrypted form of a freshly persisted message.
// The plaintext never leaves the store through this event.
type MessageReceived struct {
	Room       chat.RoomID
	MessageID  uuid.UUID
	SenderID   chat.UserID
	Ciphertext []byte
	IV         []byte
	At         time.Time
	Kind       chat.Kind
}

func (m MessageReceived) RoomID() chat.RoomID { return m.Room }
func (m MessageReceived) Name() string        { return ReceiveMessageName }

// MessagesMarkedAsRead is the read receipt of ReaderID for the room.
type MessagesMarkedAsRead struct {
	Room     chat.RoomID
	ReaderID chat.UserID
	Count    int
	At       time.Time
}

func (m MessagesMarkedAsRead) RoomID() chat.RoomID { return m.Room }
func (m MessagesMarkedAsRead) Name() string        { return MessagesMarkedAsReadName }
