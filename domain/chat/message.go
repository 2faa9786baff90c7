package chat

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

// KindText is the only kind emitted today, others are reserved.
const KindText Kind = "text"

// Message is the persisted record of a chat message.
// Content is kept in plaintext; only the read flag changes after creation.
type Message struct {
	ID        uuid.UUID
	Room      RoomID
	SenderID  UserID
	Content   string
	Kind      Kind
	Lang      string
	CreatedAt time.Time
	Read      bool
}

// EncryptedContent is what travels on the wire for a message.
type EncryptedContent struct {
	Ciphertext []byte
	IV         []byte
}

// SealedMessage is a stored message as a client sees it: the content is
// replaced by its encrypted form.
type SealedMessage struct {
	ID        uuid.UUID
	Room      RoomID
	SenderID  UserID
	Content   EncryptedContent
	Kind      Kind
	CreatedAt time.Time
	Read      bool
}
