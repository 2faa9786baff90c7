//go:generate go run go.uber.org/mock/mockgen -source=collaborators.go -destination=../mocks/mock_collaborators.go -package=mocks
package contract

import (
	"context"
	"hire-chat/domain/chat"

	"github.com/google/uuid"
)

// RoomStore is the source of truth for rooms and messages.
// GetOrCreateRoom must be idempotent under concurrent callers for the same pair.
type RoomStore interface {
	GetOrCreateRoom(ctx context.Context, employerID, applicantID chat.UserID) (chat.Room, error)
	Room(ctx context.Context, roomID chat.RoomID) (chat.Room, error)
	RoomsOf(ctx context.Context, user chat.UserID) ([]chat.RoomID, error)
	SaveMessage(ctx context.Context, roomID chat.RoomID, senderID chat.UserID, content string) (chat.Message, error)
	Message(ctx context.Context, roomID chat.RoomID, messageID uuid.UUID) (chat.Message, error)
	Messages(ctx context.Context, roomID chat.RoomID, cursor *string) ([]chat.Message, *string, error)
	MarkRead(ctx context.Context, roomID chat.RoomID, reader chat.UserID) (int, error)
}

type MessageCipher interface {
	Encrypt(plaintext string) (chat.EncryptedContent, error)
	Decrypt(content chat.EncryptedContent) (string, error)
}

// PrincipalResolver yields the stable user identity behind a connection.
type PrincipalResolver interface {
	IdentityOf(conn Connection) (chat.UserID, bool)
}

type Moderator interface {
	Censor(content string) (string, []string)
}
