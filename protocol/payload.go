package protocol

import (
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"time"

	"github.com/samber/lo"
)

type CreateOrJoinRoomRequest struct {
	EmployerID  string `json:"employerId"`
	ApplicantID string `json:"applicantId"`
}

type CreateOrJoinRoomResponse struct {
	RoomID string `json:"roomId"`
}

type SendMessageRequest struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type MarkMessagesAsReadRequest struct {
	RoomID string `json:"roomId"`
}

type Empty struct{}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

type Room struct {
	RoomID      string    `json:"roomId"`
	EmployerID  string    `json:"employerId"`
	ApplicantID string    `json:"applicantId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type GetMessagesRequest struct {
	RoomID string  `json:"roomId"`
	Cursor *string `json:"cursor,omitempty"`
}

type GetMessagesResponse struct {
	Messages []Message `json:"messages"`
	Cursor   *string   `json:"cursor,omitempty"`
}

// Message is a history entry. Ciphertext and IV are base64 encoded by encoding/json.
type Message struct {
	MessageID  string    `json:"messageId"`
	RoomID     string    `json:"roomId"`
	SenderID   string    `json:"senderId"`
	Ciphertext []byte    `json:"ciphertext"`
	IV         []byte    `json:"iv"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Read       bool      `json:"read"`
}

type ReceiveMessageEvent struct {
	RoomID     string    `json:"roomId"`
	MessageID  string    `json:"messageId"`
	SenderID   string    `json:"senderId"`
	Ciphertext []byte    `json:"ciphertext"`
	IV         []byte    `json:"iv"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
}

type MessagesMarkedAsReadEvent struct {
	RoomID   string `json:"roomId"`
	ReaderID string `json:"readerId"`
}

func FromRooms(rooms []chat.Room) []Room {
	return lo.Map(rooms, func(r chat.Room, _ int) Room {
		return Room{
			RoomID:      string(r.ID),
			EmployerID:  string(r.EmployerID),
			ApplicantID: string(r.ApplicantID),
			CreatedAt:   r.CreatedAt,
		}
	})
}

func FromSealedMessages(messages []chat.SealedMessage) []Message {
	return lo.Map(messages, func(m chat.SealedMessage, _ int) Message {
		return Message{
			MessageID:  m.ID.String(),
			RoomID:     string(m.Room),
			SenderID:   string(m.SenderID),
			Ciphertext: m.Content.Ciphertext,
			IV:         m.Content.IV,
			Timestamp:  m.CreatedAt,
			Kind:       string(m.Kind),
			Read:       m.Read,
		}
	})
}

// EventFrame renders a room event as pushed to clients.
func EventFrame(e event.DomainEvent) (Frame, error) {
	var payload any
	switch evt := e.(type) {
	case event.MessageReceived:
		payload = ReceiveMessageEvent{
			RoomID:     string(evt.Room),
			MessageID:  evt.MessageID.String(),
			SenderID:   string(evt.SenderID),
			Ciphertext: evt.Ciphertext,
			IV:         evt.IV,
			Timestamp:  evt.At,
			Kind:       string(evt.Kind),
		}
	case event.MessagesMarkedAsRead:
		payload = MessagesMarkedAsReadEvent{
			RoomID:   string(evt.Room),
			ReaderID: string(evt.ReaderID),
		}
	default:
		payload = struct {
			RoomID string `json:"roomId"`
		}{RoomID: string(e.RoomID())}
	}
	frame := result("", e.Name(), payload)
	if frame.Error != nil {
		return Frame{}, frame.Error
	}
	frame.Kind = KindEvent
	return frame, nil
}
