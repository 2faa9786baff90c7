package storage

import (
	"hire-chat/domain/chat"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	message := chat.Message{ID: uuid.New(), Room: "room-1", SenderID: "alice", Content: "Hello Bob",
		Kind: chat.KindText, Lang: "eng", CreatedAt: at}

	tests := []struct {
		name     string
		key      string
		val      []byte
		wantType string
		wantRoom string
		detail   string
	}{
		{"room", "room:room-1", EncodeRoom(chat.Room{ID: "room-1", EmployerID: "emp", ApplicantID: "app", CreatedAt: at}),
			"ROOM", "room-1", "employer=emp applicant=app"},
		{"message", string(messageKey(message)), EncodeMessage(message), "MESSAGE", "room-1", "alice [eng read=false] Hello Bob"},
		{"pair", string(pairKey("emp", "app")), []byte("room-1"), "PAIR", "room-1", "Size: 6 bytes"},
		{"member", string(memberKey("emp", "room-1")), nil, "MEMBER", "room-1", "user=emp"},
		{"unknown", "other:key", []byte("xyz"), "RAW", "-", "Size: 3 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			record := Describe(tt.key, tt.val)

			req.Equal(tt.wantType, record.Type)
			req.Equal(tt.wantRoom, record.Room)
			req.Equal(tt.detail, record.Detail)
			req.NotContains(record.Key, separator)
		})
	}
}

func TestDescribe_Truncates_Long_Content(t *testing.T) {
	req := require.New(t)
	message := chat.Message{ID: uuid.New(), Room: "room-1", SenderID: "alice",
		Content: strings.Repeat("a", 100), CreatedAt: time.Now()}

	record := Describe(string(messageKey(message)), EncodeMessage(message))

	req.Contains(record.Detail, "…")
}
