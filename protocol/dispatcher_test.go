package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/errors"
	"hire-chat/mocks"
	"hire-chat/sink"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newDispatcher(t *testing.T) (*Dispatcher, *mocks.MockSession) {
	ctrl := gomock.NewController(t)
	session := mocks.NewMockSession(ctrl)
	return NewDispatcher(logs.GetLoggerFromLevel(slog.LevelDebug), session), session
}

func invoke(t *testing.T, id, target string, payload any) Frame {
	frame, err := Invoke(id, target, payload)
	require.NoError(t, err)
	return frame
}

func TestDispatcher_CreateOrJoinRoom(t *testing.T) {
	req := require.New(t)
	dispatcher, session := newDispatcher(t)
	conn := sink.NewConnectionSink("token", 1, time.Millisecond)
	session.EXPECT().
		CreateOrJoinRoom(gomock.Any(), conn, chat.CreateOrJoinRoomCommand{EmployerID: "employer-1", ApplicantID: "applicant-1"}).
		Return(chat.Room{ID: "room-1"}, nil)

	res := dispatcher.Dispatch(context.Background(), conn,
		invoke(t, "1", TargetCreateOrJoinRoom, CreateOrJoinRoomRequest{EmployerID: "employer-1", ApplicantID: "applicant-1"}))

	req.Equal(KindResult, res.Kind)
	req.Equal("1", res.ID)
	req.Nil(res.Error)
	var body CreateOrJoinRoomResponse
	req.NoError(res.Decode(&body))
	req.Equal("room-1", body.RoomID)
}

func TestDispatcher_Errors_Become_Error_Frames(t *testing.T) {
	dispatcher, session := newDispatcher(t)
	conn := sink.NewConnectionSink("", 1, time.Millisecond)
	session.EXPECT().SendMessage(gomock.Any(), conn, gomock.Any()).Return(errors.ErrNotAuthenticated)
	session.EXPECT().MarkMessagesAsRead(gomock.Any(), conn, gomock.Any()).Return(fmt.Errorf("boom: %s", "secret detail"))

	tests := []struct {
		name     string
		frame    Frame
		code     string
		contains string
	}{
		{"not authenticated", invoke(t, "1", TargetSendMessage, SendMessageRequest{RoomID: "room-1", Content: "hi"}), errors.CodeNotAuthenticated, "not authenticated"},
		{"internal details are hidden", invoke(t, "2", TargetMarkMessagesAsRead, MarkMessagesAsReadRequest{RoomID: "room-1"}), errors.CodeInternal, "internal error"},
		{"unknown target", invoke(t, "3", "DeleteEverything", Empty{}), errors.CodeInvalidRequest, "DeleteEverything"},
		{"malformed payload", Frame{Kind: KindInvoke, ID: "4", Target: TargetSendMessage, Payload: json.RawMessage(`{"roomId":42}`)}, errors.CodeInvalidRequest, "invalid payload"},
		{"not an invocation", Frame{Kind: KindEvent, ID: "5"}, errors.CodeInvalidRequest, "expected an invocation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			res := dispatcher.Dispatch(context.Background(), conn, tt.frame)

			req.Equal(KindResult, res.Kind)
			req.Equal(tt.frame.ID, res.ID)
			req.NotNil(res.Error)
			req.Equal(tt.code, res.Error.Code)
			req.Contains(res.Error.Message, tt.contains)
		})
	}
}

func TestDispatcher_GetMessages(t *testing.T) {
	req := require.New(t)
	dispatcher, session := newDispatcher(t)
	conn := sink.NewConnectionSink("token", 1, time.Millisecond)
	cursor := "1700000000000000000:abc"
	next := "1600000000000000000:def"
	id := uuid.New()
	session.EXPECT().IdentityOf(conn).Return(chat.UserID("employer-1"), true)
	session.EXPECT().GetMessages(gomock.Any(), chat.UserID("employer-1"), chat.GetMessageCommand{Room: "room-1", Cursor: &cursor}).
		Return([]chat.SealedMessage{{
			ID:       id,
			Room:     "room-1",
			SenderID: "applicant-1",
			Content:  chat.EncryptedContent{Ciphertext: []byte{1, 2, 3}, IV: []byte{4, 5, 6}},
			Kind:     chat.KindText,
			Read:     true,
		}}, &next, nil)

	res := dispatcher.Dispatch(context.Background(), conn,
		invoke(t, "7", TargetGetMessages, GetMessagesRequest{RoomID: "room-1", Cursor: &cursor}))

	req.Nil(res.Error)
	var body GetMessagesResponse
	req.NoError(res.Decode(&body))
	req.Equal(&next, body.Cursor)
	req.Len(body.Messages, 1)
	req.Equal(id.String(), body.Messages[0].MessageID)
	req.Equal([]byte{1, 2, 3}, body.Messages[0].Ciphertext)
	req.True(body.Messages[0].Read)
}

func TestEventFrame(t *testing.T) {
	req := require.New(t)
	id := uuid.New()

	frame, err := EventFrame(event.MessageReceived{
		Room: "room-1", MessageID: id, SenderID: "alice",
		Ciphertext: []byte("cipher"), IV: []byte("iv"), Kind: chat.KindText,
	})
	req.NoError(err)
	req.Equal(KindEvent, frame.Kind)
	req.Equal(event.ReceiveMessageName, frame.Target)
	var received ReceiveMessageEvent
	req.NoError(frame.Decode(&received))
	req.Equal(id.String(), received.MessageID)
	req.Equal([]byte("cipher"), received.Ciphertext)

	frame, err = EventFrame(event.MessagesMarkedAsRead{Room: "room-1", ReaderID: "bob"})
	req.NoError(err)
	req.Equal(event.MessagesMarkedAsReadName, frame.Target)
	req.JSONEq(`{"roomId":"room-1","readerId":"bob"}`, string(frame.Payload))
}
