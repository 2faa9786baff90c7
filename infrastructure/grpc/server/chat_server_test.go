package server

import (
	"bytes"
	"context"
	"hire-chat/auth"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/encryption"
	"hire-chat/errors"
	"hire-chat/infrastructure/grpc/client"
	"hire-chat/infrastructure/storage"
	"hire-chat/protocol"
	"hire-chat/runtime"
	"hire-chat/services"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var secret = []byte("server-test-secret")

func startServer(t *testing.T) (*client.ChatClient, *encryption.Cipher) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cipher, err := encryption.NewCipher(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)

	telemetryChan := make(chan event.Event, 1000)
	handler := services.NewSessionHandler(log,
		storage.NewRoomRepository(db, log, nil), cipher, auth.NewTokenResolver(secret), nil,
		runtime.NewRegistry(), runtime.NewBroadcaster(log, telemetryChan), telemetryChan,
		services.SessionConfig{MaxContentLength: 1000})

	lis := bufconn.Listen(1 << 20)
	s := NewServer(log, secret)
	RegisterChatServiceServer(s, NewChatServer(log, handler, 32, time.Second))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := client.Dial("passthrough:///bufnet", grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return client.NewChatClient(conn), cipher
}

func token(t *testing.T, user string, role string) string {
	tok, err := auth.GenerateToken(secret, user, []string{role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func openSession(t *testing.T, c *client.ChatClient, tok string) *client.Session {
	t.Helper()
	ctx, cancel := context.WithCancel(client.WithToken(context.Background(), tok))
	t.Cleanup(cancel)
	session, err := c.Session(ctx)
	require.NoError(t, err)
	return session
}

func nextEvent(t *testing.T, s *client.Session) protocol.Frame {
	t.Helper()
	select {
	case frame, ok := <-s.Events():
		require.True(t, ok, "session ended: %v", s.Err())
		return frame
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event received")
		return protocol.Frame{}
	}
}

func TestChatServer_Conversation(t *testing.T) {
	req := require.New(t)
	c, cipher := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Given an employer and an applicant both connected
	employer := openSession(t, c, token(t, "employer-1", auth.RoleEmployer))
	applicant := openSession(t, c, token(t, "applicant-1", auth.RoleApplicant))

	// When the employer opens the room and writes
	roomID, err := employer.CreateOrJoinRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)
	req.NotEmpty(roomID)
	req.NoError(employer.SendMessage(ctx, roomID, "Hello, when are you available?"))

	// Then both participants receive the encrypted message
	for _, s := range []*client.Session{applicant, employer} {
		frame := nextEvent(t, s)
		req.Equal(event.ReceiveMessageName, frame.Target)
		var received protocol.ReceiveMessageEvent
		req.NoError(frame.Decode(&received))
		req.Equal(roomID, received.RoomID)
		req.Equal("employer-1", received.SenderID)
		plaintext, err := cipher.Decrypt(chat.EncryptedContent{Ciphertext: received.Ciphertext, IV: received.IV})
		req.NoError(err)
		req.Equal("Hello, when are you available?", plaintext)
	}

	// When the applicant reads the room
	req.NoError(applicant.MarkMessagesAsRead(ctx, roomID))

	// Then the employer gets the receipt
	frame := nextEvent(t, employer)
	req.Equal(event.MessagesMarkedAsReadName, frame.Target)
	var receipt protocol.MessagesMarkedAsReadEvent
	req.NoError(frame.Decode(&receipt))
	req.Equal("applicant-1", receipt.ReaderID)

	// And the history shows the message as read
	history, err := c.GetMessages(client.WithToken(ctx, token(t, "employer-1", auth.RoleEmployer)), roomID, nil)
	req.NoError(err)
	req.Len(history.Messages, 1)
	req.True(history.Messages[0].Read)
	req.Nil(history.Cursor)
}

func TestChatServer_Anonymous_Session_Is_Rejected_Per_Call(t *testing.T) {
	req := require.New(t)
	c, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	anonymous := openSession(t, c, "")

	err := anonymous.SendMessage(ctx, "room-1", "hello")

	var frameErr *protocol.Error
	req.ErrorAs(err, &frameErr)
	req.Equal(errors.CodeNotAuthenticated, frameErr.Code)

	// The session survives a rejected call
	_, err = anonymous.ListRooms(ctx)
	req.ErrorAs(err, &frameErr)
	req.Equal(errors.CodeNotAuthenticated, frameErr.Code)
}

func TestChatServer_Invalid_Token_Is_Rejected_At_Connect(t *testing.T) {
	req := require.New(t)
	c, _ := startServer(t)
	session := openSession(t, c, "not-a-jwt")

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		req.FailNow("session was not rejected")
	}
	req.Equal(codes.Unauthenticated, status.Code(session.Err()))
}

func TestChatServer_Unary_Calls(t *testing.T) {
	req := require.New(t)
	c, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	employerToken := token(t, "employer-1", auth.RoleEmployer)
	employer := openSession(t, c, employerToken)
	roomID, err := employer.CreateOrJoinRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// Given an authenticated caller
	rooms, err := c.ListRooms(client.WithToken(ctx, employerToken))
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(roomID, rooms[0].RoomID)
	req.Equal("applicant-1", rooms[0].ApplicantID)

	// Given no token at all
	_, err = c.ListRooms(ctx)
	req.Equal(codes.Unauthenticated, status.Code(err))

	// Given a user outside the room
	_, err = c.GetMessages(client.WithToken(ctx, token(t, "intruder", auth.RoleApplicant)), roomID, nil)
	req.Equal(codes.PermissionDenied, status.Code(err))
}
