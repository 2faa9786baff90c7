package test

import (
	"bytes"
	"context"
	"hire-chat/auth"
	"hire-chat/domain/event"
	"hire-chat/encryption"
	"hire-chat/infrastructure/grpc/client"
	"hire-chat/infrastructure/grpc/server"
	"hire-chat/infrastructure/storage"
	"hire-chat/infrastructure/websocket"
	"hire-chat/projection"
	"hire-chat/protocol"
	"hire-chat/runtime"
	"hire-chat/services"
	"log/slog"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

var secret = []byte("integration-secret-integration-secret")

type hub struct {
	orchestrator *runtime.Orchestrator
	chat         *client.ChatClient
	ws           *httptest.Server
	cipher       *encryption.Cipher
}

// startHub wires the same pieces as cmd/master on in-memory listeners.
func startHub(t *testing.T) hub {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Reduced to 16 Mo for testing
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	cipher, err := encryption.NewCipher(bytes.Repeat([]byte{7}, 32))
	req.NoError(err)

	orchestrator := runtime.NewOrchestrator(log, runtime.Config{
		BufferSize:           1000,
		RestartInterval:      100 * time.Millisecond,
		MetricInterval:       50 * time.Millisecond,
		PresenceInterval:     50 * time.Millisecond,
		LowCapacityThreshold: 300,
		EnableModeration:     true,
		CharReplacement:      '*',
	})
	moderator, err := orchestrator.Moderator()
	req.NoError(err)
	handler := services.NewSessionHandler(log,
		storage.NewRoomRepository(db, log, lo.ToPtr(100)), cipher, auth.NewTokenResolver(secret), moderator,
		orchestrator.Registry(), orchestrator.Broadcaster(), orchestrator.TelemetryChan(),
		services.SessionConfig{MaxContentLength: 2000})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = orchestrator.Start(ctx, handler, nil) }()

	lis := bufconn.Listen(1 << 20)
	grpcServer := server.NewServer(log, secret)
	server.RegisterChatServiceServer(grpcServer, server.NewChatServer(log, handler, 64, time.Second))
	go func() { _ = grpcServer.Serve(lis) }()
	conn, err := client.Dial("passthrough:///bufnet", grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	req.NoError(err)

	ws := httptest.NewServer(websocket.NewHandler(log, handler, secret, 64, time.Second))

	// Clean everything at the end of the test
	t.Cleanup(func() {
		_ = conn.Close()
		ws.Close()
		grpcServer.Stop()
		cancel()
		orchestrator.Stop()
		_ = db.Close()
	})
	return hub{orchestrator: orchestrator, chat: client.NewChatClient(conn), ws: ws, cipher: cipher}
}

func token(t *testing.T, user, role string) string {
	tok, err := auth.GenerateToken(secret, user, []string{role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func grpcDevice(t *testing.T, h hub, tok string) *client.Session {
	t.Helper()
	ctx, cancel := context.WithCancel(client.WithToken(context.Background(), tok))
	t.Cleanup(cancel)
	session, err := h.chat.Session(ctx)
	require.NoError(t, err)
	return session
}

func wsDevice(t *testing.T, h hub, tok string) *gorilla.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(h.ws.URL, "http") + "?access_token=" + url.QueryEscape(tok)
	ws, _, err := gorilla.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// drain folds the pushed events of a gRPC device until the condition holds.
func drain(t *testing.T, s *client.Session, timeline *projection.Timeline, until func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !until() {
		select {
		case frame, ok := <-s.Events():
			require.True(t, ok, "session ended: %v", s.Err())
			_, err := timeline.Apply(frame)
			require.NoError(t, err)
		case <-deadline:
			require.FailNow(t, "timeline never converged")
		}
	}
}

// drainWS does the same for a WebSocket device, skipping invocation results.
func drainWS(t *testing.T, ws *gorilla.Conn, timeline *projection.Timeline, until func() bool) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for !until() {
		var frame protocol.Frame
		require.NoError(t, ws.ReadJSON(&frame))
		_, err := timeline.Apply(frame)
		require.NoError(t, err)
	}
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	h := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Given an employer on two gRPC devices and an applicant on a WebSocket
	employerToken := token(t, "employer-1", auth.RoleEmployer)
	laptop := grpcDevice(t, h, employerToken)
	phone := grpcDevice(t, h, employerToken)
	applicant := wsDevice(t, h, token(t, "applicant-1", auth.RoleApplicant))
	laptopTimeline := projection.NewTimeline("employer-1", h.cipher)
	phoneTimeline := projection.NewTimeline("employer-1", h.cipher)
	applicantTimeline := projection.NewTimeline("applicant-1", h.cipher)

	// When the employer opens the room from the laptop
	roomID, err := laptop.CreateOrJoinRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// And both sides write, the applicant with a word to moderate
	req.NoError(laptop.SendMessage(ctx, roomID, "Hello, are you still interested?"))
	frame, err := protocol.Invoke("ws-1", protocol.TargetSendMessage,
		protocol.SendMessageRequest{RoomID: roomID, Content: "Yes, this idiot form was long"})
	req.NoError(err)
	req.NoError(applicant.WriteJSON(frame))

	// Then every device converges on the same ordered, moderated conversation
	hasTwo := func(tl *projection.Timeline) func() bool {
		return func() bool { return len(tl.Messages(roomID)) == 2 }
	}
	drain(t, laptop, laptopTimeline, hasTwo(laptopTimeline))
	drain(t, phone, phoneTimeline, hasTwo(phoneTimeline))
	drainWS(t, applicant, applicantTimeline, hasTwo(applicantTimeline))

	want := []string{"Hello, are you still interested?", "Yes, this ***** form was long"}
	for _, tl := range []*projection.Timeline{laptopTimeline, phoneTimeline, applicantTimeline} {
		req.Equal(want, lo.Map(tl.Messages(roomID), func(e projection.Entry, _ int) string { return e.Content }))
	}
	req.Equal(1, phoneTimeline.Unread(roomID))

	// When the employer reads on the phone
	req.NoError(phone.MarkMessagesAsRead(ctx, roomID))

	// Then the applicant sees its message read and the laptop gets the receipt too
	drainWS(t, applicant, applicantTimeline, func() bool {
		return applicantTimeline.Messages(roomID)[1].Read
	})
	drain(t, laptop, laptopTimeline, func() bool { return laptopTimeline.Unread(roomID) == 0 })

	// And the telemetry reached the orchestrator handlers
	req.Eventually(func() bool {
		return h.orchestrator.Counter().Get(event.MessageSentType) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Scenario_Late_Device_Gets_History(t *testing.T) {
	req := require.New(t)
	h := startHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Given a conversation held while the applicant was offline
	employer := grpcDevice(t, h, token(t, "employer-1", auth.RoleEmployer))
	roomID, err := employer.CreateOrJoinRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)
	for i := 0; i < 3; i++ {
		req.NoError(employer.SendMessage(ctx, roomID, "ping"))
	}

	// When the applicant connects later
	applicantToken := token(t, "applicant-1", auth.RoleApplicant)
	late := grpcDevice(t, h, applicantToken)
	rooms, err := late.ListRooms(ctx)
	req.NoError(err)
	req.Len(rooms, 1)
	history, err := late.GetMessages(ctx, roomID, nil)
	req.NoError(err)

	// Then the history replays into the timeline
	timeline := projection.NewTimeline("applicant-1", h.cipher)
	req.NoError(timeline.Load(history.Messages))
	req.Len(timeline.Messages(roomID), 3)
	req.Equal(3, timeline.Unread(roomID))

	// And the late device is subscribed to the room at connect
	req.NoError(employer.SendMessage(ctx, roomID, "welcome back"))
	drain(t, late, timeline, func() bool { return len(timeline.Messages(roomID)) == 4 })
	req.Equal("welcome back", timeline.Messages(roomID)[3].Content)
}
