// Package services holds the Chat Session Handler, the protocol entry point
// bound to every transport connection.
package services

import (
	"context"
	"fmt"
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type SessionConfig struct {
	MaxContentLength  int
	SendRatePerSecond float64
	SendBurst         int
}

// session is the per-connection state kept between calls.
// user is the identity resolved at connect time, used to clean up on disconnect.
type session struct {
	user    chat.UserID
	limiter *rate.Limiter
}

// SessionHandler orchestrates the Room Store, the Message Cipher, the Connection
// Registry and the Room Broadcaster for every client call.
// No registry or broadcaster lock is ever held across a store or cipher call.
type SessionHandler struct {
	log           *slog.Logger
	store         contract.RoomStore
	cipher        contract.MessageCipher
	resolver      contract.PrincipalResolver
	moderator     contract.Moderator
	registry      contract.IConnectionRegistry
	broadcaster   contract.IRoomBroadcaster
	telemetryChan chan event.Event
	config        SessionConfig

	mu       sync.Mutex
	sessions map[chat.ConnectionID]*session

	// sequencer keeps persistence and broadcast order aligned for one room
	sequencer *roomSequencer
}

// NewSessionHandler builds the handler. moderator may be nil.
func NewSessionHandler(
	log *slog.Logger,
	store contract.RoomStore,
	cipher contract.MessageCipher,
	resolver contract.PrincipalResolver,
	moderator contract.Moderator,
	registry contract.IConnectionRegistry,
	broadcaster contract.IRoomBroadcaster,
	telemetryChan chan event.Event,
	config SessionConfig,
) *SessionHandler {
	return &SessionHandler{
		log:           log,
		store:         store,
		cipher:        cipher,
		resolver:      resolver,
		moderator:     moderator,
		registry:      registry,
		broadcaster:   broadcaster,
		telemetryChan: telemetryChan,
		config:        config,
		sessions:      make(map[chat.ConnectionID]*session),
		sequencer:     newRoomSequencer(),
	}
}

// OnConnect registers an identified connection and subscribes it to every room
// of its user. Anonymous connections are accepted but neither registered nor subscribed.
// A room that cannot be loaded is skipped, the others are still subscribed.
// When the rooms of the user cannot be listed, even after a retry, the
// connection is cleaned up and the error returned: the transport refuses it
// and the client reconnects instead of living without its rooms.
func (h *SessionHandler) OnConnect(ctx context.Context, conn contract.Connection) error {
	user, ok := h.resolver.IdentityOf(conn)
	h.openSession(conn, user)
	if !ok {
		h.log.Debug("Anonymous connection", "connection_id", conn.ID())
		return nil
	}

	h.registry.Register(user, conn)
	h.emit(event.NewEvent(event.ConnectionType, event.ConnectionChanged{
		UserID:       user,
		ConnectionID: conn.ID(),
		State:        event.Connected,
	}))

	roomIDs, err := h.roomsOf(ctx, user)
	if err != nil {
		h.log.Error("Unable to load rooms, connection refused",
			"user_id", user, "connection_id", conn.ID(), "error", err)
		h.OnDisconnect(context.WithoutCancel(ctx), conn)
		return err
	}

	subscribed := 0
	for _, roomID := range roomIDs {
		room, err := h.store.Room(ctx, roomID)
		if err != nil {
			h.log.Warn("Skipping room on connect", "user_id", user, "room_id", roomID, "error", err)
			continue
		}
		if !room.HasParticipant(user) {
			h.log.Warn("Skipping room the user is not part of", "user_id", user, "room_id", roomID)
			continue
		}
		h.broadcaster.Subscribe(conn, roomID)
		subscribed++
	}
	h.log.Info("Connection opened", "user_id", user, "connection_id", conn.ID(), "rooms", subscribed)
	return nil
}

// OnDisconnect removes every trace of the connection from the registry and the broadcaster.
// It is idempotent: the transport and the presence reaper may both call it.
// The connection is closed first: a subscription racing with the cleanup is
// then refused by the broadcaster.
func (h *SessionHandler) OnDisconnect(_ context.Context, conn contract.Connection) {
	conn.Close()
	s := h.closeSession(conn)
	if s != nil && s.user != "" {
		h.registry.Unregister(s.user, conn)
	}
	h.broadcaster.UnsubscribeAll(conn)

	if s != nil && s.user != "" {
		h.emit(event.NewEvent(event.ConnectionType, event.ConnectionChanged{
			UserID:       s.user,
			ConnectionID: conn.ID(),
			State:        event.Disconnected,
		}))
		h.log.Info("Connection closed", "user_id", s.user, "connection_id", conn.ID())
	}
}

// CreateOrJoinRoom returns the room of the pair and subscribes every live
// connection of both participants to it, the calling one included.
func (h *SessionHandler) CreateOrJoinRoom(ctx context.Context, conn contract.Connection, cmd chat.CreateOrJoinRoomCommand) (chat.Room, error) {
	user, err := h.identity(conn)
	if err != nil {
		return chat.Room{}, err
	}
	if err := validateCommand(cmd); err != nil {
		return chat.Room{}, err
	}
	if user != cmd.EmployerID && user != cmd.ApplicantID {
		return chat.Room{}, fmt.Errorf("%w: %s is neither the employer nor the applicant", errors.ErrUnauthorized, user)
	}

	room, err := h.store.GetOrCreateRoom(ctx, cmd.EmployerID, cmd.ApplicantID)
	if err != nil {
		return chat.Room{}, err
	}

	h.broadcaster.Subscribe(conn, room.ID)
	for _, participant := range room.Participants() {
		for _, c := range h.registry.ConnectionsOf(participant) {
			h.broadcaster.Subscribe(c, room.ID)
		}
	}
	h.log.Debug("Room joined", "user_id", user, "room_id", room.ID)
	return room, nil
}

// SendMessage persists the plaintext and publishes its ciphertext to the room.
// Nothing is published when any step before persistence fails.
func (h *SessionHandler) SendMessage(ctx context.Context, conn contract.Connection, cmd chat.SendMessageCommand) error {
	user, err := h.identity(conn)
	if err != nil {
		return err
	}
	if err := validateCommand(cmd); err != nil {
		return err
	}
	if err := validateContent(cmd.Content, h.config.MaxContentLength); err != nil {
		return err
	}
	if !h.allow(conn) {
		return fmt.Errorf("%w: slow down", errors.ErrRateLimited)
	}
	if _, err := h.participantRoom(ctx, cmd, user); err != nil {
		return err
	}

	content := h.moderate(user, cmd.Room, cmd.Content)
	sealed, err := h.cipher.Encrypt(content)
	if err != nil {
		return err
	}

	release := h.sequencer.acquire(cmd.RoomID())
	message, err := h.store.SaveMessage(ctx, cmd.Room, user, content)
	if err != nil {
		release()
		return err
	}
	// The message is stored: a canceled caller must not prevent its broadcast
	delivered := h.broadcaster.Publish(context.WithoutCancel(ctx), cmd.Room, event.MessageReceived{
		Room:       message.Room,
		MessageID:  message.ID,
		SenderID:   message.SenderID,
		Ciphertext: sealed.Ciphertext,
		IV:         sealed.IV,
		At:         message.CreatedAt,
		Kind:       message.Kind,
	})
	release()

	h.emit(event.NewEvent(event.MessageSentType, event.MessageSent{
		Room:       cmd.Room,
		SenderID:   user,
		Recipients: delivered,
	}))
	return nil
}

// MarkMessagesAsRead flags the caller's unread messages of the room and
// publishes exactly one read receipt, even when nothing was unread.
func (h *SessionHandler) MarkMessagesAsRead(ctx context.Context, conn contract.Connection, cmd chat.MarkMessagesAsReadCommand) error {
	user, err := h.identity(conn)
	if err != nil {
		return err
	}
	if err := validateCommand(cmd); err != nil {
		return err
	}
	if _, err := h.participantRoom(ctx, cmd, user); err != nil {
		return err
	}

	release := h.sequencer.acquire(cmd.RoomID())
	count, err := h.store.MarkRead(ctx, cmd.Room, user)
	if err != nil {
		release()
		return err
	}
	delivered := h.broadcaster.Publish(context.WithoutCancel(ctx), cmd.Room, event.MessagesMarkedAsRead{
		Room:     cmd.Room,
		ReaderID: user,
		Count:    count,
		At:       time.Now().UTC(),
	})
	release()

	h.emit(event.NewEvent(event.ReadReceiptType, event.ReadReceipt{
		Room:     cmd.Room,
		ReaderID: user,
		Count:    count,
	}))
	h.log.Debug("Messages marked as read", "user_id", user, "room_id", cmd.Room, "count", count, "recipients", delivered)
	return nil
}

// ListRooms returns the rooms of user. Rooms that cannot be loaded are skipped.
func (h *SessionHandler) ListRooms(ctx context.Context, user chat.UserID) ([]chat.Room, error) {
	if user == "" {
		return nil, errors.ErrNotAuthenticated
	}
	roomIDs, err := h.store.RoomsOf(ctx, user)
	if err != nil {
		return nil, err
	}
	rooms := make([]chat.Room, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		room, err := h.store.Room(ctx, roomID)
		if err != nil {
			h.log.Warn("Skipping room", "user_id", user, "room_id", roomID, "error", err)
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// GetMessages returns a page of the room history, newest first, every message
// encrypted as it would be in a ReceiveMessage event.
func (h *SessionHandler) GetMessages(ctx context.Context, user chat.UserID, cmd chat.GetMessageCommand) ([]chat.SealedMessage, *string, error) {
	if user == "" {
		return nil, nil, errors.ErrNotAuthenticated
	}
	if err := validateCommand(cmd); err != nil {
		return nil, nil, err
	}
	if _, err := h.participantRoom(ctx, cmd, user); err != nil {
		return nil, nil, err
	}

	messages, cursor, err := h.store.Messages(ctx, cmd.Room, cmd.Cursor)
	if err != nil {
		return nil, nil, err
	}
	sealed := make([]chat.SealedMessage, 0, len(messages))
	for _, m := range messages {
		content, err := h.cipher.Encrypt(m.Content)
		if err != nil {
			return nil, nil, err
		}
		sealed = append(sealed, chat.SealedMessage{
			ID:        m.ID,
			Room:      m.Room,
			SenderID:  m.SenderID,
			Content:   content,
			Kind:      m.Kind,
			CreatedAt: m.CreatedAt,
			Read:      m.Read,
		})
	}
	return sealed, cursor, nil
}

// IdentityOf exposes the principal resolution to the transports.
func (h *SessionHandler) IdentityOf(conn contract.Connection) (chat.UserID, bool) {
	return h.resolver.IdentityOf(conn)
}

func (h *SessionHandler) identity(conn contract.Connection) (chat.UserID, error) {
	user, ok := h.resolver.IdentityOf(conn)
	if !ok {
		return "", errors.ErrNotAuthenticated
	}
	return user, nil
}

// roomsOf lists the rooms of user, retrying once unless ctx is done.
func (h *SessionHandler) roomsOf(ctx context.Context, user chat.UserID) ([]chat.RoomID, error) {
	roomIDs, err := h.store.RoomsOf(ctx, user)
	if err == nil {
		return roomIDs, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	h.log.Warn("Unable to load rooms, retrying", "user_id", user, "error", err)
	return h.store.RoomsOf(ctx, user)
}

// participantRoom loads the room targeted by cmd and checks user takes part in it.
func (h *SessionHandler) participantRoom(ctx context.Context, cmd chat.Command, user chat.UserID) (chat.Room, error) {
	roomID := cmd.RoomID()
	room, err := h.store.Room(ctx, roomID)
	if err != nil {
		return chat.Room{}, err
	}
	if !room.HasParticipant(user) {
		return chat.Room{}, fmt.Errorf("%w: %s is not a participant of %s", errors.ErrUnauthorized, user, roomID)
	}
	return room, nil
}

func (h *SessionHandler) moderate(user chat.UserID, roomID chat.RoomID, content string) string {
	if h.moderator == nil {
		return content
	}
	censored, words := h.moderator.Censor(content)
	if len(words) > 0 {
		h.log.Info("Message censored", "user_id", user, "room_id", roomID, "words", len(words))
	}
	return censored
}

func (h *SessionHandler) openSession(conn contract.Connection, user chat.UserID) {
	s := &session{user: user}
	if h.config.SendRatePerSecond > 0 {
		burst := h.config.SendBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(h.config.SendRatePerSecond), burst)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[conn.ID()] = s
}

func (h *SessionHandler) closeSession(conn contract.Connection) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[conn.ID()]
	if !ok {
		return nil
	}
	delete(h.sessions, conn.ID())
	return s
}

func (h *SessionHandler) allow(conn contract.Connection) bool {
	h.mu.Lock()
	s, ok := h.sessions[conn.ID()]
	h.mu.Unlock()
	if !ok || s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

func (h *SessionHandler) emit(e event.Event) {
	select {
	case h.telemetryChan <- e:
	default:
		h.log.Debug("Observability telemetry event lost")
	}
}
