package client

import (
	"context"
	"hire-chat/infrastructure/grpc/wire"
	"hire-chat/protocol"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// ChatClient is the client of hirechat.v1.ChatService.
type ChatClient struct {
	cc grpc.ClientConnInterface
}

func NewChatClient(cc grpc.ClientConnInterface) *ChatClient {
	return &ChatClient{cc: cc}
}

// Dial opens a plaintext connection to a chat server.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	return grpc.NewClient(target, opts...)
}

// WithToken authenticates the calls made with the returned context.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *ChatClient) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	var res protocol.ListRoomsResponse
	err := c.cc.Invoke(ctx, wire.ListRoomsMethod, &protocol.ListRoomsRequest{}, &res,
		grpc.CallContentSubtype(wire.CodecName))
	if err != nil {
		return nil, err
	}
	return res.Rooms, nil
}

func (c *ChatClient) GetMessages(ctx context.Context, roomID string, cursor *string) (protocol.GetMessagesResponse, error) {
	var res protocol.GetMessagesResponse
	err := c.cc.Invoke(ctx, wire.GetMessagesMethod, &protocol.GetMessagesRequest{RoomID: roomID, Cursor: cursor}, &res,
		grpc.CallContentSubtype(wire.CodecName))
	return res, err
}

// Session opens the bidirectional session stream. Its lifetime is bound to ctx.
func (c *ChatClient) Session(ctx context.Context) (*Session, error) {
	stream, err := c.cc.NewStream(ctx, &wire.SessionStreamDesc, wire.SessionMethod,
		grpc.CallContentSubtype(wire.CodecName))
	if err != nil {
		return nil, err
	}
	s := &Session{
		stream:  stream,
		pending: make(map[string]chan protocol.Frame),
		events:  make(chan protocol.Frame, 256),
		done:    make(chan struct{}),
	}
	go s.receive()
	return s, nil
}

// Session correlates the results of its invocations and exposes pushed events.
// Events must be drained: a full event buffer stalls the reception of results.
type Session struct {
	stream grpc.ClientStream
	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.Frame
	err     error

	events chan protocol.Frame
	done   chan struct{}
}

// Events returns the pushed room events. The channel is closed with the session.
func (s *Session) Events() <-chan protocol.Frame {
	return s.events
}

// Done is closed when the stream has ended, Err then tells why (io.EOF when the server closed it).
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the sending side, the server then closes the session.
func (s *Session) Close() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.stream.CloseSend()
}

// Call invokes target and decodes the result into res when not nil.
// A rejected invocation is returned as a *protocol.Error.
func (s *Session) Call(ctx context.Context, target string, req any, res any) error {
	id := uuid.NewString()
	frame, err := protocol.Invoke(id, target, req)
	if err != nil {
		return err
	}

	reply := make(chan protocol.Frame, 1)
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return s.err
	}
	s.pending[id] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	s.sendMu.Lock()
	err = s.stream.SendMsg(&frame)
	s.sendMu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.Err()
	case result := <-reply:
		if result.Error != nil {
			return result.Error
		}
		if res == nil {
			return nil
		}
		return result.Decode(res)
	}
}

func (s *Session) CreateOrJoinRoom(ctx context.Context, employerID, applicantID string) (string, error) {
	var res protocol.CreateOrJoinRoomResponse
	err := s.Call(ctx, protocol.TargetCreateOrJoinRoom,
		protocol.CreateOrJoinRoomRequest{EmployerID: employerID, ApplicantID: applicantID}, &res)
	return res.RoomID, err
}

func (s *Session) SendMessage(ctx context.Context, roomID, content string) error {
	return s.Call(ctx, protocol.TargetSendMessage, protocol.SendMessageRequest{RoomID: roomID, Content: content}, nil)
}

func (s *Session) MarkMessagesAsRead(ctx context.Context, roomID string) error {
	return s.Call(ctx, protocol.TargetMarkMessagesAsRead, protocol.MarkMessagesAsReadRequest{RoomID: roomID}, nil)
}

func (s *Session) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	var res protocol.ListRoomsResponse
	err := s.Call(ctx, protocol.TargetListRooms, protocol.ListRoomsRequest{}, &res)
	return res.Rooms, err
}

func (s *Session) GetMessages(ctx context.Context, roomID string, cursor *string) (protocol.GetMessagesResponse, error) {
	var res protocol.GetMessagesResponse
	err := s.Call(ctx, protocol.TargetGetMessages, protocol.GetMessagesRequest{RoomID: roomID, Cursor: cursor}, &res)
	return res, err
}

func (s *Session) receive() {
	for {
		var frame protocol.Frame
		if err := s.stream.RecvMsg(&frame); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			close(s.done)
			close(s.events)
			return
		}

		switch frame.Kind {
		case protocol.KindEvent:
			s.events <- frame
		case protocol.KindResult:
			s.mu.Lock()
			reply, ok := s.pending[frame.ID]
			s.mu.Unlock()
			if ok {
				reply <- frame
			}
		}
	}
}
