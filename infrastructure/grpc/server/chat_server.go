package server

import (
	"context"
	"hire-chat/auth"
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"hire-chat/errors"
	"hire-chat/infrastructure/grpc/wire"
	"hire-chat/protocol"
	"hire-chat/sink"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handler is the session handler as seen by a transport.
type Handler interface {
	protocol.Session
	contract.SessionLifecycle
}

// ChatServiceServer is the server API of hirechat.v1.ChatService.
type ChatServiceServer interface {
	Session(stream grpc.ServerStream) error
	ListRooms(ctx context.Context, req *protocol.ListRoomsRequest) (*protocol.ListRoomsResponse, error)
	GetMessages(ctx context.Context, req *protocol.GetMessagesRequest) (*protocol.GetMessagesResponse, error)
}

type ChatServer struct {
	log                  *slog.Logger
	handler              Handler
	dispatcher           *protocol.Dispatcher
	connectionBufferSize int
	deliveryTimeout      time.Duration
}

func NewChatServer(log *slog.Logger, handler Handler,
	connectionBufferSize int, deliveryTimeout time.Duration) *ChatServer {
	return &ChatServer{
		log:                  log,
		handler:              handler,
		dispatcher:           protocol.NewDispatcher(log, handler),
		connectionBufferSize: connectionBufferSize,
		deliveryTimeout:      deliveryTimeout,
	}
}

// Session serves one client connection for its whole life.
// Invocations are read and dispatched in order on a dedicated goroutine while
// this one is the only writer of the stream: results and room events are
// interleaved on it. The connection is cleaned up whatever ends the stream.
func (s *ChatServer) Session(stream grpc.ServerStream) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	conn := sink.NewConnectionSink(auth.TokenFromContext(ctx), s.connectionBufferSize, s.deliveryTimeout)
	if err := s.handler.OnConnect(ctx, conn); err != nil {
		conn.Close()
		return errors.MapToGRPCError(err)
	}
	// The reader is stopped before the cleanup so no dispatch outlives it
	defer func() {
		cancel()
		s.handler.OnDisconnect(context.WithoutCancel(ctx), conn)
	}()

	results := make(chan protocol.Frame, s.connectionBufferSize)
	readErr := make(chan error, 1)
	go func() {
		readErr <- s.read(ctx, stream, conn, results)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return err
		case <-conn.Done():
			s.log.Warn("Session closed, client too slow", "connection_id", conn.ID())
			return status.Error(codes.ResourceExhausted, errors.ErrStaleConnection.Error())
		case frame := <-results:
			if err := stream.SendMsg(&frame); err != nil {
				return err
			}
		case e := <-conn.Events():
			frame, err := protocol.EventFrame(e)
			if err != nil {
				s.log.Error("Unable to render event", "connection_id", conn.ID(), "event", e.Name(), "error", err)
				continue
			}
			if err := stream.SendMsg(&frame); err != nil {
				return err
			}
		}
	}
}

func (s *ChatServer) read(ctx context.Context, stream grpc.ServerStream, conn contract.Connection, results chan<- protocol.Frame) error {
	for {
		var frame protocol.Frame
		if err := stream.RecvMsg(&frame); err != nil {
			return err
		}
		res := s.dispatcher.Dispatch(ctx, conn, frame)
		select {
		case results <- res:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *ChatServer) ListRooms(ctx context.Context, _ *protocol.ListRoomsRequest) (*protocol.ListRoomsResponse, error) {
	userID, _ := auth.UserIDFromContext(ctx)
	rooms, err := s.handler.ListRooms(ctx, chat.UserID(userID))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &protocol.ListRoomsResponse{Rooms: protocol.FromRooms(rooms)}, nil
}

func (s *ChatServer) GetMessages(ctx context.Context, req *protocol.GetMessagesRequest) (*protocol.GetMessagesResponse, error) {
	userID, _ := auth.UserIDFromContext(ctx)
	messages, cursor, err := s.handler.GetMessages(ctx, chat.UserID(userID), chat.GetMessageCommand{
		Room:   chat.RoomID(req.RoomID),
		Cursor: req.Cursor,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &protocol.GetMessagesResponse{Messages: protocol.FromSealedMessages(messages), Cursor: cursor}, nil
}

// RegisterChatServiceServer registers srv on s. Messages are JSON encoded,
// clients must call with the "json" content-subtype.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}

var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "GetMessages", Handler: getMessagesHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    wire.SessionStreamDesc.StreamName,
			Handler:       sessionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "hirechat/v1/chat_service",
}

func sessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ChatServiceServer).Session(stream)
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.ListRoomsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: wire.ListRoomsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ListRooms(ctx, req.(*protocol.ListRoomsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getMessagesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(protocol.GetMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).GetMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: wire.GetMessagesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).GetMessages(ctx, req.(*protocol.GetMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}
