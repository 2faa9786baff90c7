//go:generate go run go.uber.org/mock/mockgen -source=dispatcher.go -destination=../mocks/mock_dispatcher.go -package=mocks
package protocol

import (
	"context"
	"fmt"
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"hire-chat/errors"
	"log/slog"
)

// Session is what the dispatcher needs from the session handler.
type Session interface {
	CreateOrJoinRoom(ctx context.Context, conn contract.Connection, cmd chat.CreateOrJoinRoomCommand) (chat.Room, error)
	SendMessage(ctx context.Context, conn contract.Connection, cmd chat.SendMessageCommand) error
	MarkMessagesAsRead(ctx context.Context, conn contract.Connection, cmd chat.MarkMessagesAsReadCommand) error
	ListRooms(ctx context.Context, user chat.UserID) ([]chat.Room, error)
	GetMessages(ctx context.Context, user chat.UserID, cmd chat.GetMessageCommand) ([]chat.SealedMessage, *string, error)
	IdentityOf(conn contract.Connection) (chat.UserID, bool)
}

// Dispatcher routes invocation frames of one connection to the session handler.
// Both transports share it so that they speak exactly the same protocol.
type Dispatcher struct {
	log     *slog.Logger
	session Session
}

func NewDispatcher(log *slog.Logger, session Session) *Dispatcher {
	return &Dispatcher{log: log, session: session}
}

// Dispatch executes one invocation and returns its result frame.
// Failures are reported in the frame, never returned: a rejected call does not end the session.
func (d *Dispatcher) Dispatch(ctx context.Context, conn contract.Connection, frame Frame) Frame {
	if frame.Kind != KindInvoke {
		return failure(frame.ID, frame.Target, fmt.Errorf("%w: expected an invocation, got %q", errors.ErrInvalidRequest, frame.Kind))
	}

	res, err := d.invoke(ctx, conn, frame)
	if err != nil {
		d.logFailure(conn, frame, err)
		return failure(frame.ID, frame.Target, err)
	}
	return result(frame.ID, frame.Target, res)
}

func (d *Dispatcher) invoke(ctx context.Context, conn contract.Connection, frame Frame) (any, error) {
	switch frame.Target {
	case TargetCreateOrJoinRoom:
		var req CreateOrJoinRoomRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		room, err := d.session.CreateOrJoinRoom(ctx, conn, chat.CreateOrJoinRoomCommand{
			EmployerID:  chat.UserID(req.EmployerID),
			ApplicantID: chat.UserID(req.ApplicantID),
		})
		if err != nil {
			return nil, err
		}
		return CreateOrJoinRoomResponse{RoomID: string(room.ID)}, nil

	case TargetSendMessage:
		var req SendMessageRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		return Empty{}, d.session.SendMessage(ctx, conn, chat.SendMessageCommand{
			Room:    chat.RoomID(req.RoomID),
			Content: req.Content,
		})

	case TargetMarkMessagesAsRead:
		var req MarkMessagesAsReadRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		return Empty{}, d.session.MarkMessagesAsRead(ctx, conn, chat.MarkMessagesAsReadCommand{
			Room: chat.RoomID(req.RoomID),
		})

	case TargetListRooms:
		user, _ := d.session.IdentityOf(conn)
		rooms, err := d.session.ListRooms(ctx, user)
		if err != nil {
			return nil, err
		}
		return ListRoomsResponse{Rooms: FromRooms(rooms)}, nil

	case TargetGetMessages:
		var req GetMessagesRequest
		if err := frame.Decode(&req); err != nil {
			return nil, err
		}
		user, _ := d.session.IdentityOf(conn)
		messages, cursor, err := d.session.GetMessages(ctx, user, chat.GetMessageCommand{
			Room:   chat.RoomID(req.RoomID),
			Cursor: req.Cursor,
		})
		if err != nil {
			return nil, err
		}
		return GetMessagesResponse{Messages: FromSealedMessages(messages), Cursor: cursor}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownOperation, frame.Target)
	}
}

func (d *Dispatcher) logFailure(conn contract.Connection, frame Frame, err error) {
	if errors.Code(err) == errors.CodeInternal || errors.Code(err) == errors.CodeRepositoryUnavailable {
		d.log.Error("Invocation failed", "connection_id", conn.ID(), "target", frame.Target, "error", err)
		return
	}
	d.log.Debug("Invocation rejected", "connection_id", conn.ID(), "target", frame.Target, "error", err)
}
