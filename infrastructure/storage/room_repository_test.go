package storage

import (
	"context"
	"hire-chat/domain/chat"
	"hire-chat/errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newRepository(t *testing.T, limit *int, opts ...Option) *RoomRepository {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewRoomRepository(openDB(t), log, limit, opts...)
}

func TestRoomRepository_GetOrCreateRoom_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)

	// Given a room created by the employer
	first, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// When the same pair is requested again
	second, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// Then the same room is returned
	req.Equal(first.ID, second.ID)
	req.Equal(chat.UserID("employer-1"), second.EmployerID)
	req.Equal(chat.UserID("applicant-1"), second.ApplicantID)

	// And both participants see it exactly once
	employerRooms, err := repository.RoomsOf(ctx, "employer-1")
	req.NoError(err)
	req.Equal([]chat.RoomID{first.ID}, employerRooms)
	applicantRooms, err := repository.RoomsOf(ctx, "applicant-1")
	req.NoError(err)
	req.Equal([]chat.RoomID{first.ID}, applicantRooms)
}

func TestRoomRepository_GetOrCreateRoom_Pair_Is_Ordered_By_Role(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)

	// Given two users who each hire the other
	first, err := repository.GetOrCreateRoom(ctx, "user-a", "user-b")
	req.NoError(err)
	second, err := repository.GetOrCreateRoom(ctx, "user-b", "user-a")
	req.NoError(err)

	// Then each role assignment is its own room
	req.NotEqual(first.ID, second.ID)
	req.Equal(chat.UserID("user-a"), first.EmployerID)
	req.Equal(chat.UserID("user-b"), second.EmployerID)
	rooms, err := repository.RoomsOf(ctx, "user-a")
	req.NoError(err)
	req.ElementsMatch([]chat.RoomID{first.ID, second.ID}, rooms)
}

func TestRoomRepository_GetOrCreateRoom_Concurrently(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)

	var wg sync.WaitGroup
	ids := make([]chat.RoomID, 20)
	errs := make([]error, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
			ids[i], errs[i] = room.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
	rooms, err := repository.RoomsOf(ctx, "employer-1")
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestRoomRepository_GetOrCreateRoom_Distinct_Pairs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)

	a, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)
	b, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-2")
	req.NoError(err)

	req.NotEqual(a.ID, b.ID)
	rooms, err := repository.RoomsOf(ctx, "employer-1")
	req.NoError(err)
	req.ElementsMatch([]chat.RoomID{a.ID, b.ID}, rooms)
}

func TestRoomRepository_GetOrCreateRoom_Invalid_Pair(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	_, err := repository.GetOrCreateRoom(context.Background(), "alice", "alice")
	req.ErrorIs(err, errors.ErrInvalidRequest)
	_, err = repository.GetOrCreateRoom(context.Background(), "", "bob")
	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestRoomRepository_Room_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	_, err := repository.Room(context.Background(), "unknown")
	req.ErrorIs(err, errors.ErrRoomNotFound)

	_, err = repository.SaveMessage(context.Background(), "unknown", "alice", "hello")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_RoomsOf_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)

	rooms, err := repository.RoomsOf(context.Background(), "nobody")
	req.NoError(err)
	req.Empty(rooms)
}

func TestRoomRepository_SaveMessage_And_Read_History(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)
	room, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// Given three messages
	var saved []chat.Message
	for _, content := range []string{"hello", "how are you", "see you tomorrow"} {
		message, err := repository.SaveMessage(ctx, room.ID, "employer-1", content)
		req.NoError(err)
		req.Equal(chat.KindText, message.Kind)
		req.False(message.Read)
		saved = append(saved, message)
	}

	// When the history is fetched
	messages, cursor, err := repository.Messages(ctx, room.ID, nil)
	req.NoError(err)

	// Then it's ordered newest first and exhausted
	req.Nil(cursor)
	req.Equal([]chat.Message{saved[2], saved[1], saved[0]}, messages)

	// And one message can be loaded by id
	message, err := repository.Message(ctx, room.ID, saved[1].ID)
	req.NoError(err)
	req.Equal(saved[1], message)
}

func TestRoomRepository_Messages_Pagination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	repository := newRepository(t, &limit)
	room, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)
	var saved []chat.Message
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		message, err := repository.SaveMessage(ctx, room.ID, "applicant-1", content)
		req.NoError(err)
		saved = append(saved, message)
	}

	// When the pages are walked
	var contents []string
	var cursor *string
	pages := 0
	for {
		messages, next, err := repository.Messages(ctx, room.ID, cursor)
		req.NoError(err)
		req.LessOrEqual(len(messages), limit)
		for _, m := range messages {
			contents = append(contents, m.Content)
		}
		pages++
		if next == nil {
			break
		}
		cursor = next
	}

	// Then every message is seen once, newest first
	req.Equal([]string{"five", "four", "three", "two", "one"}, contents)
	req.Equal(3, pages)
}

func TestRoomRepository_SaveMessage_Timestamps_Are_Strictly_Increasing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repository := newRepository(t, nil, WithClock(func() time.Time { return frozen }))
	room, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// Given a clock that never moves
	var previous time.Time
	for i := 0; i < 10; i++ {
		message, err := repository.SaveMessage(ctx, room.ID, "employer-1", "same instant")
		req.NoError(err)

		// Then every message still gets a later timestamp
		req.True(message.CreatedAt.After(previous))
		previous = message.CreatedAt
	}

	messages, _, err := repository.Messages(ctx, room.ID, nil)
	req.NoError(err)
	req.Len(messages, 10)
}

func TestRoomRepository_MarkRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t, nil)
	room, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.NoError(err)

	// Given two messages from the employer and one from the applicant
	_, err = repository.SaveMessage(ctx, room.ID, "employer-1", "first")
	req.NoError(err)
	_, err = repository.SaveMessage(ctx, room.ID, "employer-1", "second")
	req.NoError(err)
	own, err := repository.SaveMessage(ctx, room.ID, "applicant-1", "reply")
	req.NoError(err)

	// When the applicant marks the room as read
	count, err := repository.MarkRead(ctx, room.ID, "applicant-1")
	req.NoError(err)

	// Then only the employer's messages are flagged
	req.Equal(2, count)
	messages, _, err := repository.Messages(ctx, room.ID, nil)
	req.NoError(err)
	for _, m := range messages {
		req.Equal(m.ID != own.ID, m.Read, m.Content)
	}

	// And marking again changes nothing
	count, err = repository.MarkRead(ctx, room.ID, "applicant-1")
	req.NoError(err)
	req.Zero(count)
}

func TestRoomRepository_Canceled_Context(t *testing.T) {
	req := require.New(t)
	repository := newRepository(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repository.GetOrCreateRoom(ctx, "employer-1", "applicant-1")
	req.ErrorIs(err, context.Canceled)
	_, err = repository.RoomsOf(ctx, "employer-1")
	req.ErrorIs(err, context.Canceled)
}
