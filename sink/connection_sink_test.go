package sink

import (
	"context"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionSink_Consume_Buffers_Events(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("token", 2, 10*time.Millisecond)

	// When an event is consumed
	err := s.Consume(context.Background(), event.MessagesMarkedAsRead{Room: "room-1", ReaderID: "bob"})

	// Then it's available to the writer
	req.NoError(err)
	req.Len(s.Events(), 1)
	got := <-s.Events()
	req.Equal(chat.RoomID("room-1"), got.RoomID())
	req.True(s.Alive())
	req.Equal("token", s.Token())
	req.NotEmpty(s.ID())
}

func TestConnectionSink_Consume_Full_Buffer_Is_Stale(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("", 1, 5*time.Millisecond)
	e := event.MessagesMarkedAsRead{Room: "room-1"}

	// Given a full buffer nobody drains
	req.NoError(s.Consume(context.Background(), e))

	// When another event arrives
	err := s.Consume(context.Background(), e)

	// Then the connection is reported stale after the delivery timeout
	req.ErrorIs(err, errors.ErrStaleConnection)

	// And closed for good
	req.False(s.Alive())
	<-s.Done()
}

func TestConnectionSink_Consume_After_Close(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("", 4, time.Second)

	// Given a closed connection
	s.Close()
	s.Close()

	// Then nothing is accepted anymore
	req.False(s.Alive())
	req.ErrorIs(s.Consume(context.Background(), event.MessagesMarkedAsRead{Room: "r"}), errors.ErrStaleConnection)
	req.Empty(s.Events())
}

func TestConnectionSink_Consume_Unblocks_On_Close(t *testing.T) {
	req := require.New(t)
	s := NewConnectionSink("", 1, time.Minute)
	e := event.MessagesMarkedAsRead{Room: "room-1"}
	req.NoError(s.Consume(context.Background(), e))

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Close()
	}()

	req.ErrorIs(s.Consume(context.Background(), e), errors.ErrStaleConnection)
}
