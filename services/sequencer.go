package services

import (
	"hire-chat/domain/chat"
	"sync"
)

// roomSequencer hands out one mutex per room, so persisting and publishing in
// one room never waits on another room. Entries live while someone holds or
// waits for them.
type roomSequencer struct {
	mu    sync.Mutex
	rooms map[chat.RoomID]*roomTurn
}

type roomTurn struct {
	sync.Mutex
	refs int
}

func newRoomSequencer() *roomSequencer {
	return &roomSequencer{rooms: make(map[chat.RoomID]*roomTurn)}
}

// acquire blocks until the room is free and returns the function releasing it.
func (s *roomSequencer) acquire(roomID chat.RoomID) func() {
	s.mu.Lock()
	turn, ok := s.rooms[roomID]
	if !ok {
		turn = &roomTurn{}
		s.rooms[roomID] = turn
	}
	turn.refs++
	s.mu.Unlock()

	turn.Lock()
	return func() {
		turn.Unlock()
		s.mu.Lock()
		turn.refs--
		if turn.refs == 0 {
			delete(s.rooms, roomID)
		}
		s.mu.Unlock()
	}
}

// size is the number of rooms currently held or awaited.
func (s *roomSequencer) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
