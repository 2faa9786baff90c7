// Package projection builds client-side timelines from the frames a session receives.
// Handles decryption, ordering, deduplication and read receipts.
// Does not talk to the server.
package projection

import (
	"fmt"
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"hire-chat/domain/event"
	"hire-chat/protocol"
	"sort"
	"sync"
	"time"
)

// Entry is a decrypted message as the owner of the timeline sees it.
type Entry struct {
	ID       string
	Room     string
	SenderID string
	Content  string
	At       time.Time
	Read     bool
}

// Timeline holds the messages of every room the owner took part in.
type Timeline struct {
	mu     sync.Mutex
	owner  string
	cipher contract.MessageCipher
	rooms  map[string][]Entry
	seen   map[string]struct{}
}

func NewTimeline(owner string, cipher contract.MessageCipher) *Timeline {
	return &Timeline{
		owner:  owner,
		cipher: cipher,
		rooms:  make(map[string][]Entry),
		seen:   make(map[string]struct{}),
	}
}

// Apply folds a pushed event into the timeline. It returns the new entry for a
// message seen for the first time, nil otherwise.
func (t *Timeline) Apply(frame protocol.Frame) (*Entry, error) {
	if frame.Kind != protocol.KindEvent {
		return nil, nil
	}
	switch frame.Target {
	case event.ReceiveMessageName:
		var received protocol.ReceiveMessageEvent
		if err := frame.Decode(&received); err != nil {
			return nil, err
		}
		entry, err := t.open(received.MessageID, received.RoomID, received.SenderID,
			received.Ciphertext, received.IV, received.Timestamp, false)
		if err != nil {
			return nil, err
		}
		if !t.add(entry) {
			return nil, nil
		}
		return &entry, nil

	case event.MessagesMarkedAsReadName:
		var receipt protocol.MessagesMarkedAsReadEvent
		if err := frame.Decode(&receipt); err != nil {
			return nil, err
		}
		t.markRead(receipt.RoomID, receipt.ReaderID)
	}
	return nil, nil
}

// Load merges a history page.
func (t *Timeline) Load(messages []protocol.Message) error {
	for _, m := range messages {
		entry, err := t.open(m.MessageID, m.RoomID, m.SenderID, m.Ciphertext, m.IV, m.Timestamp, m.Read)
		if err != nil {
			return err
		}
		t.add(entry)
	}
	return nil
}

// Messages returns the entries of room, oldest first.
func (t *Timeline) Messages(room string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.rooms[room]...)
}

// Unread counts the messages of room the owner has not marked as read yet.
func (t *Timeline) Unread(room string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, e := range t.rooms[room] {
		if e.SenderID != t.owner && !e.Read {
			count++
		}
	}
	return count
}

// MarkOwnRead records that the owner read room, as the server does on MarkMessagesAsRead.
func (t *Timeline) MarkOwnRead(room string) {
	t.markRead(room, t.owner)
}

func (t *Timeline) open(id, room, sender string, ciphertext, iv []byte, at time.Time, read bool) (Entry, error) {
	content, err := t.cipher.Decrypt(chat.EncryptedContent{Ciphertext: ciphertext, IV: iv})
	if err != nil {
		return Entry{}, fmt.Errorf("message %s: %w", id, err)
	}
	return Entry{ID: id, Room: room, SenderID: sender, Content: content, At: at, Read: read}, nil
}

func (t *Timeline) add(entry Entry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[entry.ID]; ok {
		return false
	}
	t.seen[entry.ID] = struct{}{}
	entries := append(t.rooms[entry.Room], entry)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	t.rooms[entry.Room] = entries
	return true
}

// markRead flags every message of room not sent by reader.
func (t *Timeline) markRead(room, reader string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entries := t.rooms[room]
	for i := range entries {
		if entries[i].SenderID != reader {
			entries[i].Read = true
		}
	}
}
