package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"hire-chat/domain/chat"
	"hire-chat/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

func messageKey(message chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s",
		messagePrefix,
		message.Room,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

func messagePrefixOf(roomID chat.RoomID) []byte {
	return []byte(messagePrefix + string(roomID) + ":")
}

func messageIDKey(roomID chat.RoomID, messageID uuid.UUID) []byte {
	return []byte(msgIDPrefix + string(roomID) + ":" + messageID.String())
}

// nextTimestamp returns a server timestamp strictly greater than the previous one.
func (r *RoomRepository) nextTimestamp() int64 {
	r.clockMu.Lock()
	defer r.clockMu.Unlock()
	at := r.now().UnixNano()
	if at <= r.lastAt {
		at = r.lastAt + 1
	}
	r.lastAt = at
	return at
}

// SaveMessage persists the plaintext message and returns it with its assigned id and timestamp.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" so that a
// prefix scan of a room yields its messages in chronological order.
func (r *RoomRepository) SaveMessage(ctx context.Context, roomID chat.RoomID, senderID chat.UserID, content string) (chat.Message, error) {
	message := chat.Message{
		ID:       uuid.New(),
		Room:     roomID,
		SenderID: senderID,
		Content:  content,
		Kind:     chat.KindText,
		Lang:     detectLang(content),
	}
	err := r.update(ctx, func(txn *badger.Txn) error {
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		// Assigned inside the transaction so a retry still gets a fresh, ordered timestamp
		message.CreatedAt = unixNano(r.nextTimestamp())
		key := messageKey(message)
		if err := txn.Set(key, EncodeMessage(message)); err != nil {
			return err
		}
		return txn.Set(messageIDKey(roomID, message.ID), key)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return message, nil
}

// Message loads one message of a room by id.
func (r *RoomRepository) Message(ctx context.Context, roomID chat.RoomID, messageID uuid.UUID) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	var message chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(roomID, messageID))
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			message, err = DecodeMessage(val)
			return err
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, fmt.Errorf("%w: message %s not found in %s", errors.ErrInvalidRequest, messageID, roomID)
	}
	if err != nil {
		return chat.Message{}, wrap(err)
	}
	return message, nil
}

// Messages retrieves a page of a room's messages, newest first.
// The returned cursor is passed back to fetch the next (older) page and is
// nil once the history is exhausted.
func (r *RoomRepository) Messages(ctx context.Context, roomID chat.RoomID, cursor *string) ([]chat.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	var byteMessages [][]byte
	var lastKey string
	exhausted := true
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefixOf(roomID)
		prefixLen := len(prefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Start past the newest possible key msg:{room}:9999999999999999999
			// then walk back in time
			seekKey = append(append([]byte{}, prefix...), highestCursor...)
		default:
			seekKey = append(append([]byte{}, prefix...), *cursor...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[prefixLen:]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.limitMessages != nil && len(byteMessages) == *r.limitMessages {
				r.log.Debug(fmt.Sprintf("Maximum of %d message reached", *r.limitMessages))
				exhausted = false
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, wrap(err)
	}

	messages := make([]chat.Message, 0, len(byteMessages))
	for _, b := range byteMessages {
		message, err := DecodeMessage(b)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errors.ErrRepositoryUnavailable, err)
		}
		messages = append(messages, message)
	}
	if exhausted {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// MarkRead flags every unread message of the room not sent by reader.
// It returns how many messages changed state.
func (r *RoomRepository) MarkRead(ctx context.Context, roomID chat.RoomID, reader chat.UserID) (int, error) {
	var count int
	err := r.update(ctx, func(txn *badger.Txn) error {
		count = 0
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		updates, err := unreadBy(txn, roomID, reader)
		if err != nil {
			return err
		}
		for _, u := range updates {
			if err := txn.Set(u.key, u.value); err != nil {
				return err
			}
		}
		count = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

type pendingWrite struct {
	key   []byte
	value []byte
}

// unreadBy scans the room and returns the messages reader has not read yet, already flagged as read.
// The iterator is closed before the caller writes.
func unreadBy(txn *badger.Txn, roomID chat.RoomID, reader chat.UserID) ([]pendingWrite, error) {
	prefix := messagePrefixOf(roomID)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	var updates []pendingWrite
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var message chat.Message
		err := item.Value(func(val []byte) error {
			var err error
			message, err = DecodeMessage(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if message.Read || message.SenderID == reader {
			continue
		}
		message.Read = true
		updates = append(updates, pendingWrite{key: item.KeyCopy(nil), value: EncodeMessage(message)})
	}
	return updates, nil
}

func unixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
