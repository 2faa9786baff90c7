package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"hire-chat/domain/chat"
	"hire-chat/errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key layout:
//
//	room:{room_id}                          -> Room
//	pair:{employer}\x1f{applicant}          -> room_id
//	member:{user}\x1f{room_id}              -> empty
//	msg:{room_id}:{unix_nano_padded}:{uuid} -> Message
//	msgid:{room_id}:{uuid}                  -> msg key
const (
	roomPrefix    = "room:"
	pairPrefix    = "pair:"
	memberPrefix  = "member:"
	messagePrefix = "msg:"
	msgIDPrefix   = "msgid:"
	separator     = "\x1f"
	maxRetries    = 10
	highestCursor = "9999999999999999999"
)

// RoomRepository is the Badger-backed Room Store.
// It assigns message ids and server timestamps. Timestamps are strictly
// increasing within the process, so the key order of a room is its canonical order.
type RoomRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time

	clockMu sync.Mutex
	lastAt  int64
}

type Option func(*RoomRepository)

// WithClock replaces time.Now, tests use it to force timestamp collisions.
func WithClock(now func() time.Time) Option {
	return func(r *RoomRepository) { r.now = now }
}

func NewRoomRepository(db *badger.DB, log *slog.Logger, limitMessages *int, opts ...Option) *RoomRepository {
	r := &RoomRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func roomKey(roomID chat.RoomID) []byte {
	return []byte(roomPrefix + string(roomID))
}

func pairKey(employerID, applicantID chat.UserID) []byte {
	return []byte(pairPrefix + string(employerID) + separator + string(applicantID))
}

func memberKey(userID chat.UserID, roomID chat.RoomID) []byte {
	return []byte(memberPrefix + string(userID) + separator + string(roomID))
}

func memberPrefixOf(userID chat.UserID) []byte {
	return []byte(memberPrefix + string(userID) + separator)
}

// GetOrCreateRoom returns the room of the (employer, applicant) pair, creating it the first time.
// Two concurrent creations of the same pair conflict in Badger: the loser retries
// and reads the winner's room, so exactly one room ever exists per pair.
func (r *RoomRepository) GetOrCreateRoom(ctx context.Context, employerID, applicantID chat.UserID) (chat.Room, error) {
	if employerID == "" || applicantID == "" || employerID == applicantID {
		return chat.Room{}, fmt.Errorf("%w: employer and applicant must be two distinct users", errors.ErrInvalidRequest)
	}
	if strings.Contains(string(employerID), separator) || strings.Contains(string(applicantID), separator) {
		return chat.Room{}, fmt.Errorf("%w: user id contains a reserved character", errors.ErrInvalidRequest)
	}

	var room chat.Room
	err := r.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(pairKey(employerID, applicantID))
		switch {
		case err == nil:
			roomID, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			room, err = getRoom(txn, chat.RoomID(roomID))
			return err
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		room = chat.Room{
			ID:          chat.RoomID(uuid.NewString()),
			EmployerID:  employerID,
			ApplicantID: applicantID,
			CreatedAt:   r.now().UTC(),
		}
		if err := txn.Set(roomKey(room.ID), EncodeRoom(room)); err != nil {
			return err
		}
		if err := txn.Set(pairKey(employerID, applicantID), []byte(room.ID)); err != nil {
			return err
		}
		for _, user := range room.Participants() {
			if err := txn.Set(memberKey(user, room.ID), nil); err != nil {
				return err
			}
		}
		r.log.Debug("Room created", "room_id", room.ID, "employer_id", employerID, "applicant_id", applicantID)
		return nil
	})
	if err != nil {
		return chat.Room{}, err
	}
	return room, nil
}

// Room loads a room by id.
func (r *RoomRepository) Room(ctx context.Context, roomID chat.RoomID) (chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return chat.Room{}, err
	}
	var room chat.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, roomID)
		return err
	})
	if err != nil {
		return chat.Room{}, wrap(err)
	}
	return room, nil
}

// RoomsOf lists the rooms a user participates in, as employer or applicant.
func (r *RoomRepository) RoomsOf(ctx context.Context, userID chat.UserID) ([]chat.RoomID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var roomIDs []chat.RoomID
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefixOf(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomIDs = append(roomIDs, chat.RoomID(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err)
	}
	return roomIDs, nil
}

func getRoom(txn *badger.Txn, roomID chat.RoomID) (chat.Room, error) {
	item, err := txn.Get(roomKey(roomID))
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return chat.Room{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, roomID)
		}
		return chat.Room{}, err
	}
	var room chat.Room
	err = item.Value(func(val []byte) error {
		room, err = DecodeRoom(val)
		return err
	})
	return room, err
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction committed over the keys fn read.
func (r *RoomRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return wrap(err)
		}
		r.log.Debug("Transaction conflict, retrying", "attempt", attempt+1)
	}
	return wrap(err)
}

// wrap classifies storage failures, domain errors pass through untouched.
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrRoomNotFound),
		stderrors.Is(err, errors.ErrInvalidRequest),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrRepositoryUnavailable, err)
	}
}

// detectLang returns the ISO 639-1 code of content when the detection is reliable.
func detectLang(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
