package storage

import (
	"fmt"
	"hire-chat/domain/chat"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the stored records.
// They are part of the on-disk format: never renumber, only append.
const (
	roomFieldID          protowire.Number = 1
	roomFieldEmployerID  protowire.Number = 2
	roomFieldApplicantID protowire.Number = 3
	roomFieldCreatedAt   protowire.Number = 4

	messageFieldID        protowire.Number = 1
	messageFieldRoom      protowire.Number = 2
	messageFieldSenderID  protowire.Number = 3
	messageFieldContent   protowire.Number = 4
	messageFieldCreatedAt protowire.Number = 5
	messageFieldRead      protowire.Number = 6
	messageFieldLang      protowire.Number = 7
	messageFieldKind      protowire.Number = 8
)

func EncodeRoom(room chat.Room) []byte {
	var b []byte
	b = appendString(b, roomFieldID, string(room.ID))
	b = appendString(b, roomFieldEmployerID, string(room.EmployerID))
	b = appendString(b, roomFieldApplicantID, string(room.ApplicantID))
	b = appendVarint(b, roomFieldCreatedAt, uint64(room.CreatedAt.UnixNano()))
	return b
}

func DecodeRoom(b []byte) (chat.Room, error) {
	var room chat.Room
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == roomFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			room.ID = chat.RoomID(v)
			return n, nil
		case num == roomFieldEmployerID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			room.EmployerID = chat.UserID(v)
			return n, nil
		case num == roomFieldApplicantID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			room.ApplicantID = chat.UserID(v)
			return n, nil
		case num == roomFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			room.CreatedAt = time.Unix(0, int64(v)).UTC()
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return room, err
}

func EncodeMessage(message chat.Message) []byte {
	var b []byte
	b = appendString(b, messageFieldID, message.ID.String())
	b = appendString(b, messageFieldRoom, string(message.Room))
	b = appendString(b, messageFieldSenderID, string(message.SenderID))
	b = appendString(b, messageFieldContent, message.Content)
	b = appendVarint(b, messageFieldCreatedAt, uint64(message.CreatedAt.UnixNano()))
	b = appendVarint(b, messageFieldRead, protowire.EncodeBool(message.Read))
	if message.Lang != "" {
		b = appendString(b, messageFieldLang, message.Lang)
	}
	b = appendString(b, messageFieldKind, string(message.Kind))
	return b
}

func DecodeMessage(b []byte) (chat.Message, error) {
	var message chat.Message
	err := decode(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == messageFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return n, nil
			}
			id, err := uuid.Parse(v)
			if err != nil {
				return 0, fmt.Errorf("invalid message id %q: %w", v, err)
			}
			message.ID = id
			return n, nil
		case num == messageFieldRoom && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			message.Room = chat.RoomID(v)
			return n, nil
		case num == messageFieldSenderID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			message.SenderID = chat.UserID(v)
			return n, nil
		case num == messageFieldContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			message.Content = v
			return n, nil
		case num == messageFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			message.CreatedAt = time.Unix(0, int64(v)).UTC()
			return n, nil
		case num == messageFieldRead && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			message.Read = protowire.DecodeBool(v)
			return n, nil
		case num == messageFieldLang && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			message.Lang = v
			return n, nil
		case num == messageFieldKind && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			message.Kind = chat.Kind(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if message.Kind == "" {
		message.Kind = chat.KindText
	}
	return message, err
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// decode walks every field of a record, unknown fields are skipped.
func decode(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}
