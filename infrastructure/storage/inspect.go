package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a readable view of one stored key, used by the inspection tools.
type Record struct {
	Key       string
	Type      string
	Room      string
	Timestamp string
	Detail    string
}

const maxDetailLength = 48

// Describe decodes the value stored under key. Unknown keys are shown raw.
func Describe(key string, val []byte) Record {
	record := Record{
		Key:       readableKey(key),
		Type:      "RAW",
		Room:      "-",
		Timestamp: "--:--:--",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch {
	case strings.HasPrefix(key, roomPrefix):
		room, err := DecodeRoom(val)
		if err != nil {
			record.Detail = "Error: " + err.Error()
			return record
		}
		record.Type = "ROOM"
		record.Room = string(room.ID)
		record.Timestamp = room.CreatedAt.Format(time.DateTime)
		record.Detail = fmt.Sprintf("employer=%s applicant=%s", room.EmployerID, room.ApplicantID)

	case strings.HasPrefix(key, messagePrefix):
		message, err := DecodeMessage(val)
		if err != nil {
			record.Detail = "Error: " + err.Error()
			return record
		}
		record.Type = "MESSAGE"
		record.Room = string(message.Room)
		record.Timestamp = message.CreatedAt.Format("15:04:05.000")
		record.Detail = fmt.Sprintf("%s [%s read=%t] %s",
			message.SenderID, message.Lang, message.Read, truncate(message.Content))

	case strings.HasPrefix(key, pairPrefix):
		record.Type = "PAIR"
		record.Room = string(val)

	case strings.HasPrefix(key, memberPrefix):
		record.Type = "MEMBER"
		parts := strings.SplitN(strings.TrimPrefix(key, memberPrefix), separator, 2)
		if len(parts) == 2 {
			record.Room = parts[1]
			record.Detail = "user=" + parts[0]
		}

	case strings.HasPrefix(key, msgIDPrefix):
		record.Type = "INDEX"
		record.Detail = "-> " + string(val)
	}
	return record
}

func readableKey(key string) string {
	return strings.ReplaceAll(key, separator, "|")
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDetailLength {
		return s
	}
	return string(runes[:maxDetailLength]) + "…"
}
