package internal

import (
	"context"
	"hire-chat/infrastructure/storage"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestInspectHandler(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	// Given a room with one message
	repository := storage.NewRoomRepository(db, logs.GetLoggerFromLevel(slog.LevelDebug), nil)
	room, err := repository.GetOrCreateRoom(context.Background(), "employer-1", "applicant-1")
	req.NoError(err)
	_, err = repository.SaveMessage(context.Background(), room.ID, "employer-1", "See you on Monday")
	req.NoError(err)
	handler := NewInspectHandler(db, func() map[string]any {
		return map[string]any{"connections": 3}
	})

	// When rooms are inspected
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "employer=employer-1 applicant=applicant-1")
	req.Contains(rec.Body.String(), "connections: 3")

	// When messages are inspected
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?prefix=msg:", nil))
	req.Contains(rec.Body.String(), "See you on Monday")
	req.NotContains(rec.Body.String(), "employer=employer-1 applicant")
}
