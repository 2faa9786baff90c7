// Command gen_test_data fills a Badger directory with rooms and messages so
// that the viewer and the inspector have something to show.
package main

import (
	"context"
	"flag"
	"fmt"
	"hire-chat/domain/chat"
	"hire-chat/infrastructure/storage"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

var conversation = []string{
	"Hello, thanks for applying to the backend position.",
	"Thank you! I am very interested in the role.",
	"Could you tell me about your experience with Go?",
	"I have been writing Go services for four years.",
	"Bonjour, seriez-vous disponible jeudi pour un entretien ?",
	"Oui, jeudi à 14h me convient parfaitement.",
}

func main() {
	dbPath := flag.String("db", "./test_data/badger", "Path to badger DB")
	employers := flag.Int("employers", 2, "number of employers")
	applicants := flag.Int("applicants", 3, "number of applicants")
	flag.Parse()

	if err := run(*dbPath, *employers, *applicants); err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}
}

func run(dbPath string, employers, applicants int) error {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return err
	}
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	repository := storage.NewRoomRepository(db, log, nil)
	messages := 0
	for e := 1; e <= employers; e++ {
		for a := 1; a <= applicants; a++ {
			room, err := repository.GetOrCreateRoom(ctx,
				chat.UserID(fmt.Sprintf("employer-%d", e)), chat.UserID(fmt.Sprintf("applicant-%d", a)))
			if err != nil {
				return err
			}
			for i, content := range conversation {
				sender := room.EmployerID
				if i%2 == 1 {
					sender = room.ApplicantID
				}
				if _, err := repository.SaveMessage(ctx, room.ID, sender, content); err != nil {
					return err
				}
				messages++
			}
			// Only the employer catches up, the employer messages stay unread
			if _, err := repository.MarkRead(ctx, room.ID, room.EmployerID); err != nil {
				return err
			}
		}
	}

	fmt.Printf("Ready: %d rooms, %d messages in %s\n", employers*applicants, messages, dbPath)
	return nil
}
