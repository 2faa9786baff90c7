package main

import (
	"bufio"
	"context"
	"fmt"
	"hire-chat/encryption"
	grpcclient "hire-chat/infrastructure/grpc/client"
	"hire-chat/projection"
	"hire-chat/protocol"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const callTimeout = 5 * time.Second

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress    string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Token            string `env:"CHAT_TOKEN,required=true"`
	UserID           string `env:"CHAT_USER_ID,required=true"`
	CipherPassphrase string `env:"CIPHER_PASSPHRASE,required=true"`
	CipherSalt       string `env:"CIPHER_SALT,required=true"`
	LogLevel         string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the session lifecycle: the stream is read in the background
// while commands are typed on stdin.
//
//	/join <employerId> <applicantId>   create or join a room, it becomes the current one
//	/room <roomId>                     switch the current room
//	/rooms                             list my rooms
//	/history                           show the current room history
//	/read                              mark the current room as read
//	anything else                      is sent to the current room
func run() (int, error) {
	// 1. Load configuration from .env and the environment.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	cipher, err := encryption.NewCipherFromPassphrase(config.CipherPassphrase, config.CipherSalt)
	if err != nil {
		return exitConfig, err
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish connection to the server.
	conn, err := grpcclient.Dial(config.ServerAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	session, err := grpcclient.NewChatClient(conn).Session(grpcclient.WithToken(ctx, config.Token))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open session: %w", err)
	}
	color.Green.Printf(">>> Connected to %s as %s (Ctrl+C to quit)\n", config.ServerAddress, config.UserID)

	timeline := projection.NewTimeline(config.UserID, cipher)
	go func() {
		for frame := range session.Events() {
			entry, err := timeline.Apply(frame)
			if err != nil {
				color.Red.Printf("unreadable event: %v\n", err)
				continue
			}
			if entry != nil {
				printEntry(*entry)
			} else if frame.Target != "" {
				color.Gray.Printf("~ %s\n", frame.Target)
			}
		}
	}()

	// 4. Command loop.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	var current string
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case <-session.Done():
			return exitRuntime, fmt.Errorf("session ended: %w", session.Err())
		case line, ok := <-lines:
			if !ok {
				_ = session.Close()
				return exitOK, nil
			}
			current = execute(ctx, session, timeline, current, strings.TrimSpace(line))
		}
	}
}

// execute runs one typed command and returns the current room.
func execute(ctx context.Context, session *grpcclient.Session, timeline *projection.Timeline, current, line string) string {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return current
	}
	switch fields[0] {
	case "/join":
		if len(fields) != 3 {
			color.Yellow.Println("usage: /join <employerId> <applicantId>")
			return current
		}
		roomID, err := session.CreateOrJoinRoom(ctx, fields[1], fields[2])
		if report(err) {
			return current
		}
		color.Green.Printf("now in room %s\n", roomID)
		return roomID
	case "/room":
		if len(fields) != 2 {
			color.Yellow.Println("usage: /room <roomId>")
			return current
		}
		return fields[1]
	case "/rooms":
		rooms, err := session.ListRooms(ctx)
		if report(err) {
			return current
		}
		for _, r := range rooms {
			fmt.Printf("%s  employer=%s applicant=%s unread=%d\n", r.RoomID, r.EmployerID, r.ApplicantID, timeline.Unread(r.RoomID))
		}
	case "/history":
		if current == "" {
			color.Yellow.Println("no current room, /join or /room first")
			return current
		}
		var cursor *string
		for {
			page, err := session.GetMessages(ctx, current, cursor)
			if report(err) || report(timeline.Load(page.Messages)) {
				return current
			}
			if page.Cursor == nil {
				break
			}
			cursor = page.Cursor
		}
		for _, e := range timeline.Messages(current) {
			printEntry(e)
		}
	case "/read":
		if current == "" {
			color.Yellow.Println("no current room, /join or /room first")
			return current
		}
		if !report(session.MarkMessagesAsRead(ctx, current)) {
			timeline.MarkOwnRead(current)
		}
	default:
		if current == "" {
			color.Yellow.Println("no current room, /join or /room first")
			return current
		}
		report(session.SendMessage(ctx, current, line))
	}
	return current
}

func report(err error) bool {
	if err == nil {
		return false
	}
	if frameErr, ok := err.(*protocol.Error); ok {
		color.Red.Printf("[%s] %s\n", frameErr.Code, frameErr.Message)
		return true
	}
	color.Red.Printf("error: %v\n", err)
	return true
}

func printEntry(e projection.Entry) {
	read := " "
	if e.Read {
		read = "✓"
	}
	fmt.Printf("%s %s [%s] %s: %s\n", read, color.Cyan.Sprint(e.Room), e.At.Format(time.TimeOnly), e.SenderID, e.Content)
}
