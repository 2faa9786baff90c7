package main

import (
	"fmt"
	"hire-chat/internal"
	"log"
	"net/http"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

type config struct {
	BadgerPath string `env:"BADGER_FILEPATH,required=true"`
	DebugPort  int    `env:"DEBUG_PORT,default=8081"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the master holds the lock
	opts := badger.DefaultOptions(cfg.BadgerPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Serve the inspector only, there is no live hub here
	stats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("Viewer started at http://localhost:%d/inspect\n", cfg.DebugPort)
	mux := http.NewServeMux()
	mux.Handle("/inspect", internal.NewInspectHandler(db, stats))
	srv := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", cfg.DebugPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Printf("Viewer stopped: %v", err)
	}
}
