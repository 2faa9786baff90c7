package main

import (
	"context"
	"errors"
	"fmt"
	"hire-chat/auth"
	"hire-chat/contract"
	"hire-chat/encryption"
	"hire-chat/infrastructure/grpc/server"
	"hire-chat/infrastructure/storage"
	"hire-chat/infrastructure/websocket"
	"hire-chat/internal"
	"hire-chat/runtime"
	"hire-chat/services"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Master terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every deferred cleanup (database first) run.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig(".env")
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	cipher, err := encryption.NewCipherFromPassphrase(config.CipherPassphrase, config.CipherSalt)
	if err != nil {
		return exitConfig, fmt.Errorf("cipher error: %w", err)
	}
	secret := []byte(config.JWTSecret)

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Hub & session handler
	orchestrator := runtime.NewOrchestrator(logger, runtime.Config{
		BufferSize:           config.BufferSize,
		RestartInterval:      config.RestartInterval,
		MetricInterval:       config.MetricInterval,
		PresenceInterval:     config.PresenceInterval,
		LowCapacityThreshold: config.LowCapacityThreshold,
		EnableModeration:     config.EnableModeration,
		CharReplacement:      charReplacement,
		CompactionSchedule:   config.CompactionSchedule,
	})
	moderator, err := orchestrator.Moderator()
	if err != nil {
		return exitRuntime, fmt.Errorf("moderation setup failed: %w", err)
	}
	var contentModerator contract.Moderator
	if moderator != nil {
		contentModerator = moderator
	}

	store := storage.NewRoomRepository(db, logger, config.LimitMessages)
	handler := services.NewSessionHandler(logger, store, cipher, auth.NewTokenResolver(secret), contentModerator,
		orchestrator.Registry(), orchestrator.Broadcaster(), orchestrator.TelemetryChan(),
		services.SessionConfig{
			MaxContentLength:  config.MaxContentLength,
			SendRatePerSecond: config.SendRatePerSecond,
			SendBurst:         config.SendBurst,
		})

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugServer := internal.StartDebugServer(logger, db, config.DebugPort, "/inspect", func() map[string]any {
			users, connections := orchestrator.Registry().Len()
			return map[string]any{"users": users, "connections": connections, "rooms": orchestrator.Broadcaster().Rooms()}
		})
		defer func() { _ = debugServer.Close() }()
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 3)

	// 5. Start the workers
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx, handler, db); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. gRPC Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s := server.NewServer(logger, secret)
	server.RegisterChatServiceServer(s, server.NewChatServer(logger, handler, config.ConnectionBufferSize, config.DeliveryTimeout))
	go func() {
		logger.Info("Starting gRPC server", "address", address, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 7. WebSocket server
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(logger, handler, secret, config.ConnectionBufferSize, config.DeliveryTimeout))
	wsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.WSPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Starting WebSocket server", "address", wsServer.Addr)
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("WebSocket server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful shutdown: transports first so no session outlives the hub
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = wsServer.Shutdown(shutdownCtx)
	stopGRPC(s, shutdownCtx)
	orchestrator.Stop()
	<-orchestratorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

// stopGRPC waits for the sessions to end, long-lived streams are cut at the deadline.
func stopGRPC(s *grpc.Server, ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerPath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
