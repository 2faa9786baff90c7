package server

import (
	"hire-chat/auth"
	"log/slog"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NewServer builds a gRPC server whose calls are logged then authenticated.
func NewServer(log *slog.Logger, secret []byte, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			auth.UnaryAuthInterceptor(secret),
		),
		grpc.ChainStreamInterceptor(
			StreamLoggingInterceptor(log),
			auth.StreamAuthInterceptor(secret),
		),
	)
	return grpc.NewServer(opts...)
}

// StreamLoggingInterceptor logs the end of every stream with its duration and status code.
func StreamLoggingInterceptor(log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		log.Debug("Stream opened", "method", info.FullMethod)
		err := handler(srv, ss)
		log.Info("Stream closed",
			"method", info.FullMethod,
			"duration", time.Since(start),
			"code", status.Code(err).String())
		return err
	}
}
