package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotAuthenticated      = fmt.Errorf("not authenticated")
	ErrUnauthorized          = fmt.Errorf("unauthorized")
	ErrRepositoryUnavailable = fmt.Errorf("repository unavailable")
	ErrStaleConnection       = fmt.Errorf("stale connection")
	ErrRoomNotFound          = fmt.Errorf("room not found")
	ErrInvalidRequest        = fmt.Errorf("invalid request")
	ErrRateLimited           = fmt.Errorf("rate limited")
	ErrEncryption            = fmt.Errorf("encryption failed")
	ErrInvalidToken          = fmt.Errorf("invalid or expired token")
	ErrUnknownOperation      = fmt.Errorf("unknown operation")
	ErrWorkerPanic           = fmt.Errorf("worker panic")
	ErrInvalidPayload        = fmt.Errorf("invalid payload")
	ErrEmptyWords            = fmt.Errorf("no words have been found")
)

// Wire codes carried by error frames.
const (
	CodeNotAuthenticated      = "NotAuthenticated"
	CodeUnauthorized          = "Unauthorized"
	CodeRepositoryUnavailable = "RepositoryUnavailable"
	CodeRoomNotFound          = "RoomNotFound"
	CodeInvalidRequest        = "InvalidRequest"
	CodeRateLimited           = "RateLimited"
	CodeInternal              = "Internal"
)

// Code classifies err into the wire code sent back to a client.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrInvalidToken):
		return CodeNotAuthenticated
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrRepositoryUnavailable):
		return CodeRepositoryUnavailable
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownOperation), errors.Is(err, ErrInvalidPayload):
		return CodeInvalidRequest
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// MapToGRPCError converts a domain error into a gRPC status error.
// Internal details are not leaked for unclassified errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	switch Code(err) {
	case CodeNotAuthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	case CodeUnauthorized:
		return status.Error(codes.PermissionDenied, err.Error())
	case CodeRepositoryUnavailable:
		return status.Error(codes.Unavailable, err.Error())
	case CodeRoomNotFound:
		return status.Error(codes.NotFound, err.Error())
	case CodeInvalidRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case CodeRateLimited:
		return status.Error(codes.ResourceExhausted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
