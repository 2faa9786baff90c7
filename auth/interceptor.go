package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RolesKey  contextKey = "roles"
	TokenKey  contextKey = "token"
)

const bearerPrefix = "Bearer "

// BearerToken extracts the token of an "authorization" value, "" when absent.
func BearerToken(value string) string {
	if !strings.HasPrefix(value, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix))
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return BearerToken(values[0])
}

// UserIDFromContext returns the user injected by the interceptors.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// TokenFromContext returns the raw token accepted by the stream interceptor.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// UnaryAuthInterceptor handles JWT validation for unary calls, all of which require a token.
func UnaryAuthInterceptor(secret []byte) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any,
		info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		tokenStr := tokenFromMetadata(ctx)
		if tokenStr == "" {
			return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
		}

		claims, err := ValidateToken(secret, tokenStr)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		// Inject user identity into context for downstream service layers
		newCtx := context.WithValue(ctx, UserIDKey, claims.UserID)
		newCtx = context.WithValue(newCtx, RolesKey, claims.Roles)
		newCtx = context.WithValue(newCtx, TokenKey, tokenStr)
		return handler(newCtx, req)
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}

// StreamAuthInterceptor lets anonymous session streams through, their
// operations fail later with NotAuthenticated. A token that is present but
// invalid is rejected before the stream starts.
func StreamAuthInterceptor(secret []byte) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		tokenStr := tokenFromMetadata(ctx)
		if tokenStr == "" {
			return handler(srv, ss)
		}

		claims, err := ValidateToken(secret, tokenStr)
		if err != nil {
			return status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		newCtx := context.WithValue(ctx, UserIDKey, claims.UserID)
		newCtx = context.WithValue(newCtx, RolesKey, claims.Roles)
		newCtx = context.WithValue(newCtx, TokenKey, tokenStr)
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: newCtx})
	}
}
