package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f fakeStream) Context() context.Context { return f.ctx }

func withToken(token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryAuthInterceptor(t *testing.T) {
	// The handler returns the context it received so that injected values can be inspected
	dummyHandler := func(ctx context.Context, req any) (any, error) {
		return ctx, nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/hirechat.v1.ChatService/ListRooms"}
	interceptor := UnaryAuthInterceptor(secret)

	t.Run("should fail when metadata is missing", func(t *testing.T) {
		req := require.New(t)

		_, err := interceptor(context.Background(), nil, info, dummyHandler)

		st, ok := status.FromError(err)
		req.True(ok)
		req.Equal(codes.Unauthenticated, st.Code())
	})

	t.Run("should fail with invalid token", func(t *testing.T) {
		req := require.New(t)

		_, err := interceptor(withToken("invalid-token-string"), nil, info, dummyHandler)

		req.Error(err)
		req.Contains(err.Error(), "invalid or expired token")
	})

	t.Run("should succeed and inject user_id when token is valid", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(secret, "employer-1", []string{RoleEmployer}, time.Hour)
		req.NoError(err)

		res, err := interceptor(withToken(token), nil, info, dummyHandler)

		req.NoError(err)
		ctx := res.(context.Context)
		userID, ok := UserIDFromContext(ctx)
		req.True(ok)
		req.Equal("employer-1", userID)
		req.Equal(token, TokenFromContext(ctx))
	})
}

func TestStreamAuthInterceptor(t *testing.T) {
	info := &grpc.StreamServerInfo{FullMethod: "/hirechat.v1.ChatService/Session", IsClientStream: true, IsServerStream: true}
	interceptor := StreamAuthInterceptor(secret)

	t.Run("should let anonymous streams through", func(t *testing.T) {
		req := require.New(t)
		called := false

		err := interceptor(nil, fakeStream{ctx: context.Background()}, info, func(_ any, ss grpc.ServerStream) error {
			called = true
			_, ok := UserIDFromContext(ss.Context())
			req.False(ok)
			return nil
		})

		req.NoError(err)
		req.True(called)
	})

	t.Run("should reject an invalid token", func(t *testing.T) {
		req := require.New(t)

		err := interceptor(nil, fakeStream{ctx: withToken("garbage")}, info, func(any, grpc.ServerStream) error {
			req.Fail("handler must not be called")
			return nil
		})

		req.Equal(codes.Unauthenticated, status.Code(err))
	})

	t.Run("should expose the token to the handler", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken(secret, "applicant-1", nil, time.Hour)
		req.NoError(err)

		err = interceptor(nil, fakeStream{ctx: withToken(token)}, info, func(_ any, ss grpc.ServerStream) error {
			req.Equal(token, TokenFromContext(ss.Context()))
			return nil
		})

		req.NoError(err)
	})
}

func TestBearerToken(t *testing.T) {
	req := require.New(t)
	req.Equal("abc", BearerToken("Bearer abc"))
	req.Empty(BearerToken("Basic abc"))
	req.Empty(BearerToken(""))
}
