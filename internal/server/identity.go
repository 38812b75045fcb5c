package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/oggyb/swipe-engine/internal/api/matcher"
	svcErr "github.com/oggyb/swipe-engine/internal/errors"
	"github.com/oggyb/swipe-engine/internal/logger"
)

type uidKey struct{}

// WithUID stores the authenticated uid in ctx.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey{}, uid)
}

// UIDFromContext returns the uid set by the identity interceptor.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(uidKey{}).(string)
	return uid, ok && uid != ""
}

// Identity resolves who is calling.
type Identity struct {
	secret []byte
	// trustHeader accepts a bare x-uid value; development only.
	trustHeader bool
}

// NewIdentity verifies HS256 bearer tokens signed with secret. With an empty
// secret and dev set, the x-uid metadata value is trusted instead.
func NewIdentity(secret string, dev bool) *Identity {
	return &Identity{secret: []byte(secret), trustHeader: secret == "" && dev}
}

// Authenticate returns the uid carried by md.
//
// Token requirements:
//   - signed with HS256 and the configured secret, not expired
//   - "sub" holds the uid
//   - "email_verified" is true
func (id *Identity) Authenticate(md metadata.MD) (string, error) {
	if id.trustHeader {
		if v := md.Get("x-uid"); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			return strings.TrimSpace(v[0]), nil
		}
	}
	if len(id.secret) == 0 {
		return "", svcErr.Unauthenticated("authentication is not configured")
	}

	auth := md.Get("authorization")
	if len(auth) == 0 {
		return "", svcErr.Unauthenticated("missing authorization")
	}
	raw, ok := strings.CutPrefix(auth[0], "Bearer ")
	if !ok || raw == "" {
		return "", svcErr.Unauthenticated("authorization must be a bearer token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return id.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", svcErr.Unauthenticated("invalid token")
	}

	uid, err := claims.GetSubject()
	if err != nil || uid == "" {
		return "", svcErr.Unauthenticated("token has no subject")
	}
	if verified, _ := claims["email_verified"].(bool); !verified {
		return "", svcErr.Unauthenticated("email is not verified")
	}
	return uid, nil
}

// UnaryInterceptor authenticates MatcherService calls and leaves the rest
// (health, reflection) alone.
func (id *Identity) UnaryInterceptor() grpc.UnaryServerInterceptor {
	prefix := "/" + matcher.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		uid, err := id.Authenticate(md)
		if err != nil {
			return nil, err
		}
		return handler(logger.WithUID(WithUID(ctx, uid), uid), req)
	}
}
