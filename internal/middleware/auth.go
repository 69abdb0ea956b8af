package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/kudos/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
	// NameKey holds the display name claim, if any.
	NameKey contextKey = "name"
	// AvatarURLKey holds the avatar claim, if any.
	AvatarURLKey contextKey = "avatar_url"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// GetClaims rebuilds the identity claims stored by RequireAuth.
// Returns nil for unauthenticated requests.
func GetClaims(ctx context.Context) *auth.Claims {
	userID := GetUserID(ctx)
	if userID == "" {
		return nil
	}
	name, _ := ctx.Value(NameKey).(string)
	avatarURL, _ := ctx.Value(AvatarURLKey).(string)
	return &auth.Claims{
		UserID:    userID,
		Email:     GetEmail(ctx),
		Name:      name,
		AvatarURL: avatarURL,
	}
}

// WithClaims returns a context carrying the given identity.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, EmailKey, claims.Email)
	ctx = context.WithValue(ctx, NameKey, claims.Name)
	ctx = context.WithValue(ctx, AvatarURLKey, claims.AvatarURL)
	return ctx
}

// ContextIdentity reads the caller stored by RequireAuth.
type ContextIdentity struct{}

var _ auth.Identity = ContextIdentity{}

// CurrentUserID implements auth.Identity.
func (ContextIdentity) CurrentUserID(ctx context.Context) (string, bool) {
	id := GetUserID(ctx)
	return id, id != ""
}

// RequireAuth returns an interceptor that validates bearer tokens and adds
// the caller's identity to the request context.
//
// Procedures listed in public are served without a token; a valid token on
// them is still attached, an invalid one is ignored.
func RequireAuth(verifier auth.TokenVerifier, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			claims, err := authenticate(verifier, req.Header().Get("Authorization"))
			if err != nil {
				if !open[req.Spec().Procedure] {
					return nil, connect.NewError(connect.CodeUnauthenticated, err)
				}
				return next(ctx, req)
			}
			return next(WithClaims(ctx, claims), req)
		}
	}
}

func authenticate(verifier auth.TokenVerifier, header string) (*auth.Claims, error) {
	if header == "" {
		return nil, auth.ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrInvalidToken
	}

	return verifier.Validate(parts[1])
}
