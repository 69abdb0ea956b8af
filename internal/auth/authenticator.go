package auth

import "context"

// Identity resolves the caller of a request to a stable user ID.
// Sign-in itself happens at an external provider; this service only ever
// sees the resulting identity.
type Identity interface {
	// CurrentUserID returns the caller's ID, or ok=false when the request
	// carries no identity.
	CurrentUserID(ctx context.Context) (userID string, ok bool)
}

// TokenVerifier turns a bearer token into identity claims.
// JWTManager is the implementation used by the server.
type TokenVerifier interface {
	Validate(token string) (*Claims, error)
}
