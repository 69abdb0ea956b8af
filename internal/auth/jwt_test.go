package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmynk/kudos/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate(&models.User{
		ID:        "user-1",
		Email:     "ada@example.com",
		Name:      "Ada",
		AvatarURL: "https://example.com/ada.png",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "ada@example.com" {
		t.Errorf("unexpected identity: %+v", claims)
	}
	if claims.Name != "Ada" || claims.AvatarURL != "https://example.com/ada.png" {
		t.Errorf("unexpected profile claims: %+v", claims)
	}
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: "user-1", Email: "ada@example.com"}

	other := NewJWTManager("other-secret", time.Hour)
	foreign, err := other.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	expiring := NewJWTManager("test-secret", time.Hour)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiring.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Email: "x@example.com"}).
		SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"alg none", unsigned},
		{"missing user id", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestGenerateRequiresID(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	if _, err := m.Generate(&models.User{Email: "x@example.com"}); err == nil {
		t.Error("expected error for empty user id")
	}
}
