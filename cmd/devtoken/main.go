// Command devtoken mints a session token for local development, standing in
// for the identity provider.
//
//	JWT_SECRET=dev go run ./cmd/devtoken -id alice -email alice@example.com -name Alice
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmynk/kudos/internal/auth"
	"github.com/mmynk/kudos/internal/config"
	"github.com/mmynk/kudos/internal/models"
)

func main() {
	id := flag.String("id", "", "user id (required)")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "display name claim")
	avatar := flag.String("avatar", "", "avatar URL claim")
	ttl := flag.Duration("ttl", 0, "token lifetime (default: TOKEN_TTL)")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, lifetime).Generate(&models.User{
		ID:        *id,
		Email:     *email,
		Name:      *name,
		AvatarURL: *avatar,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
}
