// seed registers development accounts for local testing. Run after ./cmd/migrate.
// Idempotent: accounts whose email is already registered are skipped.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"collab-suite/auth/internal/config"
	"collab-suite/auth/internal/db"
	"collab-suite/auth/internal/directory/domain"
	"collab-suite/auth/internal/directory/repository"
	"collab-suite/auth/internal/directory/service"
	"collab-suite/auth/internal/security"
)

const devPassword = "password123"

var devAccounts = []struct {
	email string
	role  string
}{
	{"dev@example.com", "admin"},
	{"member@example.com", domain.DefaultRole},
	{"ci-bot@example.com", "service"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	hasher, err := security.NewHasher(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}
	svc, err := service.NewService(repository.NewPostgresRepository(conn), hasher, nil)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}

	for _, a := range devAccounts {
		acc, err := svc.Register(ctx, a.email, devPassword, a.role)
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			log.Printf("seed: %s already registered, skipping", a.email)
		case err != nil:
			log.Fatalf("seed: register %s: %v", a.email, err)
		default:
			log.Printf("seed: registered %s (id %s, role %s)", acc.Email, acc.ID, acc.Role)
		}
	}
	log.Printf("seed: done; sign in with any account above and password %q", devPassword)
}
