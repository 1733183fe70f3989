// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev account (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"gemwallet/backend/internal/account/domain"
	accountrepo "gemwallet/backend/internal/account/repository"
	"gemwallet/backend/internal/config"
	"gemwallet/backend/internal/db"
	"gemwallet/backend/internal/security"
)

const (
	devAccountID = "dev-account-001"
	devEmail     = "dev@example.com"
	devHandle    = "dev"
	devPassword  = "Dev-Passw0rd-Local!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	repo := accountrepo.NewPostgresRepository(conn)

	existing, err := repo.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed: lookup dev account: %v", err)
	}
	if existing != nil {
		log.Printf("seed: dev account %s already exists; nothing to do", devEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:           devAccountID,
		Email:        devEmail,
		Handle:       devHandle,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, account); err != nil {
		log.Fatalf("seed: create dev account: %v", err)
	}
	log.Printf("seed: created dev account %s (handle %s)", devEmail, devHandle)
}
