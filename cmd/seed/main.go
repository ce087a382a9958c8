package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"typing-premium-payments/internal/config"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
	"typing-premium-payments/internal/infra/api"
	pg "typing-premium-payments/internal/infra/db/postgres"
)

// seed prepares a local database: one admin, one regular user and a bearer
// token for each so the API can be exercised with curl.
func main() {
	adminID := flag.String("admin", "admin-1", "admin user id to create")
	userID := flag.String("user", "user-1", "regular user id to create")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	users := pg.NewPostgresUserRepo(pool)
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	seed := []model.User{
		{ID: *adminID, Email: *adminID + "@localhost", IsAdmin: true},
		{ID: *userID, Email: *userID + "@localhost"},
	}
	for i := range seed {
		u := &seed[i]
		if err := users.Upsert(ctx, repository.NoTX, u, cfg.BaseQuotas()); err != nil {
			log.Fatalf("upsert %q: %v", u.ID, err)
		}
		tok, err := auth.Mint(u.ID, u.IsAdmin, *ttl)
		if err != nil {
			log.Fatalf("mint token for %q: %v", u.ID, err)
		}
		fmt.Printf("seeded: %s (admin=%t)\n  Authorization: Bearer %s\n", u.ID, u.IsAdmin, tok)
	}

	catalog, err := cfg.PlanCatalog()
	if err != nil {
		log.Fatalf("plans: %v", err)
	}
	for _, t := range catalog.Types() {
		p, _ := catalog.Get(t)
		fmt.Printf("  - plan %s: %s %s for %d days\n", p.Type, p.BaseAmount.StringFixed(2), cfg.Payment.Currency, p.DurationDays)
	}
	fmt.Println("✅ Seeding complete.")
}
