package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"universal-loyalty-ledger/internal/config"
	pg "universal-loyalty-ledger/internal/infra/db/postgres"
	"universal-loyalty-ledger/internal/infra/logging"
	"universal-loyalty-ledger/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pg.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	partnerRepo := pg.NewPartnerRepo(pool)
	partnerUC := usecase.NewPartnerUseCase(partnerRepo, logger)

	// If partners already exist, do nothing
	partners, err := partnerUC.List(ctx)
	if err != nil {
		log.Fatalf("list partners: %v", err)
	}
	if len(partners) > 0 {
		fmt.Printf("%d partners already present. No changes.\n", len(partners))
		for _, p := range partners {
			fmt.Printf("  - %s (id=%s, active=%v)\n", p.Name, p.ID, p.Active)
		}
		return
	}

	// Seed a few demo partners for exercising the API locally
	seed := []struct {
		Name     string
		DeepLink string
	}{
		{"Demo Coffee Chain", "democoffee://loyalty"},
		{"Demo Airline", "demoair://wallet?src=loyalty"},
		{"Demo Grocer", ""},
	}

	for _, s := range seed {
		p, credential, err := partnerUC.Register(ctx, s.Name, s.DeepLink)
		if err != nil {
			log.Fatalf("register partner %q: %v", s.Name, err)
		}
		// The credential is shown here and never again; only its digest is stored.
		fmt.Printf("seeded: %s\n  id:         %s\n  credential: %s\n", p.Name, p.ID, credential)
	}

	fmt.Println("Seeding complete.")
}
