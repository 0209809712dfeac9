package main

import (
	"context"
	"flag"
	"log"

	"github.com/zatekoja/radreference/internal/adapters/database"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/radreference/pkg/config"
	"github.com/zatekoja/radreference/pkg/utils"
)

// Curated cards imported before dedup keys existed carry no token or hash,
// so the dedup gates fall back to title matching for them. This backfill
// computes both keys from the card's own context so curated content
// suppresses AI generation the same way generated cards do.
func main() {
	var dryRun bool
	flag.BoolVar(&dryRun, "dry-run", false, "report cards that would be updated without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	cardRepo := database.NewHelperCardAdapter(pgClient)
	ctx := context.Background()

	cards, err := cardRepo.ListActive(ctx, 0)
	if err != nil {
		log.Fatalf("Failed to list cards: %v", err)
	}

	updated := 0
	for _, card := range cards {
		if card.Source != entities.CardSourceManual {
			continue
		}
		if card.GeneratedForToken != "" && card.GeneratedHash != "" {
			continue
		}

		token := utils.NormalizeToken(card.Title)
		if token == "" {
			token = utils.NormalizeKey(card.Title)
		}
		if token == "" {
			log.Printf("Skipping card %s: title yields no token", card.ID)
			continue
		}
		hash := aihelper.ContentHash(card.Section, card.Title, card.Modality, card.BodyPart, card.Module)

		if dryRun {
			log.Printf("Would backfill card %s (%q) token=%q", card.ID, card.Title, token)
			updated++
			continue
		}

		if err := cardRepo.SetGenerationKeys(ctx, card.ID, token, hash); err != nil {
			log.Printf("Failed to backfill card %s: %v", card.ID, err)
			continue
		}
		updated++
	}

	log.Printf("Backfill complete: %d curated cards updated", updated)
}
