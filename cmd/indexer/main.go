package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zatekoja/radreference/internal/adapters/database"
	"github.com/zatekoja/radreference/internal/adapters/search"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/radreference/pkg/config"
)

const maxCardsPerRun = 5000

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	cardRepo := database.NewHelperCardAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}
	indexer := search.NewCardIndexAdapter(tsClient)

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Println("Deleting helper card collection before reindex")
		if err := indexer.DropCollection(ctx); err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	if err := indexer.InitSchema(ctx); err != nil {
		return err
	}

	cards, err := cardRepo.ListActive(ctx, maxCardsPerRun)
	if err != nil {
		return err
	}

	log.Printf("Indexing %d helper cards...", len(cards))

	indexed := 0
	for _, card := range cards {
		if card == nil {
			continue
		}
		if err := indexer.IndexCard(ctx, card); err != nil {
			log.Printf("Failed to index card %s: %v", card.ID, err)
			continue
		}
		indexed++
	}

	log.Printf("Indexing complete (%d of %d).", indexed, len(cards))
	return nil
}
