package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/radreference/internal/adapters/database"
	"github.com/zatekoja/radreference/internal/adapters/search"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/radreference/pkg/config"
	"github.com/zatekoja/radreference/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	var indexer *search.CardIndexAdapter
	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err == nil {
		indexer = search.NewCardIndexAdapter(tsClient)
		indexer.InitSchema(context.Background())
	}

	userRepo := database.NewUserAdapter(pgClient)
	cardRepo := database.NewHelperCardAdapter(pgClient)

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				helper_cards,
				users
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// 1. Seed users across the quota tiers.
	override := 100
	users := []entities.User{
		{ID: uuid.New().String(), Email: "admin@radreference.local", FirstName: "Ada", LastName: "Okafor", IsAdmin: true},
		{ID: uuid.New().String(), Email: "resident@radreference.local", FirstName: "Tunde", LastName: "Balogun"},
		{ID: uuid.New().String(), Email: "consultant@radreference.local", FirstName: "Ngozi", LastName: "Eze", PaidTier: true},
		{ID: uuid.New().String(), Email: "research@radreference.local", FirstName: "Femi", LastName: "Adeyemi", PaidTier: true, AIDailyQuotaOverride: &override},
	}

	for _, u := range users {
		u.CreatedAt = time.Now()
		u.UpdatedAt = time.Now()
		if err := userRepo.Create(ctx, &u); err != nil {
			log.Printf("Failed to create user %s: %v", u.Email, err)
		}
	}

	// 2. Seed curated reference cards. These participate in dedup, so they
	// carry the same token/hash keys as generated cards.
	cards := []entities.HelperCard{
		{
			Title:   "TI-RADS (ACR)",
			Summary: "Thyroid nodule risk stratification on ultrasound.",
			Kind:    entities.CardKindScore,
			Section: entities.SectionObservations,
			Bullets: []string{
				"Score composition, echogenicity, shape, margin and echogenic foci, then sum the points.",
				"TR1-TR2 nodules need no follow-up regardless of size.",
				"FNA thresholds: TR3 at 2.5 cm, TR4 at 1.5 cm, TR5 at 1 cm.",
				"Sources: https://www.acr.org/Clinical-Resources/Reporting-and-Data-Systems/TI-RADS",
			},
			Tables: []entities.CardTable{
				{
					Title:  "Points",
					Header: []string{"Category", "Points"},
					Rows: [][]string{
						{"Composition: solid", "2"},
						{"Echogenicity: hypoechoic", "2"},
						{"Shape: taller-than-wide", "3"},
						{"Margin: extra-thyroidal extension", "3"},
						{"Foci: punctate echogenic foci", "3"},
					},
				},
				{
					Title:  "Levels",
					Header: []string{"Total", "Level"},
					Rows: [][]string{
						{"0", "TR1 benign"},
						{"2", "TR2 not suspicious"},
						{"3", "TR3 mildly suspicious"},
						{"4-6", "TR4 moderately suspicious"},
						{"7+", "TR5 highly suspicious"},
					},
				},
			},
			Modality: "ULTRASOUND",
			BodyPart: "THYROID",
			Priority: 10,
		},
		{
			Title:   "Fleischner Criteria 2017",
			Summary: "Follow-up recommendations for incidental pulmonary nodules on CT.",
			Kind:    entities.CardKindClassification,
			Section: entities.SectionRecommendations,
			Bullets: []string{
				"Applies to incidental nodules in patients 35 or older; not for lung cancer screening or immunocompromised patients.",
				"Solid nodules under 6 mm in low-risk patients need no routine follow-up.",
				"Subsolid nodules are followed longer because of slow-growing adenocarcinoma spectrum lesions.",
				"Sources: https://pubs.rsna.org/doi/10.1148/radiol.2017161659",
			},
			InsertOptions: []entities.InsertOption{
				{Label: "No follow-up", Text: "No routine follow-up is required for this nodule per Fleischner 2017 guidelines."},
				{Label: "CT in 6-12 months", Text: "Recommend chest CT in 6-12 months to assess stability per Fleischner 2017 guidelines."},
			},
			Modality: "CT",
			BodyPart: "CHEST",
			Priority: 8,
		},
		{
			Title:   "LI-RADS v2018 Categories",
			Summary: "Hepatocellular carcinoma risk categories for at-risk patients.",
			Kind:    entities.CardKindClassification,
			Section: entities.SectionConclusion,
			Bullets: []string{
				"Apply only in patients at risk for HCC (cirrhosis, chronic hepatitis B).",
				"Major features: size, nonrim APHE, washout, enhancing capsule, threshold growth.",
				"LR-5 is definitely HCC; LR-M suggests non-HCC malignancy.",
				"Sources: https://www.acr.org/Clinical-Resources/Reporting-and-Data-Systems/LI-RADS",
			},
			Modality: "CT",
			BodyPart: "LIVER",
			Priority: 8,
		},
	}

	seeded := 0
	for i := range cards {
		card := &cards[i]
		card.ID = uuid.New().String()
		card.Active = true
		card.Source = entities.CardSourceManual
		card.CreatedAt = time.Now().UTC()

		token := utils.NormalizeToken(card.Title)
		if token == "" {
			token = utils.NormalizeKey(card.Title)
		}
		card.GeneratedForToken = token
		card.GeneratedHash = aihelper.ContentHash(card.Section, card.Title, card.Modality, card.BodyPart, card.Module)

		if err := cardRepo.Create(ctx, card); err != nil {
			log.Printf("Failed to create card %q: %v", card.Title, err)
			continue
		}
		seeded++

		if indexer != nil {
			if err := indexer.IndexCard(ctx, card); err != nil {
				log.Printf("Failed to index card %q: %v", card.Title, err)
			}
		}
	}

	log.Printf("Seeding completed: %d users, %d curated cards", len(users), seeded)
}
