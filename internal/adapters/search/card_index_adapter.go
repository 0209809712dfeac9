package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/radreference/internal/domain/entities"
	tsclient "github.com/zatekoja/radreference/internal/infrastructure/clients/typesense"
)

const cardCollectionName = "helper_cards"

// CardIndexAdapter indexes helper cards in Typesense so the reference
// library search can surface generated cards alongside curated content.
type CardIndexAdapter struct {
	client *tsclient.Client
}

// NewCardIndexAdapter creates a new card index adapter.
func NewCardIndexAdapter(client *tsclient.Client) *CardIndexAdapter {
	return &CardIndexAdapter{client: client}
}

// InitSchema ensures the card collection exists.
func (a *CardIndexAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(cardCollectionName).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: cardCollectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "title", Type: "string"},
			{Name: "summary", Type: "string"},
			{Name: "bullets", Type: "string"},
			{Name: "kind", Type: "string", Facet: pointer.True()},
			{Name: "section", Type: "string", Facet: pointer.True()},
			{Name: "modality", Type: "string", Facet: pointer.True()},
			{Name: "body_part", Type: "string", Facet: pointer.True()},
			{Name: "module", Type: "string", Facet: pointer.True()},
			{Name: "source", Type: "string", Facet: pointer.True()},
			{Name: "token", Type: "string"},
			{Name: "active", Type: "bool"},
			{Name: "created_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	if _, err := a.client.Client().Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}
	return nil
}

// DropCollection deletes the card collection. Used by reindexing tooling.
func (a *CardIndexAdapter) DropCollection(ctx context.Context) error {
	if _, err := a.client.Client().Collection(cardCollectionName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete typesense collection: %w", err)
	}
	return nil
}

// IndexCard upserts a helper card document.
func (a *CardIndexAdapter) IndexCard(ctx context.Context, card *entities.HelperCard) error {
	document := map[string]interface{}{
		"id":         card.ID,
		"title":      card.Title,
		"summary":    card.Summary,
		"bullets":    strings.Join(card.Bullets, "\n"),
		"kind":       string(card.Kind),
		"section":    string(card.Section),
		"modality":   card.Modality,
		"body_part":  card.BodyPart,
		"module":     card.Module,
		"source":     card.Source,
		"token":      card.GeneratedForToken,
		"active":     card.Active,
		"created_at": card.CreatedAt.Unix(),
	}

	if _, err := a.client.Client().Collection(cardCollectionName).Documents().Upsert(ctx, document); err != nil {
		return fmt.Errorf("failed to index helper card: %w", err)
	}
	return nil
}

// DeleteCard removes a card from the index.
func (a *CardIndexAdapter) DeleteCard(ctx context.Context, id string) error {
	if _, err := a.client.Client().Collection(cardCollectionName).Document(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete helper card from index: %w", err)
	}
	return nil
}

// SearchCards performs a keyword search over the card index, filtered to
// active cards and optionally by modality.
func (a *CardIndexAdapter) SearchCards(ctx context.Context, query, modality string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	filter := "active:=true"
	if modality != "" {
		filter += fmt.Sprintf(" && modality:=%s", modality)
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("title,summary,bullets,token"),
		FilterBy: pointer.String(filter),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(cardCollectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search helper cards: %w", err)
	}

	var ids []string
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		if id, ok := doc["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
