package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/radreference/internal/domain/entities"
)

// HelperCardRepository defines the interface for helper card persistence and
// the dedup queries consulted before AI generation.
type HelperCardRepository interface {
	// Create persists a new helper card. Cards are never updated in place.
	Create(ctx context.Context, card *entities.HelperCard) error

	// GetByID retrieves a card by ID.
	GetByID(ctx context.Context, id string) (*entities.HelperCard, error)

	// ListActive returns active cards ordered by creation time, newest
	// first. Used by reindexing and admin tooling.
	ListActive(ctx context.Context, limit int) ([]*entities.HelperCard, error)

	// ExistsRecentAICard reports whether an AI-sourced card with the same
	// content hash and context was created within the lookback window.
	ExistsRecentAICard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, hash string, maxAge time.Duration) (bool, error)

	// ExistsAnyCard reports whether any card (including manually curated
	// ones) covers the requested token in the same context, matched as an
	// exact, subset or superset stem-set match.
	ExistsAnyCard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module string) (bool, error)

	// ExistsForProvider reports whether an active card tagged to the given
	// provider already exists for this token, with modality/body part/module
	// matched exactly or against an unset value. Cards the provider produced
	// while acting as the fallback (tag suffixed "-fallback") count.
	ExistsForProvider(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, providerTag string) (bool, error)
}
