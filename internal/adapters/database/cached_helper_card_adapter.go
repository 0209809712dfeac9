package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/domain/repositories"
)

// CachedHelperCardAdapter wraps a HelperCardRepository with a Redis fast
// path for the recent-generation check, which runs on every request before
// any provider call. The database stays authoritative; cache errors fall
// through to it.
type CachedHelperCardAdapter struct {
	adapter repositories.HelperCardRepository
	cache   providers.CacheProvider
}

// NewCachedHelperCardAdapter creates a new cached helper card adapter.
func NewCachedHelperCardAdapter(adapter repositories.HelperCardRepository, cache providers.CacheProvider) repositories.HelperCardRepository {
	return &CachedHelperCardAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// recentHashTTL matches the dedup lookback window (in seconds).
const recentHashTTL = 24 * 60 * 60

func recentHashCacheKey(hash string) string {
	return fmt.Sprintf("cards:recent:%s", hash)
}

// Create persists the card and marks its hash as recently generated.
func (a *CachedHelperCardAdapter) Create(ctx context.Context, card *entities.HelperCard) error {
	if err := a.adapter.Create(ctx, card); err != nil {
		return err
	}

	if card.GeneratedHash != "" {
		go func() {
			bgCtx := context.Background()
			if err := a.cache.Set(bgCtx, recentHashCacheKey(card.GeneratedHash), []byte("1"), recentHashTTL); err != nil {
				log.Warn().Err(err).Str("hash", card.GeneratedHash).Msg("failed to cache recent card hash")
			}
		}()
	}
	return nil
}

// GetByID passes through; single-card reads are not hot enough to cache.
func (a *CachedHelperCardAdapter) GetByID(ctx context.Context, id string) (*entities.HelperCard, error) {
	return a.adapter.GetByID(ctx, id)
}

// ListActive passes through; reindexing reads want fresh rows.
func (a *CachedHelperCardAdapter) ListActive(ctx context.Context, limit int) ([]*entities.HelperCard, error) {
	return a.adapter.ListActive(ctx, limit)
}

// ExistsRecentAICard consults the cache before the database.
func (a *CachedHelperCardAdapter) ExistsRecentAICard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, hash string, maxAge time.Duration) (bool, error) {
	if found, err := a.cache.Exists(ctx, recentHashCacheKey(hash)); err == nil && found {
		return true, nil
	}

	found, err := a.adapter.ExistsRecentAICard(ctx, token, section, modality, bodyPart, module, hash, maxAge)
	if err != nil {
		return false, err
	}

	if found {
		go func() {
			bgCtx := context.Background()
			if err := a.cache.Set(bgCtx, recentHashCacheKey(hash), []byte("1"), recentHashTTL); err != nil {
				log.Warn().Err(err).Str("hash", hash).Msg("failed to cache recent card hash")
			}
		}()
	}
	return found, nil
}

// ExistsAnyCard passes through; the stem comparison needs fresh rows.
func (a *CachedHelperCardAdapter) ExistsAnyCard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module string) (bool, error) {
	return a.adapter.ExistsAnyCard(ctx, token, section, modality, bodyPart, module)
}

// ExistsForProvider passes through.
func (a *CachedHelperCardAdapter) ExistsForProvider(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, providerTag string) (bool, error) {
	return a.adapter.ExistsForProvider(ctx, token, section, modality, bodyPart, module, providerTag)
}
