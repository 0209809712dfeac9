package aihelper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/domain/repositories"
	"github.com/zatekoja/radreference/pkg/config"
	"github.com/zatekoja/radreference/pkg/utils"
)

// recentCardWindow is the lookback for the regeneration dedup check.
const recentCardWindow = 24 * time.Hour

// statusCardTitle heads every ephemeral placeholder.
const statusCardTitle = "No card generated"

// validatorVerdict is the normalized outcome of the cheap validator call.
type validatorVerdict int

const (
	verdictUnsure validatorVerdict = iota
	verdictAllow
	verdictReject
)

// shortClinicalAllowlist holds selections under the minimum length that are
// still meaningful clinical abbreviations.
var shortClinicalAllowlist = map[string]bool{
	"ct": true,
	"mr": true,
	"us": true,
	"pe": true,
	"ms": true,
}

// noiseStopwords rejects whole selections that are report boilerplate rather
// than a clinical concept.
var noiseStopwords = map[string]bool{
	"the":          true,
	"and":          true,
	"with":         true,
	"normal":       true,
	"unremarkable": true,
	"patient":      true,
	"left":         true,
	"right":        true,
	"bilateral":    true,
	"mild":         true,
	"moderate":     true,
	"severe":       true,
	"no":           true,
	"none":         true,
	"findings":     true,
	"impression":   true,
}

// CardIndexer pushes persisted cards into the search index. Indexing is
// best-effort; a failed index never fails the generation.
type CardIndexer interface {
	IndexCard(ctx context.Context, card *entities.HelperCard) error
}

// Service owns the end-to-end helper card generation pipeline: gating,
// validation, provider dispatch, parsing, persistence and quota accounting.
type Service struct {
	cards    repositories.HelperCardRepository
	quota    *QuotaManager
	registry map[string]providers.AIProvider
	bus      providers.EventBus
	indexer  CardIndexer
	cfg      *config.AIConfig
}

// NewService creates a new helper card service. bus and indexer may be nil;
// the corresponding side effects are then skipped.
func NewService(
	cards repositories.HelperCardRepository,
	quota *QuotaManager,
	registry map[string]providers.AIProvider,
	bus providers.EventBus,
	indexer CardIndexer,
	cfg *config.AIConfig,
) *Service {
	return &Service{
		cards:    cards,
		quota:    quota,
		registry: registry,
		bus:      bus,
		indexer:  indexer,
		cfg:      cfg,
	}
}

// GenerateCards runs the full pipeline for one selection. It returns zero or
// one persisted card, or an ephemeral status card explaining the empty
// result. Only persistence failures and unconfigured-with-no-fallback
// provider errors surface as errors.
func (s *Service) GenerateCards(ctx context.Context, req *entities.CardRequest) ([]entities.HelperCardView, error) {
	if req == nil {
		return nil, nil
	}
	section := entities.ClampReportSection(string(req.Section))

	if !s.cfg.Enabled {
		return s.statusResult(section, "", "AI helpers are disabled"), nil
	}

	// NORMALIZE
	raw := strings.TrimSpace(req.SelectionText)
	token := normalizeSelection(raw)

	// NOISE_GATE
	if raw == "" {
		return nil, nil
	}
	if !req.ForceAI && IsNoiseSelection(raw) {
		return nil, nil
	}

	// DEDUP_CHECK
	hash := ContentHash(section, raw, req.Modality, req.BodyPart, req.Module)
	if !req.ReplaceFallback {
		if exists, err := s.cards.ExistsAnyCard(ctx, token, section, req.Modality, req.BodyPart, req.Module); err != nil {
			return nil, err
		} else if exists {
			return nil, nil
		}
		if exists, err := s.cards.ExistsRecentAICard(ctx, token, section, req.Modality, req.BodyPart, req.Module, hash, recentCardWindow); err != nil {
			return nil, err
		} else if exists {
			return nil, nil
		}
	}

	// QUOTA_CHECK
	if !s.quota.QuotaAllows(req.User) {
		status := s.quota.QuotaStatus(req.User)
		return s.statusResult(section, "", fmt.Sprintf("daily AI quota reached (%s)", status.Label)), nil
	}

	// TAXONOMY_GATE runs before any provider concern so a deterministic
	// rejection yields its placeholder even with no provider configured.
	decision := EvaluateTaxonomy(raw, req.Modality)
	if decision.Verdict == TaxonomyReject {
		return s.statusResult(section, "", decision.Reason), nil
	}

	primary := s.pickProvider(req.ForceProvider)
	if primary == nil {
		return nil, providers.ErrAINotConfigured
	}
	timeout := s.cfg.RequestTimeout
	if req.ForceTimeout > 0 {
		timeout = req.ForceTimeout
	}

	if decision.Verdict == TaxonomyUnknown {
		// VALIDATOR_CALL
		verdict := s.runValidator(ctx, primary, raw, req.Modality, timeout)
		if verdict == verdictReject {
			return s.statusResult(section, "ai-"+primary.Name(),
				fmt.Sprintf("the model judged %q not applicable to this study", raw)), nil
		}
	}

	// GENERATOR_CALL
	providerTag := "ai-" + primary.Name()
	if exists, err := s.cards.ExistsForProvider(ctx, token, section, req.Modality, req.BodyPart, req.Module, providerTag); err != nil {
		return nil, err
	} else if exists {
		return s.statusResult(section, providerTag,
			fmt.Sprintf("%s has already answered for this selection", primary.Name())), nil
	}

	prompt := buildGenerationPrompt(req, token)
	raw2, used, fallback, err := s.callGenerator(ctx, primary, prompt, timeout)
	if err != nil {
		if errors.Is(err, providers.ErrAINotConfigured) {
			return nil, err
		}
		log.Warn().Err(err).Str("provider", primary.Name()).Msg("card generation failed")
		return s.statusResult(section, providerTag, "the AI provider could not be reached"), nil
	}
	usedTag := "ai-" + used.Name()
	if fallback {
		usedTag += "-fallback"
	}

	// PARSE_VALIDATE
	cards := ValidateCards(ExtractCandidates(raw2), section)
	if len(cards) == 0 {
		reason := ExtractReason(raw2)
		// A refusal sometimes carries a recoverable card inside its
		// reason text.
		cards = ValidateCards(ExtractCandidates(reason), section)
		if len(cards) == 0 {
			return s.statusResult(section, usedTag, reason), nil
		}
	}

	// PERSIST
	var views []entities.HelperCardView
	for _, card := range cards {
		card.Modality = req.Modality
		card.BodyPart = req.BodyPart
		card.Module = req.Module
		card.Source = entities.CardSourceAIUnverified
		card.SourceDetail = usedTag
		card.GeneratedForToken = token
		card.GeneratedHash = hash

		if err := s.cards.Create(ctx, card); err != nil {
			return nil, err
		}
		views = append(views, card)
		var userID string
		if req.User != nil {
			userID = req.User.ID
		}
		s.announceCard(card, userID)
	}

	// QUOTA_INCREMENT
	if err := s.quota.IncrementQuota(ctx, req.User); err != nil {
		log.Warn().Err(err).Msg("failed to persist quota increment")
	}

	return views, nil
}

// QuotaStatus exposes the read-only quota snapshot for the status endpoint.
func (s *Service) QuotaStatus(user *entities.User) QuotaStatus {
	return s.quota.QuotaStatus(user)
}

// IsNoiseSelection reports whether a selection is too short or too generic
// to justify a provider call. Short clinical abbreviations pass.
func IsNoiseSelection(raw string) bool {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if len(lowered) < 3 && !shortClinicalAllowlist[lowered] {
		return true
	}
	return noiseStopwords[lowered]
}

// normalizeSelection falls back to the stripped key when stemming removes
// every token, so stopword-only clinical phrases still get a stable token.
func normalizeSelection(raw string) string {
	if token := utils.NormalizeToken(raw); token != "" {
		return token
	}
	return utils.NormalizeKey(raw)
}

// runValidator performs the cheap verdict call and normalizes its reply. A
// failed call falls back once to the default provider; with no usable reply
// the verdict is UNSURE and generation proceeds, since the generation prompt
// re-enforces the same modality constraints.
func (s *Service) runValidator(ctx context.Context, primary providers.AIProvider, selection, modality string, timeout time.Duration) validatorVerdict {
	prompt := buildValidatorPrompt(selection, modality)

	reply, err := primary.Validate(ctx, prompt, s.cfg.MaxTokensValidator, timeout)
	if err != nil {
		log.Warn().Err(err).Str("provider", primary.Name()).Msg("validator call failed")
		alt := s.fallbackFor(primary)
		if alt == nil {
			return verdictUnsure
		}
		reply, err = alt.Validate(ctx, prompt, s.cfg.MaxTokensValidator, timeout)
		if err != nil {
			log.Warn().Err(err).Str("provider", alt.Name()).Msg("validator fallback failed")
			return verdictUnsure
		}
	}
	return parseVerdict(reply)
}

// parseVerdict searches the cleaned reply for the literal verdict tokens.
// ALLOW wins when both appear, matching the prompt's single-token contract
// being broken in the permissive direction.
func parseVerdict(reply string) validatorVerdict {
	cleaned := strings.ToUpper(stripThinkBlock(StripCodeFences(reply)))
	switch {
	case strings.Contains(cleaned, "ALLOW"):
		return verdictAllow
	case strings.Contains(cleaned, "REJECT"):
		return verdictReject
	}
	return verdictUnsure
}

// callGenerator runs the expensive generation call with the timeout retry
// and provider fallback policy: one retry on the same provider, then one
// attempt on the fallback when the failure is a timeout or a missing
// credential. Returns the provider that actually answered.
func (s *Service) callGenerator(ctx context.Context, primary providers.AIProvider, prompt string, timeout time.Duration) (string, providers.AIProvider, bool, error) {
	reply, err := primary.Generate(ctx, prompt, s.cfg.MaxTokens, timeout)
	if err == nil {
		return reply, primary, false, nil
	}

	if errors.Is(err, providers.ErrAITimeout) {
		reply, err = primary.Generate(ctx, prompt, s.cfg.MaxTokens, timeout)
		if err == nil {
			return reply, primary, false, nil
		}
	}

	// Fallback is reserved for a repeated timeout or a missing credential;
	// any other failure abandons the call.
	if !errors.Is(err, providers.ErrAITimeout) && !errors.Is(err, providers.ErrAINotConfigured) {
		return "", nil, false, err
	}

	alt := s.fallbackFor(primary)
	if alt == nil {
		return "", nil, false, err
	}
	log.Warn().Err(err).
		Str("provider", primary.Name()).
		Str("fallback", alt.Name()).
		Msg("falling back to alternate provider")

	reply, altErr := alt.Generate(ctx, prompt, s.cfg.MaxTokens, timeout)
	if altErr != nil {
		return "", nil, false, altErr
	}
	return reply, alt, true, nil
}

// pickProvider resolves an explicit override, else the configured default,
// else any registered provider.
func (s *Service) pickProvider(override string) providers.AIProvider {
	if override != "" {
		if p, ok := s.registry[strings.ToLower(override)]; ok {
			return p
		}
	}
	if p, ok := s.registry[strings.ToLower(s.cfg.DefaultProvider)]; ok {
		return p
	}
	for _, p := range s.registry {
		return p
	}
	return nil
}

// fallbackFor prefers the configured default provider, else the first
// registered provider other than the primary.
func (s *Service) fallbackFor(primary providers.AIProvider) providers.AIProvider {
	if p, ok := s.registry[strings.ToLower(s.cfg.DefaultProvider)]; ok && p.Name() != primary.Name() {
		return p
	}
	for _, p := range s.registry {
		if p.Name() != primary.Name() {
			return p
		}
	}
	return nil
}

// announceCard publishes the card event on the global and per-user channels
// and indexes the card for search, all best-effort and off the request path.
func (s *Service) announceCard(card *entities.HelperCard, userID string) {
	event := entities.NewCardEvent(card.ID, entities.CardEventTypeGenerated, card.GeneratedForToken, card.Section, card.Modality)
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if s.bus != nil {
			if err := s.bus.Publish(bgCtx, providers.EventChannelCardUpdates, event); err != nil {
				log.Warn().Err(err).Str("card_id", card.ID).Msg("failed to publish card event")
			}
			if userID != "" {
				if err := s.bus.Publish(bgCtx, providers.GetUserChannel(userID), event); err != nil {
					log.Warn().Err(err).Str("card_id", card.ID).Str("user_id", userID).Msg("failed to publish user card event")
				}
			}
		}
		if s.indexer != nil {
			if err := s.indexer.IndexCard(bgCtx, card); err != nil {
				log.Warn().Err(err).Str("card_id", card.ID).Msg("failed to index card")
			}
		}
	}()
}

func (s *Service) statusResult(section entities.ReportSection, sourceDetail, reason string) []entities.HelperCardView {
	return []entities.HelperCardView{
		&entities.EphemeralStatusCard{
			Title:        statusCardTitle,
			Reason:       reason,
			Section:      section,
			SourceDetail: sourceDetail,
		},
	}
}
