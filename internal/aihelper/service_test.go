package aihelper_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/pkg/config"
	"github.com/zatekoja/radreference/pkg/utils"
)

const goodCardReply = `[{"title":"TI-RADS (ACR)","summary":"Thyroid nodule risk stratification on ultrasound.","kind":"score",
"bullets":["Composition, echogenicity, shape, margin and echogenic foci are each scored","Reference: https://www.acr.org/Clinical-Resources/Reporting-and-Data-Systems/TI-RADS"],
"tables":[{"title":"Feature points","header":["Feature","Points"],"rows":[["Cystic","0"],["Solid","2"]]},
{"title":"Risk level","header":["Total points","Level"],"rows":[["0","TR1"],["7+","TR5"]]}],
"insert_options":[{"label":"TR3 phrase","text":"Findings are consistent with ACR TI-RADS TR3."}]}]`

type scriptedCall struct {
	reply string
	err   error
}

type stubProvider struct {
	name          string
	validateCalls int
	generateCalls int
	validations   []scriptedCall
	generations   []scriptedCall
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Validate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	p.validateCalls++
	return p.take(&p.validations)
}

func (p *stubProvider) Generate(ctx context.Context, prompt string, maxTokens int, timeout time.Duration) (string, error) {
	p.generateCalls++
	return p.take(&p.generations)
}

func (p *stubProvider) take(calls *[]scriptedCall) (string, error) {
	if len(*calls) == 0 {
		return providers.EmptyCompletion, nil
	}
	call := (*calls)[0]
	if len(*calls) > 1 {
		*calls = (*calls)[1:]
	}
	return call.reply, call.err
}

type memCardRepo struct {
	cards     []*entities.HelperCard
	createErr error
}

func (r *memCardRepo) Create(ctx context.Context, card *entities.HelperCard) error {
	if r.createErr != nil {
		return r.createErr
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	r.cards = append(r.cards, card)
	return nil
}

func (r *memCardRepo) GetByID(ctx context.Context, id string) (*entities.HelperCard, error) {
	for _, c := range r.cards {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *memCardRepo) ListActive(ctx context.Context, limit int) ([]*entities.HelperCard, error) {
	var active []*entities.HelperCard
	for _, c := range r.cards {
		if c.Active {
			active = append(active, c)
		}
	}
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (r *memCardRepo) ExistsRecentAICard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, hash string, maxAge time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	for _, c := range r.cards {
		if c.GeneratedHash == hash && strings.HasPrefix(c.Source, "ai") && c.CreatedAt.After(cutoff) &&
			c.Section == section && c.Modality == modality && c.BodyPart == bodyPart && c.Module == module {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCardRepo) ExistsAnyCard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module string) (bool, error) {
	requested := utils.TokenStems(token)
	for _, c := range r.cards {
		if !c.Active || c.Section != section || c.Modality != modality || c.BodyPart != bodyPart || c.Module != module {
			continue
		}
		candidate := c.GeneratedForToken
		if candidate == "" {
			candidate = c.Title
		}
		stems := utils.TokenStems(candidate)
		if len(stems) == 0 {
			continue
		}
		if utils.StemsSubset(requested, stems) || utils.StemsSubset(stems, requested) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCardRepo) ExistsForProvider(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, providerTag string) (bool, error) {
	for _, c := range r.cards {
		if c.Active && c.GeneratedForToken == token && c.Section == section &&
			(c.SourceDetail == providerTag || c.SourceDetail == providerTag+"-fallback") {
			return true, nil
		}
	}
	return false, nil
}

type fixture struct {
	repo     *memCardRepo
	userRepo *stubUserRepo
	primary  *stubProvider
	backup   *stubProvider
	service  *aihelper.Service
	cfg      *config.AIConfig
}

func newFixture(withBackup bool) *fixture {
	f := &fixture{
		repo:     &memCardRepo{},
		userRepo: &stubUserRepo{},
		primary:  &stubProvider{name: "primary"},
		cfg: &config.AIConfig{
			Enabled:            true,
			DefaultProvider:    "primary",
			MaxTokens:          1800,
			MaxTokensValidator: 40,
			RequestTimeout:     time.Second,
			FreeDailyLimit:     5,
			PaidDailyLimit:     50,
		},
	}
	registry := map[string]providers.AIProvider{"primary": f.primary}
	if withBackup {
		f.backup = &stubProvider{name: "backup"}
		registry["backup"] = f.backup
	}
	quota := aihelper.NewQuotaManager(f.userRepo, f.cfg)
	f.service = aihelper.NewService(f.repo, quota, registry, nil, nil, f.cfg)
	return f
}

func tiradsRequest(modality string) *entities.CardRequest {
	return &entities.CardRequest{
		SelectionText: "TI-RADS",
		Section:       entities.SectionObservations,
		Modality:      modality,
		User:          &entities.User{ID: "u1"},
	}
}

func TestGenerateCards_TaxonomyAllowEndToEnd(t *testing.T) {
	f := newFixture(false)
	f.primary.generations = []scriptedCall{{reply: goodCardReply}}

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, 0, f.primary.validateCalls, "taxonomy ALLOW skips the validator")
	assert.Equal(t, 1, f.primary.generateCalls)

	require.Len(t, f.repo.cards, 1)
	card := f.repo.cards[0]
	assert.Equal(t, entities.CardSourceAIUnverified, card.Source)
	assert.Equal(t, "ai-primary", card.SourceDetail)
	assert.Equal(t, entities.CardKindScore, card.Kind)
	assert.GreaterOrEqual(t, len(card.Tables), 2)
	assert.Equal(t, "ULTRASOUND", card.Modality)
	assert.NotEmpty(t, card.GeneratedHash)
	assert.NotEmpty(t, card.GeneratedForToken)
	assert.True(t, strings.HasPrefix(card.Bullets[len(card.Bullets)-1], "Sources:"))

	require.Len(t, f.userRepo.updated, 1, "quota incremented on success")
	assert.Equal(t, 1, f.userRepo.updated[0].AICallsUsedToday)
}

func TestGenerateCards_TaxonomyRejectNeverCallsProvider(t *testing.T) {
	f := newFixture(false)

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("CT"))
	require.NoError(t, err)
	require.Len(t, views, 1)

	placeholder, ok := views[0].(*entities.EphemeralStatusCard)
	require.True(t, ok)
	assert.Contains(t, placeholder.Reason, "ULTRASOUND")
	assert.Equal(t, entities.CardSourceAIStatus, placeholder.CardSource())

	assert.Equal(t, 0, f.primary.validateCalls)
	assert.Equal(t, 0, f.primary.generateCalls)
	assert.Empty(t, f.repo.cards)
	assert.Empty(t, f.userRepo.updated, "gated attempts do not consume quota")
}

func TestGenerateCards_DedupSecondCallReturnsEmpty(t *testing.T) {
	f := newFixture(false)
	f.primary.generations = []scriptedCall{{reply: goodCardReply}}

	first, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, 1, f.primary.generateCalls, "second call is gated before the provider")
}

func TestGenerateCards_QuotaExceeded(t *testing.T) {
	f := newFixture(false)
	now := time.Now().UTC()

	req := tiradsRequest("ULTRASOUND")
	req.User = &entities.User{ID: "u1", AICallsUsedToday: 5, AIQuotaLastReset: &now}

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "quota")
	assert.Equal(t, 0, f.primary.generateCalls)
}

func TestGenerateCards_ValidatorReject(t *testing.T) {
	f := newFixture(false)
	f.primary.validations = []scriptedCall{{reply: "REJECT"}}

	req := tiradsRequest("CT")
	req.SelectionText = "hepatic steatosis grading"

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "not applicable")

	assert.Equal(t, 1, f.primary.validateCalls)
	assert.Equal(t, 0, f.primary.generateCalls)
}

func TestGenerateCards_ValidatorFailureProceedsUnsure(t *testing.T) {
	f := newFixture(false)
	f.primary.validations = []scriptedCall{{err: providers.ErrAITimeout}}
	f.primary.generations = []scriptedCall{{reply: goodCardReply}}

	req := tiradsRequest("ULTRASOUND")
	req.SelectionText = "hepatic steatosis grading"

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.NotEmpty(t, views[0].CardID(), "generation proceeds on an unsure verdict")
}

func TestGenerateCards_TimeoutRetryThenFallback(t *testing.T) {
	f := newFixture(true)
	f.primary.generations = []scriptedCall{
		{err: providers.ErrAITimeout},
		{err: providers.ErrAITimeout},
	}
	f.backup.generations = []scriptedCall{{reply: goodCardReply}}

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, 2, f.primary.generateCalls, "one retry on the same provider")
	assert.Equal(t, 1, f.backup.generateCalls)

	require.Len(t, f.repo.cards, 1)
	assert.Equal(t, "ai-backup-fallback", f.repo.cards[0].SourceDetail)
}

func TestGenerateCards_NonTimeoutErrorDoesNotFallBack(t *testing.T) {
	f := newFixture(true)
	f.primary.generations = []scriptedCall{{err: errors.New("upstream returned 500")}}

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "could not be reached")

	assert.Equal(t, 1, f.primary.generateCalls, "non-timeout failures are not retried")
	assert.Equal(t, 0, f.backup.generateCalls, "fallback is reserved for timeouts and missing credentials")
	assert.Empty(t, f.repo.cards)
}

func TestGenerateCards_NotConfiguredFallsBack(t *testing.T) {
	f := newFixture(true)
	f.primary.generations = []scriptedCall{{err: providers.ErrAINotConfigured}}
	f.backup.generations = []scriptedCall{{reply: goodCardReply}}

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 1, f.backup.generateCalls)
	require.Len(t, f.repo.cards, 1)
	assert.Equal(t, "ai-backup-fallback", f.repo.cards[0].SourceDetail)
}

func TestGenerateCards_NotConfiguredNoFallbackPropagates(t *testing.T) {
	f := newFixture(false)
	f.primary.generations = []scriptedCall{{err: providers.ErrAINotConfigured}}

	_, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	assert.ErrorIs(t, err, providers.ErrAINotConfigured)
}

func TestGenerateCards_EmptyReplyYieldsPlaceholder(t *testing.T) {
	f := newFixture(false)
	f.primary.generations = []scriptedCall{{reply: `{"reason": "confidence below threshold"}`}}

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)

	placeholder, ok := views[0].(*entities.EphemeralStatusCard)
	require.True(t, ok)
	assert.Equal(t, "confidence below threshold", placeholder.Reason)

	assert.Empty(t, f.repo.cards)
	assert.Empty(t, f.userRepo.updated, "failed generations do not consume quota")
}

func TestGenerateCards_NoiseGate(t *testing.T) {
	f := newFixture(false)

	for _, selection := range []string{"", "  ", "xy", "normal", "unremarkable"} {
		req := tiradsRequest("CT")
		req.SelectionText = selection

		views, err := f.service.GenerateCards(context.Background(), req)
		require.NoError(t, err)
		assert.Empty(t, views, "selection %q should be gated", selection)
	}
	assert.Equal(t, 0, f.primary.generateCalls)
}

func TestGenerateCards_ForceAIBypassesNoiseGate(t *testing.T) {
	f := newFixture(false)
	f.primary.validations = []scriptedCall{{reply: "ALLOW"}}
	f.primary.generations = []scriptedCall{{reply: goodCardReply}}

	req := tiradsRequest("CT")
	req.SelectionText = "xy"
	req.ForceAI = true

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 1, f.primary.generateCalls)
}

func TestGenerateCards_ProviderAlreadyAnswered(t *testing.T) {
	f := newFixture(false)
	req := tiradsRequest("ULTRASOUND")
	req.SelectionText = "TNM"
	req.ReplaceFallback = true

	token := utils.NormalizeToken("TNM")
	if token == "" {
		token = utils.NormalizeKey("TNM")
	}
	f.repo.cards = append(f.repo.cards, &entities.HelperCard{
		ID:                "existing",
		Title:             "TNM overview",
		Section:           entities.SectionObservations,
		Active:            true,
		Source:            entities.CardSourceAIUnverified,
		SourceDetail:      "ai-primary",
		GeneratedForToken: token,
	})

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "already answered")
	assert.Equal(t, 0, f.primary.generateCalls)
}

func TestGenerateCards_TaxonomyRejectWithoutProviders(t *testing.T) {
	cfg := &config.AIConfig{
		Enabled:         true,
		DefaultProvider: "primary",
		RequestTimeout:  time.Second,
		FreeDailyLimit:  5,
		PaidDailyLimit:  50,
	}
	quota := aihelper.NewQuotaManager(&stubUserRepo{}, cfg)
	service := aihelper.NewService(&memCardRepo{}, quota, map[string]providers.AIProvider{}, nil, nil, cfg)

	views, err := service.GenerateCards(context.Background(), tiradsRequest("CT"))
	require.NoError(t, err, "a deterministic rejection needs no provider")
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "ULTRASOUND")
}

func TestGenerateCards_ProviderAlreadyAnsweredViaFallback(t *testing.T) {
	f := newFixture(false)
	req := tiradsRequest("ULTRASOUND")
	req.SelectionText = "TNM"
	req.ReplaceFallback = true

	token := utils.NormalizeToken("TNM")
	if token == "" {
		token = utils.NormalizeKey("TNM")
	}
	f.repo.cards = append(f.repo.cards, &entities.HelperCard{
		ID:                "existing-fallback",
		Title:             "TNM overview",
		Section:           entities.SectionObservations,
		Active:            true,
		Source:            entities.CardSourceAIUnverified,
		SourceDetail:      "ai-primary-fallback",
		GeneratedForToken: token,
	})

	views, err := f.service.GenerateCards(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "already answered")
	assert.Equal(t, 0, f.primary.generateCalls)
}

func TestGenerateCards_Disabled(t *testing.T) {
	f := newFixture(false)
	f.cfg.Enabled = false

	views, err := f.service.GenerateCards(context.Background(), tiradsRequest("ULTRASOUND"))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].CardSummary(), "disabled")
}

func TestContentHash_StableAcrossVariants(t *testing.T) {
	a := aihelper.ContentHash(entities.SectionObservations, "BI-RADS 4a", "MAMMOGRAPHY", "", "")
	b := aihelper.ContentHash(entities.SectionObservations, "bi rads 4A", "MAMMOGRAPHY", "", "")
	assert.Equal(t, a, b, "surface variants hash identically")

	c := aihelper.ContentHash(entities.SectionConclusion, "BI-RADS 4a", "MAMMOGRAPHY", "", "")
	assert.NotEqual(t, a, c, "section is part of the fingerprint")

	d := aihelper.ContentHash(entities.SectionObservations, "BI-RADS 4a", "ULTRASOUND", "", "")
	assert.NotEqual(t, a, d, "modality is part of the fingerprint")
}
