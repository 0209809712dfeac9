package aihelper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/pkg/config"
)

type stubUserRepo struct {
	updated []*entities.User
	failErr error
}

func (s *stubUserRepo) Create(ctx context.Context, user *entities.User) error { return nil }
func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return nil, nil
}
func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return nil, nil
}
func (s *stubUserRepo) Update(ctx context.Context, user *entities.User) error { return nil }
func (s *stubUserRepo) UpdateQuotaState(ctx context.Context, user *entities.User) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.updated = append(s.updated, user)
	return nil
}
func (s *stubUserRepo) Delete(ctx context.Context, id string) error { return nil }

func quotaConfig() *config.AIConfig {
	return &config.AIConfig{
		Enabled:        true,
		FreeDailyLimit: 5,
		PaidDailyLimit: 50,
	}
}

func todayPtr() *time.Time {
	now := time.Now().UTC()
	return &now
}

func TestResolveQuota(t *testing.T) {
	m := aihelper.NewQuotaManager(&stubUserRepo{}, quotaConfig())

	assert.Nil(t, m.ResolveQuota(&entities.User{IsAdmin: true}), "admins are unlimited")
	assert.Nil(t, m.ResolveQuota(nil))

	free := m.ResolveQuota(&entities.User{})
	require.NotNil(t, free)
	assert.Equal(t, 5, *free)

	paid := m.ResolveQuota(&entities.User{PaidTier: true})
	require.NotNil(t, paid)
	assert.Equal(t, 50, *paid)

	override := 2
	withOverride := m.ResolveQuota(&entities.User{PaidTier: true, AIDailyQuotaOverride: &override})
	require.NotNil(t, withOverride)
	assert.Equal(t, 2, *withOverride, "override beats tier default")
}

func TestResolveQuota_GlobalCap(t *testing.T) {
	cfg := quotaConfig()
	cfg.MaxDailyCalls = 10
	m := aihelper.NewQuotaManager(&stubUserRepo{}, cfg)

	paid := m.ResolveQuota(&entities.User{PaidTier: true})
	require.NotNil(t, paid)
	assert.Equal(t, 10, *paid)
}

func TestQuotaAllows_Boundary(t *testing.T) {
	m := aihelper.NewQuotaManager(&stubUserRepo{}, quotaConfig())

	user := &entities.User{AICallsUsedToday: 4, AIQuotaLastReset: todayPtr()}
	assert.True(t, m.QuotaAllows(user))

	user.AICallsUsedToday = 5
	assert.False(t, m.QuotaAllows(user))

	assert.True(t, m.QuotaAllows(&entities.User{IsAdmin: true, AICallsUsedToday: 100}))
}

func TestQuotaAllows_LazyRollover(t *testing.T) {
	m := aihelper.NewQuotaManager(&stubUserRepo{}, quotaConfig())

	yesterday := time.Now().UTC().Add(-25 * time.Hour)
	user := &entities.User{AICallsUsedToday: 5, AIQuotaLastReset: &yesterday}

	assert.True(t, m.QuotaAllows(user), "stale counter is treated as zero")

	status := m.QuotaStatus(user)
	assert.Equal(t, 0, status.Used)
	require.NotNil(t, status.Remaining)
	assert.Equal(t, 5, *status.Remaining)
}

func TestIncrementQuota(t *testing.T) {
	repo := &stubUserRepo{}
	m := aihelper.NewQuotaManager(repo, quotaConfig())

	user := &entities.User{ID: "u1", AICallsUsedToday: 2, AIQuotaLastReset: todayPtr()}
	require.NoError(t, m.IncrementQuota(context.Background(), user))

	assert.Equal(t, 3, user.AICallsUsedToday)
	require.Len(t, repo.updated, 1)

	// Rollover resets before incrementing.
	yesterday := time.Now().UTC().Add(-25 * time.Hour)
	stale := &entities.User{ID: "u2", AICallsUsedToday: 5, AIQuotaLastReset: &yesterday}
	require.NoError(t, m.IncrementQuota(context.Background(), stale))
	assert.Equal(t, 1, stale.AICallsUsedToday)
}

func TestIncrementQuota_AdminNoop(t *testing.T) {
	repo := &stubUserRepo{}
	m := aihelper.NewQuotaManager(repo, quotaConfig())

	require.NoError(t, m.IncrementQuota(context.Background(), &entities.User{IsAdmin: true}))
	assert.Empty(t, repo.updated, "admin increments are not persisted")
}

func TestQuotaStatus(t *testing.T) {
	m := aihelper.NewQuotaManager(&stubUserRepo{}, quotaConfig())

	admin := m.QuotaStatus(&entities.User{IsAdmin: true})
	assert.Nil(t, admin.Quota)
	assert.Equal(t, "unlimited", admin.Label)

	user := &entities.User{AICallsUsedToday: 7, AIQuotaLastReset: todayPtr()}
	status := m.QuotaStatus(user)
	require.NotNil(t, status.Quota)
	assert.Equal(t, 5, *status.Quota)
	assert.Equal(t, 7, status.Used)
	require.NotNil(t, status.Remaining)
	assert.Equal(t, 0, *status.Remaining, "remaining never goes negative")
}
