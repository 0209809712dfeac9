package aihelper

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/repositories"
	"github.com/zatekoja/radreference/pkg/config"
)

// QuotaManager enforces the per-user daily budget for AI generations.
// The counter reset is lazy: a stored last-reset date from a previous UTC
// day means the effective used-count is zero, so no scheduled job is needed.
type QuotaManager struct {
	users repositories.UserRepository
	cfg   *config.AIConfig
}

// NewQuotaManager creates a new quota manager.
func NewQuotaManager(users repositories.UserRepository, cfg *config.AIConfig) *QuotaManager {
	return &QuotaManager{users: users, cfg: cfg}
}

// QuotaStatus is a read-only snapshot for display.
type QuotaStatus struct {
	Quota     *int   `json:"quota"` // nil means unlimited
	Used      int    `json:"used"`
	Remaining *int   `json:"remaining"`
	Label     string `json:"label"`
}

// ResolveQuota returns the user's effective daily quota, or nil for
// unlimited. Per-user overrides beat tier defaults; a configured global
// maximum caps both.
func (m *QuotaManager) ResolveQuota(user *entities.User) *int {
	if user == nil || user.IsAdmin {
		return nil
	}

	var quota int
	if user.AIDailyQuotaOverride != nil {
		quota = *user.AIDailyQuotaOverride
	} else if user.PaidTier {
		quota = m.cfg.PaidDailyLimit
	} else {
		quota = m.cfg.FreeDailyLimit
	}

	if m.cfg.MaxDailyCalls > 0 && quota > m.cfg.MaxDailyCalls {
		quota = m.cfg.MaxDailyCalls
	}
	return &quota
}

// QuotaAllows reports whether the user may make another generation call.
func (m *QuotaManager) QuotaAllows(user *entities.User) bool {
	quota := m.ResolveQuota(user)
	if quota == nil {
		return true
	}
	return m.usedToday(user) < *quota
}

// IncrementQuota consumes one call from today's budget and persists the
// counter. Called only on the success path; gated or failed attempts do not
// consume quota.
func (m *QuotaManager) IncrementQuota(ctx context.Context, user *entities.User) error {
	if user == nil || m.ResolveQuota(user) == nil {
		return nil
	}

	now := time.Now().UTC()
	user.AICallsUsedToday = m.usedToday(user) + 1
	user.AIQuotaLastReset = &now

	return m.users.UpdateQuotaState(ctx, user)
}

// QuotaStatus returns a read-only snapshot; it does not mutate state.
func (m *QuotaManager) QuotaStatus(user *entities.User) QuotaStatus {
	quota := m.ResolveQuota(user)
	used := m.usedToday(user)

	if quota == nil {
		return QuotaStatus{Used: used, Label: "unlimited"}
	}

	remaining := *quota - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		Quota:     quota,
		Used:      used,
		Remaining: &remaining,
		Label:     fmt.Sprintf("%d of %d calls used today", used, *quota),
	}
}

// usedToday applies the lazy UTC date rollover to the stored counter.
func (m *QuotaManager) usedToday(user *entities.User) int {
	if user == nil || user.AIQuotaLastReset == nil {
		return 0
	}
	last := user.AIQuotaLastReset.UTC()
	now := time.Now().UTC()
	if last.Year() != now.Year() || last.YearDay() != now.YearDay() {
		return 0
	}
	return user.AICallsUsedToday
}
