package entities

import (
	"time"
)

// User represents a user in the system. The AI* fields are the quota state
// mutated only by the quota manager; the counter reset is lazy, detected by
// comparing AIQuotaLastReset's UTC date to now.
type User struct {
	ID                   string     `json:"id" db:"id"`
	Email                string     `json:"email" db:"email"`
	FirstName            string     `json:"first_name" db:"first_name"`
	LastName             string     `json:"last_name" db:"last_name"`
	IsAdmin              bool       `json:"is_admin" db:"is_admin"`
	PaidTier             bool       `json:"paid_tier" db:"paid_tier"`
	AICallsUsedToday     int        `json:"ai_calls_used_today" db:"ai_calls_used_today"`
	AIQuotaLastReset     *time.Time `json:"ai_quota_last_reset" db:"ai_quota_last_reset"`
	AIDailyQuotaOverride *int       `json:"ai_daily_quota_override" db:"ai_daily_quota_override"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}
