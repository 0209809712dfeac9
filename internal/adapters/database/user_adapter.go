package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/repositories"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/radreference/pkg/errors"
)

// UserAdapter implements UserRepository.
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter.
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new user.
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return apperrors.NewValidationError("user is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query, args, err := a.db.Insert("users").Rows(goqu.Record{
		"id":                      user.ID,
		"email":                   user.Email,
		"first_name":              user.FirstName,
		"last_name":               user.LastName,
		"is_admin":                user.IsAdmin,
		"paid_tier":               user.PaidTier,
		"ai_calls_used_today":     user.AICallsUsedToday,
		"ai_quota_last_reset":     user.AIQuotaLastReset,
		"ai_daily_quota_override": user.AIDailyQuotaOverride,
		"created_at":              user.CreatedAt,
		"updated_at":              user.UpdatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user insert", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return a.getByColumn(ctx, "id", id)
}

// GetByEmail retrieves a user by email.
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getByColumn(ctx, "email", email)
}

func (a *UserAdapter) getByColumn(ctx context.Context, column, value string) (*entities.User, error) {
	query, args, err := a.db.Select(
		"id", "email", "first_name", "last_name", "is_admin", "paid_tier",
		"ai_calls_used_today", "ai_quota_last_reset", "ai_daily_quota_override",
		"created_at", "updated_at",
	).
		From("users").
		Where(goqu.Ex{column: value}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build user query", err)
	}

	user := &entities.User{}
	var lastReset sql.NullTime
	var override sql.NullInt64

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.IsAdmin,
		&user.PaidTier,
		&user.AICallsUsedToday,
		&lastReset,
		&override,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with %s %s not found", column, value))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}

	if lastReset.Valid {
		t := lastReset.Time
		user.AIQuotaLastReset = &t
	}
	if override.Valid {
		v := int(override.Int64)
		user.AIDailyQuotaOverride = &v
	}
	return user, nil
}

// Update updates a user.
func (a *UserAdapter) Update(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID == "" {
		return apperrors.NewValidationError("user with id is required")
	}
	user.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update("users").Set(goqu.Record{
		"email":                   user.Email,
		"first_name":              user.FirstName,
		"last_name":               user.LastName,
		"is_admin":                user.IsAdmin,
		"paid_tier":               user.PaidTier,
		"ai_daily_quota_override": user.AIDailyQuotaOverride,
		"updated_at":              user.UpdatedAt,
	}).Where(goqu.Ex{"id": user.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update user", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID))
	}
	return nil
}

// UpdateQuotaState persists only the quota counter fields.
func (a *UserAdapter) UpdateQuotaState(ctx context.Context, user *entities.User) error {
	if user == nil || user.ID == "" {
		return apperrors.NewValidationError("user with id is required")
	}

	query, args, err := a.db.Update("users").Set(goqu.Record{
		"ai_calls_used_today": user.AICallsUsedToday,
		"ai_quota_last_reset": user.AIQuotaLastReset,
		"updated_at":          time.Now().UTC(),
	}).Where(goqu.Ex{"id": user.ID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build quota update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update quota state", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", user.ID))
	}
	return nil
}

// Delete deletes a user.
func (a *UserAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("users").Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build user delete", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete user", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	return nil
}
