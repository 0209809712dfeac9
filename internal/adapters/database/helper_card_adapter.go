package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/radreference/pkg/errors"
	"github.com/zatekoja/radreference/pkg/utils"
)

// HelperCardAdapter implements HelperCardRepository.
type HelperCardAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewHelperCardAdapter creates a new adapter.
func NewHelperCardAdapter(client *postgres.Client) *HelperCardAdapter {
	return &HelperCardAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create persists a new helper card.
func (a *HelperCardAdapter) Create(ctx context.Context, card *entities.HelperCard) error {
	if card == nil {
		return apperrors.NewValidationError("card is required")
	}
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}

	bulletBytes, _ := json.Marshal(card.Bullets)
	insertBytes, _ := json.Marshal(card.InsertOptions)
	tableBytes, _ := json.Marshal(card.Tables)

	query := `
		INSERT INTO helper_cards
			(id, title, summary, bullets, insert_options, kind, tables, section,
			 modality, body_part, module, priority, active, source, source_detail,
			 generated_for_token, generated_hash, created_at)
		VALUES
			($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7::jsonb, $8,
			 $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := a.client.DB().ExecContext(
		ctx,
		query,
		card.ID,
		card.Title,
		card.Summary,
		string(bulletBytes),
		string(insertBytes),
		string(card.Kind),
		string(tableBytes),
		string(card.Section),
		card.Modality,
		card.BodyPart,
		card.Module,
		card.Priority,
		card.Active,
		card.Source,
		card.SourceDetail,
		card.GeneratedForToken,
		card.GeneratedHash,
		card.CreatedAt,
	)
	if err != nil {
		return apperrors.NewInternalError("failed to insert helper card", err)
	}

	return nil
}

// GetByID retrieves a card by ID.
func (a *HelperCardAdapter) GetByID(ctx context.Context, id string) (*entities.HelperCard, error) {
	query, args, err := a.db.Select(cardColumns()...).
		From("helper_cards").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build card query", err)
	}

	card, err := scanHelperCard(a.client.DB().QueryRowContext(ctx, query, args...).Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("helper card with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get helper card", err)
	}
	return card, nil
}

// ListActive returns active cards, newest first.
func (a *HelperCardAdapter) ListActive(ctx context.Context, limit int) ([]*entities.HelperCard, error) {
	ds := a.db.Select(cardColumns()...).
		From("helper_cards").
		Where(goqu.Ex{"active": true}).
		Order(goqu.C("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build card list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list helper cards", err)
	}
	defer rows.Close()

	var cards []*entities.HelperCard
	for rows.Next() {
		card, err := scanHelperCard(rows.Scan)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan helper card", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}

// SetGenerationKeys backfills the dedup token and hash on a curated card.
// AI-generated cards are never touched by this path.
func (a *HelperCardAdapter) SetGenerationKeys(ctx context.Context, id, token, hash string) error {
	query, args, err := a.db.Update("helper_cards").
		Set(goqu.Record{
			"generated_for_token": token,
			"generated_hash":      hash,
		}).
		Where(goqu.Ex{"id": id, "source": entities.CardSourceManual}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build card update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update helper card", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("curated card with id %s not found", id))
	}
	return nil
}

func cardColumns() []interface{} {
	return []interface{}{
		"id", "title", "summary", "bullets", "insert_options", "kind", "tables",
		"section", "modality", "body_part", "module", "priority", "active",
		"source", "source_detail", "generated_for_token", "generated_hash", "created_at",
	}
}

func scanHelperCard(scan func(dest ...interface{}) error) (*entities.HelperCard, error) {
	var bulletsRaw, insertRaw, tablesRaw []byte
	var summary, modality, bodyPart, module, sourceDetail, token, hash sql.NullString
	card := &entities.HelperCard{}
	var kind, section string

	err := scan(
		&card.ID,
		&card.Title,
		&summary,
		&bulletsRaw,
		&insertRaw,
		&kind,
		&tablesRaw,
		&section,
		&modality,
		&bodyPart,
		&module,
		&card.Priority,
		&card.Active,
		&card.Source,
		&sourceDetail,
		&token,
		&hash,
		&card.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.Summary = summary.String
	card.Kind = entities.ClampCardKind(kind)
	card.Section = entities.ClampReportSection(section)
	card.Modality = modality.String
	card.BodyPart = bodyPart.String
	card.Module = module.String
	card.SourceDetail = sourceDetail.String
	card.GeneratedForToken = token.String
	card.GeneratedHash = hash.String

	if len(bulletsRaw) > 0 {
		_ = json.Unmarshal(bulletsRaw, &card.Bullets)
	}
	if len(insertRaw) > 0 {
		_ = json.Unmarshal(insertRaw, &card.InsertOptions)
	}
	if len(tablesRaw) > 0 {
		_ = json.Unmarshal(tablesRaw, &card.Tables)
	}

	return card, nil
}

// ExistsRecentAICard reports whether an AI-sourced card with this hash and
// context was created within the lookback window.
func (a *HelperCardAdapter) ExistsRecentAICard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, hash string, maxAge time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("helper_cards").
		Where(
			goqu.Ex{
				"generated_hash": hash,
				"section":        string(section),
				"modality":       modality,
				"body_part":      bodyPart,
				"module":         module,
			},
			goqu.C("source").Like("ai%"),
			goqu.C("created_at").Gt(cutoff),
		).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build recent-card query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check recent AI cards", err)
	}
	return count > 0, nil
}

// ExistsAnyCard reports whether any card in the same context covers the
// requested token. Candidate rows are narrowed by context in SQL; the stem
// subset/superset comparison runs here because it cannot be expressed as a
// portable index lookup.
func (a *HelperCardAdapter) ExistsAnyCard(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module string) (bool, error) {
	query, args, err := a.db.Select("title", "generated_for_token").
		From("helper_cards").
		Where(goqu.Ex{
			"section":   string(section),
			"modality":  modality,
			"body_part": bodyPart,
			"module":    module,
			"active":    true,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build card dedup query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to query cards for dedup", err)
	}
	defer rows.Close()

	requested := utils.TokenStems(token)
	for rows.Next() {
		var title string
		var storedToken sql.NullString
		if err := rows.Scan(&title, &storedToken); err != nil {
			return false, apperrors.NewInternalError("failed to scan card row", err)
		}

		candidate := storedToken.String
		if candidate == "" {
			// Curated cards carry no generation token; match on title.
			candidate = title
		}
		stems := utils.TokenStems(candidate)
		if len(stems) == 0 {
			continue
		}
		if utils.StemsSubset(requested, stems) || utils.StemsSubset(stems, requested) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// ExistsForProvider reports whether this provider already answered for this
// token, including cards it produced while acting as the fallback. Context
// fields match exactly or against an unset value, so a generic card
// suppresses a narrower re-query.
func (a *HelperCardAdapter) ExistsForProvider(ctx context.Context, token string, section entities.ReportSection, modality, bodyPart, module, providerTag string) (bool, error) {
	query, args, err := a.db.Select(goqu.COUNT("id")).
		From("helper_cards").
		Where(
			goqu.Ex{
				"generated_for_token": token,
				"section":             string(section),
				"active":              true,
			},
			goqu.Or(
				goqu.C("source_detail").Eq(providerTag),
				goqu.C("source_detail").Eq(providerTag+"-fallback"),
			),
			goqu.Or(goqu.C("modality").Eq(modality), goqu.C("modality").Eq("")),
			goqu.Or(goqu.C("body_part").Eq(bodyPart), goqu.C("body_part").Eq("")),
			goqu.Or(goqu.C("module").Eq(module), goqu.C("module").Eq("")),
		).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build provider dedup query", err)
	}

	var count int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, apperrors.NewInternalError("failed to check provider cards", err)
	}
	return count > 0, nil
}
