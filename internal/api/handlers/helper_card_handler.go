package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/domain/repositories"
	apperrors "github.com/zatekoja/radreference/pkg/errors"
)

// maxSelectionLen caps the selection text accepted from the editor.
const maxSelectionLen = 500

// HelperCardService defines the card generation operations used by the
// handler.
type HelperCardService interface {
	GenerateCards(ctx context.Context, req *entities.CardRequest) ([]entities.HelperCardView, error)
	QuotaStatus(user *entities.User) aihelper.QuotaStatus
}

// CardSearcher defines the search-index lookup used by the handler.
type CardSearcher interface {
	SearchCards(ctx context.Context, query, modality string, limit int) ([]string, error)
}

// HelperCardHandler handles AI helper card generation requests.
type HelperCardHandler struct {
	service  HelperCardService
	users    repositories.UserRepository
	cards    repositories.HelperCardRepository
	searcher CardSearcher
}

// NewHelperCardHandler creates a new helper card handler. searcher may be
// nil, in which case the search endpoint reports unavailable.
func NewHelperCardHandler(service HelperCardService, users repositories.UserRepository, cards repositories.HelperCardRepository, searcher CardSearcher) *HelperCardHandler {
	return &HelperCardHandler{
		service:  service,
		users:    users,
		cards:    cards,
		searcher: searcher,
	}
}

type generateCardRequest struct {
	SelectionText       string `json:"selection_text"`
	Section             string `json:"section"`
	Modality            string `json:"modality"`
	BodyPart            string `json:"body_part"`
	Module              string `json:"module"`
	StudyType           string `json:"study_type"`
	Indication          string `json:"indication"`
	CoreQuestion        string `json:"core_question"`
	ForceProvider       string `json:"force_provider"`
	ForceTimeoutSeconds int    `json:"force_timeout_seconds"`
	ForceAI             bool   `json:"force_ai"`
	ReplaceFallback     bool   `json:"replace_fallback"`
}

type cardResponse struct {
	ID            string                  `json:"id,omitempty"`
	Title         string                  `json:"title"`
	Summary       string                  `json:"summary"`
	Kind          entities.CardKind       `json:"kind"`
	Section       entities.ReportSection  `json:"section"`
	Bullets       []string                `json:"bullets"`
	InsertOptions []entities.InsertOption `json:"insert_options"`
	Tables        []entities.CardTable    `json:"tables"`
	Source        string                  `json:"source"`
	SourceDetail  string                  `json:"source_detail,omitempty"`
}

// GenerateCards handles POST /api/v1/helper-cards/generate
func (h *HelperCardHandler) GenerateCards(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requestUser(w, r)
	if !ok {
		return
	}

	var payload generateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	payload.SelectionText = strings.TrimSpace(payload.SelectionText)
	if payload.SelectionText == "" {
		writeError(w, http.StatusBadRequest, "selection_text is required")
		return
	}
	if len(payload.SelectionText) > maxSelectionLen {
		writeError(w, http.StatusBadRequest, "selection_text is too long")
		return
	}

	req := &entities.CardRequest{
		SelectionText:   payload.SelectionText,
		Section:         entities.ClampReportSection(payload.Section),
		Modality:        strings.ToUpper(strings.TrimSpace(payload.Modality)),
		BodyPart:        strings.TrimSpace(payload.BodyPart),
		Module:          strings.TrimSpace(payload.Module),
		StudyType:       strings.TrimSpace(payload.StudyType),
		Indication:      strings.TrimSpace(payload.Indication),
		CoreQuestion:    strings.TrimSpace(payload.CoreQuestion),
		User:            user,
		ForceTimeout:    time.Duration(payload.ForceTimeoutSeconds) * time.Second,
		ForceAI:         payload.ForceAI,
		ReplaceFallback: payload.ReplaceFallback,
	}
	// Provider overrides and force flags are admin-only escape hatches.
	if user.IsAdmin {
		req.ForceProvider = strings.TrimSpace(payload.ForceProvider)
	} else {
		req.ForceAI = false
		req.ReplaceFallback = false
		req.ForceTimeout = 0
	}

	views, err := h.service.GenerateCards(r.Context(), req)
	if err != nil {
		if errors.Is(err, providers.ErrAINotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "AI helpers are not configured")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to generate helper card")
		return
	}

	cards := make([]cardResponse, 0, len(views))
	for _, v := range views {
		cards = append(cards, cardResponse{
			ID:            v.CardID(),
			Title:         v.CardTitle(),
			Summary:       v.CardSummary(),
			Kind:          v.CardKind(),
			Section:       v.CardSection(),
			Bullets:       v.CardBullets(),
			InsertOptions: v.CardInsertOptions(),
			Tables:        v.CardTables(),
			Source:        v.CardSource(),
			SourceDetail:  v.CardSourceDetail(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

// SearchCards handles GET /api/v1/helper-cards/search?q=...&modality=...&limit=...
func (h *HelperCardHandler) SearchCards(w http.ResponseWriter, r *http.Request) {
	if h.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "card search is not available")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	modality := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("modality")))
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	ids, err := h.searcher.SearchCards(r.Context(), query, modality, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search helper cards")
		return
	}

	cards := make([]cardResponse, 0, len(ids))
	for _, id := range ids {
		card, err := h.cards.GetByID(r.Context(), id)
		if err != nil {
			// Index entries can outlive rows; skip stale hits.
			continue
		}
		cards = append(cards, cardResponse{
			ID:            card.ID,
			Title:         card.Title,
			Summary:       card.Summary,
			Kind:          card.Kind,
			Section:       card.Section,
			Bullets:       card.Bullets,
			InsertOptions: card.InsertOptions,
			Tables:        card.Tables,
			Source:        card.Source,
			SourceDetail:  card.SourceDetail,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

// GetQuota handles GET /api/v1/helper-cards/quota
func (h *HelperCardHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requestUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.QuotaStatus(user))
}

// requestUser resolves the authenticated user from the identity header set
// by the upstream auth layer.
func (h *HelperCardHandler) requestUser(w http.ResponseWriter, r *http.Request) (*entities.User, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user identity")
		return nil, false
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeNotFound {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve user")
		return nil, false
	}
	return user, true
}
