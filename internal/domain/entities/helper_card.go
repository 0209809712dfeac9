package entities

import "time"

// CardKind classifies a helper card's content shape.
type CardKind string

const (
	CardKindInfo           CardKind = "info"
	CardKindScore          CardKind = "score"
	CardKindChecklist      CardKind = "checklist"
	CardKindDifferential   CardKind = "differential"
	CardKindTechnique      CardKind = "technique"
	CardKindMeasurement    CardKind = "measurement"
	CardKindClassification CardKind = "classification"
	CardKindOther          CardKind = "other"
)

// ClampCardKind maps unrecognized kinds to "info".
func ClampCardKind(value string) CardKind {
	switch CardKind(value) {
	case CardKindInfo, CardKindScore, CardKindChecklist, CardKindDifferential,
		CardKindTechnique, CardKindMeasurement, CardKindClassification, CardKindOther:
		return CardKind(value)
	}
	return CardKindInfo
}

// ReportSection is the report area a card is affine to.
type ReportSection string

const (
	SectionIndication      ReportSection = "indication"
	SectionComparison      ReportSection = "comparison"
	SectionTechnique       ReportSection = "technique"
	SectionObservations    ReportSection = "observations"
	SectionConclusion      ReportSection = "conclusion"
	SectionRecommendations ReportSection = "recommendations"
	SectionAny             ReportSection = "any"
)

// ClampReportSection maps unrecognized sections to "any".
func ClampReportSection(value string) ReportSection {
	switch ReportSection(value) {
	case SectionIndication, SectionComparison, SectionTechnique,
		SectionObservations, SectionConclusion, SectionRecommendations, SectionAny:
		return ReportSection(value)
	}
	return SectionAny
}

// Card source provenance values.
const (
	CardSourceManual       = "manual"
	CardSourceAIUnverified = "ai-unverified"
	CardSourceAIStatus     = "ai-status"
)

// CardTable is a structured table inside a helper card.
type CardTable struct {
	Title  string     `json:"title,omitempty"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// InsertOption is a report-ready phrase the editor can insert verbatim.
type InsertOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// HelperCard is a short structured clinical-reference unit shown alongside
// the report editor. AI-generated cards are created once and never updated
// in place; admin tooling soft-deletes via the Active flag.
type HelperCard struct {
	ID                string         `json:"id" db:"id"`
	Title             string         `json:"title" db:"title"`
	Summary           string         `json:"summary" db:"summary"`
	Bullets           []string       `json:"bullets" db:"bullets"`
	InsertOptions     []InsertOption `json:"insert_options" db:"insert_options"`
	Kind              CardKind       `json:"kind" db:"kind"`
	Tables            []CardTable    `json:"tables" db:"tables"`
	Section           ReportSection  `json:"section" db:"section"`
	Modality          string         `json:"modality" db:"modality"`
	BodyPart          string         `json:"body_part" db:"body_part"`
	Module            string         `json:"module" db:"module"`
	Priority          int            `json:"priority" db:"priority"`
	Active            bool           `json:"active" db:"active"`
	Source            string         `json:"source" db:"source"`
	SourceDetail      string         `json:"source_detail" db:"source_detail"`
	GeneratedForToken string         `json:"generated_for_token" db:"generated_for_token"`
	GeneratedHash     string         `json:"generated_hash" db:"generated_hash"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// HelperCardView is the read-only surface shared by persisted cards and
// ephemeral status placeholders, so callers can render either without
// probing for an ID.
type HelperCardView interface {
	CardID() string
	CardTitle() string
	CardSummary() string
	CardKind() CardKind
	CardSection() ReportSection
	CardBullets() []string
	CardInsertOptions() []InsertOption
	CardTables() []CardTable
	CardSource() string
	CardSourceDetail() string
}

func (c *HelperCard) CardID() string                   { return c.ID }
func (c *HelperCard) CardTitle() string                { return c.Title }
func (c *HelperCard) CardSummary() string              { return c.Summary }
func (c *HelperCard) CardKind() CardKind               { return c.Kind }
func (c *HelperCard) CardSection() ReportSection       { return c.Section }
func (c *HelperCard) CardBullets() []string            { return c.Bullets }
func (c *HelperCard) CardInsertOptions() []InsertOption { return c.InsertOptions }
func (c *HelperCard) CardTables() []CardTable          { return c.Tables }
func (c *HelperCard) CardSource() string               { return c.Source }
func (c *HelperCard) CardSourceDetail() string         { return c.SourceDetail }

// EphemeralStatusCard explains why no card was generated. It is never
// persisted and carries no ID.
type EphemeralStatusCard struct {
	Title        string
	Reason       string
	Section      ReportSection
	SourceDetail string
}

func (c *EphemeralStatusCard) CardID() string                    { return "" }
func (c *EphemeralStatusCard) CardTitle() string                 { return c.Title }
func (c *EphemeralStatusCard) CardSummary() string               { return c.Reason }
func (c *EphemeralStatusCard) CardKind() CardKind                { return CardKindInfo }
func (c *EphemeralStatusCard) CardSection() ReportSection        { return c.Section }
func (c *EphemeralStatusCard) CardBullets() []string             { return nil }
func (c *EphemeralStatusCard) CardInsertOptions() []InsertOption { return nil }
func (c *EphemeralStatusCard) CardTables() []CardTable           { return nil }
func (c *EphemeralStatusCard) CardSource() string                { return CardSourceAIStatus }
func (c *EphemeralStatusCard) CardSourceDetail() string          { return c.SourceDetail }

// CardRequest is the ephemeral generation context built per request and
// discarded after the call.
type CardRequest struct {
	SelectionText   string
	Section         ReportSection
	Modality        string
	BodyPart        string
	Module          string
	StudyType       string
	Indication      string
	CoreQuestion    string
	User            *User
	ForceProvider   string
	ForceTimeout    time.Duration
	ForceAI         bool
	ReplaceFallback bool
}
