package aihelper_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/domain/entities"
)

func TestExtractCandidates_FencedJSON(t *testing.T) {
	raw := "Some preamble text\n```json\n[{\"title\":\"X\",\"summary\":\"Y\",\"bullets\":[]}]\n```"

	candidates := aihelper.ExtractCandidates(raw)
	require.Len(t, candidates, 1)
	assert.Equal(t, "X", candidates[0]["title"])
}

func TestExtractCandidates_TruncatedArray(t *testing.T) {
	// An array cut off before its first element completes has nothing
	// salvageable.
	raw := `[{"title":"X","summary":"Y"`

	assert.Empty(t, aihelper.ExtractCandidates(raw))
}

func TestExtractCandidates_TruncatedSecondElement(t *testing.T) {
	raw := `[{"title":"A","summary":"done"},{"title":"B","summ`

	candidates := aihelper.ExtractCandidates(raw)
	require.Len(t, candidates, 1)
	assert.Equal(t, "A", candidates[0]["title"])
}

func TestExtractCandidates_TruncatedBareObject(t *testing.T) {
	candidates := aihelper.ExtractCandidates(`{"title":"X","summary":"Y`)
	require.Len(t, candidates, 1)
	assert.Equal(t, "X", candidates[0]["title"])
}

func TestExtractCandidates_BareObjectAndCardsKey(t *testing.T) {
	candidates := aihelper.ExtractCandidates(`{"title":"solo"}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, "solo", candidates[0]["title"])

	candidates = aihelper.ExtractCandidates(`{"cards":[{"title":"wrapped"}]}`)
	require.Len(t, candidates, 1)
	assert.Equal(t, "wrapped", candidates[0]["title"])
}

func TestExtractCandidates_Garbage(t *testing.T) {
	assert.Empty(t, aihelper.ExtractCandidates("I cannot help with that."))
	assert.Empty(t, aihelper.ExtractCandidates(""))
}

func TestExtractCandidates_ThinkBlockStripped(t *testing.T) {
	raw := "<think>let me reason about this</think>[{\"title\":\"Z\"}]"

	candidates := aihelper.ExtractCandidates(raw)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Z", candidates[0]["title"])
}

func TestValidateCards_ScoreRequiresTwoTables(t *testing.T) {
	oneTable := []map[string]interface{}{{
		"title": "Score",
		"kind":  "score",
		"tables": []interface{}{
			map[string]interface{}{
				"header": []interface{}{"Criterion", "Points"},
				"rows":   []interface{}{[]interface{}{"size", "2"}},
			},
		},
	}}
	assert.Empty(t, aihelper.ValidateCards(oneTable, entities.SectionObservations))

	twoTables := []map[string]interface{}{{
		"title": "Score",
		"kind":  "score",
		"tables": []interface{}{
			map[string]interface{}{
				"header": []interface{}{"Criterion", "Points"},
				"rows":   []interface{}{[]interface{}{"size", "2"}},
			},
			map[string]interface{}{
				"header": []interface{}{"Total", "Stage"},
				"rows":   []interface{}{[]interface{}{"0-2", "I"}},
			},
		},
	}}
	cards := aihelper.ValidateCards(twoTables, entities.SectionObservations)
	require.Len(t, cards, 1)
	assert.Equal(t, entities.CardKindScore, cards[0].Kind)
	assert.Len(t, cards[0].Tables, 2)
}

func TestValidateCards_BulletPolicy(t *testing.T) {
	var bullets []interface{}
	for i := 0; i < 12; i++ {
		bullets = append(bullets, "bullet number "+strings.Repeat("x", i+1))
	}
	bullets = append(bullets, "See https://www.acr.org/Clinical-Resources/Reporting-and-Data-Systems for details")

	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title":   "Bullet test",
		"bullets": bullets,
	}}, entities.SectionAny)
	require.Len(t, cards, 1)

	got := cards[0].Bullets
	assert.LessOrEqual(t, len(got), 8)

	sourceCount := 0
	for _, b := range got {
		if strings.HasPrefix(b, "Sources:") {
			sourceCount++
		}
	}
	assert.Equal(t, 1, sourceCount)
	assert.True(t, strings.HasPrefix(got[len(got)-1], "Sources:"), "source bullet must be last")
	assert.Contains(t, got[len(got)-1], "acr.org")
}

func TestValidateCards_DedupesBulletsCaseInsensitive(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title":   "Dedup",
		"bullets": []interface{}{"Same thing", "same thing", "SAME THING", "other"},
	}}, entities.SectionAny)
	require.Len(t, cards, 1)

	nonSource := 0
	for _, b := range cards[0].Bullets {
		if !strings.HasPrefix(b, "Sources:") {
			nonSource++
		}
	}
	assert.Equal(t, 2, nonSource)
}

func TestValidateCards_TNMSourceFallback(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title":   "TNM staging overview",
		"bullets": []interface{}{"T describes tumor size"},
	}}, entities.SectionAny)
	require.Len(t, cards, 1)

	last := cards[0].Bullets[len(cards[0].Bullets)-1]
	assert.Contains(t, last, "facs.org")
}

func TestValidateCards_PendingVerificationFallback(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title":   "No citation",
		"bullets": []interface{}{"a fact"},
	}}, entities.SectionAny)
	require.Len(t, cards, 1)

	last := cards[0].Bullets[len(cards[0].Bullets)-1]
	assert.Equal(t, "Sources: pending verification", last)
}

func TestValidateCards_DropsUntitled(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{
		{"summary": "no title here"},
		{"title": "  "},
		{"title": "kept"},
	}, entities.SectionAny)
	require.Len(t, cards, 1)
	assert.Equal(t, "kept", cards[0].Title)
}

func TestValidateCards_InsertOptionCapAndClamp(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title": "Options",
		"kind":  "not-a-kind",
		"insert_options": []interface{}{
			map[string]interface{}{"label": "a", "text": "one"},
			map[string]interface{}{"label": "b", "text": "two"},
			map[string]interface{}{"label": "c", "text": "three"},
			map[string]interface{}{"label": "d", "text": "four"},
			map[string]interface{}{"label": "missing text"},
		},
	}}, entities.SectionConclusion)
	require.Len(t, cards, 1)
	assert.Len(t, cards[0].InsertOptions, 3)
	assert.Equal(t, entities.CardKindInfo, cards[0].Kind)
	assert.Equal(t, entities.SectionConclusion, cards[0].Section)
}

func TestValidateCards_TablePadding(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title": "Tables",
		"tables": []interface{}{
			map[string]interface{}{
				"header": []interface{}{"A", "B", "C"},
				"rows": []interface{}{
					[]interface{}{"only-one"},
					[]interface{}{"one", "two", "three", "four"},
				},
			},
			map[string]interface{}{
				"header": []interface{}{"empty"},
				"rows":   []interface{}{},
			},
		},
	}}, entities.SectionAny)
	require.Len(t, cards, 1)
	require.Len(t, cards[0].Tables, 1, "rowless table is dropped")

	table := cards[0].Tables[0]
	assert.Equal(t, []string{"only-one", "", ""}, table.Rows[0])
	assert.Equal(t, []string{"one", "two", "three"}, table.Rows[1])
}

func TestValidateCards_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" straddles the 120-byte title cap; a byte slice would leave a
	// dangling continuation byte that Postgres rejects.
	title := strings.Repeat("a", 119) + "é" + " syndrome"
	cards := aihelper.ValidateCards([]map[string]interface{}{{
		"title":   title,
		"summary": strings.Repeat("b", 359) + "é" + " residual",
	}}, entities.SectionObservations)
	require.Len(t, cards, 1)

	assert.True(t, utf8.ValidString(cards[0].Title))
	assert.LessOrEqual(t, len(cards[0].Title), 120)
	assert.Equal(t, strings.Repeat("a", 119), cards[0].Title)

	assert.True(t, utf8.ValidString(cards[0].Summary))
	assert.LessOrEqual(t, len(cards[0].Summary), 360)
	assert.Equal(t, strings.Repeat("b", 359), cards[0].Summary)
}

func TestValidateCards_AtMostOneCard(t *testing.T) {
	cards := aihelper.ValidateCards([]map[string]interface{}{
		{"title": "first"},
		{"title": "second"},
	}, entities.SectionAny)
	assert.Len(t, cards, 1)
}

func TestExtractReason(t *testing.T) {
	assert.Equal(t, "not confident enough",
		aihelper.ExtractReason(`{"reason": "not confident enough"}`))

	assert.Equal(t, "thinking out loud",
		aihelper.ExtractReason("<think>thinking out loud</think>[]"))

	reason := aihelper.ExtractReason(`broken json "reason": "recovered via regex" trailing`)
	assert.Equal(t, "recovered via regex", reason)

	assert.Equal(t, "plain refusal text", aihelper.ExtractReason("plain refusal text"))

	assert.Equal(t, "the model returned no usable card", aihelper.ExtractReason("[]"))
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, aihelper.StripCodeFences("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, "no fences", aihelper.StripCodeFences("no fences"))
	assert.Equal(t, `[{"a":1}]`, aihelper.StripCodeFences("```json\n[{\"a\":1}]"))
}
