package aihelper

import (
	"fmt"
	"strings"

	"github.com/zatekoja/radreference/internal/domain/entities"
)

// buildValidatorPrompt asks for a one-token applicability verdict. The
// generation prompt re-enforces the same constraints, so a lost validator
// verdict is recoverable.
func buildValidatorPrompt(selection, modality string) string {
	mod := modality
	if mod == "" {
		mod = "unspecified"
	}
	return fmt.Sprintf(`You are a radiology triage filter. A radiologist selected the text %q while reporting a %s study.

Answer with EXACTLY ONE token and nothing else:
ALLOW - if the selection names a radiology scoring, classification or reporting system that is applicable to the %s modality, or a radiology concept worth a reference card.
REJECT - if the selection is generic prose, a purely clinical (non-imaging) score, or a system defined for a different modality.

One token only. No punctuation, no explanation.`, selection, mod, mod)
}

// buildGenerationPrompt builds the full card-authoring prompt with the
// domain constraints the response validator later re-checks.
func buildGenerationPrompt(req *entities.CardRequest, token string) string {
	var b strings.Builder

	b.WriteString("You are a radiology reference assistant. Produce AT MOST ONE helper card as a JSON array. Respond with JSON only, no prose, no code fences.\n\n")

	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- selected text: %q\n", req.SelectionText)
	fmt.Fprintf(&b, "- normalized token: %s\n", token)
	fmt.Fprintf(&b, "- report section: %s\n", req.Section)
	writeContextLine(&b, "modality", req.Modality)
	writeContextLine(&b, "body part", req.BodyPart)
	writeContextLine(&b, "module", req.Module)
	writeContextLine(&b, "study type", req.StudyType)
	writeContextLine(&b, "indication", req.Indication)
	writeContextLine(&b, "core question", req.CoreQuestion)

	b.WriteString(`
Card schema (JSON array of objects):
[{"title": string, "summary": string, "kind": "info|score|checklist|differential|technique|measurement|classification|other",
  "bullets": [string], "insert_options": [{"label": string, "text": string}],
  "tables": [{"title": string, "header": [string], "rows": [[string]]}]}]

Authoring rules:
- Only produce a card if you are more than 95% confident the system or concept applies to the given modality. If not, return [] with a "reason" field is acceptable: {"reason": "..."}.
- Never transfer criteria across modalities. A system defined for one modality must not be restated for another.
- Scoring and staging systems MUST be presented as tables. A multi-component score needs at least two tables: one for the component criteria, one for interpretation or final staging.
- Bullets are short factual statements a radiologist can trust at the workstation; at most 8.
- Include exactly one bullet citing a credible source URL (guideline body, society publication, or peer-reviewed reference).
- insert_options are report-ready sentences appropriate for the `)
	b.WriteString(string(req.Section))
	b.WriteString(` section; at most 3.
- Titles at most 120 characters, summaries at most 360.
`)
	return b.String()
}

func writeContextLine(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "- %s: %s\n", label, value)
	}
}
