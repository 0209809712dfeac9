package aihelper

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zatekoja/radreference/internal/domain/entities"
)

// Card content policy limits.
const (
	maxTitleLen       = 120
	maxSummaryLen     = 360
	maxBullets        = 8
	maxInsertOptions  = 3
	maxInsertLabelLen = 80
	maxInsertTextLen  = 500
	maxCardsPerReply  = 1
)

// tnmSourceURL is the hard-coded fallback reference for TNM staging cards
// when the model cites nothing usable.
const tnmSourceURL = "https://www.facs.org/quality-programs/cancer-programs/american-joint-committee-on-cancer/"

var (
	fenceRe      = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	thinkRe      = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
	reasonRe     = regexp.MustCompile(`"reason"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	urlCandidate = regexp.MustCompile(`https?://[^\s"'<>\)\]]+`)
)

// StripCodeFences unwraps markdown code fences, keeping their contents.
func StripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence: drop everything up to and including the marker.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		return strings.TrimSpace(rest)
	}
	return text
}

func stripThinkBlock(text string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(text, ""))
}

func thinkBlockContent(text string) string {
	if m := thinkRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractCandidates recovers a list of candidate card objects from raw
// provider text. It never fails: each salvage strategy is tried in order and
// an unrecoverable payload yields an empty list.
func ExtractCandidates(raw string) []map[string]interface{} {
	cleaned := stripThinkBlock(StripCodeFences(strings.TrimSpace(raw)))

	start := strings.IndexAny(cleaned, "[{")
	if start < 0 {
		return nil
	}
	cleaned = cleaned[start:]

	strategies := []func(string) (interface{}, bool){
		parseStrict,
		parseTruncatedAtLastBalanced,
		parseWithAppendedClosers,
	}

	for _, strategy := range strategies {
		if parsed, ok := strategy(cleaned); ok {
			if cards := coerceCandidates(parsed); cards != nil {
				return cards
			}
		}
	}
	return nil
}

func parseStrict(text string) (interface{}, bool) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// parseTruncatedAtLastBalanced discards a truncated tail: for an array, it
// cuts after the last complete element and re-closes the array; for an
// object, it cuts at the point where all brackets were balanced, dropping
// trailing commentary.
func parseTruncatedAtLastBalanced(text string) (interface{}, bool) {
	isArray := text[0] == '['

	lastCut := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range text {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
				if isArray && depth == 1 {
					lastCut = i
				}
				if !isArray && depth == 0 {
					lastCut = i
				}
			}
		}
	}
	if lastCut < 0 {
		return nil, false
	}
	if isArray {
		return parseStrict(text[:lastCut+1] + "]")
	}
	return parseStrict(text[:lastCut+1])
}

// parseWithAppendedClosers balances a truncated bare object by appending the
// missing closers, after terminating a dangling string and trimming a
// trailing comma. Truncated arrays are not repaired this way: an array with
// no complete element carries nothing worth salvaging.
func parseWithAppendedClosers(text string) (interface{}, bool) {
	if text[0] != '{' {
		return nil, false
	}

	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 && !inString {
		return nil, false
	}

	repaired := text
	if inString {
		repaired += `"`
	}
	repaired = strings.TrimRight(repaired, ", \n\t")
	for i := len(stack) - 1; i >= 0; i-- {
		repaired += string(stack[i])
	}
	return parseStrict(repaired)
}

// coerceCandidates accepts a top-level list, an object with a "cards" key,
// or a single bare object (wrapped as a one-element list).
func coerceCandidates(parsed interface{}) []map[string]interface{} {
	switch v := parsed.(type) {
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range v {
			if obj, ok := item.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
		return out
	case map[string]interface{}:
		if inner, ok := v["cards"]; ok {
			return coerceCandidates(inner)
		}
		return []map[string]interface{}{v}
	}
	return nil
}

// ValidateCards applies the card content policy to candidates and returns at
// most one accepted card. Candidates without a title, and score-kind cards
// with fewer than two tables, are dropped.
func ValidateCards(candidates []map[string]interface{}, section entities.ReportSection) []*entities.HelperCard {
	var out []*entities.HelperCard
	for _, candidate := range candidates {
		card := validateCard(candidate, section)
		if card == nil {
			continue
		}
		out = append(out, card)
		if len(out) >= maxCardsPerReply {
			break
		}
	}
	return out
}

func validateCard(candidate map[string]interface{}, section entities.ReportSection) *entities.HelperCard {
	title := strings.TrimSpace(asString(candidate["title"]))
	if title == "" {
		return nil
	}

	card := &entities.HelperCard{
		Title:   truncate(title, maxTitleLen),
		Summary: truncate(strings.TrimSpace(asString(candidate["summary"])), maxSummaryLen),
		Kind:    entities.ClampCardKind(asString(candidate["kind"])),
		Section: section,
		Active:  true,
	}

	rawBullets := asStringSlice(candidate["bullets"])
	card.Bullets = applySourcePolicy(dedupeBullets(rawBullets), rawBullets, card.Title)

	for _, opt := range asSlice(candidate["insert_options"]) {
		obj, ok := opt.(map[string]interface{})
		if !ok {
			continue
		}
		label := strings.TrimSpace(asString(obj["label"]))
		text := strings.TrimSpace(asString(obj["text"]))
		if label == "" || text == "" {
			continue
		}
		card.InsertOptions = append(card.InsertOptions, entities.InsertOption{
			Label: truncate(label, maxInsertLabelLen),
			Text:  truncate(text, maxInsertTextLen),
		})
		if len(card.InsertOptions) >= maxInsertOptions {
			break
		}
	}

	for _, tbl := range asSlice(candidate["tables"]) {
		obj, ok := tbl.(map[string]interface{})
		if !ok {
			continue
		}
		table := normalizeTable(obj)
		if len(table.Rows) == 0 {
			continue
		}
		card.Tables = append(card.Tables, table)
	}

	// Multi-component scores need a criteria table and an interpretation
	// table; anything less is unusable at the workstation.
	if card.Kind == entities.CardKindScore && len(card.Tables) < 2 {
		return nil
	}

	return card
}

func normalizeTable(obj map[string]interface{}) entities.CardTable {
	table := entities.CardTable{
		Title:  strings.TrimSpace(asString(obj["title"])),
		Header: asStringSlice(obj["header"]),
	}
	for _, row := range asSlice(obj["rows"]) {
		cells := asStringSliceLoose(row)
		if len(cells) == 0 {
			continue
		}
		if n := len(table.Header); n > 0 {
			for len(cells) < n {
				cells = append(cells, "")
			}
			cells = cells[:n]
		}
		table.Rows = append(table.Rows, cells)
	}
	return table
}

func dedupeBullets(bullets []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range bullets {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		key := strings.ToLower(b)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, b)
		if len(out) >= maxBullets {
			break
		}
	}
	return out
}

// applySourcePolicy guarantees exactly one trailing "Sources:" bullet. The
// first credible absolute URL anywhere in the raw bullets is promoted; TNM
// cards fall back to the AJCC reference, everything else is marked pending.
func applySourcePolicy(bullets, rawBullets []string, title string) []string {
	link := firstCredibleURL(rawBullets)

	var kept []string
	for _, b := range bullets {
		if strings.Contains(strings.ToLower(b), "source") {
			continue
		}
		kept = append(kept, b)
	}

	var sourceBullet string
	switch {
	case link != "":
		sourceBullet = "Sources: " + link
	case strings.Contains(strings.ToLower(title), "tnm"):
		sourceBullet = "Sources: " + tnmSourceURL
	default:
		sourceBullet = "Sources: pending verification"
	}

	if len(kept) >= maxBullets {
		kept = kept[:maxBullets-1]
	}
	return append(kept, sourceBullet)
}

// firstCredibleURL returns the first absolute URL with a host and a
// non-trivial path or query string.
func firstCredibleURL(bullets []string) string {
	for _, b := range bullets {
		for _, match := range urlCandidate.FindAllString(b, -1) {
			match = strings.TrimRight(match, ".,;")
			parsed, err := url.Parse(match)
			if err != nil || parsed.Host == "" {
				continue
			}
			if len(parsed.Path) > 1 || parsed.RawQuery != "" {
				return match
			}
		}
	}
	return ""
}

// ExtractReason recovers a best-effort explanation from a reply that yielded
// no cards: the think block first, then structured reason/summary fields,
// then a raw regex scan, then the cleaned text itself.
func ExtractReason(raw string) string {
	if reason := thinkBlockContent(raw); reason != "" {
		return truncate(reason, maxSummaryLen)
	}

	cleaned := StripCodeFences(strings.TrimSpace(raw))
	if parsed, ok := parseStrict(cleaned); ok {
		if obj, isObj := parsed.(map[string]interface{}); isObj {
			for _, field := range []string{"reason", "summary"} {
				if v := strings.TrimSpace(asString(obj[field])); v != "" {
					return truncate(v, maxSummaryLen)
				}
			}
		}
	}

	if m := reasonRe.FindStringSubmatch(cleaned); m != nil {
		var unquoted string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &unquoted); err == nil && strings.TrimSpace(unquoted) != "" {
			return truncate(strings.TrimSpace(unquoted), maxSummaryLen)
		}
	}

	plain := stripThinkBlock(cleaned)
	plain = strings.Trim(plain, "[]{} \n\t")
	if plain != "" {
		return truncate(plain, maxSummaryLen)
	}
	return "the model returned no usable card"
}

// truncate cuts s to at most max bytes without splitting a UTF-8 rune;
// a mid-rune cut would put invalid text on the persistence path.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func asStringSlice(v interface{}) []string {
	var out []string
	for _, item := range asSlice(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asStringSliceLoose stringifies non-string scalar cells as well, since
// models frequently emit numbers in score tables.
func asStringSliceLoose(v interface{}) []string {
	var out []string
	for _, item := range asSlice(v) {
		switch cell := item.(type) {
		case string:
			out = append(out, cell)
		case float64, bool:
			raw, _ := json.Marshal(cell)
			out = append(out, string(raw))
		case nil:
			out = append(out, "")
		}
	}
	return out
}
