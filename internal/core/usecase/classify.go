package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

// Classifier turns a raw utterance plus recent history into a tagged
// QueryIntent. It is deterministic: pattern and keyword driven, no model call
// in the routing path.
type Classifier struct {
	catalog       domain.Catalog
	historyWindow int
	threshold     float64
}

func NewClassifier(catalog domain.Catalog, historyWindow int, threshold float64) *Classifier {
	if historyWindow <= 0 {
		historyWindow = 3
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	return &Classifier{
		catalog:       catalog,
		historyWindow: historyWindow,
		threshold:     threshold,
	}
}

var structuredKeywords = []string{
	"price", "cost", "how much", "$", "in stock", "stock",
	"availability", "available", "compatible", "compatibility",
	"fit", "fits", "work with", "works with", "replace part",
}

var semanticKeywords = []string{
	"how to", "how do", "how can", "why", "won't", "wont", "doesn't",
	"does not", "not working", "stopped", "broken", "fix", "repair",
	"troubleshoot", "leak", "leaking", "drain", "draining", "noise",
	"noisy", "error code", "install", "installation", "symptom",
}

var guideHintKeywords = []string{
	"won't", "wont", "doesn't", "not working", "leak", "drain",
	"noise", "error code", "broken", "symptom", "troubleshoot",
}

// referencePhrases map elliptical references to the entity kind they resolve
// to. Order matters: longer phrases are matched first.
var referencePhrases = []struct {
	phrase string
	kind   domain.EntityKind
}{
	{"that part", domain.EntityPart},
	{"this part", domain.EntityPart},
	{"the part", domain.EntityPart},
	{"the same part", domain.EntityPart},
	{"that model", domain.EntityModel},
	{"this model", domain.EntityModel},
	{"the same model", domain.EntityModel},
	{"my model", domain.EntityModel},
	{"it", domain.EntityPart},
}

// Classify produces the intent for one turn. When the signal is too weak it
// returns the intent alongside ErrClassificationAmbiguous; the caller must
// then run both retrieval paths instead of guessing.
func (c *Classifier) Classify(rawText string, history []domain.Turn) (domain.QueryIntent, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return domain.QueryIntent{}, domain.WrapError(domain.ErrInvalidInput, "classify", fmt.Errorf("empty query"))
	}

	window := history
	if len(window) > c.historyWindow {
		window = window[len(window)-c.historyWindow:]
	}

	resolved := c.resolveReferences(text, window)
	entities := extractEntities(resolved)

	lower := strings.ToLower(resolved)
	needsStructured := hasAnyKeyword(lower, structuredKeywords)
	needsSemantic := hasAnyKeyword(lower, semanticKeywords)

	filters := c.buildFilters(entities, lower)
	if len(filters) > 0 {
		needsStructured = true
	}

	categoryHint := ""
	if needsSemantic && hasAnyKeyword(lower, guideHintKeywords) {
		categoryHint = "repair-guide"
	}

	confidence := 0.2
	if needsStructured {
		confidence += 0.3
	}
	if needsSemantic {
		confidence += 0.3
	}
	if len(entities) > 0 {
		confidence += 0.2
	}
	if confidence > 1 {
		confidence = 1
	}

	intent := domain.QueryIntent{
		RawText:         text,
		ResolvedText:    resolved,
		Filters:         filters,
		CategoryHint:    categoryHint,
		NeedsStructured: needsStructured,
		NeedsSemantic:   needsSemantic,
		InScope:         c.inScope(entities, lower, window),
		Confidence:      confidence,
		Entities:        entities,
	}

	if confidence < c.threshold {
		return intent, domain.WrapError(domain.ErrClassificationAmbiguous, "classify",
			fmt.Errorf("confidence %.2f below threshold %.2f", confidence, c.threshold))
	}
	return intent, nil
}

// resolveReferences substitutes elliptical references with the most recent
// matching entity from the history window.
func (c *Classifier) resolveReferences(text string, window []domain.Turn) string {
	resolved := text
	for _, ref := range referencePhrases {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(ref.phrase) + `\b`)
		if !pattern.MatchString(resolved) {
			continue
		}
		entity, ok := latestEntity(window, ref.kind)
		if !ok {
			continue
		}
		replacement := entity.Value
		if ref.kind == domain.EntityPart {
			replacement = "part " + entity.Value
		}
		resolved = pattern.ReplaceAllString(resolved, replacement)
	}
	return resolved
}

func (c *Classifier) buildFilters(entities []domain.Entity, lower string) []domain.FieldFilter {
	filters := make([]domain.FieldFilter, 0, len(entities))
	add := func(field, value string, match domain.MatchKind) {
		if !c.fieldAllowed(field) {
			return
		}
		filters = append(filters, domain.FieldFilter{Field: field, Value: value, Match: match})
	}

	for _, e := range entities {
		switch e.Kind {
		case domain.EntityPart:
			field := "mpn_id"
			if strings.HasPrefix(e.Value, "PS") {
				field = "part_id"
			}
			add(field, e.Value, domain.MatchExact)
		case domain.EntityBrand:
			add("brand", e.Value, domain.MatchExact)
		case domain.EntityAppliance:
			add("appliance_types", e.Value, domain.MatchFuzzy)
		}
		// Model numbers carry no allow-listed column; they stay in the
		// resolved text and steer the compatibility answer instead.
	}

	// Price/availability questions without an identifier fall back to a fuzzy
	// part-name match on the remaining descriptive words.
	if len(filters) == 0 && hasAnyKeyword(lower, structuredKeywords) {
		if name := descriptiveWords(lower); name != "" {
			add("part_name", name, domain.MatchFuzzy)
		}
	}
	return filters
}

func (c *Classifier) fieldAllowed(field string) bool {
	for _, table := range c.catalog.Tables {
		if _, ok := table.Column(field); ok {
			return true
		}
	}
	return false
}

func (c *Classifier) inScope(entities []domain.Entity, lower string, window []domain.Turn) bool {
	if len(entities) > 0 {
		return true
	}
	if strings.Contains(lower, "part") || strings.Contains(lower, "appliance") {
		return true
	}
	if hasAnyKeyword(lower, semanticKeywords) || hasAnyKeyword(lower, structuredKeywords) {
		return true
	}
	// Short follow-ups stay in scope while the session has appliance context.
	for _, turn := range window {
		if len(turn.Entities) > 0 {
			return true
		}
	}
	return false
}

func hasAnyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var classifierStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "my": {}, "for": {},
	"of": {}, "to": {}, "in": {}, "on": {}, "what": {}, "whats": {},
	"how": {}, "much": {}, "does": {}, "do": {}, "i": {}, "need": {},
	"price": {}, "cost": {}, "available": {}, "availability": {},
	"stock": {}, "it": {}, "this": {}, "that": {},
}

// descriptiveWords strips stopwords and punctuation, leaving a fuzzy-matchable
// part description like "door shelf bin".
func descriptiveWords(lower string) string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := classifierStopwords[f]; skip {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
