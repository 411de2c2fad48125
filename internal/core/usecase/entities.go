package usecase

import (
	"regexp"
	"strings"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

var (
	// PartSelect ids look like PS11752778; manufacturer numbers like WP8544771.
	partSelectPattern   = regexp.MustCompile(`\bPS\d{6,}\b`)
	manufacturerPattern = regexp.MustCompile(`\b[A-Z]{1,3}\d{7,}\b`)
	// Model numbers mix letters and digits, e.g. WDT780SAEM1 or XYZ123.
	modelCandidatePattern = regexp.MustCompile(`\b[A-Z0-9]{6,}\b`)
)

var knownBrands = []string{
	"whirlpool", "ge", "samsung", "lg", "frigidaire",
	"bosch", "kenmore", "maytag", "kitchenaid", "electrolux",
}

// extractEntities pulls part numbers, model numbers, brands, and appliance
// mentions out of free text. Matching is case-insensitive; values are
// normalized (numbers uppercased, names lowercased).
func extractEntities(text string) []domain.Entity {
	upper := strings.ToUpper(text)
	lower := strings.ToLower(text)

	seen := make(map[string]struct{})
	out := make([]domain.Entity, 0, 4)
	add := func(kind domain.EntityKind, value string) {
		key := string(kind) + ":" + value
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, domain.Entity{Kind: kind, Value: value})
	}

	partValues := make(map[string]struct{})
	for _, m := range partSelectPattern.FindAllString(upper, -1) {
		partValues[m] = struct{}{}
		add(domain.EntityPart, m)
	}
	for _, m := range manufacturerPattern.FindAllString(upper, -1) {
		partValues[m] = struct{}{}
		add(domain.EntityPart, m)
	}

	for _, m := range modelCandidatePattern.FindAllString(upper, -1) {
		if _, isPart := partValues[m]; isPart {
			continue
		}
		if !strings.ContainsAny(m, "0123456789") || !strings.ContainsAny(m, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
			continue
		}
		add(domain.EntityModel, m)
	}

	for _, brand := range knownBrands {
		if containsWord(lower, brand) {
			add(domain.EntityBrand, brand)
		}
	}

	if strings.Contains(lower, "refrigerator") || strings.Contains(lower, "fridge") || strings.Contains(lower, "freezer") {
		add(domain.EntityAppliance, "refrigerator")
	}
	if strings.Contains(lower, "dishwasher") {
		add(domain.EntityAppliance, "dishwasher")
	}

	return out
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], word)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// latestEntity walks turns newest-first and returns the most recent entity of
// the requested kind.
func latestEntity(turns []domain.Turn, kind domain.EntityKind) (domain.Entity, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		entities := turns[i].Entities
		for j := len(entities) - 1; j >= 0; j-- {
			if entities[j].Kind == kind {
				return entities[j], true
			}
		}
	}
	return domain.Entity{}, false
}
