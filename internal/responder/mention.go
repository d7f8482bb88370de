package responder

import (
	"slices"
	"strings"

	"github.com/soyeahso/chevai-chat/internal/catalog"
	"github.com/soyeahso/chevai-chat/internal/domain"
)

// genericNameTokens appear in many product names and carry no identity.
var genericNameTokens = []string{"áo", "quần", "shirt", "pants"}

// nameTokens returns the significant lowercase tokens of a product name.
func nameTokens(name string) []string {
	var out []string
	for _, kw := range catalog.Keywords(name) {
		if !slices.Contains(genericNameTokens, kw) {
			out = append(out, kw)
		}
	}
	return out
}

// MentionScore rates how strongly text refers to item, from 0 to 1. A link
// to the item's id is a full match; otherwise the score is the share of the
// item's significant name tokens found in the text.
func MentionScore(text string, item domain.CatalogItem) float64 {
	if slices.Contains(linkedIDs(text), item.ID) {
		return 1
	}
	tokens := nameTokens(item.Name)
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

// SelectMentioned picks the items a generated reply refers to. For set
// queries it returns the best top-wear and the best bottom-wear item;
// otherwise the single best item. When nothing scores above zero the first
// candidate is used. Ties go to the earlier candidate.
func SelectMentioned(text string, candidates []domain.CatalogItem, intent Intent) []domain.CatalogItem {
	if len(candidates) == 0 {
		return nil
	}

	if intent == IntentSetQuery {
		var out []domain.CatalogItem
		if top, ok := best(text, candidates, func(it domain.CatalogItem) bool { return !it.BottomWear() }); ok {
			out = append(out, top)
		}
		if bottom, ok := best(text, candidates, domain.CatalogItem.BottomWear); ok {
			out = append(out, bottom)
		}
		if len(out) > 0 {
			return out
		}
	}

	it, _ := best(text, candidates, func(domain.CatalogItem) bool { return true })
	return []domain.CatalogItem{it}
}

// best returns the highest scoring candidate accepted by keep, falling back
// to the first accepted candidate. ok is false when keep accepts none.
func best(text string, candidates []domain.CatalogItem, keep func(domain.CatalogItem) bool) (domain.CatalogItem, bool) {
	var (
		chosen    domain.CatalogItem
		bestScore = -1.0
		found     bool
	)
	for _, it := range candidates {
		if !keep(it) {
			continue
		}
		if s := MentionScore(text, it); s > bestScore {
			chosen, bestScore, found = it, s, true
		}
	}
	return chosen, found
}
