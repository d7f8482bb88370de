package catalog

import (
	"context"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"

	"github.com/soyeahso/chevai-chat/internal/domain"
	"github.com/soyeahso/chevai-chat/internal/logging"
	"github.com/soyeahso/chevai-chat/internal/metrics"
)

// Tier names the lookup stage that produced a result.
type Tier string

const (
	TierName     Tier = "name"
	TierType     Tier = "type"
	TierOutfit   Tier = "outfit"
	TierFallback Tier = "fallback"
	TierNone     Tier = "none"
)

// Result limits per tier.
const (
	NameLimit     = 20
	TypeLimit     = 15
	OutfitTopPool = 10
	OutfitBottom  = 5
	FallbackEach  = 10
	FallbackLimit = 15
)

var (
	nonWordPattern = regexp.MustCompile(`[^\w\sÀ-ỹ]`)
	setPattern     = regexp.MustCompile(`(?i)(set|bộ|combo|outfit|phối|kết hợp|gợi ý.*đồ|cafe|chơi|đi|dự|tiệc)`)

	stopwords = []string{"cho", "tôi", "xem", "mình", "một", "của", "với", "và", "có", "là", "này", "đó"}

	// nameTriggers enable the name tier.
	nameTriggers = []string{"áo", "shirt", "quần", "pants"}

	// typeKeywords are tried in order by the type tier.
	typeKeywords = []string{"áo", "shirt", "quần", "pants", "hoodie", "sweater", "jogger"}
)

// IsSetQuery reports whether text asks for an outfit or a combination of items.
func IsSetQuery(text string) bool {
	return setPattern.MatchString(text)
}

// Keywords extracts the significant lowercase words of a query.
func Keywords(query string) []string {
	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(query), " ")
	var out []string
	for _, w := range strings.Fields(cleaned) {
		if len([]rune(w)) > 1 && !slices.Contains(stopwords, w) {
			out = append(out, w)
		}
	}
	return out
}

// Result is the outcome of a lookup.
type Result struct {
	Items []domain.CatalogItem
	Tier  Tier
}

// Lookup runs the tiered catalog search.
type Lookup struct {
	cat  Catalog
	log  *logging.Logger
	intn func(n int) int
}

// LookupOption configures a Lookup.
type LookupOption func(*Lookup)

// WithRand replaces the random source used to sample outfit items.
func WithRand(intn func(n int) int) LookupOption {
	return func(l *Lookup) { l.intn = intn }
}

// NewLookup creates a Lookup over cat.
func NewLookup(cat Catalog, log *logging.Logger, opts ...LookupOption) *Lookup {
	l := &Lookup{cat: cat, log: log.Sub("catalog"), intn: rand.IntN}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Find resolves a customer query. Lookup errors are logged and degrade to
// an empty result.
func (l *Lookup) Find(ctx context.Context, query string) Result {
	res, err := l.find(ctx, query)
	if err != nil {
		l.log.Warn().Err(err).Str("query", query).Msg("catalog lookup failed")
		res = Result{Tier: TierNone}
	}
	metrics.CatalogLookupsTotal.WithLabelValues(string(res.Tier)).Inc()
	return res
}

func (l *Lookup) find(ctx context.Context, query string) (Result, error) {
	q := strings.ToLower(query)
	res := Result{Tier: TierNone}

	if containsAny(q, nameTriggers) {
		if kws := Keywords(q); len(kws) > 0 {
			quoted := make([]string, len(kws))
			for i, kw := range kws {
				quoted[i] = regexp.QuoteMeta(kw)
			}
			items, err := l.cat.Find(ctx, Filter{
				NamePattern: strings.Join(quoted, "|"),
				Sort:        SortBestsellerRecent,
				Limit:       NameLimit,
			})
			if err != nil {
				return res, err
			}
			res = Result{Items: items, Tier: TierName}
		}
	}

	if len(res.Items) == 0 {
		types, err := l.cat.DistinctTypes(ctx)
		if err != nil {
			return res, err
		}
		for _, kw := range typeKeywords {
			if !strings.Contains(q, kw) {
				continue
			}
			matched := typesFor(kw, types)
			if len(matched) == 0 {
				continue
			}
			items, err := l.cat.Find(ctx, Filter{Types: matched, Sort: SortBestsellerRecent, Limit: TypeLimit})
			if err != nil {
				return res, err
			}
			res = Result{Items: items, Tier: TierType}
			break
		}
	}

	if IsSetQuery(query) || len(res.Items) == 0 {
		outfit, err := l.outfit(ctx)
		if err != nil {
			return res, err
		}
		res = Result{Items: outfit, Tier: TierOutfit}
	}

	if len(res.Items) == 0 {
		items, err := l.fallback(ctx)
		if err != nil {
			return res, err
		}
		res = Result{Items: items, Tier: TierFallback}
		if len(items) == 0 {
			res.Tier = TierNone
		}
	}
	return res, nil
}

// typesFor maps a query keyword to the catalog types it covers.
func typesFor(keyword string, types []string) []string {
	var out []string
	for _, t := range types {
		lt := strings.ToLower(t)
		var ok bool
		switch keyword {
		case "áo", "shirt":
			ok = !domain.IsBottomWear(t)
		case "quần", "pants":
			ok = domain.IsBottomWear(t)
		default:
			ok = strings.Contains(lt, keyword)
		}
		if ok {
			out = append(out, t)
		}
	}
	return out
}

// outfit samples one top-wear item from the top candidates and one
// bottom-wear item from the top bottom-wear candidates.
func (l *Lookup) outfit(ctx context.Context) ([]domain.CatalogItem, error) {
	types, err := l.cat.DistinctTypes(ctx)
	if err != nil {
		return nil, err
	}

	var tops, bottoms []string
	for _, t := range types {
		if domain.IsBottomWear(t) {
			bottoms = append(bottoms, t)
		} else {
			tops = append(tops, t)
		}
	}

	var out []domain.CatalogItem
	if len(tops) > 0 {
		pool, err := l.cat.Find(ctx, Filter{Types: tops, Sort: SortBestsellerRecent, Limit: OutfitTopPool})
		if err != nil {
			return nil, err
		}
		if len(pool) > 0 {
			out = append(out, pool[l.intn(len(pool))])
		}
	}
	if len(bottoms) > 0 {
		pool, err := l.cat.Find(ctx, Filter{Types: bottoms, Sort: SortBestsellerRecent, Limit: OutfitBottom})
		if err != nil {
			return nil, err
		}
		if len(pool) > 0 {
			out = append(out, pool[l.intn(len(pool))])
		}
	}
	return out, nil
}

func (l *Lookup) fallback(ctx context.Context) ([]domain.CatalogItem, error) {
	recent, err := l.cat.Find(ctx, Filter{Sort: SortRecent, Limit: FallbackEach})
	if err != nil {
		return nil, err
	}
	best, err := l.cat.Find(ctx, Filter{BestsellerOnly: true, Sort: SortRecent, Limit: FallbackEach})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []domain.CatalogItem
	for _, it := range append(recent, best...) {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
		if len(out) == FallbackLimit {
			break
		}
	}
	return out, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
