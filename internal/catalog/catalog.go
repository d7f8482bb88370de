// Package catalog resolves free-text customer queries into a bounded, ranked
// set of catalog items.
package catalog

import (
	"context"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

// Sort orders catalog results.
type Sort int

const (
	// SortBestsellerRecent puts bestsellers first, then newest first.
	SortBestsellerRecent Sort = iota
	// SortRecent orders newest first.
	SortRecent
)

// Filter selects catalog items. Empty fields do not constrain the result.
type Filter struct {
	NamePattern    string // case-insensitive regular expression over the item name
	Types          []string
	BestsellerOnly bool
	Sort           Sort
	Limit          int
}

// Catalog is the product source consulted by the lookup.
type Catalog interface {
	Find(ctx context.Context, f Filter) ([]domain.CatalogItem, error)
	DistinctTypes(ctx context.Context) ([]string, error)
}
