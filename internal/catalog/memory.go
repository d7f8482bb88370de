package catalog

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"sync"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

// Memory is an in-process Catalog used by the memory store driver and tests.
type Memory struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

// NewMemory creates a Memory catalog seeded with items.
func NewMemory(items ...domain.CatalogItem) *Memory {
	m := &Memory{items: make(map[string]domain.CatalogItem)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

// Upsert inserts or replaces an item.
func (m *Memory) Upsert(_ context.Context, item domain.CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

// Find implements Catalog.
func (m *Memory) Find(_ context.Context, f Filter) ([]domain.CatalogItem, error) {
	var re *regexp.Regexp
	if f.NamePattern != "" {
		var err error
		re, err = regexp.Compile("(?i)" + f.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("name pattern: %w", err)
		}
	}

	m.mu.RLock()
	var out []domain.CatalogItem
	for _, it := range m.items {
		if re != nil && !re.MatchString(it.Name) {
			continue
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, it.Type) {
			continue
		}
		if f.BestsellerOnly && !it.Bestseller {
			continue
		}
		out = append(out, it)
	}
	m.mu.RUnlock()

	SortItems(out, f.Sort)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// DistinctTypes implements Catalog.
func (m *Memory) DistinctTypes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, it := range m.items {
		if it.Type != "" && !seen[it.Type] {
			seen[it.Type] = true
			types = append(types, it.Type)
		}
	}
	sort.Strings(types)
	return types, nil
}

// SortItems orders items in place. Ties fall back to id for a stable order.
func SortItems(items []domain.CatalogItem, s Sort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if s == SortBestsellerRecent && a.Bestseller != b.Bestseller {
			return a.Bestseller
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
