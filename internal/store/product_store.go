package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/chevai-chat/internal/catalog"
	"github.com/soyeahso/chevai-chat/internal/domain"
)

// ProductStore serves the catalog from the products table.
type ProductStore struct {
	db *DB
}

// NewProductStore creates a product store using the given database.
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{db: db}
}

var _ catalog.Catalog = (*ProductStore)(nil)

// Upsert inserts or replaces a product.
func (s *ProductStore) Upsert(ctx context.Context, item domain.CatalogItem) error {
	if item.ID == "" || item.Name == "" {
		return fmt.Errorf("product needs id and name")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	sizes, err := json.Marshal(item.Sizes)
	if err != nil {
		return err
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO products (id, name, price, type, sizes, bestseller, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   price = excluded.price,
		   type = excluded.type,
		   sizes = excluded.sizes,
		   bestseller = excluded.bestseller,
		   image = excluded.image,
		   created_at = excluded.created_at`,
		item.ID, item.Name, item.Price, item.Type, string(sizes), boolInt(item.Bestseller),
		item.Image, item.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting product %s: %w", item.ID, err)
	}
	return nil
}

// Find implements catalog.Catalog.
func (s *ProductStore) Find(ctx context.Context, f catalog.Filter) ([]domain.CatalogItem, error) {
	var where []string
	var args []any

	if f.NamePattern != "" {
		where = append(where, "name REGEXP ?")
		args = append(args, "(?i)"+f.NamePattern)
	}
	if len(f.Types) > 0 {
		where = append(where, "type IN ("+strings.TrimSuffix(strings.Repeat("?,", len(f.Types)), ",")+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.BestsellerOnly {
		where = append(where, "bestseller = 1")
	}

	q := "SELECT id, name, price, type, sizes, bestseller, image, created_at FROM products"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Sort == catalog.SortRecent {
		q += " ORDER BY created_at DESC, id"
	} else {
		q += " ORDER BY bestseller DESC, created_at DESC, id"
	}
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogItem
	for rows.Next() {
		var it domain.CatalogItem
		var sizes string
		var best int
		var created int64
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Type, &sizes, &best, &it.Image, &created); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		_ = json.Unmarshal([]byte(sizes), &it.Sizes)
		it.Bestseller = best != 0
		it.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

// DistinctTypes implements catalog.Catalog.
func (s *ProductStore) DistinctTypes(ctx context.Context) ([]string, error) {
	rows, err := s.db.sql.QueryContext(ctx, "SELECT DISTINCT type FROM products WHERE type != '' ORDER BY type")
	if err != nil {
		return nil, fmt.Errorf("querying product types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Count returns the number of products.
func (s *ProductStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
