package domain

import (
	"fmt"
	"strings"
	"time"
)

// CatalogItem is the canonical product shape the chat core works with.
// Store records are normalized into it once, at the catalog boundary.
type CatalogItem struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Price      int64     `json:"price" yaml:"price"` // VND
	Type       string    `json:"type" yaml:"type"`
	Sizes      []string  `json:"sizes,omitempty" yaml:"sizes,omitempty"`
	Bestseller bool      `json:"bestseller,omitempty" yaml:"bestseller,omitempty"`
	Image      string    `json:"image,omitempty" yaml:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

// IsBottomWear reports whether a product type belongs to the bottom-wear
// partition of the catalog.
func IsBottomWear(productType string) bool {
	t := strings.ToLower(productType)
	return strings.Contains(t, "jogger") || strings.Contains(t, "pants")
}

// BottomWear reports whether the item is bottom-wear.
func (c CatalogItem) BottomWear() bool { return IsBottomWear(c.Type) }

// Link renders the markdown product link used in chat replies.
func (c CatalogItem) Link() string {
	return fmt.Sprintf("[%s](/product/%s)", c.Name, c.ID)
}

// PriceLabel formats the price in thousands, e.g. 250000 → "250k".
func (c CatalogItem) PriceLabel() string {
	return fmt.Sprintf("%dk", (c.Price+500)/1000)
}
