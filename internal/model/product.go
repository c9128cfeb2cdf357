package model

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// InventoryStatus upstream stock state of a product
type InventoryStatus string

const (
	InventoryInStock    InventoryStatus = "in_stock"
	InventoryOutOfStock InventoryStatus = "out_of_stock"
	InventoryPreorder   InventoryStatus = "preorder"
	InventoryBackorder  InventoryStatus = "backorder"
)

// Product catalog record owned by the upstream product service. Read-only here.
type Product struct {
	ID              string          `json:"id"`
	SKU             string          `json:"sku" binding:"required,sku"`
	Name            string          `json:"name" binding:"required,max=200"`
	Description     string          `json:"description"`
	Price           Price           `json:"price"`
	Images          []Image         `json:"images" binding:"dive"`
	Category        string          `json:"category"`
	Brand           string          `json:"brand"`
	VendorID        string          `json:"vendor_id"`
	VendorName      string          `json:"vendor_name"`
	Slug            string          `json:"slug"`
	InventoryStatus InventoryStatus `json:"inventory_status"`
}

// Price amount in major units plus ISO 4217 currency
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required,currency"`
}

// String renders "<amount> <currency>", e.g. "19.99 USD"
func (p Price) String() string {
	return p.Amount.String() + " " + p.Currency
}

// Image product image
type Image struct {
	URL string `json:"url" binding:"required,url"`
}

// Validate checks the fields every adapter depends on
func (p *Product) Validate() error {
	var problems []string
	if strings.TrimSpace(p.SKU) == "" {
		problems = append(problems, "sku is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Price.Currency == "" {
		problems = append(problems, "price currency is required")
	}
	if p.Price.Amount.IsNegative() {
		problems = append(problems, "price amount must be non-negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// LinkSlug returns the storefront path segment, falling back to the lowercased SKU
func (p *Product) LinkSlug() string {
	if p.Slug != "" {
		return p.Slug
	}
	return strings.ToLower(p.SKU)
}

// ImageURLs returns image URLs in order
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}
