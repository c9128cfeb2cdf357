// Package platform talks to the catalog and posting APIs of each social platform.
package platform

import (
	"context"
	"errors"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/pkg/log"
)

// ErrInsightsUnsupported the platform exposes no per-product insights
var ErrInsightsUnsupported = errors.New("product insights not supported")

// Credentials platform account the adapter acts as
type Credentials struct {
	AccessToken string
	PageID      string
	CatalogID   string
	AccountID   string
	AppSecret   string
}

// Payload platform-specific catalog representation of a product
type Payload map[string]interface{}

// CatalogEntry result of a publish
type CatalogEntry struct {
	Platform model.Platform `json:"platform"`
	SKU      string         `json:"sku"`
	RemoteID string         `json:"remote_id"`
	Created  bool           `json:"created"`
}

// Content what a share points at
type Content struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	URL         string `json:"url,omitempty"`
}

// RemotePost post created by SharePost
type RemotePost struct {
	ID string `json:"id"`
}

// Insights engagement reported by the platform for one catalog product
type Insights struct {
	RemoteID    string `json:"remote_id"`
	Impressions int64  `json:"impressions"`
	Clicks      int64  `json:"clicks"`
	Conversions int64  `json:"conversions"`
}

// Adapter catalog and posting operations of one platform
type Adapter interface {
	Platform() model.Platform

	// Initialize returns a copy of the adapter bound to creds. No network.
	Initialize(creds Credentials) Adapter

	// Credentials the adapter is bound to
	Credentials() Credentials

	// Authenticate verifies the access token with an identity call
	Authenticate(ctx context.Context) (bool, error)

	// Transform maps a product to the platform catalog format
	Transform(product *model.Product) Payload

	// PublishProduct updates the remote product when one exists for the SKU, else creates it
	PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error)

	// DeleteProduct returns false when the SKU is absent remotely
	DeleteProduct(ctx context.Context, sku string) (bool, error)

	// SharePost posts message with a link to content
	SharePost(ctx context.Context, content Content, message string) (*RemotePost, error)

	// ProductInsights returns nil when the SKU is absent remotely
	ProductInsights(ctx context.Context, sku string) (*Insights, error)
}

var availability = map[model.InventoryStatus]string{
	model.InventoryInStock:    "in stock",
	model.InventoryOutOfStock: "out of stock",
	model.InventoryPreorder:   "preorder",
	model.InventoryBackorder:  "available for order",
}

// Availability maps inventory status to catalog availability. Unknown values read as in stock.
func Availability(status model.InventoryStatus) string {
	if v, ok := availability[status]; ok {
		return v
	}
	return "in stock"
}

// catalogOps remote catalog primitives behind publish and delete
type catalogOps interface {
	find(ctx context.Context, sku string) (string, error)
	create(ctx context.Context, sku string, payload Payload) (string, error)
	update(ctx context.Context, remoteID string, payload Payload) error
	remove(ctx context.Context, remoteID string) error
}

func publishWith(ctx context.Context, c *client, ops catalogOps, product *model.Product, payload Payload) (*CatalogEntry, error) {
	fail := func(err error) (*CatalogEntry, error) {
		c.logger(ctx).WithField("sku", product.SKU).WithError(err).Error("Failed to publish product")
		return nil, &apperr.PublishError{Platform: c.platform, SKU: product.SKU, Cause: err}
	}

	existing, err := ops.find(ctx, product.SKU)
	if err != nil {
		return fail(err)
	}

	entry := &CatalogEntry{Platform: c.platform, SKU: product.SKU}
	if existing != "" {
		if err := ops.update(ctx, existing, payload); err != nil {
			return fail(err)
		}
		entry.RemoteID = existing
	} else {
		id, err := ops.create(ctx, product.SKU, payload)
		if err != nil {
			return fail(err)
		}
		entry.RemoteID = id
		entry.Created = true
	}

	c.logger(ctx).WithFields(log.Fields{
		"sku":       product.SKU,
		"remote_id": entry.RemoteID,
		"created":   entry.Created,
	}).Info("Product published")
	return entry, nil
}

func deleteWith(ctx context.Context, c *client, ops catalogOps, sku string) (bool, error) {
	existing, err := ops.find(ctx, sku)
	if err != nil {
		return false, &apperr.PublishError{Platform: c.platform, SKU: sku, Cause: err}
	}
	if existing == "" {
		c.logger(ctx).WithField("sku", sku).Warn("Product not found in catalog")
		return false, nil
	}
	if err := ops.remove(ctx, existing); err != nil {
		return false, &apperr.PublishError{Platform: c.platform, SKU: sku, Cause: err}
	}
	c.logger(ctx).WithFields(log.Fields{"sku": sku, "remote_id": existing}).Info("Product deleted")
	return true, nil
}
