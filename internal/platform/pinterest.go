package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
)

// PinterestAdapter Pinterest catalogs and pins. Catalog items are keyed by SKU,
// so the remote id is the SKU itself. PageID is the board pins go to.
type PinterestAdapter struct {
	client
}

// NewPinterestAdapter creates a Pinterest adapter
func NewPinterestAdapter(opts Options) *PinterestAdapter {
	return &PinterestAdapter{client: newClient(model.PlatformPinterest, opts, tokenBearer)}
}

func (a *PinterestAdapter) Platform() model.Platform { return model.PlatformPinterest }

func (a *PinterestAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *PinterestAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/user_account", nil)
}

func (a *PinterestAdapter) Transform(p *model.Product) Payload {
	attributes := map[string]interface{}{
		"title":        p.Name,
		"description":  p.Description,
		"link":         a.productLink(p),
		"price":        p.Price.String(),
		"availability": Availability(p.InventoryStatus),
		"brand":        p.Brand,
		"product_type": p.Category,
	}
	if urls := p.ImageURLs(); len(urls) > 0 {
		attributes["image_link"] = urls[0]
		if len(urls) > 1 {
			attributes["additional_image_link"] = urls[1:]
		}
	}
	return Payload{"item_id": p.SKU, "attributes": attributes}
}

func (a *PinterestAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, a, product, a.Transform(product))
}

func (a *PinterestAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, a, sku)
}

func (a *PinterestAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	if content.Image == "" {
		return nil, a.shareFailed(ctx, content, errImageRequired)
	}

	body := map[string]interface{}{
		"board_id":    a.creds.PageID,
		"title":       content.Title,
		"description": message,
		"link":        content.URL,
		"media_source": map[string]string{
			"source_type": "image_url",
			"url":         content.Image,
		},
	}

	var resp graphID
	if err := a.call(ctx, http.MethodPost, "/pins", nil, body, &resp); err != nil {
		return nil, a.shareFailed(ctx, content, err)
	}
	if resp.ID == "" {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("pin id missing in response"))
	}
	return a.shared(ctx, content, resp.ID), nil
}

func (a *PinterestAdapter) ProductInsights(context.Context, string) (*Insights, error) {
	return nil, ErrInsightsUnsupported
}

func (a *PinterestAdapter) find(ctx context.Context, sku string) (string, error) {
	var resp struct {
		Items []struct {
			ItemID string `json:"item_id"`
		} `json:"items"`
	}
	if err := a.call(ctx, http.MethodGet, "/catalogs/items", url.Values{"item_ids": {sku}}, nil, &resp); err != nil {
		return "", fmt.Errorf("find item: %w", err)
	}
	for _, item := range resp.Items {
		if item.ItemID == sku {
			return item.ItemID, nil
		}
	}
	return "", nil
}

func (a *PinterestAdapter) batch(ctx context.Context, operation string, item interface{}) error {
	body := map[string]interface{}{
		"operation": operation,
		"country":   "US",
		"language":  "EN",
		"items":     []interface{}{item},
	}
	var resp struct {
		BatchID string `json:"batch_id"`
	}
	if err := a.call(ctx, http.MethodPost, "/catalogs/items/batch", nil, body, &resp); err != nil {
		return fmt.Errorf("%s item: %w", operation, err)
	}
	return nil
}

func (a *PinterestAdapter) create(ctx context.Context, sku string, payload Payload) (string, error) {
	if err := a.batch(ctx, "CREATE", payload); err != nil {
		return "", err
	}
	return sku, nil
}

func (a *PinterestAdapter) update(ctx context.Context, _ string, payload Payload) error {
	return a.batch(ctx, "UPDATE", payload)
}

func (a *PinterestAdapter) remove(ctx context.Context, remoteID string) error {
	return a.batch(ctx, "DELETE", map[string]string{"item_id": remoteID})
}
