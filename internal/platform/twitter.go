package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
)

// TwitterAdapter X/Twitter commerce catalog and tweets
type TwitterAdapter struct {
	client
}

// NewTwitterAdapter creates a Twitter adapter
func NewTwitterAdapter(opts Options) *TwitterAdapter {
	return &TwitterAdapter{client: newClient(model.PlatformTwitter, opts, tokenBearer)}
}

func (a *TwitterAdapter) Platform() model.Platform { return model.PlatformTwitter }

func (a *TwitterAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *TwitterAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/users/me", nil)
}

func (a *TwitterAdapter) Transform(p *model.Product) Payload {
	payload := Payload{
		"retailer_id":  p.SKU,
		"title":        p.Name,
		"description":  p.Description,
		"availability": Availability(p.InventoryStatus),
		"price":        p.Price.String(),
		"link":         a.productLink(p),
		"brand":        p.Brand,
	}
	if urls := p.ImageURLs(); len(urls) > 0 {
		payload["image_link"] = urls[0]
	}
	return payload
}

func (a *TwitterAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, a, product, a.Transform(product))
}

func (a *TwitterAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, a, sku)
}

func (a *TwitterAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	var resp struct {
		Data graphID `json:"data"`
	}
	body := map[string]string{"text": shareText(message, content.URL)}
	if err := a.call(ctx, http.MethodPost, "/tweets", nil, body, &resp); err != nil {
		return nil, a.shareFailed(ctx, content, err)
	}
	if resp.Data.ID == "" {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("tweet id missing in response"))
	}
	return a.shared(ctx, content, resp.Data.ID), nil
}

func (a *TwitterAdapter) ProductInsights(context.Context, string) (*Insights, error) {
	return nil, ErrInsightsUnsupported
}

func (a *TwitterAdapter) products() string {
	return "/commerce/catalogs/" + a.creds.CatalogID + "/products"
}

func (a *TwitterAdapter) find(ctx context.Context, sku string) (string, error) {
	var resp struct {
		Data []graphID `json:"data"`
	}
	if err := a.call(ctx, http.MethodGet, a.products(), url.Values{"retailer_id": {sku}}, nil, &resp); err != nil {
		return "", fmt.Errorf("find product: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].ID, nil
}

func (a *TwitterAdapter) create(ctx context.Context, _ string, payload Payload) (string, error) {
	var resp struct {
		Data graphID `json:"data"`
	}
	if err := a.call(ctx, http.MethodPost, a.products(), nil, payload, &resp); err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return resp.Data.ID, nil
}

func (a *TwitterAdapter) update(ctx context.Context, remoteID string, payload Payload) error {
	if err := a.call(ctx, http.MethodPut, a.products()+"/"+remoteID, nil, payload, nil); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (a *TwitterAdapter) remove(ctx context.Context, remoteID string) error {
	if err := a.call(ctx, http.MethodDelete, a.products()+"/"+remoteID, nil, nil, nil); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
