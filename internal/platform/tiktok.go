package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
)

// TikTokAdapter TikTok Shop catalog and content posting.
// Every reply is wrapped in {"data": ..., "error": {"code": "ok"}}; HTTP 200 with another code is a failure.
type TikTokAdapter struct {
	client
}

// NewTikTokAdapter creates a TikTok adapter
func NewTikTokAdapter(opts Options) *TikTokAdapter {
	return &TikTokAdapter{client: newClient(model.PlatformTikTok, opts, tokenBearer)}
}

type tiktokEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// invoke unwraps the envelope into out
func (a *TikTokAdapter) invoke(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var env tiktokEnvelope
	if err := a.call(ctx, method, path, query, body, &env); err != nil {
		return err
	}
	if env.Error.Code != "" && env.Error.Code != "ok" {
		return &RemoteError{
			Platform:   a.platform,
			Method:     method,
			Path:       path,
			StatusCode: http.StatusOK,
			Message:    env.Error.Code + ": " + env.Error.Message,
		}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

func (a *TikTokAdapter) Platform() model.Platform { return model.PlatformTikTok }

func (a *TikTokAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *TikTokAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/user/info/", url.Values{"fields": {"open_id,display_name"}})
}

func (a *TikTokAdapter) Transform(p *model.Product) Payload {
	return Payload{
		"sku_id":       p.SKU,
		"title":        p.Name,
		"description":  p.Description,
		"price":        p.Price.String(),
		"availability": Availability(p.InventoryStatus),
		"images":       p.ImageURLs(),
		"brand":        p.Brand,
		"category":     p.Category,
		"link":         a.productLink(p),
	}
}

func (a *TikTokAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, a, product, a.Transform(product))
}

func (a *TikTokAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, a, sku)
}

func (a *TikTokAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	if content.Image == "" {
		return nil, a.shareFailed(ctx, content, errImageRequired)
	}

	body := map[string]interface{}{
		"post_info": map[string]string{
			"title": shareText(message, content.URL),
		},
		"source_info": map[string]interface{}{
			"source":       "PULL_FROM_URL",
			"photo_images": []string{content.Image},
		},
		"media_type": "PHOTO",
	}

	var resp struct {
		PublishID string `json:"publish_id"`
	}
	if err := a.invoke(ctx, http.MethodPost, "/post/publish/", nil, body, &resp); err != nil {
		return nil, a.shareFailed(ctx, content, err)
	}
	if resp.PublishID == "" {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("publish id missing in response"))
	}
	return a.shared(ctx, content, resp.PublishID), nil
}

func (a *TikTokAdapter) ProductInsights(context.Context, string) (*Insights, error) {
	return nil, ErrInsightsUnsupported
}

func (a *TikTokAdapter) find(ctx context.Context, sku string) (string, error) {
	var resp struct {
		List []struct {
			ProductID string `json:"product_id"`
		} `json:"list"`
	}
	body := map[string]interface{}{"catalog_id": a.creds.CatalogID, "sku_ids": []string{sku}}
	if err := a.invoke(ctx, http.MethodPost, "/catalog/product/get/", nil, body, &resp); err != nil {
		return "", fmt.Errorf("find product: %w", err)
	}
	if len(resp.List) == 0 {
		return "", nil
	}
	return resp.List[0].ProductID, nil
}

func (a *TikTokAdapter) create(ctx context.Context, _ string, payload Payload) (string, error) {
	var resp struct {
		ProductID string `json:"product_id"`
	}
	body := map[string]interface{}{"catalog_id": a.creds.CatalogID, "products": []Payload{payload}}
	if err := a.invoke(ctx, http.MethodPost, "/catalog/product/upload/", nil, body, &resp); err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return resp.ProductID, nil
}

func (a *TikTokAdapter) update(ctx context.Context, remoteID string, payload Payload) error {
	body := map[string]interface{}{"catalog_id": a.creds.CatalogID, "product_id": remoteID, "product": payload}
	if err := a.invoke(ctx, http.MethodPost, "/catalog/product/update/", nil, body, nil); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (a *TikTokAdapter) remove(ctx context.Context, remoteID string) error {
	body := map[string]interface{}{"catalog_id": a.creds.CatalogID, "product_ids": []string{remoteID}}
	if err := a.invoke(ctx, http.MethodPost, "/catalog/product/delete/", nil, body, nil); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
