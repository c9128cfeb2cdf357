package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
)

// FacebookAdapter Facebook page and commerce catalog
type FacebookAdapter struct {
	client
}

// NewFacebookAdapter creates a Facebook adapter. Call Initialize before use.
func NewFacebookAdapter(opts Options) *FacebookAdapter {
	return &FacebookAdapter{client: newClient(model.PlatformFacebook, opts, tokenQuery)}
}

func (a *FacebookAdapter) Platform() model.Platform { return model.PlatformFacebook }

func (a *FacebookAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *FacebookAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/me", url.Values{"fields": {"id,name"}})
}

func (a *FacebookAdapter) Transform(product *model.Product) Payload {
	return graphPayload(&a.client, product)
}

func (a *FacebookAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, graphCatalog{c: &a.client}, product, a.Transform(product))
}

func (a *FacebookAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, graphCatalog{c: &a.client}, sku)
}

// SharePost posts to the page feed
func (a *FacebookAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	body := map[string]string{"message": message, "link": content.URL}

	var resp graphID
	if err := a.call(ctx, http.MethodPost, "/"+a.creds.PageID+"/feed", nil, body, &resp); err != nil {
		return nil, a.shareFailed(ctx, content, err)
	}
	if resp.ID == "" {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("post id missing in response"))
	}
	return a.shared(ctx, content, resp.ID), nil
}

func (a *FacebookAdapter) ProductInsights(ctx context.Context, sku string) (*Insights, error) {
	return graphCatalog{c: &a.client}.insights(ctx, sku)
}
