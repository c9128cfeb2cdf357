package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
)

var errImageRequired = fmt.Errorf("image required: %w", apperr.ErrUnsupportedContent)

// InstagramAdapter Instagram shopping through the Graph API catalog.
// Posts are two-step: a media container, then media_publish.
type InstagramAdapter struct {
	client
}

// NewInstagramAdapter creates an Instagram adapter
func NewInstagramAdapter(opts Options) *InstagramAdapter {
	return &InstagramAdapter{client: newClient(model.PlatformInstagram, opts, tokenQuery)}
}

func (a *InstagramAdapter) Platform() model.Platform { return model.PlatformInstagram }

func (a *InstagramAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *InstagramAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/me", url.Values{"fields": {"id,name"}})
}

func (a *InstagramAdapter) Transform(product *model.Product) Payload {
	return graphPayload(&a.client, product)
}

func (a *InstagramAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, graphCatalog{c: &a.client}, product, a.Transform(product))
}

func (a *InstagramAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, graphCatalog{c: &a.client}, sku)
}

func (a *InstagramAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	if content.Image == "" {
		return nil, a.shareFailed(ctx, content, errImageRequired)
	}

	account := "/" + a.creds.AccountID
	var container graphID
	err := a.call(ctx, http.MethodPost, account+"/media", nil, map[string]string{
		"image_url": content.Image,
		"caption":   shareText(message, content.URL),
	}, &container)
	if err != nil {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("create media: %w", err))
	}

	var post graphID
	err = a.call(ctx, http.MethodPost, account+"/media_publish", nil, map[string]string{
		"creation_id": container.ID,
	}, &post)
	if err != nil {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("publish media: %w", err))
	}
	return a.shared(ctx, content, post.ID), nil
}

func (a *InstagramAdapter) ProductInsights(ctx context.Context, sku string) (*Insights, error) {
	return graphCatalog{c: &a.client}.insights(ctx, sku)
}
