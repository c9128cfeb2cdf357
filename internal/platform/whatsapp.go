package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
)

// WhatsAppAdapter WhatsApp Business catalog and messages.
// PageID is the business phone number ID; AccountID the recipient of shared links.
type WhatsAppAdapter struct {
	client
}

// NewWhatsAppAdapter creates a WhatsApp adapter
func NewWhatsAppAdapter(opts Options) *WhatsAppAdapter {
	return &WhatsAppAdapter{client: newClient(model.PlatformWhatsApp, opts, tokenBearer)}
}

func (a *WhatsAppAdapter) Platform() model.Platform { return model.PlatformWhatsApp }

func (a *WhatsAppAdapter) Initialize(creds Credentials) Adapter {
	cp := *a
	cp.bind(creds)
	return &cp
}

func (a *WhatsAppAdapter) Authenticate(ctx context.Context) (bool, error) {
	return a.authenticate(ctx, "/me", url.Values{"fields": {"id,name"}})
}

func (a *WhatsAppAdapter) Transform(product *model.Product) Payload {
	return graphPayload(&a.client, product)
}

func (a *WhatsAppAdapter) PublishProduct(ctx context.Context, product *model.Product) (*CatalogEntry, error) {
	return publishWith(ctx, &a.client, graphCatalog{c: &a.client}, product, a.Transform(product))
}

func (a *WhatsAppAdapter) DeleteProduct(ctx context.Context, sku string) (bool, error) {
	return deleteWith(ctx, &a.client, graphCatalog{c: &a.client}, sku)
}

func (a *WhatsAppAdapter) SharePost(ctx context.Context, content Content, message string) (*RemotePost, error) {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                a.creds.AccountID,
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": content.URL != "",
			"body":        shareText(message, content.URL),
		},
	}

	var resp struct {
		Messages []graphID `json:"messages"`
	}
	if err := a.call(ctx, http.MethodPost, "/"+a.creds.PageID+"/messages", nil, body, &resp); err != nil {
		return nil, a.shareFailed(ctx, content, err)
	}
	if len(resp.Messages) == 0 {
		return nil, a.shareFailed(ctx, content, fmt.Errorf("message id missing in response"))
	}
	return a.shared(ctx, content, resp.Messages[0].ID), nil
}

func (a *WhatsAppAdapter) ProductInsights(ctx context.Context, sku string) (*Insights, error) {
	return graphCatalog{c: &a.client}.insights(ctx, sku)
}
