package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"socialsync/internal/model"
	"socialsync/pkg/log"
)

// graphCatalog Graph API product catalog shared by Facebook, Instagram and WhatsApp
type graphCatalog struct {
	c *client
}

type graphID struct {
	ID string `json:"id"`
}

func (g graphCatalog) find(ctx context.Context, sku string) (string, error) {
	filter, err := json.Marshal(map[string]interface{}{
		"retailer_id": map[string]string{"eq": sku},
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Data []graphID `json:"data"`
	}
	query := url.Values{"filter": {string(filter)}}
	if err := g.c.call(ctx, http.MethodGet, "/"+g.c.creds.CatalogID+"/products", query, nil, &resp); err != nil {
		return "", fmt.Errorf("find product: %w", err)
	}
	if len(resp.Data) == 0 {
		return "", nil
	}
	return resp.Data[0].ID, nil
}

func (g graphCatalog) create(ctx context.Context, _ string, payload Payload) (string, error) {
	var resp graphID
	if err := g.c.call(ctx, http.MethodPost, "/"+g.c.creds.CatalogID+"/products", nil, payload, &resp); err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}
	return resp.ID, nil
}

func (g graphCatalog) update(ctx context.Context, remoteID string, payload Payload) error {
	if err := g.c.call(ctx, http.MethodPost, "/"+remoteID, nil, payload, nil); err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (g graphCatalog) remove(ctx context.Context, remoteID string) error {
	if err := g.c.call(ctx, http.MethodDelete, "/"+remoteID, nil, nil, nil); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (g graphCatalog) insights(ctx context.Context, sku string) (*Insights, error) {
	remoteID, err := g.find(ctx, sku)
	if err != nil {
		return nil, err
	}
	if remoteID == "" {
		g.c.logger(ctx).WithField("sku", sku).Warn("Product not found in catalog")
		return nil, nil
	}

	var resp struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value int64 `json:"value"`
			} `json:"values"`
		} `json:"data"`
	}
	query := url.Values{"metric": {"impressions,clicks,conversions"}}
	if err := g.c.call(ctx, http.MethodGet, "/"+remoteID+"/insights", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get insights: %w", err)
	}

	insights := &Insights{RemoteID: remoteID}
	for _, metric := range resp.Data {
		var total int64
		for _, v := range metric.Values {
			total += v.Value
		}
		switch metric.Name {
		case "impressions":
			insights.Impressions = total
		case "clicks":
			insights.Clicks = total
		case "conversions":
			insights.Conversions = total
		}
	}
	return insights, nil
}

// graphPayload Graph API catalog product fields
func graphPayload(c *client, p *model.Product) Payload {
	payload := Payload{
		"retailer_id":  p.SKU,
		"name":         p.Name,
		"description":  p.Description,
		"availability": Availability(p.InventoryStatus),
		"condition":    "new",
		"price":        p.Price.String(),
		"link":         c.productLink(p),
		"brand":        p.Brand,
		"category":     p.Category,
		"custom_data": map[string]string{
			"vendor_id":   p.VendorID,
			"vendor_name": p.VendorName,
		},
	}
	if urls := p.ImageURLs(); len(urls) > 0 {
		payload["image_url"] = urls[0]
		payload["additional_image_urls"] = urls[1:]
	}
	return payload
}

func (c *client) bind(creds Credentials) {
	c.creds = creds
	log.WithFields(log.Fields{
		"platform":   c.platform,
		"page_id":    creds.PageID,
		"catalog_id": creds.CatalogID,
	}).Info("Adapter initialized")
}
