package platform

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialsync/internal/apperr"
	"socialsync/internal/config"
	"socialsync/internal/model"
)

func TestAvailability(t *testing.T) {
	tests := []struct {
		status model.InventoryStatus
		want   string
	}{
		{model.InventoryInStock, "in stock"},
		{model.InventoryOutOfStock, "out of stock"},
		{model.InventoryPreorder, "preorder"},
		{model.InventoryBackorder, "available for order"},
		{"discontinued", "in stock"},
		{"", "in stock"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Availability(tt.status))
		})
	}
}

func TestTransform_AllAdaptersShareAvailabilityAndPrice(t *testing.T) {
	opts := Options{StoreURL: "https://shop.example.com"}
	product := testProduct()
	product.InventoryStatus = "mystery"

	for p, factory := range Factories {
		t.Run(string(p), func(t *testing.T) {
			payload := factory(opts).Transform(product)
			fields := map[string]interface{}(payload)
			if attrs, ok := payload["attributes"].(map[string]interface{}); ok {
				fields = attrs
			}
			assert.Equal(t, "in stock", fields["availability"])
			assert.Equal(t, "19.99 USD", fields["price"])
			assert.Equal(t, "https://shop.example.com/products/blue-mug", fields["link"])
		})
	}
}

func TestGraphPayload(t *testing.T) {
	a := NewFacebookAdapter(Options{StoreURL: "https://shop.example.com/"})
	payload := a.Transform(testProduct())

	assert.Equal(t, "SKU-1", payload["retailer_id"])
	assert.Equal(t, "Blue Mug", payload["name"])
	assert.Equal(t, "new", payload["condition"])
	assert.Equal(t, "available for order", payload["availability"])
	assert.Equal(t, "https://img.example.com/1.jpg", payload["image_url"])
	assert.Equal(t, []string{"https://img.example.com/2.jpg"}, payload["additional_image_urls"])
	assert.Equal(t, map[string]string{"vendor_id": "v1", "vendor_name": "Vendor One"}, payload["custom_data"])

	noImages := testProduct()
	noImages.Images = nil
	noImages.Slug = ""
	payload = a.Transform(noImages)
	assert.NotContains(t, payload, "image_url")
	assert.Equal(t, "https://shop.example.com/products/sku-1", payload["link"])
}

func TestInitializeReturnsCopy(t *testing.T) {
	base := NewTwitterAdapter(Options{})
	a := base.Initialize(testCreds)
	b := a.Initialize(Credentials{AccessToken: "user-token"})

	assert.Equal(t, "tok", a.Credentials().AccessToken)
	assert.Equal(t, "user-token", b.Credentials().AccessToken)
	assert.Empty(t, base.Credentials().AccessToken)
}

func TestCallTimeout(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})

	opts := api.options()
	opts.Timeout = 50 * time.Millisecond
	a := NewFacebookAdapter(opts).Initialize(testCreds)

	start := time.Now()
	ok, err := a.Authenticate(context.Background())
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

type denyWaiter struct{}

func (denyWaiter) Wait(context.Context, string) error { return errors.New("limit exceeded") }

func TestCallHonorsLimiter(t *testing.T) {
	api := newFakeAPI(t)
	opts := api.options()
	opts.Limiter = denyWaiter{}

	a := NewTwitterAdapter(opts).Initialize(testCreds)
	_, err := a.PublishProduct(context.Background(), testProduct())

	var pub *apperr.PublishError
	require.ErrorAs(t, err, &pub)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Empty(t, api.calls())
}

func TestRemoteMessage(t *testing.T) {
	assert.Equal(t, "Invalid OAuth token", remoteMessage([]byte(`{"error":{"message":"Invalid OAuth token","code":190}}`)))
	assert.Equal(t, "flat", remoteMessage([]byte(`{"error":"flat"}`)))
	assert.Equal(t, "Unauthorized", remoteMessage([]byte(`{"title":"Unauthorized"}`)))
	assert.Equal(t, "plain text", remoteMessage([]byte("plain text")))
	assert.Equal(t, "empty response", remoteMessage(nil))
}

func TestBuildRegistry(t *testing.T) {
	cfg := &config.Config{
		Platforms: map[string]config.PlatformConfig{
			"facebook":  {Enabled: true, BaseURL: "http://fb", AccessToken: "t1", CatalogID: "c1"},
			"twitter":   {Enabled: true, BaseURL: "http://tw"},
			"pinterest": {Enabled: false},
			"myspace":   {Enabled: true, BaseURL: "http://ms"},
		},
	}

	r := BuildRegistry(cfg, nil, nil)
	assert.Equal(t, []model.Platform{model.PlatformFacebook, model.PlatformTwitter}, r.Platforms())
	assert.True(t, r.Configured(model.PlatformFacebook))
	assert.False(t, r.Configured(model.PlatformPinterest))

	fb, ok := r.Get(model.PlatformFacebook)
	require.True(t, ok)
	assert.Equal(t, "t1", fb.Credentials().AccessToken)
	assert.Equal(t, "c1", fb.Credentials().CatalogID)
}
