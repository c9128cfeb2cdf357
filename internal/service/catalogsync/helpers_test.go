package catalogsync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"socialsync/internal/config"
	"socialsync/internal/database"
	"socialsync/internal/model"
	"socialsync/internal/platform"
	"socialsync/internal/repository"
)

// fakeAdapter records calls and returns canned results
type fakeAdapter struct {
	platform model.Platform
	creds    platform.Credentials

	mu       sync.Mutex
	remoteID string
	err      error
	deleted  bool
	panics   bool
	block    chan struct{}
	calls    int32
}

func newFakeAdapter(p model.Platform) *fakeAdapter {
	return &fakeAdapter{platform: p, remoteID: "remote-" + string(p), deleted: true}
}

func (f *fakeAdapter) failWith(err error) *fakeAdapter {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	return f
}

func (f *fakeAdapter) Platform() model.Platform { return f.platform }

func (f *fakeAdapter) Initialize(creds platform.Credentials) platform.Adapter {
	return &fakeAdapter{platform: f.platform, creds: creds, remoteID: f.remoteID, deleted: f.deleted}
}

func (f *fakeAdapter) Credentials() platform.Credentials { return f.creds }

func (f *fakeAdapter) Authenticate(context.Context) (bool, error) { return true, nil }

func (f *fakeAdapter) Transform(product *model.Product) platform.Payload {
	return platform.Payload{"retailer_id": product.SKU}
}

func (f *fakeAdapter) enter(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	if f.panics {
		panic("adapter exploded")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeAdapter) PublishProduct(ctx context.Context, product *model.Product) (*platform.CatalogEntry, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	return &platform.CatalogEntry{Platform: f.platform, SKU: product.SKU, RemoteID: f.remoteID, Created: true}, nil
}

func (f *fakeAdapter) DeleteProduct(ctx context.Context, _ string) (bool, error) {
	if err := f.enter(ctx); err != nil {
		return false, err
	}
	return f.deleted, nil
}

func (f *fakeAdapter) SharePost(context.Context, platform.Content, string) (*platform.RemotePost, error) {
	return &platform.RemotePost{ID: "post-1"}, nil
}

func (f *fakeAdapter) ProductInsights(context.Context, string) (*platform.Insights, error) {
	return nil, platform.ErrInsightsUnsupported
}

func (f *fakeAdapter) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

var errRemote = errors.New("remote returned 500")

func testProduct(sku string) *model.Product {
	return &model.Product{
		SKU:             sku,
		Name:            "Linen Shirt",
		Description:     "Breathable summer shirt",
		Price:           model.Price{Amount: decimal.RequireFromString("19.99"), Currency: "USD"},
		Images:          []model.Image{{URL: "https://cdn.example.com/shirt.jpg"}},
		InventoryStatus: model.InventoryInStock,
	}
}

func setupCatalog(t *testing.T) repository.CatalogRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DBName:   filepath.Join(t.TempDir(), "sync.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	return repository.NewCatalogRepository(db)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
