package platform

import (
	"net/http"
	"sort"
	"sync"

	"socialsync/internal/config"
	"socialsync/internal/model"
	"socialsync/pkg/log"
)

// Factory builds an uninitialized adapter
type Factory func(opts Options) Adapter

// Factories adapter constructors by platform
var Factories = map[model.Platform]Factory{
	model.PlatformFacebook:  func(o Options) Adapter { return NewFacebookAdapter(o) },
	model.PlatformInstagram: func(o Options) Adapter { return NewInstagramAdapter(o) },
	model.PlatformTwitter:   func(o Options) Adapter { return NewTwitterAdapter(o) },
	model.PlatformPinterest: func(o Options) Adapter { return NewPinterestAdapter(o) },
	model.PlatformTikTok:    func(o Options) Adapter { return NewTikTokAdapter(o) },
	model.PlatformWhatsApp:  func(o Options) Adapter { return NewWhatsAppAdapter(o) },
}

// Registry initialized adapters by platform
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.Platform]Adapter
}

// NewRegistry creates a registry holding adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Platform]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// BuildRegistry initializes an adapter for every enabled platform in cfg
func BuildRegistry(cfg *config.Config, limiter Waiter, httpClient *http.Client) *Registry {
	r := NewRegistry()
	for _, name := range cfg.EnabledPlatforms() {
		p := model.Platform(name)
		factory, ok := Factories[p]
		if !ok {
			log.WithField("platform", name).Warn("No adapter for configured platform, skipping")
			continue
		}

		pc := cfg.Platforms[name]
		adapter := factory(Options{
			BaseURL:    pc.BaseURL,
			APIVersion: pc.APIVersion,
			Timeout:    pc.Timeout,
			StoreURL:   cfg.Sharing.BaseURL,
			HTTPClient: httpClient,
			Limiter:    limiter,
		})
		r.Register(adapter.Initialize(Credentials{
			AccessToken: pc.AccessToken,
			PageID:      pc.PageID,
			CatalogID:   pc.CatalogID,
			AccountID:   pc.AccountID,
			AppSecret:   pc.AppSecret,
		}))
	}
	return r
}

// Register adds or replaces the adapter for its platform
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for p
func (r *Registry) Get(p model.Platform) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	return a, ok
}

// Configured reports whether p has an adapter
func (r *Registry) Configured(p model.Platform) bool {
	_, ok := r.Get(p)
	return ok
}

// Platforms returns configured platforms, sorted
func (r *Registry) Platforms() []model.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	platforms := make([]model.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
