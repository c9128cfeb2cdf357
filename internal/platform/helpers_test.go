package platform

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"socialsync/internal/model"
)

// fakeAPI httptest server recording every request
type fakeAPI struct {
	*httptest.Server
	mu       sync.Mutex
	mux      *http.ServeMux
	requests []recorded
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]interface{}
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{mux: http.NewServeMux()}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.Body)
		}
		api.mu.Lock()
		api.requests = append(api.requests, rec)
		api.mu.Unlock()
		api.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.Close)
	return api
}

func (f *fakeAPI) handle(pattern string, status int, body interface{}) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
}

func (f *fakeAPI) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func (f *fakeAPI) called(method, path string) bool {
	for _, r := range f.calls() {
		if r.Method == method && r.Path == path {
			return true
		}
	}
	return false
}

func (f *fakeAPI) options() Options {
	return Options{
		BaseURL:  f.URL,
		Timeout:  2 * time.Second,
		StoreURL: "https://shop.example.com",
	}
}

var testCreds = Credentials{
	AccessToken: "tok",
	PageID:      "page1",
	CatalogID:   "cat1",
	AccountID:   "acct1",
	AppSecret:   "secret",
}

func testProduct() *model.Product {
	return &model.Product{
		ID:              "p1",
		SKU:             "SKU-1",
		Name:            "Blue Mug",
		Description:     "A mug",
		Price:           model.Price{Amount: decimal.RequireFromString("19.99"), Currency: "USD"},
		Images:          []model.Image{{URL: "https://img.example.com/1.jpg"}, {URL: "https://img.example.com/2.jpg"}},
		Category:        "kitchen",
		Brand:           "Acme",
		VendorID:        "v1",
		VendorName:      "Vendor One",
		Slug:            "blue-mug",
		InventoryStatus: model.InventoryBackorder,
	}
}
