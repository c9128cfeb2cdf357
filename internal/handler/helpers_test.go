package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialsync/internal/model"
	"socialsync/internal/service/catalogsync"
	"socialsync/internal/service/engagement"
	"socialsync/internal/service/oauth"
	"socialsync/internal/service/sharing"
	"socialsync/pkg/killswitch"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// withUser stands in for the auth middleware
func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", "admin")
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// MockSyncer mock coordinator
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Publish(ctx context.Context, product *model.Product, platforms []model.Platform) (*catalogsync.SyncReport, error) {
	args := m.Called(ctx, product, platforms)
	report, _ := args.Get(0).(*catalogsync.SyncReport)
	return report, args.Error(1)
}

func (m *MockSyncer) Delete(ctx context.Context, sku string, platforms []model.Platform) (*catalogsync.SyncReport, error) {
	args := m.Called(ctx, sku, platforms)
	report, _ := args.Get(0).(*catalogsync.SyncReport)
	return report, args.Error(1)
}

// MockJobService mock queued sync
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Enqueue(ctx context.Context, job *model.SyncJob) (*catalogsync.JobStatus, error) {
	args := m.Called(ctx, job)
	status, _ := args.Get(0).(*catalogsync.JobStatus)
	return status, args.Error(1)
}

func (m *MockJobService) Status(ctx context.Context, id string) (*catalogsync.JobStatus, error) {
	args := m.Called(ctx, id)
	status, _ := args.Get(0).(*catalogsync.JobStatus)
	return status, args.Error(1)
}

// MockCatalogRepository mock catalog repository
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) Upsert(ctx context.Context, entry *model.PlatformCatalogEntry) (*model.PlatformCatalogEntry, error) {
	args := m.Called(ctx, entry)
	out, _ := args.Get(0).(*model.PlatformCatalogEntry)
	return out, args.Error(1)
}

func (m *MockCatalogRepository) Get(ctx context.Context, sku string, p model.Platform) (*model.PlatformCatalogEntry, error) {
	args := m.Called(ctx, sku, p)
	out, _ := args.Get(0).(*model.PlatformCatalogEntry)
	return out, args.Error(1)
}

func (m *MockCatalogRepository) ListBySKU(ctx context.Context, sku string) ([]*model.PlatformCatalogEntry, error) {
	args := m.Called(ctx, sku)
	out, _ := args.Get(0).([]*model.PlatformCatalogEntry)
	return out, args.Error(1)
}

func (m *MockCatalogRepository) Delete(ctx context.Context, sku string, p model.Platform) (bool, error) {
	args := m.Called(ctx, sku, p)
	return args.Bool(0), args.Error(1)
}

// MockSharingService mock sharing service
type MockSharingService struct {
	mock.Mock
}

func (m *MockSharingService) GenerateShareableLink(userID string, content sharing.ContentData, p model.Platform) (*sharing.ShareableLink, error) {
	args := m.Called(userID, content, p)
	link, _ := args.Get(0).(*sharing.ShareableLink)
	return link, args.Error(1)
}

func (m *MockSharingService) ShareContent(ctx context.Context, userID string, p model.Platform, content sharing.ContentData, message string) (*sharing.ShareResult, error) {
	args := m.Called(ctx, userID, p, content, message)
	result, _ := args.Get(0).(*sharing.ShareResult)
	return result, args.Error(1)
}

func (m *MockSharingService) GetShareStats(ctx context.Context, contentType, contentID string) (*sharing.ShareStats, error) {
	args := m.Called(ctx, contentType, contentID)
	stats, _ := args.Get(0).(*sharing.ShareStats)
	return stats, args.Error(1)
}

func (m *MockSharingService) TrackClick(ctx context.Context, shareID, visitor string) (*sharing.ClickResult, error) {
	args := m.Called(ctx, shareID, visitor)
	result, _ := args.Get(0).(*sharing.ClickResult)
	return result, args.Error(1)
}

// MockEngagementService mock engagement service
type MockEngagementService struct {
	mock.Mock
}

func (m *MockEngagementService) TrackEngagement(ctx context.Context, event *engagement.Event) (*model.EngagementMetric, error) {
	args := m.Called(ctx, event)
	metric, _ := args.Get(0).(*model.EngagementMetric)
	return metric, args.Error(1)
}

func (m *MockEngagementService) TrackBestEffort(ctx context.Context, event *engagement.Event) engagement.BestEffort {
	args := m.Called(ctx, event)
	return args.Get(0).(engagement.BestEffort)
}

func (m *MockEngagementService) Aggregate(ctx context.Context, entityType, entityID string, metricType *model.MetricType) (*engagement.Aggregate, error) {
	args := m.Called(ctx, entityType, entityID, metricType)
	agg, _ := args.Get(0).(*engagement.Aggregate)
	return agg, args.Error(1)
}

func (m *MockEngagementService) FirstClick(shareID, visitor string) bool {
	return m.Called(shareID, visitor).Bool(0)
}

// MockOAuthService mock connection service
type MockOAuthService struct {
	mock.Mock
}

func (m *MockOAuthService) ValidateToken(ctx context.Context, userID string, p model.Platform) (bool, error) {
	args := m.Called(ctx, userID, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockOAuthService) GetAccessToken(ctx context.Context, userID string, p model.Platform) (string, error) {
	args := m.Called(ctx, userID, p)
	return args.String(0), args.Error(1)
}

func (m *MockOAuthService) Connect(ctx context.Context, userID string, p model.Platform, req *oauth.ConnectRequest) (*model.PlatformConnection, error) {
	args := m.Called(ctx, userID, p, req)
	conn, _ := args.Get(0).(*model.PlatformConnection)
	return conn, args.Error(1)
}

func (m *MockOAuthService) Disconnect(ctx context.Context, userID string, p model.Platform) error {
	return m.Called(ctx, userID, p).Error(0)
}

func (m *MockOAuthService) List(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	args := m.Called(ctx, userID)
	conns, _ := args.Get(0).([]*model.PlatformConnection)
	return conns, args.Error(1)
}

// MockSwitchStore mock kill-switch store
type MockSwitchStore struct {
	mock.Mock
}

func (m *MockSwitchStore) Disable(ctx context.Context, target, reason, by string, ttl time.Duration) (*killswitch.Switch, error) {
	args := m.Called(ctx, target, reason, by, ttl)
	sw, _ := args.Get(0).(*killswitch.Switch)
	return sw, args.Error(1)
}

func (m *MockSwitchStore) Enable(ctx context.Context, target string) error {
	return m.Called(ctx, target).Error(0)
}

func (m *MockSwitchStore) List(ctx context.Context) ([]*killswitch.Switch, error) {
	args := m.Called(ctx)
	switches, _ := args.Get(0).([]*killswitch.Switch)
	return switches, args.Error(1)
}
