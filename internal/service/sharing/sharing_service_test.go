package sharing

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"socialsync/internal/apperr"
	"socialsync/internal/config"
	"socialsync/internal/database"
	"socialsync/internal/model"
	"socialsync/internal/platform"
	"socialsync/internal/repository"
	"socialsync/internal/service/engagement"
	"socialsync/pkg/breaker"
)

// MockTokenProvider mock OAuth token provider
type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) ValidateToken(ctx context.Context, userID string, p model.Platform) (bool, error) {
	args := m.Called(ctx, userID, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenProvider) GetAccessToken(ctx context.Context, userID string, p model.Platform) (string, error) {
	args := m.Called(ctx, userID, p)
	return args.String(0), args.Error(1)
}

// MockShareRepository mock share repository
type MockShareRepository struct {
	mock.Mock
}

func (m *MockShareRepository) Create(ctx context.Context, record *model.ShareRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockShareRepository) Update(ctx context.Context, record *model.ShareRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockShareRepository) Get(ctx context.Context, id string) (*model.ShareRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareRecord), args.Error(1)
}

func (m *MockShareRepository) IncrementClicks(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockShareRepository) CountByPlatform(ctx context.Context, contentType, contentID string) ([]repository.PlatformShareCount, error) {
	args := m.Called(ctx, contentType, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.PlatformShareCount), args.Error(1)
}

// postingAdapter adapter whose SharePost result is canned; catalog calls are unused here
type postingAdapter struct {
	platform.Adapter
	p        model.Platform
	creds    platform.Credentials
	postID   string
	err      error
	lastPost *platform.Content
	lastMsg  string
	tokens   *[]string
}

func (a *postingAdapter) Platform() model.Platform { return a.p }

func (a *postingAdapter) Credentials() platform.Credentials { return a.creds }

func (a *postingAdapter) Initialize(creds platform.Credentials) platform.Adapter {
	cp := *a
	cp.creds = creds
	return &cp
}

func (a *postingAdapter) SharePost(_ context.Context, content platform.Content, message string) (*platform.RemotePost, error) {
	*a.tokens = append(*a.tokens, a.creds.AccessToken)
	a.lastMsg = message
	c := content
	a.lastPost = &c
	if a.err != nil {
		return nil, &apperr.ShareError{Platform: a.p, Cause: a.err}
	}
	return &platform.RemotePost{ID: a.postID}, nil
}

type fixture struct {
	svc     Service
	shares  repository.ShareRepository
	tokens  *MockTokenProvider
	adapter *postingAdapter
	used    *[]string
	engage  engagement.Service
}

func sharingConfig() config.SharingConfig {
	return config.SharingConfig{
		BaseURL:     "https://shop.example.com/",
		UTMMedium:   "social",
		UTMCampaign: "share",
	}
}

func newFixture(t *testing.T, cfg config.SharingConfig) *fixture {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		DBName:   filepath.Join(t.TempDir(), "sharing.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	engage, err := engagement.NewService(repository.NewMetricRepository(db), engagement.Config{NodeID: 1, CacheTTL: time.Minute}, nil)
	require.NoError(t, err)

	used := &[]string{}
	adapter := &postingAdapter{
		p:      model.PlatformFacebook,
		creds:  platform.Credentials{AccessToken: "page-token", PageID: "page-1"},
		postID: "fb_post_123",
		tokens: used,
	}
	tokens := new(MockTokenProvider)
	shares := repository.NewShareRepository(db)

	svc := NewService(Deps{
		Config:     cfg,
		Shares:     shares,
		Tokens:     tokens,
		Registry:   platform.NewRegistry(adapter),
		Engagement: engage,
	})
	return &fixture{svc: svc, shares: shares, tokens: tokens, adapter: adapter, used: used, engage: engage}
}

func product() ContentData {
	return ContentData{
		Type:        "product",
		ID:          "product123",
		Name:        "Test Product",
		Description: "A test product",
		Image:       "http://example.com/image.jpg",
	}
}

func TestGenerateShareableLink(t *testing.T) {
	f := newFixture(t, sharingConfig())

	link, err := f.svc.GenerateShareableLink("user123", product(), model.PlatformFacebook)
	require.NoError(t, err)

	assert.Equal(t,
		"https://shop.example.com/products/product123?ref=user123&utm_campaign=share&utm_medium=social&utm_source=facebook",
		link.URL)
	assert.Contains(t, link.URL, "product")
	assert.Contains(t, link.URL, "product123")
	assert.Contains(t, link.URL, "ref=user123")
	assert.Contains(t, link.URL, "utm_source=facebook")
	assert.Equal(t, Metadata{Title: "Test Product", Description: "A test product", Image: "http://example.com/image.jpg"}, link.Metadata)
	assert.Equal(t, "facebook", link.UTMParams["utm_source"])
}

func TestGenerateShareableLinkTypePaths(t *testing.T) {
	f := newFixture(t, sharingConfig())

	tests := map[string]string{
		"product":    "/products/x",
		"vendor":     "/vendors/x",
		"collection": "/collections/x",
		"article":    "/articles/x",
	}
	for contentType, path := range tests {
		link, err := f.svc.GenerateShareableLink("u", ContentData{Type: contentType, ID: "x"}, model.PlatformTwitter)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(link.URL, "https://shop.example.com"+path+"?"), link.URL)
	}
}

func TestGenerateShareableLinkRequiresTypeAndID(t *testing.T) {
	f := newFixture(t, sharingConfig())

	_, err := f.svc.GenerateShareableLink("user123", ContentData{Type: "product"}, "")
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, err.Error(), "Content type and ID are required")
}

func TestShareContent(t *testing.T) {
	f := newFixture(t, sharingConfig())
	ctx := context.Background()
	f.tokens.On("ValidateToken", mock.Anything, "user123", model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "user123", model.PlatformFacebook).Return("user-token", nil)

	result, err := f.svc.ShareContent(ctx, "user123", model.PlatformFacebook, product(), "Check out this awesome product!")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, model.PlatformFacebook, result.Platform)
	assert.Equal(t, "fb_post_123", result.RemotePostID)
	assert.Equal(t, []string{"user-token"}, *f.used, "posted with the user's token")

	record, err := f.shares.Get(ctx, result.ShareID)
	require.NoError(t, err)
	assert.True(t, record.Success)
	require.NotNil(t, record.RemotePostID)
	assert.Equal(t, "fb_post_123", *record.RemotePostID)
	assert.Nil(t, record.Error)
	assert.Equal(t, "Check out this awesome product!", record.Message)

	share := model.MetricShare
	agg, err := f.engage.Aggregate(ctx, "product", "product123", &share)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Total)

	stats, err := f.svc.GetShareStats(ctx, "product", "product123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Totals.ShareCount)
	f.tokens.AssertExpectations(t)
}

func TestShareContentPostsTrackingLink(t *testing.T) {
	cfg := sharingConfig()
	cfg.TrackingBaseURL = "https://social.example.com"
	f := newFixture(t, cfg)
	f.tokens.On("ValidateToken", mock.Anything, "u1", model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "u1", model.PlatformFacebook).Return("tok", nil)

	result, err := f.svc.ShareContent(context.Background(), "u1", model.PlatformFacebook, product(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "https://social.example.com/r/"+result.ShareID, result.Link)
}

func TestShareContentNoConnection(t *testing.T) {
	shares := new(MockShareRepository)
	tokens := new(MockTokenProvider)
	tokens.On("ValidateToken", mock.Anything, "user123", model.PlatformTwitter).Return(false, nil)
	svc := NewService(Deps{
		Config:   sharingConfig(),
		Shares:   shares,
		Tokens:   tokens,
		Registry: platform.NewRegistry(&postingAdapter{p: model.PlatformTwitter, tokens: &[]string{}}),
	})

	_, err := svc.ShareContent(context.Background(), "user123", model.PlatformTwitter, ContentData{Type: "product", ID: "product123"}, "")
	var noConn *apperr.NoConnectionError
	require.True(t, errors.As(err, &noConn))
	assert.Contains(t, err.Error(), "No valid twitter connection found")
	shares.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	tokens.AssertNotCalled(t, "GetAccessToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestShareContentRemoteFailure(t *testing.T) {
	f := newFixture(t, sharingConfig())
	f.adapter.err = errors.New("API Error")
	f.tokens.On("ValidateToken", mock.Anything, "user123", model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "user123", model.PlatformFacebook).Return("user-token", nil)
	ctx := context.Background()

	_, err := f.svc.ShareContent(ctx, "user123", model.PlatformFacebook, product(), "")
	var shareErr *apperr.ShareError
	require.True(t, errors.As(err, &shareErr))
	assert.Equal(t, "Failed to share to facebook: API Error", err.Error())
	assert.True(t, apperr.IsRetryable(err))

	stats, err := f.svc.GetShareStats(ctx, "product", "product123")
	require.NoError(t, err)
	assert.Zero(t, stats.Totals.ShareCount, "failed shares are not counted")

	share := model.MetricShare
	agg, err := f.engage.Aggregate(ctx, "product", "product123", &share)
	require.NoError(t, err)
	assert.Zero(t, agg.Total)
}

func breakerTrippingAfter(n uint32) *breaker.Manager {
	return breaker.NewManager(breaker.Config{
		Timeout:      time.Minute,
		ReadyToTrip:  func(c breaker.Counts) bool { return c.ConsecutiveFailures >= n },
		IsSuccessful: apperr.IsCallerFault,
	})
}

func TestShareContentRevokedGrantKeepsPlatformOpen(t *testing.T) {
	f := newFixture(t, sharingConfig())
	breakers := breakerTrippingAfter(3)
	svc := NewService(Deps{
		Config:     sharingConfig(),
		Shares:     f.shares,
		Tokens:     f.tokens,
		Registry:   platform.NewRegistry(f.adapter),
		Engagement: f.engage,
		Breakers:   breakers,
	})
	f.tokens.On("ValidateToken", mock.Anything, mock.Anything, model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "bad-user", model.PlatformFacebook).Return("revoked", nil)
	f.tokens.On("GetAccessToken", mock.Anything, "good-user", model.PlatformFacebook).Return("fresh", nil)
	ctx := context.Background()

	f.adapter.err = &apperr.AuthenticationError{Platform: model.PlatformFacebook, Cause: errors.New("HTTP 401")}
	for i := 0; i < 5; i++ {
		_, err := svc.ShareContent(ctx, "bad-user", model.PlatformFacebook, product(), "")
		var auth *apperr.AuthenticationError
		require.True(t, errors.As(err, &auth), "attempt %d: %v", i, err)
	}
	assert.Equal(t, breaker.StateClosed, breakers.Get("share.facebook").State())

	f.adapter.err = nil
	result, err := svc.ShareContent(ctx, "good-user", model.PlatformFacebook, product(), "")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestShareContentRemoteOutageOpensBreaker(t *testing.T) {
	f := newFixture(t, sharingConfig())
	breakers := breakerTrippingAfter(3)
	svc := NewService(Deps{
		Config:     sharingConfig(),
		Shares:     f.shares,
		Tokens:     f.tokens,
		Registry:   platform.NewRegistry(f.adapter),
		Engagement: f.engage,
		Breakers:   breakers,
	})
	f.tokens.On("ValidateToken", mock.Anything, "u1", model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "u1", model.PlatformFacebook).Return("tok", nil)
	ctx := context.Background()

	f.adapter.err = errors.New("HTTP 503")
	for i := 0; i < 3; i++ {
		_, err := svc.ShareContent(ctx, "u1", model.PlatformFacebook, product(), "")
		require.Error(t, err)
	}

	f.adapter.err = nil
	_, err := svc.ShareContent(ctx, "u1", model.PlatformFacebook, product(), "")
	assert.ErrorIs(t, err, breaker.ErrOpenState)
}

func TestShareContentFailurePersisted(t *testing.T) {
	shares := new(MockShareRepository)
	tokens := new(MockTokenProvider)
	tokens.On("ValidateToken", mock.Anything, "user123", model.PlatformFacebook).Return(true, nil)
	tokens.On("GetAccessToken", mock.Anything, "user123", model.PlatformFacebook).Return("tok", nil)

	var created *model.ShareRecord
	shares.On("Create", mock.Anything, mock.AnythingOfType("*model.ShareRecord")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*model.ShareRecord) }).
		Return(nil)
	shares.On("Update", mock.Anything, mock.AnythingOfType("*model.ShareRecord")).Return(nil)

	adapter := &postingAdapter{p: model.PlatformFacebook, err: errors.New("API Error"), tokens: &[]string{}}
	svc := NewService(Deps{Config: sharingConfig(), Shares: shares, Tokens: tokens, Registry: platform.NewRegistry(adapter)})

	_, err := svc.ShareContent(context.Background(), "user123", model.PlatformFacebook, product(), "msg")
	require.Error(t, err)

	require.NotNil(t, created)
	assert.Equal(t, "product", created.ContentType)
	assert.Equal(t, "product123", created.ContentID)
	assert.Equal(t, "msg", created.Message)
	assert.False(t, created.Success)
	assert.Nil(t, created.RemotePostID)
	require.NotNil(t, created.Error)
	assert.Equal(t, "API Error", created.Error.Message)
	assert.Equal(t, "share_failed", created.Error.Code)
	assert.Equal(t, model.PlatformFacebook, created.Error.Platform)
	shares.AssertExpectations(t)
}

func completionFixture(shares *MockShareRepository) Service {
	tokens := new(MockTokenProvider)
	tokens.On("ValidateToken", mock.Anything, "u1", model.PlatformFacebook).Return(true, nil)
	tokens.On("GetAccessToken", mock.Anything, "u1", model.PlatformFacebook).Return("tok", nil)
	shares.On("Create", mock.Anything, mock.AnythingOfType("*model.ShareRecord")).Return(nil)

	engage, _ := engagement.NewService(new(nopMetrics), engagement.Config{NodeID: 3}, nil)
	adapter := &postingAdapter{p: model.PlatformFacebook, postID: "fb_post_9", tokens: &[]string{}}
	return NewService(Deps{Config: sharingConfig(), Shares: shares, Tokens: tokens, Registry: platform.NewRegistry(adapter), Engagement: engage})
}

func TestShareContentRetriesCompletion(t *testing.T) {
	shares := new(MockShareRepository)
	shares.On("Update", mock.Anything, mock.AnythingOfType("*model.ShareRecord")).Return(errors.New("deadlock")).Once()
	shares.On("Update", mock.Anything, mock.MatchedBy(func(r *model.ShareRecord) bool {
		return r.Success && r.RemotePostID != nil && *r.RemotePostID == "fb_post_9"
	})).Return(nil).Once()
	svc := completionFixture(shares)

	result, err := svc.ShareContent(context.Background(), "u1", model.PlatformFacebook, product(), "")
	require.NoError(t, err)
	assert.Equal(t, "fb_post_9", result.RemotePostID)
	shares.AssertNumberOfCalls(t, "Update", 2)
}

func TestShareContentCompletionFailureNamesLivePost(t *testing.T) {
	shares := new(MockShareRepository)
	shares.On("Update", mock.Anything, mock.AnythingOfType("*model.ShareRecord")).Return(errors.New("db down"))
	svc := completionFixture(shares)

	_, err := svc.ShareContent(context.Background(), "u1", model.PlatformFacebook, product(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fb_post_9")
	var shareErr *apperr.ShareError
	assert.False(t, errors.As(err, &shareErr), "the post succeeded")
	shares.AssertNumberOfCalls(t, "Update", 2)
}

func TestShareContentPlatformNotConfigured(t *testing.T) {
	f := newFixture(t, sharingConfig())

	_, err := f.svc.ShareContent(context.Background(), "u1", model.PlatformTikTok, product(), "")
	var shareErr *apperr.ShareError
	require.True(t, errors.As(err, &shareErr))
	assert.ErrorIs(t, err, apperr.ErrPlatformNotConfigured)
	assert.False(t, apperr.IsRetryable(err))
}

func TestShareContentValidation(t *testing.T) {
	f := newFixture(t, sharingConfig())

	_, err := f.svc.ShareContent(context.Background(), "u1", model.PlatformFacebook, ContentData{Type: "product"}, "")
	var verr *apperr.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGetShareStats(t *testing.T) {
	shares := new(MockShareRepository)
	shares.On("CountByPlatform", mock.Anything, "product", "p1").Return([]repository.PlatformShareCount{
		{Platform: model.PlatformFacebook, Count: 10, Clicks: 5},
		{Platform: model.PlatformTwitter, Count: 5, Clicks: 2},
	}, nil)
	svc := NewService(Deps{Config: sharingConfig(), Shares: shares})

	stats, err := svc.GetShareStats(context.Background(), "product", "p1")
	require.NoError(t, err)
	assert.Len(t, stats.ByPlatform, 2)
	assert.Equal(t, int64(15), stats.Totals.ShareCount)
	assert.Equal(t, int64(7), stats.Totals.ClickCount)
}

func TestGetShareStatsFailure(t *testing.T) {
	shares := new(MockShareRepository)
	shares.On("CountByPlatform", mock.Anything, "product", "p1").Return(nil, errors.New("connection refused"))
	svc := NewService(Deps{Config: sharingConfig(), Shares: shares})

	_, err := svc.GetShareStats(context.Background(), "product", "p1")
	var aerr *apperr.AggregationError
	require.True(t, errors.As(err, &aerr))
	assert.Contains(t, err.Error(), "Failed to get share statistics")
}

func TestTrackClick(t *testing.T) {
	f := newFixture(t, sharingConfig())
	f.tokens.On("ValidateToken", mock.Anything, "user123", model.PlatformFacebook).Return(true, nil)
	f.tokens.On("GetAccessToken", mock.Anything, "user123", model.PlatformFacebook).Return("tok", nil)
	ctx := context.Background()

	shared, err := f.svc.ShareContent(ctx, "user123", model.PlatformFacebook, product(), "")
	require.NoError(t, err)

	click, err := f.svc.TrackClick(ctx, shared.ShareID, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, click.Counted)
	assert.True(t, click.Tracking.Recorded)
	assert.Contains(t, click.Target, "/products/product123?ref=user123")

	repeat, err := f.svc.TrackClick(ctx, shared.ShareID, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, repeat.Counted)
	assert.True(t, repeat.Tracking.Dropped)
	assert.Equal(t, click.Target, repeat.Target)

	_, err = f.svc.TrackClick(ctx, shared.ShareID, "5.6.7.8")
	require.NoError(t, err)

	stats, err := f.svc.GetShareStats(ctx, "product", "product123")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Totals.ClickCount)
}

func TestTrackClickUnknownShare(t *testing.T) {
	f := newFixture(t, sharingConfig())

	_, err := f.svc.TrackClick(context.Background(), "missing", "1.2.3.4")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestTrackClickCountFailureIsBestEffort(t *testing.T) {
	shares := new(MockShareRepository)
	shares.On("Get", mock.Anything, "s1").Return(&model.ShareRecord{
		ID: "s1", UserID: "u1", Platform: model.PlatformPinterest, ContentType: "vendor", ContentID: "v1",
	}, nil)
	shares.On("IncrementClicks", mock.Anything, "s1").Return(false, errors.New("db down"))

	engage, err := engagement.NewService(new(nopMetrics), engagement.Config{NodeID: 2}, nil)
	require.NoError(t, err)
	svc := NewService(Deps{Config: sharingConfig(), Shares: shares, Engagement: engage})

	click, err := svc.TrackClick(context.Background(), "s1", "9.9.9.9")
	require.NoError(t, err)
	assert.False(t, click.Counted)
	assert.True(t, click.Tracking.Dropped)
	assert.Contains(t, click.Target, "/vendors/v1")
}

type nopMetrics struct{}

func (nopMetrics) Append(context.Context, *model.EngagementMetric) error { return nil }

func (nopMetrics) CountByPlatform(context.Context, repository.MetricQuery) ([]repository.PlatformMetricCount, error) {
	return nil, nil
}
