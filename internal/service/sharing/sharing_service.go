// Package sharing builds shareable links, posts content to platforms on behalf of
// users and reports share statistics.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"socialsync/internal/apperr"
	"socialsync/internal/config"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/internal/platform"
	"socialsync/internal/repository"
	"socialsync/internal/service/engagement"
	"socialsync/internal/service/oauth"
	"socialsync/pkg/breaker"
	"socialsync/pkg/log"
)

// ErrShareNotFound unknown share id
var ErrShareNotFound = errors.New("share not found")

// ContentData what is being shared
type ContentData struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	URL         string `json:"url"`
}

// Metadata link-preview fields
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// ShareableLink attributed deep link
type ShareableLink struct {
	URL       string            `json:"url"`
	Metadata  Metadata          `json:"metadata"`
	UTMParams map[string]string `json:"utm_params"`
}

// ShareResult outcome of a successful share
type ShareResult struct {
	Success      bool           `json:"success"`
	ShareID      string         `json:"share_id"`
	Platform     model.Platform `json:"platform"`
	RemotePostID string         `json:"remote_post_id,omitempty"`
	Link         string         `json:"link"`
}

// Totals sums over every platform
type Totals struct {
	ShareCount int64 `json:"share_count"`
	ClickCount int64 `json:"click_count"`
}

// ShareStats per-platform and total share counts of one content item
type ShareStats struct {
	ContentType string                          `json:"content_type"`
	ContentID   string                          `json:"content_id"`
	ByPlatform  []repository.PlatformShareCount `json:"by_platform"`
	Totals      Totals                          `json:"totals"`
}

// ClickResult outcome of a tracked click
type ClickResult struct {
	Target   string                `json:"target"`
	Counted  bool                  `json:"counted"`
	Tracking engagement.BestEffort `json:"tracking"`
}

// SwitchChecker reports platforms disabled by operators
type SwitchChecker interface {
	IsDisabled(ctx context.Context, target string) (bool, error)
}

// Service sharing service interface
type Service interface {
	// GenerateShareableLink builds the attributed link of content. Pure.
	GenerateShareableLink(userID string, content ContentData, p model.Platform) (*ShareableLink, error)

	// ShareContent posts content to p as userID and records the attempt
	ShareContent(ctx context.Context, userID string, p model.Platform, content ContentData, message string) (*ShareResult, error)

	// GetShareStats aggregates successful shares of a content item
	GetShareStats(ctx context.Context, contentType, contentID string) (*ShareStats, error)

	// TrackClick counts a click on a share link. Tracking is best-effort; the target is always returned.
	TrackClick(ctx context.Context, shareID, visitor string) (*ClickResult, error)
}

// Deps collaborators of the sharing service. Switches, Breakers, Metrics and Tracer are optional.
type Deps struct {
	Config     config.SharingConfig
	Shares     repository.ShareRepository
	Tokens     oauth.TokenProvider
	Registry   *platform.Registry
	Engagement engagement.Service
	Switches   SwitchChecker
	Breakers   *breaker.Manager
	Metrics    *monitor.MetricsCollector
	Tracer     *monitor.Tracer
}

type service struct {
	deps Deps
}

// NewService creates a sharing service
func NewService(deps Deps) Service {
	if deps.Breakers == nil {
		deps.Breakers = breaker.NewManager(breaker.Config{IsSuccessful: apperr.IsCallerFault})
	}
	if deps.Tracer == nil {
		deps.Tracer = monitor.NoopTracer()
	}
	deps.Config.BaseURL = strings.TrimRight(deps.Config.BaseURL, "/")
	deps.Config.TrackingBaseURL = strings.TrimRight(deps.Config.TrackingBaseURL, "/")
	return &service{deps: deps}
}

var typePaths = map[string]string{
	"product":    "products",
	"vendor":     "vendors",
	"collection": "collections",
}

func typePath(contentType string) string {
	if p, ok := typePaths[contentType]; ok {
		return p
	}
	return contentType + "s"
}

// GenerateShareableLink builds <base>/<type path>/<id>?ref=<user>&utm_*
func (s *service) GenerateShareableLink(userID string, content ContentData, p model.Platform) (*ShareableLink, error) {
	if strings.TrimSpace(content.Type) == "" || strings.TrimSpace(content.ID) == "" {
		return nil, apperr.NewValidationError("Content type and ID are required")
	}

	utm := map[string]string{}
	if p != "" {
		utm["utm_source"] = string(p)
	}
	if s.deps.Config.UTMMedium != "" {
		utm["utm_medium"] = s.deps.Config.UTMMedium
	}
	if s.deps.Config.UTMCampaign != "" {
		utm["utm_campaign"] = s.deps.Config.UTMCampaign
	}

	query := url.Values{}
	if userID != "" {
		query.Set("ref", userID)
	}
	for k, v := range utm {
		query.Set(k, v)
	}

	link := fmt.Sprintf("%s/%s/%s", s.deps.Config.BaseURL, typePath(content.Type), url.PathEscape(content.ID))
	if len(query) > 0 {
		link += "?" + query.Encode()
	}

	return &ShareableLink{
		URL: link,
		Metadata: Metadata{
			Title:       content.Name,
			Description: content.Description,
			Image:       content.Image,
		},
		UTMParams: utm,
	}, nil
}

// ShareContent validates the grant, records a pending share, posts and completes the record
func (s *service) ShareContent(ctx context.Context, userID string, p model.Platform, content ContentData, message string) (*ShareResult, error) {
	if userID == "" {
		return nil, apperr.NewValidationError("user is required")
	}
	link, err := s.GenerateShareableLink(userID, content, p)
	if err != nil {
		return nil, err
	}

	ctx, span := s.deps.Tracer.StartSpan(ctx, "share.content",
		attribute.String("platform", string(p)),
		attribute.String("content_type", content.Type),
		attribute.String("content_id", content.ID),
	)
	defer span.End()

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"user_id":      userID,
		"platform":     p,
		"content_type": content.Type,
		"content_id":   content.ID,
	})

	adapter, err := s.resolve(ctx, p)
	if err != nil {
		s.recordShare(p, "unavailable")
		return nil, err
	}

	valid, err := s.deps.Tokens.ValidateToken(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if !valid {
		s.recordShare(p, "no_connection")
		return nil, &apperr.NoConnectionError{Platform: p}
	}

	token, err := s.deps.Tokens.GetAccessToken(ctx, userID, p)
	if err != nil {
		return nil, err
	}

	record := &model.ShareRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Platform:    p,
		ContentType: content.Type,
		ContentID:   content.ID,
		Message:     message,
	}
	if err := s.deps.Shares.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create share record: %w", err)
	}

	target := link.URL
	if s.deps.Config.TrackingBaseURL != "" {
		target = s.deps.Config.TrackingBaseURL + "/r/" + record.ID
	}
	post := platform.Content{
		Type:        content.Type,
		ID:          content.ID,
		Title:       content.Name,
		Description: content.Description,
		Image:       content.Image,
		URL:         target,
	}

	creds := adapter.Credentials()
	creds.AccessToken = token
	userAdapter := adapter.Initialize(creds)

	var remote *platform.RemotePost
	err = s.deps.Breakers.Execute(ctx, "share."+string(p), func(ctx context.Context) error {
		var postErr error
		remote, postErr = userAdapter.SharePost(ctx, post, message)
		return postErr
	})
	if err != nil {
		s.deps.Tracer.RecordError(span, err)
		return nil, s.failed(ctx, record, err)
	}

	record.MarkSucceeded(remote.ID)
	if err := s.complete(ctx, record); err != nil {
		logger.WithFields(log.Fields{
			"share_id":       record.ID,
			"remote_post_id": remote.ID,
		}).WithError(err).Error("Failed to complete share record, post is live")
		return nil, fmt.Errorf("complete share record of remote post %s: %w", remote.ID, err)
	}

	uid := userID
	if _, err := s.deps.Engagement.TrackEngagement(ctx, &engagement.Event{
		EntityType: content.Type,
		EntityID:   content.ID,
		MetricType: model.MetricShare,
		Platform:   p,
		UserID:     &uid,
	}); err != nil {
		logger.WithError(err).Error("Failed to track share")
		return nil, err
	}

	s.recordShare(p, "success")
	logger.WithField("share_id", record.ID).Info("Content shared")
	return &ShareResult{
		Success:      true,
		ShareID:      record.ID,
		Platform:     p,
		RemotePostID: remote.ID,
		Link:         target,
	}, nil
}

// resolve returns the adapter of p unless it is missing or switched off
func (s *service) resolve(ctx context.Context, p model.Platform) (platform.Adapter, error) {
	adapter, ok := s.deps.Registry.Get(p)
	if !ok {
		return nil, &apperr.ShareError{Platform: p, Cause: apperr.ErrPlatformNotConfigured}
	}
	if s.deps.Switches != nil {
		disabled, err := s.deps.Switches.IsDisabled(ctx, string(p))
		if err != nil {
			log.WithContext(ctx).WithField("platform", p).WithError(err).Warn("Kill-switch lookup failed, continuing")
		} else if disabled {
			return nil, &apperr.ShareError{Platform: p, Cause: apperr.ErrPlatformDisabled}
		}
	}
	return adapter, nil
}

// failed stores the failure on the record before returning the share error
const completeRetryTimeout = 3 * time.Second

// complete persists a succeeded record, retrying once detached from the caller
func (s *service) complete(ctx context.Context, record *model.ShareRecord) error {
	err := s.deps.Shares.Update(ctx, record)
	if err == nil {
		return nil
	}
	log.WithContext(ctx).WithField("share_id", record.ID).WithError(err).Warn("Retrying share record completion")

	retryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completeRetryTimeout)
	defer cancel()
	return s.deps.Shares.Update(retryCtx, record)
}

func (s *service) failed(ctx context.Context, record *model.ShareRecord, cause error) error {
	var shareErr *apperr.ShareError
	if errors.As(cause, &shareErr) {
		cause = shareErr.Cause
	}

	record.MarkFailed(model.ShareFailure{
		Message:  cause.Error(),
		Code:     failureCode(cause),
		Platform: record.Platform,
	})
	if err := s.deps.Shares.Update(context.WithoutCancel(ctx), record); err != nil {
		log.WithContext(ctx).WithField("share_id", record.ID).WithError(err).Error("Failed to record share failure")
	}

	s.recordShare(record.Platform, "failed")
	return &apperr.ShareError{Platform: record.Platform, Cause: cause}
}

func failureCode(err error) string {
	var auth *apperr.AuthenticationError
	var remote *platform.RemoteError
	switch {
	case errors.As(err, &auth):
		return "authentication_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case breaker.IsBreakerError(err):
		return "circuit_open"
	case errors.As(err, &remote):
		return fmt.Sprintf("http_%d", remote.StatusCode)
	default:
		return "share_failed"
	}
}

// GetShareStats sums counts and clicks over platforms
func (s *service) GetShareStats(ctx context.Context, contentType, contentID string) (*ShareStats, error) {
	if contentType == "" || contentID == "" {
		return nil, apperr.NewValidationError("Content type and ID are required")
	}

	rows, err := s.deps.Shares.CountByPlatform(ctx, contentType, contentID)
	if err != nil {
		return nil, &apperr.AggregationError{Message: "Failed to get share statistics", Cause: err}
	}
	return Summarize(contentType, contentID, rows), nil
}

// Summarize computes totals as sums of the per-platform breakdown
func Summarize(contentType, contentID string, rows []repository.PlatformShareCount) *ShareStats {
	stats := &ShareStats{
		ContentType: contentType,
		ContentID:   contentID,
		ByPlatform:  rows,
	}
	if stats.ByPlatform == nil {
		stats.ByPlatform = []repository.PlatformShareCount{}
	}
	for _, row := range rows {
		stats.Totals.ShareCount += row.Count
		stats.Totals.ClickCount += row.Clicks
	}
	return stats
}

// TrackClick resolves the share target and counts the first click of each visitor
func (s *service) TrackClick(ctx context.Context, shareID, visitor string) (*ClickResult, error) {
	record, err := s.deps.Shares.Get(ctx, shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("load share: %w", err)
	}

	link, err := s.GenerateShareableLink(record.UserID, ContentData{Type: record.ContentType, ID: record.ContentID}, record.Platform)
	if err != nil {
		return nil, err
	}
	result := &ClickResult{Target: link.URL}

	if !s.deps.Engagement.FirstClick(shareID, visitor) {
		result.Tracking = engagement.BestEffort{Dropped: true, Reason: "repeat click"}
		s.recordClick("duplicate")
		return result, nil
	}

	if _, err := s.deps.Shares.IncrementClicks(ctx, shareID); err != nil {
		log.WithContext(ctx).WithField("share_id", shareID).WithError(err).Warn("Failed to count click")
		result.Tracking = engagement.BestEffort{Dropped: true, Reason: err.Error()}
		s.recordClick("dropped")
		return result, nil
	}
	result.Counted = true

	uid := record.UserID
	result.Tracking = s.deps.Engagement.TrackBestEffort(ctx, &engagement.Event{
		EntityType: record.ContentType,
		EntityID:   record.ContentID,
		MetricType: model.MetricClick,
		Platform:   record.Platform,
		UserID:     &uid,
	})
	s.recordClick("counted")
	return result, nil
}

func (s *service) recordShare(p model.Platform, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordShare(string(p), outcome)
	}
}

func (s *service) recordClick(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordClick(outcome)
	}
}
