// Package engagement records engagement events and serves their aggregates.
package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/bits-and-blooms/bloom/v3"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/internal/repository"
	"socialsync/pkg/log"
	"socialsync/pkg/snowflake"
)

// Event engagement event to record
type Event struct {
	EntityType string           `json:"entity_type" binding:"required"`
	EntityID   string           `json:"entity_id" binding:"required"`
	MetricType model.MetricType `json:"metric_type" binding:"required"`
	Platform   model.Platform   `json:"platform" binding:"required"`
	UserID     *string          `json:"user_id,omitempty"`
	// Timestamp defaults to the time of recording
	Timestamp time.Time `json:"timestamp"`
}

// BestEffort outcome of a write whose failure does not fail the caller
type BestEffort struct {
	Recorded bool   `json:"recorded"`
	Dropped  bool   `json:"dropped"`
	Reason   string `json:"reason,omitempty"`
}

// Aggregate event counts of one entity
type Aggregate struct {
	EntityType string                           `json:"entity_type"`
	EntityID   string                           `json:"entity_id"`
	MetricType *model.MetricType                `json:"metric_type,omitempty"`
	ByPlatform []repository.PlatformMetricCount `json:"by_platform"`
	Total      int64                            `json:"total"`
}

// Config engagement service settings
type Config struct {
	NodeID        int64
	CacheTTL      time.Duration
	CacheMaxMB    int
	BloomCapacity uint
	BloomFPRate   float64
}

// Service engagement metric store interface
type Service interface {
	// TrackEngagement appends one event; persistence failures propagate
	TrackEngagement(ctx context.Context, event *Event) (*model.EngagementMetric, error)

	// TrackBestEffort appends one event, logging and reporting a drop instead of failing
	TrackBestEffort(ctx context.Context, event *Event) BestEffort

	// Aggregate counts events of an entity by platform; a nil metricType counts every type
	Aggregate(ctx context.Context, entityType, entityID string, metricType *model.MetricType) (*Aggregate, error)

	// FirstClick reports whether visitor has not clicked shareID before. False positives
	// are possible at the configured rate; a repeat is never reported as first.
	FirstClick(shareID, visitor string) bool
}

type service struct {
	repo    repository.MetricRepository
	ids     *snowflake.Node
	cache   *bigcache.BigCache
	metrics *monitor.MetricsCollector

	clicksMu sync.Mutex
	clicks   *bloom.BloomFilter

	// bumped after every append; cached aggregates carry the value they were read under
	versions [versionStripes]atomic.Uint64

	now func() time.Time
}

// NewService creates an engagement service
func NewService(repo repository.MetricRepository, cfg Config, metrics *monitor.MetricsCollector) (Service, error) {
	ids, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("create id generator: %w", err)
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	cacheConfig := bigcache.DefaultConfig(cfg.CacheTTL)
	cacheConfig.Verbose = false
	if cfg.CacheMaxMB > 0 {
		cacheConfig.HardMaxCacheSize = cfg.CacheMaxMB
	}
	cache, err := bigcache.New(context.Background(), cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	if cfg.BloomCapacity == 0 {
		cfg.BloomCapacity = 100000
	}
	if cfg.BloomFPRate <= 0 || cfg.BloomFPRate >= 1 {
		cfg.BloomFPRate = 0.01
	}

	return &service{
		repo:    repo,
		ids:     ids,
		cache:   cache,
		metrics: metrics,
		clicks:  bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPRate),
		now:     time.Now,
	}, nil
}

func validate(event *Event) error {
	if event == nil {
		return apperr.NewValidationError("event is required")
	}
	if strings.TrimSpace(event.EntityType) == "" || strings.TrimSpace(event.EntityID) == "" {
		return apperr.NewValidationError("entity type and id are required")
	}
	if !event.MetricType.Valid() {
		return apperr.NewValidationError(fmt.Sprintf("unknown metric type %q", event.MetricType))
	}
	if !event.Platform.Known() {
		return apperr.NewValidationError(fmt.Sprintf("unknown platform %q", event.Platform))
	}
	return nil
}

// TrackEngagement validates, stamps and appends the event
func (s *service) TrackEngagement(ctx context.Context, event *Event) (*model.EngagementMetric, error) {
	if err := validate(event); err != nil {
		s.record(event, "invalid")
		return nil, err
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	metric := &model.EngagementMetric{
		ID:         s.ids.Generate().Int64(),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		MetricType: event.MetricType,
		Platform:   event.Platform,
		UserID:     event.UserID,
		Timestamp:  ts.UTC(),
	}

	if err := s.repo.Append(ctx, metric); err != nil {
		s.record(event, "failed")
		return nil, fmt.Errorf("append engagement metric: %w", err)
	}

	entity := entityKey(event.EntityType, event.EntityID)
	s.versionOf(entity).Add(1)
	s.invalidate(entity)
	s.record(event, "recorded")
	return metric, nil
}

// TrackBestEffort never fails the caller
func (s *service) TrackBestEffort(ctx context.Context, event *Event) BestEffort {
	if _, err := s.TrackEngagement(ctx, event); err != nil {
		fields := log.Fields{"error": err.Error()}
		if event != nil {
			fields["entity_type"] = event.EntityType
			fields["entity_id"] = event.EntityID
			fields["metric_type"] = event.MetricType
			fields["platform"] = event.Platform
		}
		log.WithContext(ctx).WithFields(fields).Warn("Engagement event dropped")
		return BestEffort{Dropped: true, Reason: err.Error()}
	}
	return BestEffort{Recorded: true}
}

// Aggregate reads through the local cache
func (s *service) Aggregate(ctx context.Context, entityType, entityID string, metricType *model.MetricType) (*Aggregate, error) {
	if entityType == "" || entityID == "" {
		return nil, apperr.NewValidationError("entity type and id are required")
	}
	if metricType != nil && !metricType.Valid() {
		return nil, apperr.NewValidationError(fmt.Sprintf("unknown metric type %q", *metricType))
	}

	entity := entityKey(entityType, entityID)
	version := s.versionOf(entity)
	readAt := version.Load()

	key := cacheKey(entity, metricType)
	if data, err := s.cache.Get(key); err == nil {
		var cached cachedAggregate
		if err := json.Unmarshal(data, &cached); err == nil && cached.Version == readAt && cached.Aggregate != nil {
			return cached.Aggregate, nil
		}
	}

	rows, err := s.repo.CountByPlatform(ctx, repository.MetricQuery{
		EntityType: entityType,
		EntityID:   entityID,
		MetricType: metricType,
	})
	if err != nil {
		return nil, &apperr.AggregationError{Message: "Failed to aggregate engagement metrics", Cause: err}
	}

	agg := &Aggregate{
		EntityType: entityType,
		EntityID:   entityID,
		MetricType: metricType,
		ByPlatform: rows,
	}
	if agg.ByPlatform == nil {
		agg.ByPlatform = []repository.PlatformMetricCount{}
	}
	for _, row := range rows {
		agg.Total += row.Count
	}

	if version.Load() != readAt {
		return agg, nil
	}
	if data, err := json.Marshal(cachedAggregate{Version: readAt, Aggregate: agg}); err == nil {
		if err := s.cache.Set(key, data); err != nil {
			log.WithContext(ctx).WithError(err).Debug("Failed to cache engagement aggregate")
		}
	}
	return agg, nil
}

// FirstClick tests and adds (shareID, visitor) to the click filter
func (s *service) FirstClick(shareID, visitor string) bool {
	s.clicksMu.Lock()
	defer s.clicksMu.Unlock()
	return !s.clicks.TestOrAddString(shareID + "|" + visitor)
}

const versionStripes = 256

type cachedAggregate struct {
	Version   uint64     `json:"version"`
	Aggregate *Aggregate `json:"aggregate"`
}

// entityKey length-prefixes both parts so no two (type, id) pairs share a key
func entityKey(entityType, entityID string) string {
	return strconv.Itoa(len(entityType)) + ":" + entityType + strconv.Itoa(len(entityID)) + ":" + entityID
}

func cacheKey(entity string, metricType *model.MetricType) string {
	m := "all"
	if metricType != nil {
		m = string(*metricType)
	}
	return entity + "|" + m
}

func (s *service) versionOf(entity string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entity))
	return &s.versions[h.Sum32()%versionStripes]
}

// invalidate drops every cached aggregate of the entity
func (s *service) invalidate(entity string) {
	keys := []string{cacheKey(entity, nil)}
	for _, m := range []model.MetricType{model.MetricShare, model.MetricClick, model.MetricImpression, model.MetricConversion} {
		m := m
		keys = append(keys, cacheKey(entity, &m))
	}
	for _, key := range keys {
		if err := s.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			log.WithField("key", key).WithError(err).Warn("Failed to invalidate engagement aggregate")
		}
	}
}

func (s *service) record(event *Event, outcome string) {
	if s.metrics == nil {
		return
	}
	metricType := "unknown"
	if event != nil && event.MetricType.Valid() {
		metricType = string(event.MetricType)
	}
	s.metrics.RecordEngagement(metricType, outcome)
}
