// Package catalogsync fans catalog publishes and deletes out to every requested platform.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/internal/platform"
	"socialsync/internal/repository"
	"socialsync/pkg/breaker"
	"socialsync/pkg/log"
)

// ReportStatus summary of a fan-out
type ReportStatus string

const (
	StatusSuccess ReportStatus = "success"
	StatusPartial ReportStatus = "partial"
	StatusFailed  ReportStatus = "failed"
)

// Error codes carried by failed results
const (
	CodePublishFailed  = "publish_failed"
	CodeAuthFailed     = "authentication_failed"
	CodeConcurrentSync = "concurrent_sync"
	CodeDisabled       = "platform_disabled"
	CodeNotConfigured  = "platform_not_configured"
	CodeCircuitOpen    = "circuit_open"
)

// PlatformResult outcome for one platform. Err is nil on success.
type PlatformResult struct {
	Platform  model.Platform         `json:"platform"`
	Success   bool                   `json:"success"`
	Entry     *platform.CatalogEntry `json:"entry,omitempty"`
	Deleted   bool                   `json:"deleted,omitempty"`
	Err       error                  `json:"-"`
	Error     string                 `json:"error,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Duration  time.Duration          `json:"duration_ns"`
}

// SyncReport one result per distinct requested platform, in request order
type SyncReport struct {
	Operation  model.SyncOperation `json:"operation"`
	SKU        string              `json:"sku"`
	Status     ReportStatus        `json:"status"`
	Results    []PlatformResult    `json:"results"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Failed results of the report that carry an error
func (r *SyncReport) Failed() []PlatformResult {
	var failed []PlatformResult
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, res)
		}
	}
	return failed
}

func summarize(results []PlatformResult) ReportStatus {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	switch {
	case ok == len(results):
		return StatusSuccess
	case ok == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// SwitchChecker reports platforms disabled by operators
type SwitchChecker interface {
	IsDisabled(ctx context.Context, target string) (bool, error)
}

// Deps collaborators of the coordinator. Switches, Metrics and Tracer are optional.
type Deps struct {
	Registry *platform.Registry
	Catalog  repository.CatalogRepository
	Guard    Guard
	Breakers *breaker.Manager
	Switches SwitchChecker
	Metrics  *monitor.MetricsCollector
	Tracer   *monitor.Tracer
	// Timeouts per-platform call budget; DefaultTimeout applies to the rest
	Timeouts       map[model.Platform]time.Duration
	DefaultTimeout time.Duration
}

// Coordinator runs one sync per requested platform concurrently. A platform failure
// never aborts the others; the only top-level error is invalid input.
type Coordinator struct {
	deps Deps
	now  func() time.Time
}

// NewCoordinator creates a coordinator
func NewCoordinator(deps Deps) *Coordinator {
	if deps.DefaultTimeout <= 0 {
		deps.DefaultTimeout = 10 * time.Second
	}
	if deps.Breakers == nil {
		deps.Breakers = breaker.NewManager(breaker.Config{IsSuccessful: apperr.IsCallerFault})
	}
	if deps.Tracer == nil {
		deps.Tracer = monitor.NoopTracer()
	}
	return &Coordinator{deps: deps, now: time.Now}
}

// Publish creates or updates product on every platform
func (c *Coordinator) Publish(ctx context.Context, product *model.Product, platforms []model.Platform) (*SyncReport, error) {
	if product == nil {
		return nil, apperr.NewValidationError("product is required")
	}
	if err := product.Validate(); err != nil {
		return nil, &apperr.ValidationError{Message: "invalid product", Cause: err}
	}
	return c.fanOut(ctx, model.SyncOperationPublish, product.SKU, platforms, func(ctx context.Context, a platform.Adapter, res *PlatformResult) error {
		entry, err := a.PublishProduct(ctx, product)
		if err == nil {
			res.Entry = entry
		}
		return err
	})
}

// Delete removes sku from every platform. A SKU absent remotely is a success with Deleted false.
func (c *Coordinator) Delete(ctx context.Context, sku string, platforms []model.Platform) (*SyncReport, error) {
	if sku == "" {
		return nil, apperr.NewValidationError("sku is required")
	}
	return c.fanOut(ctx, model.SyncOperationDelete, sku, platforms, func(ctx context.Context, a platform.Adapter, res *PlatformResult) error {
		deleted, err := a.DeleteProduct(ctx, sku)
		res.Deleted = deleted
		return err
	})
}

type adapterCall func(ctx context.Context, a platform.Adapter, res *PlatformResult) error

func (c *Coordinator) fanOut(ctx context.Context, op model.SyncOperation, sku string, requested []model.Platform, call adapterCall) (*SyncReport, error) {
	platforms := dedupe(requested)
	if len(platforms) == 0 {
		return nil, apperr.NewValidationError("at least one platform is required")
	}

	ctx, span := c.deps.Tracer.StartSpan(ctx, "sync."+string(op),
		attribute.String("sku", sku),
		attribute.Int("platforms", len(platforms)),
	)
	defer span.End()

	report := &SyncReport{
		Operation: op,
		SKU:       sku,
		Results:   make([]PlatformResult, len(platforms)),
		StartedAt: c.now(),
	}

	var wg sync.WaitGroup
	for i, p := range platforms {
		wg.Add(1)
		go func(i int, p model.Platform) {
			defer wg.Done()
			report.Results[i] = c.runOne(ctx, op, sku, p, call)
		}(i, p)
	}
	wg.Wait()

	report.FinishedAt = c.now()
	report.Status = summarize(report.Results)
	span.SetAttributes(attribute.String("status", string(report.Status)))
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordSyncReport(string(op), string(report.Status))
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"operation": op,
		"sku":       sku,
		"status":    report.Status,
		"failed":    len(report.Failed()),
	}).Info("Catalog sync finished")
	return report, nil
}

func (c *Coordinator) runOne(ctx context.Context, op model.SyncOperation, sku string, p model.Platform, call adapterCall) (res PlatformResult) {
	res.Platform = p
	start := time.Now()
	outcome := "success"

	defer func() {
		if r := recover(); r != nil {
			res.Entry = nil
			res.Deleted = false
			c.fail(&res, &apperr.PublishError{Platform: p, SKU: sku, Cause: fmt.Errorf("adapter panic: %v", r)})
			outcome = "failed"
		}
		res.Duration = time.Since(start)
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordSync(string(op), string(p), outcome, res.Duration)
		}
	}()

	logger := log.WithContext(ctx).WithFields(log.Fields{"operation": op, "sku": sku, "platform": p})

	adapter, ok := c.deps.Registry.Get(p)
	if !ok {
		outcome = "not_configured"
		c.fail(&res, &apperr.PublishError{Platform: p, SKU: sku, Cause: apperr.ErrPlatformNotConfigured})
		return res
	}

	if c.deps.Switches != nil {
		disabled, err := c.deps.Switches.IsDisabled(ctx, string(p))
		if err != nil {
			logger.WithError(err).Warn("Kill-switch lookup failed, continuing")
		} else if disabled {
			outcome = "disabled"
			c.fail(&res, &apperr.PublishError{Platform: p, SKU: sku, Cause: apperr.ErrPlatformDisabled})
			return res
		}
	}

	release, err := c.deps.Guard.TryAcquire(ctx, GuardKey(sku, p))
	if err != nil {
		if errors.Is(err, ErrGuardBusy) {
			outcome = "rejected"
			logger.Warn("Sync already in progress, rejecting")
			c.fail(&res, &apperr.ConcurrentSyncError{SKU: sku, Platform: p})
			return res
		}
		outcome = "failed"
		c.fail(&res, &apperr.PublishError{Platform: p, SKU: sku, Cause: fmt.Errorf("acquire sync guard: %w", err)})
		return res
	}
	defer release()

	callCtx, span := c.deps.Tracer.StartPlatformSpan(ctx, string(p), string(op))
	defer span.End()
	callCtx, cancel := context.WithTimeout(callCtx, c.timeout(p))
	defer cancel()

	err = c.deps.Breakers.Execute(callCtx, string(p), func(ctx context.Context) error {
		return call(ctx, adapter, &res)
	})
	if err != nil && breaker.IsBreakerError(err) {
		outcome = "circuit_open"
		c.fail(&res, &apperr.PublishError{Platform: p, SKU: sku, Cause: err})
		return res
	}
	if err != nil {
		var pub *apperr.PublishError
		if !errors.As(err, &pub) {
			err = &apperr.PublishError{Platform: p, SKU: sku, Cause: err}
		}
		c.deps.Tracer.RecordError(span, err)
		outcome = "failed"
		c.fail(&res, err)
	} else {
		res.Success = true
	}

	c.record(ctx, op, sku, p, &res)
	return res
}

// record persists the catalog entry of a completed adapter call. Persistence runs
// on a context detached from the caller so a disconnect cannot skip it.
func (c *Coordinator) record(ctx context.Context, op model.SyncOperation, sku string, p model.Platform, res *PlatformResult) {
	if c.deps.Catalog == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := log.WithContext(ctx).WithFields(log.Fields{"operation": op, "sku": sku, "platform": p})
	now := c.now()

	if op == model.SyncOperationDelete && res.Success {
		if _, err := c.deps.Catalog.Delete(ctx, sku, p); err != nil {
			logger.WithError(err).Error("Failed to remove catalog entry")
		}
		return
	}

	entry := &model.PlatformCatalogEntry{SKU: sku, Platform: p}
	if res.Success {
		remoteID := ""
		if res.Entry != nil {
			remoteID = res.Entry.RemoteID
		}
		entry.MarkSynced(remoteID, now)
	} else {
		if op == model.SyncOperationDelete {
			if _, err := c.deps.Catalog.Get(ctx, sku, p); err != nil {
				return
			}
		}
		entry.MarkFailed(res.Err, now)
	}

	if _, err := c.deps.Catalog.Upsert(ctx, entry); err != nil {
		logger.WithError(err).Error("Failed to record catalog entry")
	}
}

func (c *Coordinator) fail(res *PlatformResult, err error) {
	res.Success = false
	res.Err = err
	res.Error = err.Error()
	res.Code = errorCode(err)
	res.Retryable = apperr.IsRetryable(err)
}

func (c *Coordinator) timeout(p model.Platform) time.Duration {
	if d, ok := c.deps.Timeouts[p]; ok && d > 0 {
		return d
	}
	return c.deps.DefaultTimeout
}

func errorCode(err error) string {
	var auth *apperr.AuthenticationError
	var busy *apperr.ConcurrentSyncError
	switch {
	case errors.As(err, &busy):
		return CodeConcurrentSync
	case errors.Is(err, apperr.ErrPlatformDisabled):
		return CodeDisabled
	case errors.Is(err, apperr.ErrPlatformNotConfigured):
		return CodeNotConfigured
	case breaker.IsBreakerError(err):
		return CodeCircuitOpen
	case errors.As(err, &auth):
		return CodeAuthFailed
	default:
		return CodePublishFailed
	}
}

func dedupe(platforms []model.Platform) []model.Platform {
	seen := make(map[model.Platform]bool, len(platforms))
	out := make([]model.Platform, 0, len(platforms))
	for _, p := range platforms {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
