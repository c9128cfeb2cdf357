package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/pkg/log"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Waiter blocks until the keyed limiter admits one call
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Options transport settings shared by every adapter
type Options struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	// StoreURL storefront root used for product links
	StoreURL   string
	HTTPClient *http.Client
	Limiter    Waiter
}

// RemoteError non-2xx reply from a platform API
type RemoteError struct {
	Platform   model.Platform
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

type tokenPlacement int

const (
	tokenQuery tokenPlacement = iota
	tokenBearer
)

// client HTTP base embedded by every adapter
type client struct {
	platform  model.Platform
	opts      Options
	creds     Credentials
	placement tokenPlacement
}

func newClient(platform model.Platform, opts Options, placement tokenPlacement) client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.StoreURL = strings.TrimRight(opts.StoreURL, "/")
	return client{platform: platform, opts: opts, placement: placement}
}

func (c *client) Credentials() Credentials {
	return c.creds
}

func (c *client) logger(ctx context.Context) *logrus.Entry {
	return log.WithContext(ctx).WithField("platform", c.platform)
}

func (c *client) endpoint(path string) string {
	if c.opts.APIVersion == "" {
		return c.opts.BaseURL + path
	}
	return c.opts.BaseURL + "/" + c.opts.APIVersion + path
}

func (c *client) productLink(p *model.Product) string {
	return c.opts.StoreURL + "/products/" + p.LinkSlug()
}

// call sends one request bounded by the platform timeout and decodes a JSON reply into out.
// 401 and 403 replies surface as *apperr.AuthenticationError.
func (c *client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if c.opts.Limiter != nil {
		if err := c.opts.Limiter.Wait(ctx, string(c.platform)); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	if query == nil {
		query = url.Values{}
	}
	if c.placement == tokenQuery {
		query.Set("access_token", c.creds.AccessToken)
	}

	target := c.endpoint(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.placement == tokenBearer {
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)
	}

	start := time.Now()
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	c.logger(ctx).WithFields(log.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("Platform API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := &RemoteError{
			Platform:   c.platform,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    remoteMessage(data),
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &apperr.AuthenticationError{Platform: c.platform, Cause: remote}
		}
		return remote
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// remoteMessage extracts the error text of the common {"error": {"message": ...}} shapes
func remoteMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Title   string          `json:"title"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if len(envelope.Error) > 0 && json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return flat
		}
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Title != "" {
			return envelope.Title
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return "empty response"
	}
	return text
}

// authenticate runs an identity call, reporting every failure as *apperr.AuthenticationError
func (c *client) authenticate(ctx context.Context, path string, query url.Values) (bool, error) {
	var identity map[string]interface{}
	if err := c.call(ctx, http.MethodGet, path, query, nil, &identity); err != nil {
		c.logger(ctx).WithError(err).Error("Authentication failed")
		var auth *apperr.AuthenticationError
		if errors.As(err, &auth) {
			return false, auth
		}
		return false, &apperr.AuthenticationError{Platform: c.platform, Cause: err}
	}
	c.logger(ctx).Info("Authentication successful")
	return true, nil
}

func (c *client) shareFailed(ctx context.Context, content Content, err error) error {
	c.logger(ctx).WithFields(log.Fields{
		"content_type": content.Type,
		"content_id":   content.ID,
	}).WithError(err).Error("Failed to share content")
	return &apperr.ShareError{Platform: c.platform, Cause: err}
}

func (c *client) shared(ctx context.Context, content Content, postID string) *RemotePost {
	c.logger(ctx).WithFields(log.Fields{
		"content_type": content.Type,
		"content_id":   content.ID,
		"post_id":      postID,
	}).Info("Content shared")
	return &RemotePost{ID: postID}
}

// shareText message followed by the link, when there is one
func shareText(message, link string) string {
	switch {
	case link == "":
		return message
	case message == "":
		return link
	default:
		return message + " " + link
	}
}
