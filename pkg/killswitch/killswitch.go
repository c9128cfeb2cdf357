package killswitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "killswitch:"

// Switch describes why a target was turned off
type Switch struct {
	Target     string    `json:"target"`
	Reason     string    `json:"reason"`
	DisabledBy string    `json:"disabled_by"`
	DisabledAt time.Time `json:"disabled_at"`
	// ExpiresAt is zero for switches that stay off until re-enabled
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Manager stores switches in Redis so every instance sees the same state
type Manager struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// NewManager creates a new kill-switch manager
func NewManager(client redis.UniversalClient) *Manager {
	return &Manager{
		redis: client,
		now:   time.Now,
	}
}

func key(target string) string {
	return keyPrefix + target
}

// Disable turns target off. A positive ttl re-enables it automatically.
func (m *Manager) Disable(ctx context.Context, target, reason, by string, ttl time.Duration) (*Switch, error) {
	sw := &Switch{
		Target:     target,
		Reason:     reason,
		DisabledBy: by,
		DisabledAt: m.now().UTC(),
	}
	if ttl > 0 {
		sw.ExpiresAt = sw.DisabledAt.Add(ttl)
	}

	data, err := json.Marshal(sw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal switch: %w", err)
	}

	if err := m.redis.Set(ctx, key(target), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to set kill switch for %s: %w", target, err)
	}
	return sw, nil
}

// Enable turns target back on. Enabling an active target is a no-op.
func (m *Manager) Enable(ctx context.Context, target string) error {
	if err := m.redis.Del(ctx, key(target)).Err(); err != nil {
		return fmt.Errorf("failed to clear kill switch for %s: %w", target, err)
	}
	return nil
}

// Get returns the switch for target, or nil when target is enabled
func (m *Manager) Get(ctx context.Context, target string) (*Switch, error) {
	data, err := m.redis.Get(ctx, key(target)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read kill switch for %s: %w", target, err)
	}

	var sw Switch
	if err := json.Unmarshal(data, &sw); err != nil {
		return nil, fmt.Errorf("corrupt kill switch for %s: %w", target, err)
	}
	return &sw, nil
}

// IsDisabled reports whether target is switched off
func (m *Manager) IsDisabled(ctx context.Context, target string) (bool, error) {
	sw, err := m.Get(ctx, target)
	if err != nil {
		return false, err
	}
	return sw != nil, nil
}

// List returns every active switch sorted by target
func (m *Manager) List(ctx context.Context) ([]*Switch, error) {
	var out []*Switch

	iter := m.redis.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		target := strings.TrimPrefix(iter.Val(), keyPrefix)
		sw, err := m.Get(ctx, target)
		if err != nil {
			return nil, err
		}
		// expired between SCAN and GET
		if sw == nil {
			continue
		}
		out = append(out, sw)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan kill switches: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out, nil
}
