// Package oauth stores the platform grants users connect and hands out their tokens.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/internal/platform"
	"socialsync/internal/repository"
	"socialsync/pkg/log"
)

// ConnectRequest grant obtained by the client from the platform's OAuth flow
type ConnectRequest struct {
	AccessToken  string   `json:"access_token" binding:"required"`
	RefreshToken string   `json:"refresh_token"`
	Scopes       []string `json:"scopes"`
	// ExpiresIn seconds until the access token expires; 0 means no expiry
	ExpiresIn int64 `json:"expires_in" binding:"gte=0"`
}

// TokenProvider answers whether a user can post to a platform and with which token
type TokenProvider interface {
	// ValidateToken reports whether a usable grant exists
	ValidateToken(ctx context.Context, userID string, p model.Platform) (bool, error)

	// GetAccessToken returns the unsealed access token
	GetAccessToken(ctx context.Context, userID string, p model.Platform) (string, error)
}

// Service OAuth connection service interface
type Service interface {
	TokenProvider

	// Connect stores a grant, replacing any earlier one
	Connect(ctx context.Context, userID string, p model.Platform, req *ConnectRequest) (*model.PlatformConnection, error)

	// Disconnect revokes the grant
	Disconnect(ctx context.Context, userID string, p model.Platform) error

	// List grants held by a user
	List(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

type service struct {
	repo     repository.ConnectionRepository
	sealer   *Sealer
	registry *platform.Registry
	now      func() time.Time
}

// NewService creates an OAuth connection service. When registry holds an adapter for
// the platform, Connect verifies the token with it before storing.
func NewService(repo repository.ConnectionRepository, sealer *Sealer, registry *platform.Registry) Service {
	return &service{
		repo:     repo,
		sealer:   sealer,
		registry: registry,
		now:      time.Now,
	}
}

func grantAAD(userID string, p model.Platform) []byte {
	return []byte(userID + "|" + string(p))
}

// ValidateToken checks the stored grant is neither revoked nor expired
func (s *service) ValidateToken(ctx context.Context, userID string, p model.Platform) (bool, error) {
	conn, err := s.repo.Get(ctx, userID, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load connection: %w", err)
	}
	return conn.Usable(s.now()), nil
}

// GetAccessToken unseals the access token of a usable grant
func (s *service) GetAccessToken(ctx context.Context, userID string, p model.Platform) (string, error) {
	conn, err := s.repo.Get(ctx, userID, p)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", &apperr.NoConnectionError{Platform: p}
		}
		return "", fmt.Errorf("load connection: %w", err)
	}
	if !conn.Usable(s.now()) {
		return "", &apperr.NoConnectionError{Platform: p}
	}

	token, err := s.sealer.Open(conn.AccessTokenSealed, grantAAD(userID, p))
	if err != nil {
		log.WithContext(ctx).WithFields(log.Fields{
			"user_id":  userID,
			"platform": p,
		}).WithError(err).Error("Failed to unseal access token")
		return "", fmt.Errorf("unseal access token: %w", err)
	}
	return string(token), nil
}

// Connect verifies and stores the grant
func (s *service) Connect(ctx context.Context, userID string, p model.Platform, req *ConnectRequest) (*model.PlatformConnection, error) {
	if userID == "" {
		return nil, apperr.NewValidationError("user is required")
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return nil, apperr.NewValidationError("access token is required")
	}
	if req.ExpiresIn < 0 {
		return nil, apperr.NewValidationError("expires_in must not be negative")
	}

	if err := s.verify(ctx, p, req.AccessToken); err != nil {
		return nil, err
	}

	aad := grantAAD(userID, p)
	access, err := s.sealer.Seal([]byte(req.AccessToken), aad)
	if err != nil {
		return nil, err
	}
	conn := &model.PlatformConnection{
		UserID:            userID,
		Platform:          p,
		AccessTokenSealed: access,
		Scopes:            strings.Join(req.Scopes, ","),
	}
	if req.RefreshToken != "" {
		if conn.RefreshTokenSealed, err = s.sealer.Seal([]byte(req.RefreshToken), aad); err != nil {
			return nil, err
		}
	}
	if req.ExpiresIn > 0 {
		expires := s.now().Add(time.Duration(req.ExpiresIn) * time.Second)
		conn.ExpiresAt = &expires
	}

	if err := s.repo.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("store connection: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id":  userID,
		"platform": p,
	}).Info("Platform connected")
	return conn, nil
}

// verify checks the token against the platform when an adapter is configured
func (s *service) verify(ctx context.Context, p model.Platform, token string) error {
	if s.registry == nil {
		return nil
	}
	adapter, ok := s.registry.Get(p)
	if !ok {
		return nil
	}

	creds := adapter.Credentials()
	creds.AccessToken = token
	valid, err := adapter.Initialize(creds).Authenticate(ctx)
	if err != nil {
		return err
	}
	if !valid {
		return &apperr.AuthenticationError{Platform: p, Cause: errors.New("token rejected")}
	}
	return nil
}

// Disconnect revokes the grant
func (s *service) Disconnect(ctx context.Context, userID string, p model.Platform) error {
	revoked, err := s.repo.Revoke(ctx, userID, p)
	if err != nil {
		return fmt.Errorf("revoke connection: %w", err)
	}
	if !revoked {
		return &apperr.NoConnectionError{Platform: p}
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id":  userID,
		"platform": p,
	}).Info("Platform disconnected")
	return nil
}

// List grants held by a user
func (s *service) List(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	return s.repo.ListByUser(ctx, userID)
}
