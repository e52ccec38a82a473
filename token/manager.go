// Package token owns the credential lifecycle: it hands out a valid access
// token for a user, refreshing the stored record through the accounts token
// endpoint when it has expired.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mvjkel1/spotify-fav/models"
	"github.com/mvjkel1/spotify-fav/spotify"
	"github.com/mvjkel1/spotify-fav/store"
	"github.com/rs/zerolog"
)

// Refresher is the slice of the upstream client the manager needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*spotify.TokenGrant, error)
}

type Manager struct {
	tokens store.TokenStore
	client Refresher
	logger zerolog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewManager(tokens store.TokenStore, client Refresher, logger zerolog.Logger) *Manager {
	return &Manager{
		tokens:    tokens,
		client:    client,
		logger:    logger.With().Str("component", "token_manager").Logger(),
		userLocks: make(map[string]*sync.Mutex),
	}
}

// GetValid returns the stored credential when it has not expired, otherwise
// refreshes it first. Refreshes are serialized per user: some OAuth providers
// invalidate a refresh token after first use, so two concurrent callers must
// not both hit the token endpoint. The second caller re-reads the row the
// first one just wrote and returns without a network call.
func (m *Manager) GetValid(ctx context.Context, userID string) (models.SpotifyToken, error) {
	record, err := m.load(userID)
	if err != nil {
		return models.SpotifyToken{}, err
	}

	if !record.IsExpired(time.Now().UTC()) {
		return toToken(record), nil
	}

	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record, err = m.load(userID)
	if err != nil {
		return models.SpotifyToken{}, err
	}

	if !record.IsExpired(time.Now().UTC()) {
		return toToken(record), nil
	}

	return m.refresh(ctx, userID, record)
}

// Authorization returns the bearer token for upstream API calls.
func (m *Manager) Authorization(ctx context.Context, userID string) (string, error) {
	tok, err := m.GetValid(ctx, userID)
	if err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}

// Save persists the credential obtained from the authorization-code exchange.
func (m *Manager) Save(userID, accessToken, refreshToken string, expiresAt time.Time) error {
	return m.tokens.Upsert(models.SpotifyTokenDBModel{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UTC(),
	})
}

func (m *Manager) load(userID string) (*models.SpotifyTokenDBModel, error) {
	record, err := m.tokens.Get(userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, err
	}

	if record.AccessToken == "" || record.RefreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	return record, nil
}

func (m *Manager) refresh(ctx context.Context, userID string, record *models.SpotifyTokenDBModel) (models.SpotifyToken, error) {
	grant, err := m.client.Refresh(ctx, record.RefreshToken)
	if err != nil {
		var statusErr *spotify.StatusError
		if errors.As(err, &statusErr) {
			if statusErr.ClientError() {
				return models.SpotifyToken{}, fmt.Errorf("%w: %v", models.ErrAuthRefreshFailed, err)
			}
			return models.SpotifyToken{}, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		return models.SpotifyToken{}, err
	}

	refreshed := models.SpotifyTokenDBModel{
		UserID:       userID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(grant.ExpiresIn) * time.Second),
	}

	if err := m.tokens.Upsert(refreshed); err != nil {
		return models.SpotifyToken{}, err
	}

	m.logger.Debug().Str("user_id", userID).Time("expires_at", refreshed.ExpiresAt).Msg("refreshed spotify token")

	return toToken(&refreshed), nil
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}

	return lock
}

func toToken(record *models.SpotifyTokenDBModel) models.SpotifyToken {
	return models.SpotifyToken{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt.Unix(),
	}
}
