// Package tracker runs one long-lived polling loop per user, turning raw
// playback snapshots into durable listen counts. A loop credits a track at
// most once per play-through and survives transient upstream failures.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mvjkel1/spotify-fav/models"
	"github.com/mvjkel1/spotify-fav/spotify"
	"github.com/rs/zerolog"
)

const (
	// ListenedThresholdMS is the boundary used both to record a track as
	// observed (progress >= threshold) and to credit it (remaining <= threshold).
	ListenedThresholdMS = 10000

	DefaultInterval = time.Second
)

// Gateway is the slice of the upstream client a polling loop needs.
type Gateway interface {
	PlaybackState(ctx context.Context, accessToken string) (*spotify.Playback, error)
}

// TokenSource produces a guaranteed-valid bearer token for a user.
type TokenSource interface {
	Authorization(ctx context.Context, userID string) (string, error)
}

type UserStore interface {
	GetOne(whereQuery string, whereArgs ...interface{}) (*models.UserDBModel, error)
	SetPolling(userID string, polling bool) error
}

type TrackStore interface {
	GetByTitle(title string) (*models.TrackDBModel, error)
	CreateWithListen(title, spotifyID, userID string) (*models.TrackDBModel, error)
	IncrementListen(userID, trackID string) error
}

type session struct {
	cancel context.CancelFunc
}

// Tracker owns the polling session registry. The registry map and the user's
// is_polling column are written under the same critical section, which is what
// makes start idempotent.
type Tracker struct {
	gateway     Gateway
	tokens      TokenSource
	users       UserStore
	tracks      TrackStore
	interval    time.Duration
	thresholdMS int
	logger      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func New(gateway Gateway, tokens TokenSource, users UserStore, tracks TrackStore, interval time.Duration, logger zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Tracker{
		gateway:     gateway,
		tokens:      tokens,
		users:       users,
		tracks:      tracks,
		interval:    interval,
		thresholdMS: ListenedThresholdMS,
		logger:      logger.With().Str("component", "tracker").Logger(),
		sessions:    make(map[string]*session),
	}
}

// Start launches the polling loop for a user. It fails with ErrConflict when a
// loop is already running and with ErrUnauthorized when the user never linked
// a Spotify account.
func (t *Tracker) Start(userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[userID]; ok {
		return models.ErrConflict
	}

	user, err := t.users.GetOne("user_id = ?", userID)
	if err != nil {
		return err
	}

	if user.SpotifyUID == "" {
		return models.ErrUnauthorized
	}

	if err := t.users.SetPolling(userID, true); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.sessions[userID] = &session{cancel: cancel}

	t.wg.Add(1)
	go t.loop(ctx, userID)

	t.logger.Info().Str("user_id", userID).Msg("polling started")

	return nil
}

// Stop requests a cooperative shutdown of the user's loop. The loop observes
// the cancellation at the top of its next tick, so latency is bounded by one
// interval plus an in-flight request timeout.
func (t *Tracker) Stop(userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if !ok {
		return models.ErrConflict
	}

	s.cancel()

	if err := t.users.SetPolling(userID, false); err != nil {
		return err
	}

	t.logger.Info().Str("user_id", userID).Msg("polling stop requested")

	return nil
}

// Active reports whether a polling loop is currently registered for the user.
func (t *Tracker) Active(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.sessions[userID]
	return ok
}

// StopAll cancels every registered loop and waits for them to exit.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	for _, s := range t.sessions {
		s.cancel()
	}
	t.mu.Unlock()

	t.wg.Wait()
}

// loopState holds the per-loop machine: after crediting a listen the loop
// suspends evaluation until the playing title changes, guaranteeing at most
// one credit per play-through. Ticks for one user are strictly sequential, so
// no extra locking is needed.
type loopState struct {
	awaitingChange bool
	creditedTitle  string
}

func (t *Tracker) loop(ctx context.Context, userID string) {
	defer t.wg.Done()
	defer t.deregister(userID)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	state := &loopState{}

	for {
		if fatal := t.tick(ctx, userID, state); fatal {
			if err := t.users.SetPolling(userID, false); err != nil {
				t.logger.Error().Err(err).Str("user_id", userID).Msg("failed to clear polling flag")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick evaluates one playback snapshot. The returned flag is true only for
// auth-fatal failures: a loop running with a dead credential is worse than no
// loop, while upstream or storage hiccups just carry over to the next tick.
func (t *Tracker) tick(ctx context.Context, userID string, state *loopState) bool {
	accessToken, err := t.tokens.Authorization(ctx, userID)
	if err != nil {
		if isAuthFatal(err) {
			t.logger.Error().Err(err).Str("user_id", userID).Msg("credential lost, stopping polling")
			return true
		}
		t.logger.Warn().Err(err).Str("user_id", userID).Msg("token lookup failed, retrying next tick")
		return false
	}

	playback, err := t.gateway.PlaybackState(ctx, accessToken)
	if err != nil {
		if isAuthFatal(err) {
			t.logger.Error().Err(err).Str("user_id", userID).Msg("playback fetch unauthorized, stopping polling")
			return true
		}
		t.logger.Warn().Err(err).Str("user_id", userID).Msg("playback fetch failed, retrying next tick")
		return false
	}

	if playback == nil || !playback.IsPlaying || playback.Item == nil {
		return false
	}

	if state.awaitingChange {
		if playback.Item.Name == state.creditedTitle {
			return false
		}
		state.awaitingChange = false
	}

	t.evaluate(userID, playback, state)

	return false
}

func (t *Tracker) evaluate(userID string, playback *spotify.Playback, state *loopState) {
	progress, duration := playback.ProgressMS, playback.Item.DurationMS
	enoughElapsed := progress >= t.thresholdMS
	nearEnd := duration-progress <= t.thresholdMS

	track, err := t.tracks.GetByTitle(playback.Item.Name)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		t.logger.Warn().Err(err).Str("user_id", userID).Msg("track lookup failed")
		return
	}

	switch {
	case track != nil && nearEnd:
		if err := t.tracks.IncrementListen(userID, track.TrackID); err != nil {
			t.logger.Warn().Err(err).Str("user_id", userID).Str("title", track.Title).Msg("failed to credit listen")
			return
		}

		state.awaitingChange = true
		state.creditedTitle = playback.Item.Name

		t.logger.Info().Str("user_id", userID).Str("title", track.Title).Msg("listen credited")

	case track == nil && enoughElapsed:
		if _, err := t.tracks.CreateWithListen(playback.Item.Name, playback.Item.ID, userID); err != nil {
			t.logger.Warn().Err(err).Str("user_id", userID).Str("title", playback.Item.Name).Msg("failed to record track")
			return
		}

		t.logger.Debug().Str("user_id", userID).Str("title", playback.Item.Name).Msg("track recorded")
	}
}

func (t *Tracker) deregister(userID string) {
	t.mu.Lock()
	delete(t.sessions, userID)
	t.mu.Unlock()
}

func isAuthFatal(err error) bool {
	if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrAuthRefreshFailed) {
		return true
	}

	var statusErr *spotify.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == 401
}
