// Package playlist reconciles local playlist records against Spotify and
// builds new playlists from tracks the user has listened to but not yet
// collected anywhere.
package playlist

import (
	"context"
	"strings"

	"github.com/mvjkel1/spotify-fav/models"
	"github.com/mvjkel1/spotify-fav/spotify"
	"github.com/rs/zerolog"
)

const (
	// Marker tags application-owned playlists on Spotify so sync only ever
	// reconciles playlists this service created.
	Marker = "spotify_fav"

	// MaxPlaylistTracks caps a single creation batch.
	MaxPlaylistTracks = 100
)

type Gateway interface {
	Me(ctx context.Context, accessToken string) (*spotify.Profile, error)
	AllPlaylists(ctx context.Context, accessToken, spotifyUID string) ([]spotify.SimplePlaylist, error)
	PlaylistTracks(ctx context.Context, accessToken, spotifyPlaylistID string) ([]string, error)
	CreatePlaylist(ctx context.Context, accessToken, spotifyUID, name string) (string, error)
	AddTracks(ctx context.Context, accessToken, spotifyPlaylistID string, spotifyTrackIDs []string) error
}

type TokenSource interface {
	Authorization(ctx context.Context, userID string) (string, error)
}

type TrackStore interface {
	GetListened(userID string) ([]models.TrackDBModel, error)
}

type PlaylistStore interface {
	CreateWithTracks(playlist models.PlaylistDBModel, trackIDs []string) error
	ListSpotifyIDs(userID string) ([]string, error)
	DeleteBySpotifyIDs(userID string, spotifyIDs []string) error
}

type TrackLister interface {
	Tracks(ctx context.Context, playlistID, userID string, fetch FetchFunc) (map[string]struct{}, error)
}

type Engine struct {
	gateway   Gateway
	tokens    TokenSource
	tracks    TrackStore
	playlists PlaylistStore
	cache     TrackLister
	logger    zerolog.Logger

	// MatchKey decides which key a track is deduplicated on across existing
	// playlists. Title matching mirrors the upstream cache contents; swapping
	// in an id-based key is a matter of replacing this function.
	MatchKey func(track models.TrackDBModel) string
}

func NewEngine(gateway Gateway, tokens TokenSource, tracks TrackStore, playlists PlaylistStore, cache TrackLister, logger zerolog.Logger) *Engine {
	return &Engine{
		gateway:   gateway,
		tokens:    tokens,
		tracks:    tracks,
		playlists: playlists,
		cache:     cache,
		logger:    logger.With().Str("component", "playlist_engine").Logger(),
		MatchKey: func(track models.TrackDBModel) string {
			return track.Title
		},
	}
}

// Sync removes local playlist rows whose Spotify counterpart is gone. Only
// playlists carrying the application marker in their name count as present,
// so playlists the user deleted directly on Spotify fall out of the local set.
func (e *Engine) Sync(ctx context.Context, userID string) error {
	accessToken, err := e.tokens.Authorization(ctx, userID)
	if err != nil {
		return err
	}

	profile, err := e.gateway.Me(ctx, accessToken)
	if err != nil {
		return err
	}

	upstream, err := e.gateway.AllPlaylists(ctx, accessToken, profile.ID)
	if err != nil {
		return err
	}

	upstreamIDs := make(map[string]struct{}, len(upstream))
	for _, p := range upstream {
		if strings.Contains(p.Name, Marker) {
			upstreamIDs[p.ID] = struct{}{}
		}
	}

	localIDs, err := e.playlists.ListSpotifyIDs(userID)
	if err != nil {
		return err
	}

	var toRemove []string
	for _, id := range localIDs {
		if _, ok := upstreamIDs[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}

	if len(toRemove) == 0 {
		return nil
	}

	e.logger.Info().Str("user_id", userID).Int("count", len(toRemove)).Msg("removing playlists deleted upstream")

	return e.playlists.DeleteBySpotifyIDs(userID, toRemove)
}

// Create builds a playlist from listened tracks that are not yet present in
// any of the user's existing Spotify playlists. Fails with ErrNoNewTracks
// when the dedup leaves nothing to add; never creates an empty playlist.
func (e *Engine) Create(ctx context.Context, name, userID string) (*models.PlaylistDBModel, error) {
	if err := e.Sync(ctx, userID); err != nil {
		return nil, err
	}

	accessToken, err := e.tokens.Authorization(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := e.gateway.Me(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	existing, err := e.gateway.AllPlaylists(ctx, accessToken, profile.ID)
	if err != nil {
		return nil, err
	}

	dedup, err := e.dedupSet(ctx, accessToken, userID, existing)
	if err != nil {
		return nil, err
	}

	listened, err := e.tracks.GetListened(userID)
	if err != nil {
		return nil, err
	}

	var selected []models.TrackDBModel
	for _, track := range listened {
		if _, ok := dedup[e.MatchKey(track)]; !ok {
			selected = append(selected, track)
		}
	}

	if len(selected) == 0 {
		return nil, models.ErrNoNewTracks
	}

	if len(selected) > MaxPlaylistTracks {
		selected = selected[:MaxPlaylistTracks]
	}

	fullName := name + "_" + Marker

	spotifyID, err := e.gateway.CreatePlaylist(ctx, accessToken, profile.ID, fullName)
	if err != nil {
		return nil, err
	}

	record := models.PlaylistDBModel{
		SpotifyID:    spotifyID,
		PlaylistName: fullName,
		UserID:       userID,
	}

	trackIDs := make([]string, 0, len(selected))
	spotifyTrackIDs := make([]string, 0, len(selected))
	for _, track := range selected {
		trackIDs = append(trackIDs, track.TrackID)
		spotifyTrackIDs = append(spotifyTrackIDs, track.SpotifyID)
	}

	if err := e.playlists.CreateWithTracks(record, trackIDs); err != nil {
		return nil, err
	}

	if err := e.gateway.AddTracks(ctx, accessToken, spotifyID, spotifyTrackIDs); err != nil {
		return nil, err
	}

	e.logger.Info().Str("user_id", userID).Str("playlist", fullName).Int("tracks", len(selected)).Msg("playlist created")

	return &record, nil
}

// dedupSet unions the cached track titles of every listed playlist. A stale
// hit here can only cause a redundant re-add upstream, which Spotify treats
// as idempotent, so the TTL staleness window is safe.
func (e *Engine) dedupSet(ctx context.Context, accessToken, userID string, playlists []spotify.SimplePlaylist) (map[string]struct{}, error) {
	dedup := make(map[string]struct{})

	for _, p := range playlists {
		playlistID := p.ID

		titles, err := e.cache.Tracks(ctx, playlistID, userID, func(ctx context.Context) ([]string, error) {
			return e.gateway.PlaylistTracks(ctx, accessToken, playlistID)
		})
		if err != nil {
			return nil, err
		}

		for title := range titles {
			dedup[title] = struct{}{}
		}
	}

	return dedup, nil
}
