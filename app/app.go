package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/sessions"
	"github.com/mvjkel1/spotify-fav/playlist"
	"github.com/mvjkel1/spotify-fav/spotify"
	"github.com/mvjkel1/spotify-fav/store"
	"github.com/mvjkel1/spotify-fav/token"
	"github.com/mvjkel1/spotify-fav/tracker"
	"github.com/rs/zerolog"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
)

type Application struct {
	CookieStore *sessions.CookieStore

	SpotifyRedirectPath string
	Authenticator       *spotifyauth.Authenticator

	Logger zerolog.Logger

	UserStore     store.UserStore
	TokenStore    store.TokenStore
	TrackStore    store.TrackStore
	PlaylistStore store.PlaylistStore

	Spotify      *spotify.Client
	TokenManager *token.Manager
	Tracker      *tracker.Tracker
	Engine       *playlist.Engine
	TrackCache   *playlist.TrackCache
}

func NewApplication() (*Application, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db := createSQLDB()
	rc := createRedisClient()

	userStore := store.NewUserStore(db)
	tokenStore := store.NewTokenStore(db)
	trackStore := store.NewTrackStore(db)
	playlistStore := store.NewPlaylistStore(db)

	for name, createTable := range map[string]func() error{
		"users":     userStore.CreateTable,
		"tokens":    tokenStore.CreateTable,
		"tracks":    trackStore.CreateTable,
		"playlists": playlistStore.CreateTable,
	} {
		if err := createTable(); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", name, err)
		}
	}

	client := spotify.NewClient(spotify.Config{
		APIURL:            os.Getenv("SPOTIFY_API_URL"),
		TokenURL:          os.Getenv("SPOTIFY_TOKEN_URL"),
		ClientID:          os.Getenv("CLIENT_ID"),
		ClientSecret:      os.Getenv("CLIENT_SECRET"),
		RequestsPerSecond: envFloat("SPOTIFY_RPS", 10),
	})

	manager := token.NewManager(tokenStore, client, logger)

	pollInterval := time.Duration(envFloat("POLL_INTERVAL_SECONDS", 1) * float64(time.Second))
	trk := tracker.New(client, manager, userStore, trackStore, pollInterval, logger)

	cacheTTL := time.Duration(envFloat("PLAYLIST_CACHE_TTL_SECONDS", 3600) * float64(time.Second))
	cache := playlist.NewTrackCache(rc, "playlist", cacheTTL)

	engine := playlist.NewEngine(client, manager, trackStore, playlistStore, cache, logger)

	redirectPath := os.Getenv("REDIRECT_PATH")

	return &Application{
		CookieStore: sessions.NewCookieStore([]byte(os.Getenv("SECRET"))),

		SpotifyRedirectPath: redirectPath,
		Authenticator: spotifyauth.New(
			spotifyauth.WithRedirectURL(fmt.Sprintf("http://%s%s", os.Getenv("ADDR"), redirectPath)),
			spotifyauth.WithScopes(
				spotifyauth.ScopeUserReadPlaybackState,
				spotifyauth.ScopeUserReadCurrentlyPlaying,
				spotifyauth.ScopeUserReadRecentlyPlayed,
				spotifyauth.ScopePlaylistReadPrivate,
				spotifyauth.ScopePlaylistModifyPublic,
				spotifyauth.ScopePlaylistModifyPrivate,
			),
			spotifyauth.WithClientID(os.Getenv("CLIENT_ID")),
			spotifyauth.WithClientSecret(os.Getenv("CLIENT_SECRET")),
		),

		Logger: logger,

		UserStore:     userStore,
		TokenStore:    tokenStore,
		TrackStore:    trackStore,
		PlaylistStore: playlistStore,

		Spotify:      client,
		TokenManager: manager,
		Tracker:      trk,
		Engine:       engine,
		TrackCache:   cache,
	}, nil
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}

	return value
}
