package spotify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mvjkel1/spotify-fav/models"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	defaultTimeout = 10 * time.Second
)

// Client talks to the Spotify Web API with a caller-provided access token.
// Requests carry their own timeout so a hung upstream call cannot delay a
// polling loop shutdown past one tick.
type Client struct {
	apiURL       string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

type Config struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	// RequestsPerSecond caps the aggregate upstream call rate across all
	// polling loops. Zero disables the limiter.
	RequestsPerSecond float64
}

func NewClient(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		apiURL:       strings.TrimRight(cfg.APIURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      limiter,
	}
}

func (c *Client) do(ctx context.Context, method, endpoint, accessToken string, body, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	return nil
}

// PlaybackState fetches GET /me/player. Returns (nil, nil) when nothing is
// playing. A playing snapshot without an item is reported as a single typed
// decode failure instead of scattered field errors.
func (c *Client) PlaybackState(ctx context.Context, accessToken string) (*Playback, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/me/player", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var playback Playback
	if err := json.NewDecoder(resp.Body).Decode(&playback); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	if playback.IsPlaying && playback.Item == nil {
		return nil, fmt.Errorf("%w: playing snapshot without item", models.ErrMalformedResponse)
	}

	return &playback, nil
}

// CurrentlyPlaying fetches GET /me/player/currently-playing.
func (c *Client) CurrentlyPlaying(ctx context.Context, accessToken string) (*Playback, error) {
	var playback Playback
	if err := c.do(ctx, http.MethodGet, "/me/player/currently-playing", accessToken, nil, &playback); err != nil {
		return nil, err
	}
	return &playback, nil
}

func (c *Client) RecentlyPlayed(ctx context.Context, accessToken string, limit int) (*RecentlyPlayedPage, error) {
	if limit <= 0 {
		limit = 1
	}

	var page RecentlyPlayedPage
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

func (c *Client) Me(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/me", accessToken, nil, &profile); err != nil {
		return nil, err
	}

	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile without id", models.ErrMalformedResponse)
	}

	return &profile, nil
}

func (c *Client) Playlists(ctx context.Context, accessToken, spotifyUID string, offset, limit int) (*PlaylistPage, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	var page PlaylistPage
	endpoint := fmt.Sprintf("/users/%s/playlists?offset=%d&limit=%d", url.PathEscape(spotifyUID), offset, limit)
	if err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil, &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// AllPlaylists pages through the user's playlists in batches of 50 until an
// empty page comes back.
func (c *Client) AllPlaylists(ctx context.Context, accessToken, spotifyUID string) ([]SimplePlaylist, error) {
	var playlists []SimplePlaylist
	offset, limit := 0, 50

	for {
		page, err := c.Playlists(ctx, accessToken, spotifyUID, offset, limit)
		if err != nil {
			return nil, err
		}

		if len(page.Items) == 0 {
			return playlists, nil
		}

		playlists = append(playlists, page.Items...)
		offset += limit
	}
}

// PlaylistTracks fetches a playlist and returns the set of its track titles.
func (c *Client) PlaylistTracks(ctx context.Context, accessToken, spotifyPlaylistID string) ([]string, error) {
	var detail playlistDetail
	endpoint := "/playlists/" + url.PathEscape(spotifyPlaylistID)
	if err := c.do(ctx, http.MethodGet, endpoint, accessToken, nil, &detail); err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(detail.Tracks.Items))
	for _, item := range detail.Tracks.Items {
		titles = append(titles, item.Track.Name)
	}

	return titles, nil
}

func (c *Client) CreatePlaylist(ctx context.Context, accessToken, spotifyUID, name string) (string, error) {
	payload := map[string]string{"name": name}

	var created struct {
		ID string `json:"id"`
	}

	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(spotifyUID))
	if err := c.do(ctx, http.MethodPost, endpoint, accessToken, payload, &created); err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", fmt.Errorf("%w: created playlist without id", models.ErrMalformedResponse)
	}

	return created.ID, nil
}

func (c *Client) AddTracks(ctx context.Context, accessToken, spotifyPlaylistID string, spotifyTrackIDs []string) error {
	uris := make([]string, 0, len(spotifyTrackIDs))
	for _, id := range spotifyTrackIDs {
		uris = append(uris, "spotify:track:"+id)
	}

	payload := map[string][]string{"uris": uris}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(spotifyPlaylistID))

	return c.do(ctx, http.MethodPost, endpoint, accessToken, payload, nil)
}

// Refresh exchanges a refresh token for a new access token at the accounts
// token endpoint. Spotify may rotate the refresh token; callers must persist
// the returned one.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}

	authHeader := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+authHeader)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	var grant TokenGrant
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}

	if grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh grant without access token", models.ErrMalformedResponse)
	}

	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}
	if grant.ExpiresIn == 0 {
		grant.ExpiresIn = 3600
	}

	return &grant, nil
}
