// Spotify Web API response types, trimmed to the fields the tracker and the
// playlist engine evaluate. Based on
// https://developer.spotify.com/documentation/web-api/reference/
package spotify

import "fmt"

// Playback is the typed snapshot of GET /me/player. A nil Playback means
// nothing is playing (Spotify answers 204 in that case).
type Playback struct {
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *PlaybackItem `json:"item"`
}

type PlaybackItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMS int    `json:"duration_ms"`
}

type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type SimplePlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type PlaylistPage struct {
	Items  []SimplePlaylist `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type RecentlyPlayedItem struct {
	PlayedAt string       `json:"played_at"`
	Track    PlaybackItem `json:"track"`
}

type RecentlyPlayedPage struct {
	Items []RecentlyPlayedItem `json:"items"`
}

type playlistDetail struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Items []struct {
			Track struct {
				Name string `json:"name"`
			} `json:"track"`
		} `json:"items"`
	} `json:"tracks"`
}

// TokenGrant is the token endpoint response. Spotify usually omits
// refresh_token on refresh grants and reuses the old one.
type TokenGrant struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// StatusError carries a non-2xx upstream status and body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) ClientError() bool {
	return e.Code >= 400 && e.Code < 500
}
