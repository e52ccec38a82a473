package models

// SpotifyToken is the credential triple handed out by the token manager.
type SpotifyToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

type ListenedTrackResponse struct {
	Title     string `json:"title"`
	SpotifyID string `json:"spotify_id"`
	Count     int    `json:"count"`
}
