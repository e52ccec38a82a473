package models

import "time"

type UserDBModel struct {
	UserID     string `gorm:"column:user_id;primaryKey"`
	Username   string `gorm:"column:username"`
	SpotifyUID string `gorm:"column:spotify_uid"`
	IsPolling  bool   `gorm:"column:is_polling"`
}

type SpotifyTokenDBModel struct {
	UserID       string    `gorm:"column:user_id;primaryKey"`
	AccessToken  string    `gorm:"column:access_token"`
	RefreshToken string    `gorm:"column:refresh_token"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
}

func (t SpotifyTokenDBModel) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TrackDBModel struct {
	TrackID   string    `gorm:"column:track_id;primaryKey"`
	SpotifyID string    `gorm:"column:spotify_id"`
	Title     string    `gorm:"column:title"`
	AddedAt   time.Time `gorm:"column:added_at"`
}

// ListenDBModel is the per-user listen counter for a track. Count only ever
// moves up, by exactly one per completed play-through.
type ListenDBModel struct {
	UserID  string `gorm:"column:user_id;primaryKey"`
	TrackID string `gorm:"column:track_id;primaryKey"`
	Count   int    `gorm:"column:count"`
}

type PlaylistDBModel struct {
	PlaylistID   string    `gorm:"column:playlist_id;primaryKey"`
	SpotifyID    string    `gorm:"column:spotify_id"`
	PlaylistName string    `gorm:"column:playlist_name"`
	UserID       string    `gorm:"column:user_id"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

type PlaylistTrackDBModel struct {
	PlaylistID string `gorm:"column:playlist_id;primaryKey"`
	TrackID    string `gorm:"column:track_id;primaryKey"`
}
