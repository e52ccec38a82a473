package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mvjkel1/spotify-fav/models"
	"gorm.io/gorm"
)

type PlaylistStore interface {
	CreateTable() error
	// CreateWithTracks persists a playlist row plus its track associations in
	// one transaction, after the upstream playlist creation has succeeded.
	CreateWithTracks(playlist models.PlaylistDBModel, trackIDs []string) error
	GetOne(whereQuery string, whereArgs ...interface{}) (*models.PlaylistDBModel, error)
	ListSpotifyIDs(userID string) ([]string, error)
	DeleteBySpotifyIDs(userID string, spotifyIDs []string) error
	IsExists(whereQuery string, whereArgs ...interface{}) (bool, error)
	DB() *gorm.DB
}

type playlistStore struct {
	db *gorm.DB
}

func NewPlaylistStore(db *gorm.DB) PlaylistStore {
	return &playlistStore{
		db: db,
	}
}

func (ps *playlistStore) table() string {
	return "playlists"
}

func (ps *playlistStore) joinTable() string {
	return "playlist_tracks"
}

func (ps *playlistStore) DB() *gorm.DB {
	return ps.db
}

func (ps *playlistStore) CreateTable() error {
	if err := ps.db.Table(ps.table()).AutoMigrate(models.PlaylistDBModel{}); err != nil {
		return err
	}
	return ps.db.Table(ps.joinTable()).AutoMigrate(models.PlaylistTrackDBModel{})
}

func (ps *playlistStore) CreateWithTracks(playlist models.PlaylistDBModel, trackIDs []string) error {
	if playlist.PlaylistID == "" {
		playlist.PlaylistID = uuid.NewString()
	}
	if playlist.CreatedAt.IsZero() {
		playlist.CreatedAt = time.Now().UTC()
	}

	return ps.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(ps.table()).Create(&playlist).Error; err != nil {
			return err
		}

		if len(trackIDs) == 0 {
			return nil
		}

		assocs := make([]models.PlaylistTrackDBModel, 0, len(trackIDs))
		for _, trackID := range trackIDs {
			assocs = append(assocs, models.PlaylistTrackDBModel{
				PlaylistID: playlist.PlaylistID,
				TrackID:    trackID,
			})
		}

		return tx.Table(ps.joinTable()).CreateInBatches(assocs, len(assocs)).Error
	})
}

func (ps *playlistStore) GetOne(whereQuery string, whereArgs ...interface{}) (*models.PlaylistDBModel, error) {
	var playlist models.PlaylistDBModel
	if err := ps.db.Table(ps.table()).Where(whereQuery, whereArgs...).First(&playlist).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	return &playlist, nil
}

func (ps *playlistStore) ListSpotifyIDs(userID string) ([]string, error) {
	var ids []string

	if err := ps.db.Table(ps.table()).Where("user_id = ?", userID).Pluck("spotify_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

// DeleteBySpotifyIDs drops the local rows for playlists the user deleted
// directly on Spotify, together with their track associations.
func (ps *playlistStore) DeleteBySpotifyIDs(userID string, spotifyIDs []string) error {
	if len(spotifyIDs) == 0 {
		return nil
	}

	return ps.db.Transaction(func(tx *gorm.DB) error {
		var playlistIDs []string
		if err := tx.Table(ps.table()).
			Where("user_id = ? AND spotify_id IN ?", userID, spotifyIDs).
			Pluck("playlist_id", &playlistIDs).Error; err != nil {
			return err
		}

		if len(playlistIDs) == 0 {
			return nil
		}

		if err := tx.Table(ps.joinTable()).Where("playlist_id IN ?", playlistIDs).Delete(nil).Error; err != nil {
			return err
		}

		return tx.Table(ps.table()).Where("playlist_id IN ?", playlistIDs).Delete(nil).Error
	})
}

func (ps *playlistStore) IsExists(whereQuery string, whereArgs ...interface{}) (bool, error) {
	type Res struct {
		IsExists bool
	}

	var res Res

	if err := ps.db.Table(ps.table()).Select("1 = 1 AS is_exists").Where(whereQuery, whereArgs...).Find(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, err
	}

	return res.IsExists, nil
}
