package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mvjkel1/spotify-fav/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrackStore interface {
	CreateTable() error
	GetByTitle(title string) (*models.TrackDBModel, error)
	// CreateWithListen records a freshly observed track together with a
	// zero-count listen row for the observing user. Creation alone never
	// counts as a listen.
	CreateWithListen(title, spotifyID, userID string) (*models.TrackDBModel, error)
	// IncrementListen credits exactly one play-through of the track to the
	// user, creating the listen row at count 1 when it does not exist yet.
	IncrementListen(userID, trackID string) error
	GetListened(userID string) ([]models.TrackDBModel, error)
	GetListenCount(userID, trackID string) (int, error)
	IsExists(whereQuery string, whereArgs ...interface{}) (bool, error)
	DB() *gorm.DB
}

type trackStore struct {
	db *gorm.DB
}

func NewTrackStore(db *gorm.DB) TrackStore {
	return &trackStore{
		db: db,
	}
}

func (ts *trackStore) table() string {
	return "tracks"
}

func (ts *trackStore) listensTable() string {
	return "listens"
}

func (ts *trackStore) DB() *gorm.DB {
	return ts.db
}

func (ts *trackStore) CreateTable() error {
	if err := ts.db.Table(ts.table()).AutoMigrate(models.TrackDBModel{}); err != nil {
		return err
	}
	return ts.db.Table(ts.listensTable()).AutoMigrate(models.ListenDBModel{})
}

func (ts *trackStore) GetByTitle(title string) (*models.TrackDBModel, error) {
	var track models.TrackDBModel
	if err := ts.db.Table(ts.table()).Where("title = ?", title).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	return &track, nil
}

func (ts *trackStore) CreateWithListen(title, spotifyID, userID string) (*models.TrackDBModel, error) {
	track := models.TrackDBModel{
		TrackID:   uuid.NewString(),
		SpotifyID: spotifyID,
		Title:     title,
		AddedAt:   time.Now().UTC(),
	}

	err := ts.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(ts.table()).Create(&track).Error; err != nil {
			return err
		}

		listen := models.ListenDBModel{
			UserID:  userID,
			TrackID: track.TrackID,
			Count:   0,
		}
		return tx.Table(ts.listensTable()).Clauses(clause.OnConflict{DoNothing: true}).Create(&listen).Error
	})
	if err != nil {
		return nil, err
	}

	return &track, nil
}

func (ts *trackStore) IncrementListen(userID, trackID string) error {
	listen := models.ListenDBModel{
		UserID:  userID,
		TrackID: trackID,
		Count:   1,
	}

	return ts.db.Table(ts.listensTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "track_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("listens.count + 1")}),
	}).Create(&listen).Error
}

func (ts *trackStore) GetListened(userID string) ([]models.TrackDBModel, error) {
	var tracks []models.TrackDBModel

	err := ts.db.Table(ts.table()).
		Joins("JOIN listens ON listens.track_id = tracks.track_id").
		Where("listens.user_id = ? AND listens.count > 0", userID).
		Find(&tracks).Error
	if err != nil {
		return nil, err
	}

	return tracks, nil
}

func (ts *trackStore) GetListenCount(userID, trackID string) (int, error) {
	var listen models.ListenDBModel
	if err := ts.db.Table(ts.listensTable()).Where("user_id = ? AND track_id = ?", userID, trackID).First(&listen).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return listen.Count, nil
}

func (ts *trackStore) IsExists(whereQuery string, whereArgs ...interface{}) (bool, error) {
	type Res struct {
		IsExists bool
	}

	var res Res

	if err := ts.db.Table(ts.table()).Select("1 = 1 AS is_exists").Where(whereQuery, whereArgs...).Find(&res).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, err
	}

	return res.IsExists, nil
}
