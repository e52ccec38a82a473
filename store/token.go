package store

import (
	"errors"

	"github.com/mvjkel1/spotify-fav/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore is the durable credential record, one row per user. The token
// manager is the only writer after the initial authorization save.
type TokenStore interface {
	CreateTable() error
	Get(userID string) (*models.SpotifyTokenDBModel, error)
	Upsert(token models.SpotifyTokenDBModel) error
	Delete(userID string) error
	DB() *gorm.DB
}

type tokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) TokenStore {
	return &tokenStore{
		db: db,
	}
}

func (ts *tokenStore) table() string {
	return "spotify_tokens"
}

func (ts *tokenStore) DB() *gorm.DB {
	return ts.db
}

func (ts *tokenStore) CreateTable() error {
	return ts.db.Table(ts.table()).AutoMigrate(models.SpotifyTokenDBModel{})
}

func (ts *tokenStore) Get(userID string) (*models.SpotifyTokenDBModel, error) {
	var token models.SpotifyTokenDBModel
	if err := ts.db.Table(ts.table()).Where("user_id = ?", userID).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}

	return &token, nil
}

// Upsert is a single atomic read-modify-write keyed by user id, so two
// near-simultaneous refreshers converge on one final row.
func (ts *tokenStore) Upsert(token models.SpotifyTokenDBModel) error {
	return ts.db.Table(ts.table()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at"}),
	}).Create(&token).Error
}

func (ts *tokenStore) Delete(userID string) error {
	return ts.db.Table(ts.table()).Where("user_id = ?", userID).Delete(nil).Error
}
