package store

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mvjkel1/spotify-fav/models"
)

func TestTokenStoreGet(t *testing.T) {
	db, mock := newMockDB(t)
	ts := NewTokenStore(db)

	expiresAt := time.Now().UTC().Add(time.Hour)

	mock.ExpectQuery(`SELECT \* FROM "spotify_tokens" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "access_token", "refresh_token", "expires_at"}).
			AddRow("u1", "access-1", "refresh-1", expiresAt))

	token, err := ts.Get("u1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if token.AccessToken != "access-1" || token.RefreshToken != "refresh-1" {
		t.Errorf("unexpected token %+v", token)
	}
	if !token.ExpiresAt.Equal(expiresAt) {
		t.Errorf("unexpected expiry %v", token.ExpiresAt)
	}

	expectationsMet(t, mock)
}

func TestTokenStoreGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	ts := NewTokenStore(db)

	mock.ExpectQuery(`SELECT \* FROM "spotify_tokens" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "access_token", "refresh_token", "expires_at"}))

	_, err := ts.Get("missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestTokenStoreUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	ts := NewTokenStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "spotify_tokens" .* ON CONFLICT \("user_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := ts.Upsert(models.SpotifyTokenDBModel{
		UserID:       "u1",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestTokenStoreDelete(t *testing.T) {
	db, mock := newMockDB(t)
	ts := NewTokenStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "spotify_tokens" WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := ts.Delete("u1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expectationsMet(t, mock)
}
