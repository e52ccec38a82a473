package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mvjkel1/spotify-fav/models"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{
		APIURL:       serverURL,
		TokenURL:     serverURL + "/api/token",
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	})
}

func TestPlaybackState(t *testing.T) {
	t.Run("Playing Snapshot", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/me/player" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
				t.Errorf("unexpected auth header %q", got)
			}

			fmt.Fprint(w, `{"is_playing":true,"progress_ms":190001,"item":{"id":"abc","name":"Song X","duration_ms":200000}}`)
		}))
		defer server.Close()

		playback, err := newTestClient(server.URL).PlaybackState(context.Background(), "token-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !playback.IsPlaying {
			t.Error("expected is_playing true")
		}
		if playback.ProgressMS != 190001 {
			t.Errorf("unexpected progress %d", playback.ProgressMS)
		}
		if playback.Item == nil || playback.Item.Name != "Song X" || playback.Item.DurationMS != 200000 {
			t.Errorf("unexpected item %+v", playback.Item)
		}
	})

	t.Run("Nothing Playing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		playback, err := newTestClient(server.URL).PlaybackState(context.Background(), "token-123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if playback != nil {
			t.Errorf("expected nil playback, got %+v", playback)
		}
	})

	t.Run("Playing Without Item", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"is_playing":true,"progress_ms":1000}`)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).PlaybackState(context.Background(), "token-123")
		if !errors.Is(err, models.ErrMalformedResponse) {
			t.Errorf("expected malformed response error, got %v", err)
		}
	})

	t.Run("Unauthorized Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "expired token", http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).PlaybackState(context.Background(), "token-123")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.Code != http.StatusUnauthorized {
			t.Errorf("unexpected status %d", statusErr.Code)
		}
		if !statusErr.ClientError() {
			t.Error("expected a client error")
		}
	})

	t.Run("Unreachable Upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := newTestClient(server.URL).PlaybackState(context.Background(), "token-123")
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			t.Errorf("expected upstream unavailable, got %v", err)
		}
	})
}

func TestAllPlaylistsPagination(t *testing.T) {
	pages := map[int][]SimplePlaylist{
		0:   {{ID: "p1", Name: "first"}, {ID: "p2", Name: "second"}},
		50:  {{ID: "p3", Name: "third"}},
		100: {},
	}

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/users/uid-1/playlists" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		json.NewEncoder(w).Encode(PlaylistPage{Items: pages[offset], Offset: offset})
	}))
	defer server.Close()

	playlists, err := newTestClient(server.URL).AllPlaylists(context.Background(), "token-123", "uid-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(playlists) != 3 {
		t.Fatalf("expected 3 playlists, got %d", len(playlists))
	}
	if requests != 3 {
		t.Errorf("expected 3 page fetches, got %d", requests)
	}
	if playlists[2].ID != "p3" {
		t.Errorf("unexpected ordering: %+v", playlists)
	}
}

func TestPlaylistTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/playlists/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		fmt.Fprint(w, `{"id":"p1","name":"mix","tracks":{"items":[{"track":{"name":"A"}},{"track":{"name":"B"}}]}}`)
	}))
	defer server.Close()

	titles, err := newTestClient(server.URL).PlaylistTracks(context.Background(), "token-123", "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(titles) != 2 || titles[0] != "A" || titles[1] != "B" {
		t.Errorf("unexpected titles %v", titles)
	}
}

func TestCreatePlaylistAndAddTracks(t *testing.T) {
	var createBody, addBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/uid-1/playlists":
			json.NewDecoder(r.Body).Decode(&createBody)
			fmt.Fprint(w, `{"id":"new-playlist"}`)
		case "/playlists/new-playlist/tracks":
			json.NewDecoder(r.Body).Decode(&addBody)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	id, err := client.CreatePlaylist(context.Background(), "token-123", "uid-1", "road trip_spotify_fav")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "new-playlist" {
		t.Errorf("unexpected playlist id %q", id)
	}
	if createBody["name"] != "road trip_spotify_fav" {
		t.Errorf("unexpected create payload %v", createBody)
	}

	if err := client.AddTracks(context.Background(), "token-123", "new-playlist", []string{"t1", "t2"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	uris, ok := addBody["uris"].([]interface{})
	if !ok || len(uris) != 2 {
		t.Fatalf("unexpected add payload %v", addBody)
	}
	if uris[0] != "spotify:track:t1" || uris[1] != "spotify:track:t2" {
		t.Errorf("unexpected uris %v", uris)
	}
}

func TestRefresh(t *testing.T) {
	t.Run("Success Reuses Refresh Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/token" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if r.PostForm.Get("grant_type") != "refresh_token" {
				t.Errorf("unexpected grant type %q", r.PostForm.Get("grant_type"))
			}
			if r.PostForm.Get("refresh_token") != "old-refresh" {
				t.Errorf("unexpected refresh token %q", r.PostForm.Get("refresh_token"))
			}
			if r.Header.Get("Authorization") == "" {
				t.Error("expected basic auth header")
			}

			fmt.Fprint(w, `{"access_token":"fresh-access"}`)
		}))
		defer server.Close()

		grant, err := newTestClient(server.URL).Refresh(context.Background(), "old-refresh")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if grant.AccessToken != "fresh-access" {
			t.Errorf("unexpected access token %q", grant.AccessToken)
		}
		if grant.RefreshToken != "old-refresh" {
			t.Errorf("expected refresh token to be reused, got %q", grant.RefreshToken)
		}
		if grant.ExpiresIn != 3600 {
			t.Errorf("expected default expires_in 3600, got %d", grant.ExpiresIn)
		}
	})

	t.Run("Rotated Refresh Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"access_token":"fresh-access","refresh_token":"rotated","expires_in":1800}`)
		}))
		defer server.Close()

		grant, err := newTestClient(server.URL).Refresh(context.Background(), "old-refresh")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if grant.RefreshToken != "rotated" {
			t.Errorf("expected rotated refresh token, got %q", grant.RefreshToken)
		}
		if grant.ExpiresIn != 1800 {
			t.Errorf("unexpected expires_in %d", grant.ExpiresIn)
		}
	})

	t.Run("Rejected Refresh", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).Refresh(context.Background(), "revoked")

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if !statusErr.ClientError() {
			t.Errorf("expected client error, got status %d", statusErr.Code)
		}
	})

	t.Run("Timed Out Refresh", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		client := NewClient(Config{
			APIURL:   server.URL,
			TokenURL: server.URL + "/api/token",
			Timeout:  10 * time.Millisecond,
		})

		_, err := client.Refresh(context.Background(), "old-refresh")
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			t.Errorf("expected upstream unavailable, got %v", err)
		}
	})
}

func TestMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"uid-1","display_name":"Tester"}`)
	}))
	defer server.Close()

	profile, err := newTestClient(server.URL).Me(context.Background(), "token-123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if profile.ID != "uid-1" || profile.DisplayName != "Tester" {
		t.Errorf("unexpected profile %+v", profile)
	}
}
