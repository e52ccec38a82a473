package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mvjkel1/spotify-fav/models"
	"github.com/mvjkel1/spotify-fav/spotify"
)

func TestHTTPError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"Unauthorized", models.ErrUnauthorized, http.StatusUnauthorized},
		{"Refresh Failed", models.ErrAuthRefreshFailed, http.StatusUnauthorized},
		{"Wrapped Refresh Failed", fmt.Errorf("%w: invalid_grant", models.ErrAuthRefreshFailed), http.StatusUnauthorized},
		{"Conflict", models.ErrConflict, http.StatusConflict},
		{"No New Tracks", models.ErrNoNewTracks, http.StatusUnprocessableEntity},
		{"Not Found", models.ErrNotFound, http.StatusNotFound},
		{"Upstream Unavailable", models.ErrUpstreamUnavailable, http.StatusBadGateway},
		{"Upstream Status Passthrough", &spotify.StatusError{Code: http.StatusTooManyRequests, Body: "rate limited"}, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := httpError(tc.err)

			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected an echo HTTP error, got %v", err)
			}
			if httpErr.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, httpErr.Code)
			}
		})
	}

	t.Run("Unknown Errors Pass Through", func(t *testing.T) {
		cause := errors.New("boom")
		if got := httpError(cause); got != cause {
			t.Errorf("expected the original error back, got %v", got)
		}
	})
}
