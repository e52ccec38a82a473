package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mvjkel1/spotify-fav/models"
	"github.com/mvjkel1/spotify-fav/spotify"
)

func (app *Application) Router() *echo.Echo {
	e := echo.New()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(app.createSessionMiddleware)

	e.GET("/spotify-auth", app.HandleSpotifyAuth)
	e.GET(app.SpotifyRedirectPath, app.HandleSpotifyRedirect)

	tracks := e.Group("/tracks", app.IfNotLogined)
	tracks.GET("/current-track", app.HandleCurrentTrack)
	tracks.GET("/playback-state", app.HandlePlaybackState)
	tracks.GET("/recently-played", app.HandleRecentlyPlayed)
	tracks.GET("/listened", app.HandleListenedTracks)
	tracks.POST("/poll", app.HandleStartPolling)
	tracks.POST("/stop-polling", app.HandleStopPolling)

	e.GET("/playlists", app.HandleGetPlaylists, app.IfNotLogined)
	e.POST("/playlists", app.HandleCreatePlaylist, app.IfNotLogined)

	return e
}

func (app *Application) HandleSpotifyAuth(c echo.Context) error {
	action := c.QueryParam("action")
	if action != "signup" && action != "login" {
		return echo.NewHTTPError(http.StatusBadRequest, models.ErrInvalidAction)
	}

	state := uuid.NewString()

	if err := setSession(c, map[string]any{"action": action, "state": state}); err != nil {
		c.Logger().Error(err)
		return err
	}

	return c.Redirect(http.StatusSeeOther, app.Authenticator.AuthURL(state))
}

func (app *Application) HandleSpotifyRedirect(c echo.Context) error {
	defer func() {
		deleteFromSession(c, []string{"action", "state"})
	}()

	ctx := c.Request().Context()

	action, err := getFromSession(c, "action")
	if err != nil {
		c.Logger().Error(err)
		return err
	}

	if action != "signup" && action != "login" {
		return echo.NewHTTPError(http.StatusBadRequest, models.ErrInvalidAction)
	}

	state, err := getFromSession(c, "state")
	if err != nil {
		c.Logger().Error(err)
		return err
	}

	if c.FormValue("state") != state {
		return echo.NewHTTPError(http.StatusNotFound, models.ErrStateMismatch)
	}

	oauthToken, err := app.Authenticator.Token(ctx, state, c.Request())
	if err != nil {
		c.Logger().Error(err)
		return err
	}

	profile, err := app.Spotify.Me(ctx, oauthToken.AccessToken)
	if err != nil {
		c.Logger().Error(err)
		return httpError(err)
	}

	var user *models.UserDBModel

	switch action {
	case "signup":
		exists, err := app.UserStore.IsExists("spotify_uid = ?", profile.ID)
		if err != nil {
			c.Logger().Error(err)
			return err
		}

		if exists {
			return echo.NewHTTPError(http.StatusBadRequest, models.ErrUserAlreadyExists)
		}

		user = &models.UserDBModel{
			UserID:     uuid.NewString(),
			Username:   profile.DisplayName,
			SpotifyUID: profile.ID,
		}

		if err := app.UserStore.Create(*user); err != nil {
			c.Logger().Error(err)
			return err
		}

	case "login":
		user, err = app.UserStore.GetOne("spotify_uid = ?", profile.ID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return echo.NewHTTPError(http.StatusBadRequest, models.ErrUserNotExists)
			}
			c.Logger().Error(err)
			return err
		}
	}

	if err := app.TokenManager.Save(user.UserID, oauthToken.AccessToken, oauthToken.RefreshToken, oauthToken.Expiry); err != nil {
		c.Logger().Error(err)
		return err
	}

	if err := setSession(c, map[string]any{"user_id": user.UserID, "authenticated": true}); err != nil {
		c.Logger().Error(err)
		return err
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "spotify account linked"})
}

func (app *Application) HandleCurrentTrack(c echo.Context) error {
	ctx := c.Request().Context()

	accessToken, err := app.authorization(c)
	if err != nil {
		return httpError(err)
	}

	playback, err := app.Spotify.CurrentlyPlaying(ctx, accessToken)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, playback)
}

func (app *Application) HandlePlaybackState(c echo.Context) error {
	ctx := c.Request().Context()

	accessToken, err := app.authorization(c)
	if err != nil {
		return httpError(err)
	}

	playback, err := app.Spotify.PlaybackState(ctx, accessToken)
	if err != nil {
		return httpError(err)
	}

	if playback == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, playback)
}

func (app *Application) HandleRecentlyPlayed(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = 1
	}

	accessToken, err := app.authorization(c)
	if err != nil {
		return httpError(err)
	}

	page, err := app.Spotify.RecentlyPlayed(ctx, accessToken, limit)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, page)
}

func (app *Application) HandleListenedTracks(c echo.Context) error {
	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return err
	}

	tracks, err := app.TrackStore.GetListened(userID)
	if err != nil {
		return httpError(err)
	}

	listened := make([]models.ListenedTrackResponse, 0, len(tracks))
	for _, track := range tracks {
		count, err := app.TrackStore.GetListenCount(userID, track.TrackID)
		if err != nil {
			return httpError(err)
		}

		listened = append(listened, models.ListenedTrackResponse{
			Title:     track.Title,
			SpotifyID: track.SpotifyID,
			Count:     count,
		})
	}

	return c.JSON(http.StatusOK, listened)
}

func (app *Application) HandleStartPolling(c echo.Context) error {
	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return err
	}

	if err := app.Tracker.Start(userID); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "playback state polling started in the background"})
}

func (app *Application) HandleStopPolling(c echo.Context) error {
	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return err
	}

	if err := app.Tracker.Stop(userID); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, models.MessageResponse{Message: "playback state polling stopped"})
}

func (app *Application) HandleGetPlaylists(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return err
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil {
		limit = 20
	}

	user, err := app.UserStore.GetOne("user_id = ?", userID)
	if err != nil {
		return httpError(err)
	}

	accessToken, err := app.authorization(c)
	if err != nil {
		return httpError(err)
	}

	page, err := app.Spotify.Playlists(ctx, accessToken, user.SpotifyUID, offset, limit)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, page)
}

func (app *Application) HandleCreatePlaylist(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return err
	}

	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, models.ErrInvalidRequest)
	}

	created, err := app.Engine.Create(ctx, name, userID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, models.MessageResponse{
		Message: "the '" + created.PlaylistName + "' playlist was created successfully",
	})
}

func (app *Application) authorization(c echo.Context) (string, error) {
	userID, err := getFromSession(c, "user_id")
	if err != nil {
		return "", err
	}

	return app.TokenManager.Authorization(c.Request().Context(), userID)
}

// httpError maps the core error taxonomy to client-visible statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrAuthRefreshFailed):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, models.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNoNewTracks):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	var statusErr *spotify.StatusError
	if errors.As(err, &statusErr) {
		return echo.NewHTTPError(statusErr.Code, statusErr.Body)
	}

	return err
}
