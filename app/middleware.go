package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mvjkel1/spotify-fav/models"
)

func (app *Application) createSessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := app.CookieStore.Get(c.Request(), "session")
		if err != nil {
			c.Logger().Error(err)
			return err
		}

		c.Set("session", session)

		return next(c)
	}
}

func (app *Application) IfNotLogined(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !app.alreadyLoggedIn(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, models.ErrUnauthorized.Error())
		}
		return next(c)
	}
}
