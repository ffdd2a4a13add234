package apimiddleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/materials-commons/mcupload/pkg/chunked"
	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
)

const DefaultKeyname = "apikey"

type GetUserByAPIKeyFN func(string) (*mcmodel.User, error)

// APIKeyConfig configures APIKeyAuth. When RequireIdentity is false a
// request without a key goes through with no user set, a key that doesn't
// match a user is always rejected.
type APIKeyConfig struct {
	Skipper         middleware.Skipper
	Keyname         string
	GetUserByAPIKey GetUserByAPIKeyFN
	RequireIdentity bool
}

// APIKeyAuth looks up the user for the API key in the request header or
// query param and stores it in the context as "user".
func APIKeyAuth(config APIKeyConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}

	if config.Keyname == "" {
		config.Keyname = DefaultKeyname
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			value := getAPIKeyFromRequest(config.Keyname, c)
			if value == "" {
				if config.RequireIdentity {
					return c.JSON(http.StatusForbidden, chunked.ErrNotAuthenticated().Fields())
				}

				return next(c)
			}

			user, err := config.GetUserByAPIKey(value)
			switch {
			case err != nil:
				return c.JSON(http.StatusForbidden, map[string]interface{}{"detail": "Invalid API key"})
			case user == nil:
				return c.JSON(http.StatusForbidden, map[string]interface{}{"detail": "Invalid API key"})
			default:
				c.Set("user", user)
				return next(c)
			}
		}
	}
}

func getAPIKeyFromRequest(key string, c echo.Context) string {
	if value := c.Request().Header.Get(key); value != "" {
		return value
	}

	return c.QueryParam(key)
}
