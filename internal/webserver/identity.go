package webserver

import (
	"net/http"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/gate"
)

// sessionIdentity falls back to the access token kept in the cookie session
// when no bearer token was sent, and attaches the identity to the request context.
func sessionIdentity(appCtx app.AppContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityOf(c)
			if id == nil {
				if token := SessionToken(c); token != "" {
					if verified, err := appCtx.Verifier().Verify(token); err == nil {
						id = verified
						c.Set(IdentityKey, id)
					}
				}
			}
			if id != nil {
				req := c.Request()
				c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), id)))
			}
			return next(c)
		}
	}
}

// IdentityOf returns the signed-in identity of the request, nil for anonymous requests.
func IdentityOf(c echo.Context) *auth.Identity {
	id, _ := c.Get(IdentityKey).(*auth.Identity)
	return id
}

func SessionToken(c echo.Context) string {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return ""
	}
	token, _ := sess.Values[sessionTokenKey].(string)
	return token
}

// SaveSessionToken keeps the access token in the cookie session.
func SaveSessionToken(c echo.Context, token string) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionTokenKey] = token
	return sess.Save(c.Request(), c.Response())
}

func ClearSession(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, sessionTokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// RequireAdmin rejects API requests whose identity is not an admin user:
// 401 when nobody is signed in, 403 for a signed-in non-admin.
func RequireAdmin(g *gate.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityOf(c)
			d := g.Authorize(c.Request().Context(), gate.Session{Identity: id})
			if d.Outcome == gate.Allowed {
				return next(c)
			}
			if id == nil || id.ID == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"code":    "UNAUTHORIZED",
					"message": d.Reason,
				})
			}
			return c.JSON(http.StatusForbidden, map[string]string{
				"code":    "FORBIDDEN",
				"message": d.Reason,
			})
		}
	}
}
