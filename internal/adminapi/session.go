package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/webserver"
)

type sessionPayload struct {
	AccessToken string `json:"access_token" validate:"required"`
}

// registerSessionRoutes registers cookie session login and logout
func registerSessionRoutes() {
	webserver.ApiPOST("/session", createSession)
	webserver.ApiGET("/session", getSession)
	webserver.ApiDELETE("/session", deleteSession)
}

// createSession verifies an access token issued by the auth service and keeps
// it in the session cookie so page routes can see the identity.
func createSession(c echo.Context) error {
	var payload sessionPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse session parameters", nil)
	}
	payload.AccessToken = strings.TrimSpace(payload.AccessToken)
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Access token is required", err.Error())
	}

	id, err := GetAppContext(c).Verifier().Verify(payload.AccessToken)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "Access token rejected", err.Error())
	}
	if err := webserver.SaveSessionToken(c, payload.AccessToken); err != nil {
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Failed to save session", err.Error())
	}
	c.Set(webserver.IdentityKey, id)
	return ok(c, map[string]interface{}{
		"user":     id,
		"is_admin": isAdmin(c),
	})
}

func getSession(c echo.Context) error {
	id := webserver.IdentityOf(c)
	if id == nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "No active session", nil)
	}
	return ok(c, map[string]interface{}{
		"user":     id,
		"is_admin": isAdmin(c),
	})
}

func deleteSession(c echo.Context) error {
	if err := webserver.ClearSession(c); err != nil {
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Failed to clear session", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
