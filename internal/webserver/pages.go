package webserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/gate"
)

// pageHandler serves storefront pages. Built assets are served as is; every
// other path goes through the gate and gets the app shell, or a JSON route
// descriptor when no bundle is configured.
func (s *WebServer) pageHandler(c echo.Context) error {
	reqPath := c.Request().URL.Path
	staticDir := s.appCtx.Config().Web.StaticDir

	if staticDir != "" && reqPath != "/" {
		file := filepath.Join(staticDir, filepath.FromSlash(path.Clean("/"+reqPath)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return c.File(file)
		}
	}

	d := s.appCtx.Gate().Evaluate(c.Request().Context(), gate.Session{Identity: IdentityOf(c)}, reqPath)
	switch d.Outcome {
	case gate.Denied:
		return c.Redirect(http.StatusFound, d.Redirect)
	case gate.Unchecked:
		return echo.NewHTTPError(http.StatusNotFound, "page not found")
	}

	if staticDir != "" {
		index := filepath.Join(staticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			return c.File(index)
		}
	}
	return c.JSON(http.StatusOK, d.Match)
}
