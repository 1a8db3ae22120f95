package webserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/storage"
	"github.com/talkincode/storefront/pkg/common"
)

const (
	ApiPrefix     = "/api/v1"
	AppContextKey = "appctx"
	IdentityKey   = "identity"
	SessionName   = "storefront"

	sessionTokenKey = "access_token"
)

var server *WebServer

type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	admin  *echo.Group
	appCtx app.AppContext
}

// Init builds the process wide server. Route registration helpers such as
// ApiGET must only be called after Init.
func Init(appCtx app.AppContext) {
	server = NewWebServer(appCtx)
}

// Handler exposes the server for httptest.
func Handler() http.Handler {
	return server.root
}

func NewWebServer(appCtx app.AppContext) *WebServer {
	cfg := appCtx.Config()
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsoniterSerializer{}
	e.Validator = newValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Info("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.Error(v.Error),
			)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit("64M"))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})
	e.Use(session.Middleware(newCookieStore(cfg.Web.Secret)))
	e.Use(echojwt.WithConfig(echojwt.Config{
		ContextKey:  IdentityKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return appCtx.Verifier().Verify(token)
		},
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	}))
	e.Use(sessionIdentity(appCtx))

	s := &WebServer{root: e, appCtx: appCtx}
	s.api = e.Group(ApiPrefix)
	s.admin = s.api.Group("/admin", RequireAdmin(appCtx.Gate()))

	if local, ok := appCtx.Store().(*storage.LocalStore); ok {
		e.Static(storage.PublicPath(local.Bucket()), local.Dir())
	}
	e.GET("/*", s.pageHandler)
	return s
}

// newCookieStore signs session cookies with secret. Without one a random key
// is used, so sessions do not survive a restart.
func newCookieStore(secret string) *sessions.CookieStore {
	if secret == "" {
		zap.S().Warn("web.secret is not set, using a random session key")
		secret = common.UUID() + common.UUID()
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func Listen(ctx context.Context) error {
	cfg := server.appCtx.Config()
	addr := net.JoinHostPort(cfg.Web.Host, strconv.Itoa(cfg.Web.Port))
	zap.S().Infof("Prepare to start the web server %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.root.Start(addr)
	}()
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.root.Shutdown(sctx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{
		"code":    strings.ToUpper(strings.ReplaceAll(http.StatusText(code), " ", "_")),
		"message": msg,
	})
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

func AdminGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.GET(path, h, m...)
}

func AdminPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.POST(path, h, m...)
}

func AdminPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.PUT(path, h, m...)
}

func AdminDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.admin.DELETE(path, h, m...)
}

// GetAppContext returns the application context attached to every request.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(AppContextKey).(app.AppContext)
}
