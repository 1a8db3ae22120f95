package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/apperr"
	"github.com/talkincode/storefront/internal/webserver"
)

// Response is the success envelope of every JSON endpoint
type Response struct {
	Data interface{} `json:"data"`
}

// PagedResponse wraps one page of a list endpoint
type PagedResponse struct {
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// ErrorResponse is the failure envelope of every JSON endpoint
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

// Init registers every API route. webserver.Init must run first.
func Init() {
	registerCatalogRoutes()
	registerSessionRoutes()
	registerProductRoutes()
	registerCategoryRoutes()
	registerImageRoutes()
	registerExportRoutes()
	registerAuditRoutes()
	registerJobRoutes()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, PagedResponse{Data: data, Total: total, Page: page, PageSize: pageSize})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, ErrorResponse{Code: code, Message: message, Error: detail})
}

// failErr maps a service error onto a status code by its kind.
func failErr(c echo.Context, message string, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", message, err.Error())
	case apperr.KindNotFound:
		return fail(c, http.StatusNotFound, "NOT_FOUND", message, err.Error())
	case apperr.KindConflict:
		return fail(c, http.StatusConflict, "CONFLICT", message, err.Error())
	case apperr.KindReorder:
		details := make([]string, 0)
		for _, e := range apperr.Failures(err) {
			details = append(details, e.Error())
		}
		return fail(c, http.StatusInternalServerError, "REORDER_ERROR", message, details)
	}
	zap.L().Error(message, zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
	code := strings.ToUpper(toSnake(apperr.KindOf(err).String()))
	return fail(c, http.StatusInternalServerError, code, message, err.Error())
}

// toSnake turns MetadataWriteError into metadata_write_error.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func GetAppContext(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid %s %q", name, c.Param(name))
	}
	return id, nil
}

// parsePagination reads page and perPage (or the legacy pageSize) query params.
func parsePagination(c echo.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20
	sizeStr := c.QueryParam("perPage")
	if sizeStr == "" {
		sizeStr = c.QueryParam("pageSize")
	}
	if ps, err := strconv.Atoi(sizeStr); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}
