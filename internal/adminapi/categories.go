package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/webserver"
)

// registerCategoryRoutes registers the administrator category endpoints
func registerCategoryRoutes() {
	webserver.AdminGET("/categories", listCategories)
	webserver.AdminPOST("/categories", createCategory)
	webserver.AdminPUT("/categories/:id", updateCategory)
}

func createCategory(c echo.Context) error {
	var payload catalog.CategoryInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid category parameters", err.Error())
	}
	cat, err := GetAppContext(c).Catalog().CreateCategory(c.Request().Context(), payload)
	if err != nil {
		return failErr(c, "Failed to create category", err)
	}
	return ok(c, cat)
}

func updateCategory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid category ID", nil)
	}
	var payload catalog.CategoryInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid category parameters", err.Error())
	}
	cat, err := GetAppContext(c).Catalog().UpdateCategory(c.Request().Context(), id, payload)
	if err != nil {
		return failErr(c, "Failed to update category", err)
	}
	return ok(c, cat)
}
