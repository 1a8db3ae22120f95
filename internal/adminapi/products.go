package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/catalog"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
)

type availabilityPayload struct {
	Available *bool `json:"available" validate:"required"`
}

// registerProductRoutes registers the administrator product endpoints
func registerProductRoutes() {
	webserver.AdminGET("/products", listProducts)
	webserver.AdminGET("/products/by-slug/:slug", getProduct)
	webserver.AdminPOST("/products", createProduct)
	webserver.AdminPUT("/products/:id", updateProduct)
	webserver.AdminPUT("/products/:id/availability", setProductAvailability)
}

// listProducts pages through the catalog, hidden products included when
// include_inactive is set. q filters by name or slug.
func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	includeInactive := parseBool(c.QueryParam("include_inactive"))
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))

	rows, err := GetAppContext(c).Catalog().ListProducts(c.Request().Context(), includeInactive)
	if err != nil {
		return failErr(c, "Failed to query products", err)
	}
	if q != "" {
		filtered := rows[:0]
		for _, p := range rows {
			if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(p.Slug, q) {
				filtered = append(filtered, p)
			}
		}
		rows = filtered
	}

	total := int64(len(rows))
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return paged(c, append([]domain.Product{}, rows[start:end]...), total, page, pageSize)
}

func getProduct(c echo.Context) error {
	p, err := GetAppContext(c).Catalog().GetProductBySlug(c.Request().Context(), c.Param("slug"), true)
	if err != nil {
		return failErr(c, "Product not found", err)
	}
	return ok(c, p)
}

func createProduct(c echo.Context) error {
	var payload catalog.ProductInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid product parameters", err.Error())
	}
	p, err := GetAppContext(c).Catalog().CreateProduct(c.Request().Context(), payload)
	if err != nil {
		return failErr(c, "Failed to create product", err)
	}
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload catalog.ProductInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid product parameters", err.Error())
	}
	p, err := GetAppContext(c).Catalog().UpdateProduct(c.Request().Context(), id, payload)
	if err != nil {
		return failErr(c, "Failed to update product", err)
	}
	return ok(c, p)
}

func setProductAvailability(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload availabilityPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse availability", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "available is required", err.Error())
	}
	if err := GetAppContext(c).Catalog().SetAvailability(c.Request().Context(), id, *payload.Available); err != nil {
		return failErr(c, "Failed to update availability", err)
	}
	return ok(c, map[string]interface{}{"id": id, "available": *payload.Available})
}
