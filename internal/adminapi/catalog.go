package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/contact"
	"github.com/talkincode/storefront/internal/gate"
	"github.com/talkincode/storefront/internal/webserver"
)

// registerCatalogRoutes registers the public storefront read endpoints
func registerCatalogRoutes() {
	webserver.ApiGET("/categories", listCategories)
	webserver.ApiGET("/categories/:slug", getCategory)
	webserver.ApiGET("/categories/:slug/products", listCategoryProducts)
	webserver.ApiGET("/products", listPublicProducts)
	webserver.ApiGET("/products/:slug", getPublicProduct)
	webserver.ApiGET("/products/:slug/contact-link", getContactLink)
}

// isAdmin reports whether the request carries an administrator identity.
func isAdmin(c echo.Context) bool {
	id := webserver.IdentityOf(c)
	if id == nil {
		return false
	}
	d := GetAppContext(c).Gate().Authorize(c.Request().Context(), gate.Session{Identity: id})
	return d.Outcome == gate.Allowed
}

func listCategories(c echo.Context) error {
	rows, err := GetAppContext(c).Catalog().ListCategories(c.Request().Context())
	if err != nil {
		return failErr(c, "Failed to query categories", err)
	}
	return ok(c, rows)
}

func getCategory(c echo.Context) error {
	cat, err := GetAppContext(c).Catalog().GetCategoryBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return failErr(c, "Category not found", err)
	}
	return ok(c, cat)
}

func listCategoryProducts(c echo.Context) error {
	cat, rows, err := GetAppContext(c).Catalog().ListProductsByCategory(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return failErr(c, "Failed to query category products", err)
	}
	return ok(c, map[string]interface{}{
		"category": cat,
		"products": rows,
	})
}

func listPublicProducts(c echo.Context) error {
	rows, err := GetAppContext(c).Catalog().ListProducts(c.Request().Context(), false)
	if err != nil {
		return failErr(c, "Failed to query products", err)
	}
	return ok(c, rows)
}

func getPublicProduct(c echo.Context) error {
	p, err := GetAppContext(c).Catalog().GetProductBySlug(c.Request().Context(), c.Param("slug"), isAdmin(c))
	if err != nil {
		return failErr(c, "Product not found", err)
	}
	return ok(c, p)
}

// getContactLink builds the WhatsApp deep link for a product and the variants
// listed in the comma separated variants query param.
func getContactLink(c echo.Context) error {
	appCtx := GetAppContext(c)
	p, err := appCtx.Catalog().GetProductBySlug(c.Request().Context(), c.Param("slug"), isAdmin(c))
	if err != nil {
		return failErr(c, "Product not found", err)
	}

	var ids []int64
	for _, s := range strings.Split(c.QueryParam("variants"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_VARIANT", "Invalid variant ID", s)
		}
		ids = append(ids, id)
	}
	return ok(c, appCtx.Contact().Build(p, contact.SelectVariants(p, ids)...))
}
