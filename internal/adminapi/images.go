package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/media"
	"github.com/talkincode/storefront/internal/webserver"
)

type reorderPayload struct {
	Images []media.OrderUpdate `json:"images" validate:"required,min=1,dive"`
}

// registerImageRoutes registers the product image endpoints
func registerImageRoutes() {
	webserver.AdminGET("/products/:id/images", listProductImages)
	webserver.AdminPOST("/products/:id/images", uploadProductImages)
	webserver.AdminPUT("/products/:id/images/order", reorderProductImages)
	webserver.AdminPUT("/products/:id/images/:imageId/primary", setPrimaryImage)
	webserver.AdminDELETE("/images/:id", deleteImage)
}

func listProductImages(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	rows, err := GetAppContext(c).Media().ListImages(c.Request().Context(), id)
	if err != nil {
		return failErr(c, "Failed to query images", err)
	}
	return ok(c, rows)
}

// uploadProductImages accepts a multipart form with one or more "files" parts.
// Optional fields: alt_text, make_first_primary, start_order.
func uploadProductImages(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse multipart form", err.Error())
	}
	headers := append(form.File["files"], form.File["file"]...)
	if len(headers) == 0 {
		return fail(c, http.StatusBadRequest, "NO_FILES", "No files were uploaded", nil)
	}
	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, media.FileFromHeader(fh))
	}

	opts := media.BatchOptions{
		AltText:          strings.TrimSpace(c.FormValue("alt_text")),
		MakeFirstPrimary: parseBool(c.FormValue("make_first_primary")),
	}
	if s := c.FormValue("start_order"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "start_order must be a non negative integer", s)
		}
		opts.StartOrder = n
	}

	result := GetAppContext(c).Media().UploadMultiple(c.Request().Context(), files, id, opts)
	if result.SuccessCount == 0 {
		return fail(c, http.StatusBadRequest, "UPLOAD_FAILED", "No image could be uploaded", result)
	}
	return ok(c, result)
}

func reorderProductImages(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload reorderPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse image order", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid image order", err.Error())
	}
	if err := GetAppContext(c).Media().ReorderImages(c.Request().Context(), productID, payload.Images); err != nil {
		return failErr(c, "Failed to reorder images", err)
	}
	return ok(c, map[string]interface{}{"updated": len(payload.Images)})
}

func setPrimaryImage(c echo.Context) error {
	productID, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	imageID, err := parseIDParam(c, "imageId")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid image ID", nil)
	}
	if err := GetAppContext(c).Media().SetPrimaryImage(c.Request().Context(), imageID, productID); err != nil {
		return failErr(c, "Failed to set primary image", err)
	}
	return ok(c, map[string]interface{}{"id": strconv.FormatInt(imageID, 10), "product_id": strconv.FormatInt(productID, 10)})
}

func deleteImage(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid image ID", nil)
	}
	if err := GetAppContext(c).Media().DeleteImage(c.Request().Context(), id); err != nil {
		return failErr(c, "Failed to delete image", err)
	}
	return ok(c, map[string]interface{}{"id": strconv.FormatInt(id, 10)})
}
