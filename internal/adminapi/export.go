package adminapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
)

// productRow is one line of the product export
type productRow struct {
	ID           string `csv:"id"`
	Name         string `csv:"name"`
	Slug         string `csv:"slug"`
	Category     string `csv:"category"`
	Price        string `csv:"price"`
	Origin       string `csv:"origin"`
	Available    bool   `csv:"available"`
	DisplayOrder int    `csv:"display_order"`
	ImageCount   int    `csv:"image_count"`
	PrimaryImage string `csv:"primary_image"`
}

var exportHeader = []string{
	"id", "name", "slug", "category", "price", "origin",
	"available", "display_order", "image_count", "primary_image",
}

// registerExportRoutes registers the catalog export endpoints
func registerExportRoutes() {
	webserver.AdminGET("/products/export.csv", exportProductsCSV)
	webserver.AdminGET("/products/export.xlsx", exportProductsXLSX)
}

func exportRows(c echo.Context) ([]productRow, error) {
	products, err := GetAppContext(c).Catalog().ListProducts(c.Request().Context(), true)
	if err != nil {
		return nil, err
	}
	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, toProductRow(p))
	}
	return rows, nil
}

func toProductRow(p domain.Product) productRow {
	row := productRow{
		ID:           fmt.Sprint(p.ID),
		Name:         p.Name,
		Slug:         p.Slug,
		Price:        p.Price.StringFixed(2),
		Origin:       p.Origin,
		Available:    p.Available,
		DisplayOrder: p.DisplayOrder,
		ImageCount:   len(p.Images),
		PrimaryImage: p.PrimaryImage,
	}
	if p.Category != nil {
		row.Category = p.Category.Name
	}
	return row
}

func exportFilename(ext string) string {
	return fmt.Sprintf("products-%s.%s", time.Now().Format("20060102"), ext)
}

func exportProductsCSV(c echo.Context) error {
	rows, err := exportRows(c)
	if err != nil {
		return failErr(c, "Failed to query products", err)
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", exportFilename("csv")))
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(rows, c.Response())
}

func exportProductsXLSX(c echo.Context) error {
	rows, err := exportRows(c)
	if err != nil {
		return failErr(c, "Failed to query products", err)
	}
	const sheet = "Sheet1"
	f := excelize.NewFile()
	for i, h := range exportHeader {
		f.SetCellValue(sheet, cellName(i, 1), h)
	}
	for r, row := range rows {
		values := []interface{}{
			row.ID, row.Name, row.Slug, row.Category, row.Price, row.Origin,
			row.Available, row.DisplayOrder, row.ImageCount, row.PrimaryImage,
		}
		for i, v := range values {
			f.SetCellValue(sheet, cellName(i, r+2), v)
		}
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", exportFilename("xlsx")))
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}

// cellName converts a zero based column and a one based row to A1 notation.
func cellName(col, row int) string {
	return excelize.ToAlphaString(col) + strconv.Itoa(row)
}
