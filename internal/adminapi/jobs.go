package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/webserver"
)

// registerJobRoutes registers background job endpoints
func registerJobRoutes() {
	webserver.AdminGET("/jobs", listJobs)
	webserver.AdminPOST("/jobs/:name/run", runJob)
}

// listJobs returns the registered jobs with their next and previous run
func listJobs(c echo.Context) error {
	return ok(c, GetAppContext(c).Jobs())
}

// runJob triggers a job immediately
func runJob(c echo.Context) error {
	if err := GetAppContext(c).RunJobNow(c.Param("name")); err != nil {
		return failErr(c, "Failed to run job", err)
	}
	return c.NoContent(http.StatusNoContent)
}
