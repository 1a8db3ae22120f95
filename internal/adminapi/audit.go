package adminapi

import (
	"net/http"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
)

// registerAuditRoutes registers the operation log endpoint
func registerAuditRoutes() {
	webserver.AdminGET("/audit", listAuditLogs)
}

// listAuditLogs pages through sys_opr_log, newest first. action filters by
// opt_action; since accepts any common date format.
func listAuditLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{})
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}
	if since := strings.TrimSpace(c.QueryParam("since")); since != "" {
		t, err := dateparse.ParseLocal(since)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse since", err.Error())
		}
		db = db.Where("opt_time >= ?", t)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit log", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit log", err.Error())
	}
	if rows == nil {
		rows = []domain.SysOprLog{}
	}
	return paged(c, rows, total, page, pageSize)
}
