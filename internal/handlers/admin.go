// internal/handlers/admin.go
package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
}

func NewAdminHandler(adminService *services.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /admin/users
func (h *AdminHandler) GetUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AdminUserFilter{
		PaginationParams: params,
		CreatedAfter:     queryDate(c, "created_after"),
		CreatedBefore:    queryDate(c, "created_before"),
	}

	if userType := c.Query("user_type"); userType != "" {
		uType := models.UserType(userType)
		filter.UserType = &uType
	}

	if status := c.Query("status"); status != "" {
		uStatus := models.UserStatus(status)
		filter.Status = &uStatus
	}

	users, total, err := h.adminService.GetUsers(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params))
}

// PUT /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := pathID(c, "user")
	if !ok {
		return
	}

	var req services.UpdateUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.adminService.UpdateUserStatus(c.Request.Context(), userID, adminID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
		"user":    user,
	})
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.GetSettings(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"settings": settings,
	})
}

// PUT /admin/settings
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateSettingRequest
	if !bindJSON(c, &req) {
		return
	}

	setting, err := h.adminService.UpdateSetting(c.Request.Context(), adminID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminSettingsUpdated),
		"setting": setting,
	})
}

// GET /admin/audit-logs
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	filter := services.AuditLogFilter{
		PaginationParams: params,
		UserID:           queryUUID(c, "user_id"),
		ResourceType:     c.Query("resource_type"),
		ResourceID:       queryUUID(c, "resource_id"),
	}

	logs, total, err := h.adminService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(logs, total, params))
}

// GET /admin/notifications
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	notifications, total, err := h.adminService.GetNotifications(c.Request.Context(), params, c.Query("status"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(notifications, total, params))
}

// PUT /admin/notifications/:id/read
func (h *AdminHandler) MarkNotificationRead(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "notification")
	if !ok {
		return
	}

	if err := h.adminService.MarkNotificationRead(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyAdminActionSuccess),
	})
}

// GET /admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	var metrics []string
	if metricsStr := c.Query("metrics"); metricsStr != "" {
		metrics = strings.Split(metricsStr, ",")
	}

	// end_date is inclusive.
	analytics, err := h.adminService.GetAnalytics(c.Request.Context(), startDate, endDate.AddDate(0, 0, 1), metrics)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"analytics":  analytics,
		"start_date": startDate.Format(dateLayout),
		"end_date":   endDate.Format(dateLayout),
	})
}

// GET /admin/analytics/history
func (h *AdminHandler) GetAnalyticsHistory(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	history, err := h.adminService.GetAnalyticsHistory(c.Request.Context(), c.Query("metric"), startDate, endDate)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"history": history,
	})
}

// POST /admin/analytics/snapshot
// Snapshots the given ?date, defaulting to yesterday.
func (h *AdminHandler) SnapshotAnalytics(c *gin.Context) {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if raw := c.Query("date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid date format (YYYY-MM-DD)", nil)
			return
		}
		day = t
	}

	snapshot, err := h.adminService.SnapshotDailyAnalytics(c.Request.Context(), day)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"snapshot": snapshot,
	})
}

func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	startDateStr := c.Query("start_date")
	endDateStr := c.Query("end_date")

	if startDateStr == "" || endDateStr == "" {
		utils.BadRequestResponse(c, "start_date and end_date are required", nil)
		return time.Time{}, time.Time{}, false
	}

	startDate, err := time.Parse(dateLayout, startDateStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid start_date format (YYYY-MM-DD)", nil)
		return time.Time{}, time.Time{}, false
	}

	endDate, err := time.Parse(dateLayout, endDateStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid end_date format (YYYY-MM-DD)", nil)
		return time.Time{}, time.Time{}, false
	}

	return startDate, endDate, true
}
