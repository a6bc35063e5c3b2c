// internal/handlers/license.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
}

func NewLicenseHandler(licenseService *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
	}
}

// GET /licenses
func (h *LicenseHandler) GetMyLicenses(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	params := h.searchParams(c)
	params.OwnerID = &userID

	licenses, total, err := h.licenseService.ListLicenses(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params.PaginationParams))
}

// GET /licenses/:id
func (h *LicenseHandler) GetMyLicense(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "license")
	if !ok {
		return
	}

	license, err := h.licenseService.GetLicense(c.Request.Context(), id, userID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"license": license})
}

// POST /licenses/:id/activate
func (h *LicenseHandler) ActivateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "license")
	if !ok {
		return
	}

	var req services.ActivateLicenseRequest
	if !bindJSON(c, &req) {
		return
	}

	license, err := h.licenseService.ActivateLicense(c.Request.Context(), id, userID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseActivated),
		"license": license,
	})
}

// GET /admin/licenses
func (h *LicenseHandler) AdminListLicenses(c *gin.Context) {
	params := h.searchParams(c)
	params.OwnerID = queryUUID(c, "owner_id")
	params.SystemIdentifier = c.Query("system_identifier")

	licenses, total, err := h.licenseService.ListLicenses(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params.PaginationParams))
}

// GET /admin/licenses/:id
func (h *LicenseHandler) AdminGetLicense(c *gin.Context) {
	id, ok := pathID(c, "license")
	if !ok {
		return
	}

	license, err := h.licenseService.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"license": license})
}

// POST /admin/licenses/:id/deactivate
func (h *LicenseHandler) AdminDeactivateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "license")
	if !ok {
		return
	}

	license, err := h.licenseService.DeactivateLicense(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseDeactivated),
		"license": license,
	})
}

// POST /admin/licenses/devices
func (h *LicenseHandler) AdminAddDevice(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	adminID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.AddDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	license, err := h.licenseService.AddDevice(c.Request.Context(), adminID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseDeviceAdded),
		"license": license,
	})
}

// POST /admin/licenses/expire
func (h *LicenseHandler) AdminExpireOverdue(c *gin.Context) {
	expired, err := h.licenseService.ExpireOverdue(c.Request.Context())
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"expired": expired})
}

func (h *LicenseHandler) searchParams(c *gin.Context) services.LicenseSearchParams {
	return services.LicenseSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		ProductID:        queryUUID(c, "product_id"),
		ProductName:      licensing.ProductName(c.Query("product_name")),
		Status:           models.LicenseStatus(c.Query("status")),
	}
}
