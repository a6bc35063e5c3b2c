// internal/handlers/activation.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

// ActivationHandler serves the desktop applications. Requests carry no user
// token: the system identifier and activation key are the credentials.
type ActivationHandler struct {
	licenseService *services.LicenseService
}

// ActivationResult is what a client stores after activating.
type ActivationResult struct {
	Activated        bool      `json:"activated"`
	ProductName      string    `json:"product_name"`
	SystemIdentifier string    `json:"system_identifier"`
	ActivationKey    string    `json:"activation_key"`
	ValidityType     string    `json:"validity_type"`
	ExpirationDate   time.Time `json:"expiration_date"`
}

func NewActivationHandler(licenseService *services.LicenseService) *ActivationHandler {
	return &ActivationHandler{
		licenseService: licenseService,
	}
}

// GET /activation/check?system_identifier=...&product_name=...
// POST /activation/check
func (h *ActivationHandler) Check(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CheckActivationRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return
	}

	status, err := h.licenseService.CheckActivation(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}

// POST /activation/activate
func (h *ActivationHandler) Activate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.ActivateByKeyRequest
	if !bindJSON(c, &req) {
		return
	}

	license, err := h.licenseService.ActivateByKey(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyLicenseActivated),
		"activation": ActivationResult{
			Activated:        license.DeviceActivation,
			ProductName:      string(license.ProductName),
			SystemIdentifier: license.SystemIdentifier,
			ActivationKey:    license.ActivationKey,
			ValidityType:     string(license.ValidityType),
			ExpirationDate:   license.ExpirationDate,
		},
	})
}
