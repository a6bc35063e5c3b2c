// internal/utils/response.go
package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/i18n"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func SuccessResponseWithMeta(c *gin.Context, data interface{}, meta interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string, details interface{}) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyValidationInvalid)
	}
	ErrorResponse(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAuthRequired)
	}
	ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	lang := GetLangFromContext(c)
	if message == "" {
		message = i18n.T(lang, i18n.KeyAdminAccessDenied)
	}
	ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message, nil)
}

func TooManyRequestsResponse(c *gin.Context) {
	lang := GetLangFromContext(c)
	ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", i18n.T(lang, i18n.KeyRateLimited), nil)
}

func InternalErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	ErrorResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, nil)
}

// reasonKeys maps conflict reasons to their translated messages.
var reasonKeys = map[string]string{
	apperrors.ReasonAlreadyActivated:    i18n.KeyLicenseAlreadyActivated,
	apperrors.ReasonSystemAlreadyActive: i18n.KeyLicenseSystemActive,
	apperrors.ReasonKeyBoundElsewhere:   i18n.KeyLicenseKeyBoundElsewhere,
	apperrors.ReasonKeyMismatch:         i18n.KeyLicenseKeyMismatch,
	apperrors.ReasonLicenseExpired:      i18n.KeyLicenseExpired,
	apperrors.ReasonDuplicateDevice:     i18n.KeyLicenseDuplicateDevice,
	apperrors.ReasonDuplicateKey:        i18n.KeyLicenseDuplicateKey,
	apperrors.ReasonInvalidTransition:   i18n.KeyOrderInvalidTransition,
	apperrors.ReasonPaymentDeclined:     i18n.KeyPaymentDeclined,
	apperrors.ReasonSlugTaken:           i18n.KeySlugTaken,
	apperrors.ReasonUserExists:          i18n.KeyAuthUserExists,
}

// AppErrorResponse writes err using the status that matches its kind.
// Conflicts use their reason as the error code, e.g. LICENSE_EXPIRED.
func AppErrorResponse(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Unhandled service error")
		InternalErrorResponse(c, "")
		return
	}

	lang := GetLangFromContext(c)
	switch appErr.Kind {
	case apperrors.KindValidation:
		var details interface{}
		if fields := GetValidationErrors(appErr.Cause); len(fields) > 0 {
			details = fields
		}
		ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", appErr.Message, details)
	case apperrors.KindNotFound:
		ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", appErr.Message, nil)
	case apperrors.KindConflict:
		code := "CONFLICT"
		message := appErr.Message
		if appErr.Reason != "" {
			code = strings.ToUpper(appErr.Reason)
			if key, ok := reasonKeys[appErr.Reason]; ok {
				message = i18n.TOr(lang, key, appErr.Message)
			}
		}
		ErrorResponse(c, http.StatusConflict, code, message, nil)
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Internal error")
		InternalErrorResponse(c, "")
	}
}

func PaginatedResponse(c *gin.Context, result PaginationResult) {
	SetPaginationHeaders(c, result)
	SuccessResponseWithMeta(c, result.Data, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func GetLangFromContext(c *gin.Context) string {
	if lang, exists := c.Get("lang"); exists {
		if langStr, ok := lang.(string); ok {
			return langStr
		}
	}
	return "en"
}

func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if userID, exists := c.Get("user_id"); exists {
		if userIDStr, ok := userID.(string); ok {
			return userIDStr, true
		}
	}
	return "", false
}

// GetUserUUIDFromContext parses the authenticated user id.
func GetUserUUIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

