// internal/handlers/common.go
package handlers

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type uploadFunc func(ctx context.Context, r io.Reader, filename string) (*services.UploadResult, error)

// uploadImages stores every file of the "images" form field. The first
// rejected file aborts the request.
func uploadImages(c *gin.Context, upload uploadFunc) {
	lang := utils.GetLangFromContext(c)

	form, err := c.MultipartForm()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		utils.BadRequestResponse(c, "No images uploaded", nil)
		return
	}

	uploaded := make([]*services.UploadResult, 0, len(files))
	for _, fileHeader := range files {
		file, err := fileHeader.Open()
		if err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
			return
		}
		result, err := upload(c.Request.Context(), file, fileHeader.Filename)
		file.Close()
		if err != nil {
			utils.AppErrorResponse(c, err)
			return
		}
		uploaded = append(uploaded, result)
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploadSuccess),
		"images":  uploaded,
	})
}

const dateLayout = "2006-01-02"

// currentUser returns the authenticated user id or writes a 401.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := utils.GetUserUUIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the :id route parameter or writes a 400.
func pathID(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+resource+" ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid), err.Error())
		return false
	}
	return true
}

// Optional query filters. Malformed values are ignored like missing ones.

func queryUUID(c *gin.Context, name string) *uuid.UUID {
	if raw := c.Query(name); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return &id
		}
	}
	return nil
}

func queryBool(c *gin.Context, name string) *bool {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return &v
		}
	}
	return nil
}

func queryDate(c *gin.Context, name string) *time.Time {
	if raw := c.Query(name); raw != "" {
		if t, err := time.Parse(dateLayout, raw); err == nil {
			return &t
		}
	}
	return nil
}
