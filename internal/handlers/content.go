// internal/handlers/content.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type ContentHandler struct {
	contentService *services.ContentService
}

func NewContentHandler(contentService *services.ContentService) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
	}
}

// GET /pages
func (h *ContentHandler) ListPages(c *gin.Context) {
	h.list(c, false)
}

// GET /pages/:slug
func (h *ContentHandler) GetPage(c *gin.Context) {
	page, err := h.contentService.GetPage(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"page": page})
}

// GET /admin/pages
func (h *ContentHandler) AdminListPages(c *gin.Context) {
	h.list(c, true)
}

// POST /admin/pages
func (h *ContentHandler) CreatePage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	editorID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.SavePageRequest
	if !bindJSON(c, &req) {
		return
	}

	page, err := h.contentService.CreatePage(c.Request.Context(), editorID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPageSaved),
		"page":    page,
	})
}

// PUT /admin/pages/:id
func (h *ContentHandler) UpdatePage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	editorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "page")
	if !ok {
		return
	}

	var req services.SavePageRequest
	if !bindJSON(c, &req) {
		return
	}

	page, err := h.contentService.UpdatePage(c.Request.Context(), id, editorID, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPageSaved),
		"page":    page,
	})
}

// POST /admin/pages/:id/publish
func (h *ContentHandler) PublishPage(c *gin.Context) {
	h.setPublished(c, true)
}

// POST /admin/pages/:id/unpublish
func (h *ContentHandler) UnpublishPage(c *gin.Context) {
	h.setPublished(c, false)
}

// DELETE /admin/pages/:id
func (h *ContentHandler) DeletePage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "page")
	if !ok {
		return
	}

	if err := h.contentService.DeletePage(c.Request.Context(), id); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyPageDeleted)})
}

// POST /admin/pages/images
func (h *ContentHandler) UploadPageImages(c *gin.Context) {
	uploadImages(c, h.contentService.UploadImage)
}

func (h *ContentHandler) setPublished(c *gin.Context, published bool) {
	lang := utils.GetLangFromContext(c)
	editorID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "page")
	if !ok {
		return
	}

	page, err := h.contentService.SetPublished(c.Request.Context(), id, editorID, published)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPageSaved),
		"page":    page,
	})
}

func (h *ContentHandler) list(c *gin.Context, includeDrafts bool) {
	params := services.PageSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Section:          c.Query("section"),
		IncludeDrafts:    includeDrafts,
	}

	pages, total, err := h.contentService.ListPages(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(pages, total, params.PaginationParams))
}
