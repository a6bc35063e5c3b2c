// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/cubitdynamics/cubit-backend/internal/i18n"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	params := h.searchParams(c)
	h.list(c, params)
}

// GET /products/:slug
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("slug"), false)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// GET /admin/products
func (h *ProductHandler) AdminListProducts(c *gin.Context) {
	params := h.searchParams(c)
	params.IncludeInactive = true
	params.Status = models.ProductStatus(c.Query("status"))
	h.list(c, params)
}

// GET /admin/products/:id
func (h *ProductHandler) AdminGetProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"product": product})
}

// POST /admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductCreated),
		"product": product,
	})
}

// PUT /admin/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	var req services.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductUpdated),
		"product": product,
	})
}

// DELETE /admin/products/:id
func (h *ProductHandler) ArchiveProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := pathID(c, "product")
	if !ok {
		return
	}

	product, err := h.productService.ArchiveProduct(c.Request.Context(), id)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductArchived),
		"product": product,
	})
}

// POST /admin/products/images
func (h *ProductHandler) UploadProductImages(c *gin.Context) {
	uploadImages(c, h.productService.UploadImage)
}

// DELETE /admin/products/images?key=products/...
func (h *ProductHandler) DeleteProductImage(c *gin.Context) {
	if err := h.productService.DeleteImage(c.Request.Context(), c.Query("key")); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"deleted": c.Query("key")})
}

func (h *ProductHandler) list(c *gin.Context, params services.ProductSearchParams) {
	products, total, err := h.productService.ListProducts(c.Request.Context(), params)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(products, total, params.PaginationParams))
}

func (h *ProductHandler) searchParams(c *gin.Context) services.ProductSearchParams {
	return services.ProductSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
		Featured:         queryBool(c, "featured"),
		Licensed:         queryBool(c, "licensed"),
	}
}
