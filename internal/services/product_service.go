// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type ProductService struct {
	db       *gorm.DB
	storage  *StorageService
	currency string
}

type CreateProductRequest struct {
	Name            string                 `json:"name" validate:"required,min=2,max=255"`
	Slug            string                 `json:"slug,omitempty" validate:"omitempty,max=255"`
	Description     string                 `json:"description" validate:"max=20000"`
	Category        string                 `json:"category" validate:"required,max=100"`
	Price           float64                `json:"price" validate:"min=0"`
	Currency        string                 `json:"currency,omitempty" validate:"omitempty,len=3"`
	LicensedProduct string                 `json:"licensed_product,omitempty" validate:"omitempty,licensed_product"`
	Images          []string               `json:"images,omitempty" validate:"max=20"`
	Features        []string               `json:"features,omitempty" validate:"max=50"`
	Specifications  map[string]interface{} `json:"specifications,omitempty"`
	Status          models.ProductStatus   `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
	Featured        bool                   `json:"featured"`
	SortOrder       int                    `json:"sort_order"`
}

// UpdateProductRequest only touches the fields that are set.
type UpdateProductRequest struct {
	Name            *string                `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Slug            *string                `json:"slug,omitempty" validate:"omitempty,min=1,max=255"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=20000"`
	Category        *string                `json:"category,omitempty" validate:"omitempty,max=100"`
	Price           *float64               `json:"price,omitempty" validate:"omitempty,min=0"`
	LicensedProduct *string                `json:"licensed_product,omitempty" validate:"omitempty,licensed_product"`
	Images          []string               `json:"images,omitempty" validate:"omitempty,max=20"`
	Features        []string               `json:"features,omitempty" validate:"omitempty,max=50"`
	Specifications  map[string]interface{} `json:"specifications,omitempty"`
	Status          *models.ProductStatus  `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
	Featured        *bool                  `json:"featured,omitempty"`
	SortOrder       *int                   `json:"sort_order,omitempty"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	Featured *bool                `json:"featured,omitempty"`
	Licensed *bool                `json:"licensed,omitempty"`
	Status   models.ProductStatus `json:"status,omitempty"`
	// IncludeInactive lists drafts and archived products too (admin views).
	IncludeInactive bool `json:"-"`
}

func NewProductService(db *gorm.DB, storage *StorageService, currency string) *ProductService {
	if currency == "" {
		currency = "usd"
	}
	return &ProductService{
		db:       db,
		storage:  storage,
		currency: strings.ToLower(currency),
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	productSlug := makeSlug(req.Slug, req.Name)
	if productSlug == "" {
		return nil, apperrors.Validation("name must contain letters or digits")
	}

	product := &models.Product{
		Name:           strings.TrimSpace(req.Name),
		Slug:           productSlug,
		Description:    req.Description,
		Category:       strings.TrimSpace(req.Category),
		Price:          roundPrice(req.Price),
		Currency:       s.currency,
		Images:         pq.StringArray(req.Images),
		Features:       pq.StringArray(req.Features),
		Specifications: models.JSONB(req.Specifications),
		Status:         models.ProductStatusDraft,
		Featured:       req.Featured,
		SortOrder:      req.SortOrder,
	}
	if req.Currency != "" {
		product.Currency = strings.ToLower(req.Currency)
	}
	if req.Status != "" {
		product.Status = req.Status
	}
	if req.LicensedProduct != "" {
		name := licensing.ProductName(req.LicensedProduct)
		product.LicensedProduct = &name
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, slugError(err, "failed to create product")
	}

	return product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updates, err := productUpdates(req)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return product, nil
	}

	if err := s.db.WithContext(ctx).Model(product).Updates(updates).Error; err != nil {
		return nil, slugError(err, "failed to update product")
	}

	return s.findProduct(ctx, id)
}

// productUpdates maps the set fields of req onto column updates.
func productUpdates(req *UpdateProductRequest) (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		productSlug := slug.Make(*req.Slug)
		if productSlug == "" {
			return nil, apperrors.Validation("slug must contain letters or digits")
		}
		updates["slug"] = productSlug
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		updates["price"] = roundPrice(*req.Price)
	}
	if req.LicensedProduct != nil {
		// An empty value turns the product back into an unlicensed one.
		if *req.LicensedProduct == "" {
			updates["licensed_product"] = nil
		} else {
			updates["licensed_product"] = *req.LicensedProduct
		}
	}
	if req.Images != nil {
		updates["images"] = pq.StringArray(req.Images)
	}
	if req.Features != nil {
		updates["features"] = pq.StringArray(req.Features)
	}
	if req.Specifications != nil {
		updates["specifications"] = models.JSONB(req.Specifications)
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Featured != nil {
		updates["featured"] = *req.Featured
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	return updates, nil
}

// ArchiveProduct hides a product from the storefront. Orders and licenses that
// reference it are kept.
func (s *ProductService) ArchiveProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Status == models.ProductStatusArchived {
		return product, nil
	}

	if err := s.db.WithContext(ctx).Model(product).Update("status", models.ProductStatusArchived).Error; err != nil {
		return nil, apperrors.Internal("failed to archive product", err)
	}
	product.Status = models.ProductStatusArchived
	return product, nil
}

// GetProduct looks a product up by id or slug. Only active products are
// visible unless includeInactive is set.
func (s *ProductService) GetProduct(ctx context.Context, idOrSlug string, includeInactive bool) (*models.Product, error) {
	query := s.db.WithContext(ctx)
	if id, err := uuid.Parse(idOrSlug); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", strings.ToLower(idOrSlug))
	}
	if !includeInactive {
		query = query.Where("status = ?", models.ProductStatusActive)
	}

	var product models.Product
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product not found")
		}
		return nil, apperrors.Internal("database error", err)
	}
	return &product, nil
}

func (s *ProductService) ListProducts(ctx context.Context, params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	switch {
	case params.Status != "":
		query = query.Where("status = ?", params.Status)
	case !params.IncludeInactive:
		query = query.Where("status = ?", models.ProductStatusActive)
	}

	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}

	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}

	if params.Featured != nil {
		query = query.Where("featured = ?", *params.Featured)
	}

	if params.Licensed != nil {
		if *params.Licensed {
			query = query.Where("licensed_product IS NOT NULL")
		} else {
			query = query.Where("licensed_product IS NULL")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count products", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "name", "price", "sales_count", "sort_order"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to fetch products", err)
	}

	return products, total, nil
}

// UploadImage stores a catalog image and returns its public URL.
func (s *ProductService) UploadImage(ctx context.Context, r io.Reader, filename string) (*UploadResult, error) {
	return s.storage.Upload(ctx, r, filename, s.storage.GetDefaultUploadOptions(UploadProducts))
}

// DeleteImage removes a previously uploaded catalog image by storage key.
func (s *ProductService) DeleteImage(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, "products/") || strings.Contains(key, "..") {
		return apperrors.Validation("invalid image key")
	}
	if err := s.storage.DeleteFile(ctx, key); err != nil {
		return apperrors.Internal("failed to delete image", err)
	}
	return nil
}

func (s *ProductService) findProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("product not found")
		}
		return nil, apperrors.Internal("database error", err)
	}
	return &product, nil
}

// makeSlug prefers an explicit slug and falls back to one derived from name.
func makeSlug(explicit, name string) string {
	if strings.TrimSpace(explicit) != "" {
		return slug.Make(explicit)
	}
	return slug.Make(name)
}

func slugError(err error, message string) error {
	if repository.IsDuplicateKey(err) {
		return apperrors.Conflict(apperrors.ReasonSlugTaken, "slug is already in use").WithCause(err)
	}
	return apperrors.Internal(message, err)
}

func roundPrice(price float64) float64 {
	return math.Round(price*100) / 100
}
