// internal/services/content_service.go
package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

// ContentService manages the editable pages of the marketing site.
type ContentService struct {
	db      *gorm.DB
	storage *StorageService
}

type SavePageRequest struct {
	Slug      string                 `json:"slug,omitempty" validate:"omitempty,max=150"`
	Title     string                 `json:"title" validate:"required,max=255"`
	Section   string                 `json:"section,omitempty" validate:"omitempty,max=50"`
	Summary   string                 `json:"summary,omitempty"`
	Body      string                 `json:"body,omitempty"`
	Images    []string               `json:"images,omitempty" validate:"max=20"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Published bool                   `json:"published"`
	SortOrder int                    `json:"sort_order"`
}

type PageSearchParams struct {
	utils.PaginationParams
	Section string `json:"section,omitempty"`
	// IncludeDrafts lists unpublished pages too (admin views).
	IncludeDrafts bool `json:"-"`
}

func NewContentService(db *gorm.DB, storage *StorageService) *ContentService {
	return &ContentService{db: db, storage: storage}
}

func (s *ContentService) ListPages(ctx context.Context, params PageSearchParams) ([]models.ContentPage, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ContentPage{})
	if !params.IncludeDrafts {
		query = query.Where("published = ?", true)
	}
	if params.Section != "" {
		query = query.Where("section = ?", params.Section)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count pages", err)
	}

	if params.Sort == "" || params.Sort == "created_at" {
		query = query.Order("sort_order ASC").Order("created_at " + params.Order)
	} else {
		query = utils.ApplySort(query, params.PaginationParams, []string{"updated_at", "title", "published_at", "sort_order"})
	}
	query = utils.ApplyPagination(query, params.PaginationParams)

	var pages []models.ContentPage
	if err := query.Find(&pages).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to fetch pages", err)
	}
	return pages, total, nil
}

// GetPage looks a page up by slug. Drafts are hidden unless includeDrafts.
func (s *ContentService) GetPage(ctx context.Context, pageSlug string, includeDrafts bool) (*models.ContentPage, error) {
	query := s.db.WithContext(ctx).Where("slug = ?", strings.ToLower(pageSlug))
	if !includeDrafts {
		query = query.Where("published = ?", true)
	}

	var page models.ContentPage
	if err := query.First(&page).Error; err != nil {
		return nil, pageLookupError(err)
	}
	return &page, nil
}

func (s *ContentService) CreatePage(ctx context.Context, editorID uuid.UUID, req *SavePageRequest) (*models.ContentPage, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	page := &models.ContentPage{}
	if err := applyPage(page, req, editorID, time.Now()); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(page).Error; err != nil {
		return nil, slugError(err, "failed to create page")
	}
	return page, nil
}

// UpdatePage replaces the editable fields of a page.
func (s *ContentService) UpdatePage(ctx context.Context, id uuid.UUID, editorID uuid.UUID, req *SavePageRequest) (*models.ContentPage, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	page, err := s.findPage(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := applyPage(page, req, editorID, time.Now()); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(page).Error; err != nil {
		return nil, slugError(err, "failed to update page")
	}
	return page, nil
}

// SetPublished publishes or unpublishes a page. PublishedAt keeps the first
// publication time.
func (s *ContentService) SetPublished(ctx context.Context, id uuid.UUID, editorID uuid.UUID, published bool) (*models.ContentPage, error) {
	page, err := s.findPage(ctx, id)
	if err != nil {
		return nil, err
	}

	setPublished(page, published, time.Now())
	page.UpdatedBy = &editorID

	err = s.db.WithContext(ctx).Model(page).Updates(map[string]interface{}{
		"published":    page.Published,
		"published_at": page.PublishedAt,
		"updated_by":   page.UpdatedBy,
	}).Error
	if err != nil {
		return nil, apperrors.Internal("failed to update page", err)
	}
	return page, nil
}

func (s *ContentService) DeletePage(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&models.ContentPage{}, "id = ?", id)
	if result.Error != nil {
		return apperrors.Internal("failed to delete page", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("page not found")
	}
	return nil
}

func (s *ContentService) UploadImage(ctx context.Context, r io.Reader, filename string) (*UploadResult, error) {
	return s.storage.Upload(ctx, r, filename, s.storage.GetDefaultUploadOptions(UploadPages))
}

func (s *ContentService) findPage(ctx context.Context, id uuid.UUID) (*models.ContentPage, error) {
	var page models.ContentPage
	if err := s.db.WithContext(ctx).First(&page, "id = ?", id).Error; err != nil {
		return nil, pageLookupError(err)
	}
	return &page, nil
}

func applyPage(page *models.ContentPage, req *SavePageRequest, editorID uuid.UUID, now time.Time) error {
	pageSlug := makeSlug(req.Slug, req.Title)
	if pageSlug == "" {
		return apperrors.Validation("title must contain letters or digits")
	}

	page.Slug = pageSlug
	page.Title = strings.TrimSpace(req.Title)
	page.Section = strings.TrimSpace(req.Section)
	page.Summary = req.Summary
	page.Body = req.Body
	page.Images = pq.StringArray(req.Images)
	page.Metadata = models.JSONB(req.Metadata)
	page.SortOrder = req.SortOrder
	page.UpdatedBy = &editorID
	setPublished(page, req.Published, now)
	return nil
}

func setPublished(page *models.ContentPage, published bool, now time.Time) {
	page.Published = published
	if published && page.PublishedAt == nil {
		page.PublishedAt = &now
	}
}

func pageLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("page not found")
	}
	return apperrors.Internal("database error", err)
}
