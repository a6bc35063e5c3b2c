// internal/repository/license_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

// LicenseFilter selects license records. Zero values are ignored.
type LicenseFilter struct {
	ID               *uuid.UUID
	OwnerID          *uuid.UUID
	OrderID          *uuid.UUID
	ProductID        *uuid.UUID
	ExcludeID        *uuid.UUID
	SystemIdentifier string
	ProductName      licensing.ProductName
	ActivationKey    string
	LicenseStatus    models.LicenseStatus
	Search           string
}

// ListOptions is a page request understood by every List method.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (o ListOptions) offset() int {
	if o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.limit()
}

func (o ListOptions) limit() int {
	if o.Limit < 1 {
		return 20
	}
	return o.Limit
}

// LicenseRepository is the persistence collaborator for license records.
// Insert and Save return ErrDuplicateKey when a unique index rejects the write.
type LicenseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindOne(ctx context.Context, filter LicenseFilter) (*models.License, error)
	Insert(ctx context.Context, license *models.License) error
	Save(ctx context.Context, license *models.License) error
	List(ctx context.Context, filter LicenseFilter, opts ListOptions) ([]models.License, int64, error)
	ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type licenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) LicenseRepository {
	return &licenseRepository{db: db}
}

var licenseSortFields = map[string]string{
	"created_at":      "created_at",
	"expiration_date": "expiration_date",
	"activated_at":    "activated_at",
	"product_name":    "product_name",
}

func (r *licenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &license, nil
}

// FindOne returns the first match, preferring active records so lookups by
// (systemIdentifier, productName) see the live seat over expired history.
func (r *licenseRepository) FindOne(ctx context.Context, filter LicenseFilter) (*models.License, error) {
	var license models.License
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.License{}), filter).
		Order("CASE WHEN license_status = 'active' THEN 0 ELSE 1 END").
		Order("updated_at DESC").
		First(&license).Error
	if err != nil {
		return nil, translate(err)
	}
	return &license, nil
}

func (r *licenseRepository) Insert(ctx context.Context, license *models.License) error {
	return translate(r.db.WithContext(ctx).Create(license).Error)
}

func (r *licenseRepository) Save(ctx context.Context, license *models.License) error {
	return translate(r.db.WithContext(ctx).Omit("Owner", "Order", "Product").Save(license).Error)
}

func (r *licenseRepository) List(ctx context.Context, filter LicenseFilter, opts ListOptions) ([]models.License, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.License{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count licenses: %w", err)
	}

	sortField, ok := licenseSortFields[opts.SortBy]
	if !ok {
		sortField = "created_at"
	}
	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	var licenses []models.License
	err := query.Preload("Product").
		Order(sortField + " " + direction).
		Offset(opts.offset()).
		Limit(opts.limit()).
		Find(&licenses).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list licenses: %w", err)
	}
	return licenses, total, nil
}

// ExpireBefore flips every non-expired record whose expiration precedes cutoff.
func (r *licenseRepository) ExpireBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.License{}).
		Where("license_status <> ? AND expiration_date < ?", models.LicenseStatusExpired, cutoff).
		Updates(expiredColumns())
	if result.Error != nil {
		return 0, fmt.Errorf("expire licenses: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *licenseRepository) applyFilter(query *gorm.DB, f LicenseFilter) *gorm.DB {
	if f.ID != nil {
		query = query.Where("id = ?", *f.ID)
	}
	if f.OwnerID != nil {
		query = query.Where("owner_id = ?", *f.OwnerID)
	}
	if f.OrderID != nil {
		query = query.Where("order_id = ?", *f.OrderID)
	}
	if f.ProductID != nil {
		query = query.Where("product_id = ?", *f.ProductID)
	}
	if f.ExcludeID != nil {
		query = query.Where("id <> ?", *f.ExcludeID)
	}
	if f.SystemIdentifier != "" {
		query = query.Where("system_identifier = ?", f.SystemIdentifier)
	}
	if f.ProductName != "" {
		query = query.Where("product_name = ?", f.ProductName)
	}
	if f.ActivationKey != "" {
		query = query.Where("activation_key = ?", f.ActivationKey)
	}
	if f.LicenseStatus != "" {
		query = query.Where("license_status = ?", f.LicenseStatus)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("system_identifier ILIKE ? OR activation_key ILIKE ?", like, like)
	}
	return query
}

// expiredColumns is the column set written when seats expire in bulk.
func expiredColumns() map[string]interface{} {
	return map[string]interface{}{
		"device_status":     models.DeviceStatusInactive,
		"device_activation": false,
		"license_status":    models.LicenseStatusExpired,
	}
}
