// internal/database/seed.go
package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

// SeedInitialData creates the default administrator, store settings, the
// licensed application catalog and the marketing pages when missing.
func SeedInitialData(db *gorm.DB, cfg config.AdminConfig) error {
	logrus.Info("Seeding initial data...")

	admin, err := seedAdmin(db, cfg)
	if err != nil {
		return err
	}

	seedSettings(db, admin.ID)
	seedProducts(db)
	seedPages(db, admin.ID)

	logrus.Info("Initial data seeding completed")
	return nil
}

func seedAdmin(db *gorm.DB, cfg config.AdminConfig) (*models.User, error) {
	var admin models.User
	err := db.Where("user_type = ?", models.UserTypeAdmin).First(&admin).Error
	if err == nil {
		return &admin, nil
	}

	admin = models.User{
		Username: cfg.SeedUsername,
		Email:    cfg.SeedEmail,
		UserType: models.UserTypeAdmin,
		Status:   models.UserStatusActive,
		ProfileData: models.JSONB{
			"first_name": "Store",
			"last_name":  "Administrator",
		},
	}
	if err := admin.SetPassword(cfg.SeedPassword); err != nil {
		return nil, fmt.Errorf("failed to set admin password: %w", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	logrus.WithField("username", admin.Username).Info("Default admin user created")
	return &admin, nil
}

func seedSettings(db *gorm.DB, adminID uuid.UUID) {
	defaultSettings := []models.AdminSettings{
		{
			Category:    "general",
			Key:         "store_name",
			Value:       models.JSONB{"value": "CuBIT Dynamics"},
			DataType:    "string",
			Description: "Store name displayed to customers",
		},
		{
			Category:    "general",
			Key:         "support_email",
			Value:       models.JSONB{"value": "support@cubitdynamics.com"},
			DataType:    "string",
			Description: "Address shown in license and order emails",
		},
		{
			Category:    "licensing",
			Key:         "max_quantity_per_item",
			Value:       models.JSONB{"value": 100},
			DataType:    "integer",
			Description: "Maximum license seats per order line",
		},
		{
			Category:    "content",
			Key:         "max_file_size",
			Value:       models.JSONB{"value": 10},
			DataType:    "integer",
			Description: "Maximum image size in MB for uploads",
		},
	}

	for _, setting := range defaultSettings {
		var count int64
		db.Model(&models.AdminSettings{}).Where("category = ? AND key = ?", setting.Category, setting.Key).Count(&count)
		if count > 0 {
			continue
		}
		setting.UpdatedBy = adminID
		if err := db.Create(&setting).Error; err != nil {
			logrus.WithError(err).Warnf("Failed to create setting %s.%s", setting.Category, setting.Key)
		}
	}
}

func seedProducts(db *gorm.DB) {
	catalog := []struct {
		name, slug, description string
		price                   float64
		product                 licensing.ProductName
		features                []string
	}{
		{
			name:        "CuBIT Designer",
			slug:        "cubit-designer",
			description: "Parametric modelling for modular cube structures.",
			price:       499,
			product:     licensing.ProductDesigner,
			features:    []string{"Parametric modelling", "Assembly export", "Material library"},
		},
		{
			name:        "CuBIT Analyzer",
			slug:        "cubit-analyzer",
			description: "Load and stress analysis for CuBIT assemblies.",
			price:       799,
			product:     licensing.ProductAnalyzer,
			features:    []string{"Static load analysis", "Report generation"},
		},
		{
			name:        "CuBIT Simulator",
			slug:        "cubit-simulator",
			description: "Real-time motion simulation of CuBIT mechanisms.",
			price:       999,
			product:     licensing.ProductSimulator,
			features:    []string{"Kinematic simulation", "Collision detection"},
		},
	}

	for i, item := range catalog {
		var count int64
		db.Model(&models.Product{}).Where("slug = ?", item.slug).Count(&count)
		if count > 0 {
			continue
		}
		licensed := item.product
		product := models.Product{
			Name:            item.name,
			Slug:            item.slug,
			Description:     item.description,
			Category:        "software",
			Price:           item.price,
			Currency:        "usd",
			LicensedProduct: &licensed,
			Features:        pq.StringArray(item.features),
			Status:          models.ProductStatusActive,
			Featured:        true,
			SortOrder:       i,
		}
		if err := db.Create(&product).Error; err != nil {
			logrus.WithError(err).WithField("slug", item.slug).Warn("Failed to seed product")
		}
	}
}

func seedPages(db *gorm.DB, adminID uuid.UUID) {
	now := time.Now()
	updatedBy := adminID
	pages := []models.ContentPage{
		{Slug: "home-hero", Title: "Engineering software for modular structures", Section: "home", Published: true, PublishedAt: &now, UpdatedBy: &updatedBy},
		{Slug: "about", Title: "About CuBIT Dynamics", Section: "company", Published: true, PublishedAt: &now, UpdatedBy: &updatedBy},
		{Slug: "solutions", Title: "Solutions", Section: "solutions", Published: true, PublishedAt: &now, SortOrder: 1, UpdatedBy: &updatedBy},
		{Slug: "industries", Title: "Industries", Section: "industries", Published: true, PublishedAt: &now, SortOrder: 2, UpdatedBy: &updatedBy},
	}

	for _, page := range pages {
		var count int64
		db.Model(&models.ContentPage{}).Where("slug = ?", page.Slug).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&page).Error; err != nil {
			logrus.WithError(err).WithField("slug", page.Slug).Warn("Failed to seed page")
		}
	}
}
