// internal/models/product.go
package models

import (
	"github.com/lib/pq"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
)

type Product struct {
	BaseModel
	Name        string  `json:"name" gorm:"size:255;not null"`
	Slug        string  `json:"slug" gorm:"uniqueIndex;size:255;not null"`
	Description string  `json:"description" gorm:"type:text"`
	Category    string  `json:"category" gorm:"size:100;index"`
	Price       float64 `json:"price" gorm:"type:decimal(10,2);not null"`
	Currency    string  `json:"currency" gorm:"size:3;default:'usd'"`
	// LicensedProduct is set for desktop applications that ship with an
	// activation key; hardware and services leave it empty.
	LicensedProduct *licensing.ProductName `json:"licensed_product,omitempty" gorm:"type:varchar(50);index"`
	Images          pq.StringArray         `json:"images" gorm:"type:text[]"`
	Features        pq.StringArray         `json:"features" gorm:"type:text[]"`
	Specifications  JSONB                  `json:"specifications" gorm:"type:jsonb"`
	Status          ProductStatus          `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	Featured        bool                   `json:"featured" gorm:"default:false;index"`
	SortOrder       int                    `json:"sort_order" gorm:"default:0"`
	SalesCount      int64                  `json:"sales_count" gorm:"default:0"`
}

// IsLicensed reports whether buying the product issues license records.
func (p *Product) IsLicensed() bool {
	return p.LicensedProduct != nil && *p.LicensedProduct != ""
}
