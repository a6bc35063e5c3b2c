// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
)

// License is one activatable seat of a licensed product. The desktop clients
// still call it a "device".
type License struct {
	BaseModel
	SystemIdentifier string                 `json:"system_identifier" gorm:"size:255;index"`
	ActivationKey    string                 `json:"activation_key" gorm:"size:64;not null;uniqueIndex"`
	OwnerID          uuid.UUID              `json:"owner_id" gorm:"type:uuid;not null;index"`
	ProductName      licensing.ProductName  `json:"product_name" gorm:"type:varchar(50);not null;index"`
	DeviceStatus     DeviceStatus           `json:"device_status" gorm:"type:varchar(20);not null;default:'inactive'"`
	DeviceActivation bool                   `json:"device_activation" gorm:"not null;default:false"`
	ExpirationDate   time.Time              `json:"expiration_date" gorm:"not null;index"`
	ValidityType     licensing.ValidityType `json:"validity_type" gorm:"type:varchar(20);not null"`
	LicenseStatus    LicenseStatus          `json:"license_status" gorm:"type:varchar(20);not null;default:'inactive';index"`
	PurchaseDate     time.Time              `json:"purchase_date" gorm:"not null"`
	ActivatedAt      *time.Time             `json:"activated_at"`
	OrderID          *uuid.UUID             `json:"order_id" gorm:"type:uuid;index"`
	ProductID        *uuid.UUID             `json:"product_id" gorm:"type:uuid;index"`

	// Relationships
	Owner   *User    `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Order   *Order   `json:"-" gorm:"foreignKey:OrderID"`
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (l *License) IsActive() bool {
	return l.LicenseStatus == LicenseStatusActive
}

// MarkActive binds the license to a system and flips every status field on.
func (l *License) MarkActive(systemIdentifier, activationKey string, at time.Time) {
	l.SystemIdentifier = systemIdentifier
	l.ActivationKey = activationKey
	l.DeviceStatus = DeviceStatusActive
	l.DeviceActivation = true
	l.LicenseStatus = LicenseStatusActive
	l.ActivatedAt = &at
}

// MarkExpired turns the device off and records the expired status. It reports
// whether anything changed.
func (l *License) MarkExpired() bool {
	if l.DeviceStatus == DeviceStatusInactive && !l.DeviceActivation && l.LicenseStatus == LicenseStatusExpired {
		return false
	}
	l.DeviceStatus = DeviceStatusInactive
	l.DeviceActivation = false
	l.LicenseStatus = LicenseStatusExpired
	return true
}

// MarkInactive releases an active license so it can be activated again.
func (l *License) MarkInactive() {
	l.DeviceStatus = DeviceStatusInactive
	l.DeviceActivation = false
	l.LicenseStatus = LicenseStatusInactive
}
