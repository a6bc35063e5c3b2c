// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
)

type Order struct {
	BaseModel
	OwnerID          uuid.UUID   `json:"owner_id" gorm:"type:uuid;not null;index"`
	Status           OrderStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Total            float64     `json:"total" gorm:"type:decimal(10,2);not null"`
	Currency         string      `json:"currency" gorm:"size:3;default:'usd'"`
	PaymentProvider  string      `json:"payment_provider" gorm:"size:20"`
	PaymentReference string      `json:"payment_reference" gorm:"size:255"`
	BillingEmail     string      `json:"billing_email" gorm:"size:255"`
	PaidAt           *time.Time  `json:"paid_at"`
	FulfilledAt      *time.Time  `json:"fulfilled_at"`
	CancelledAt      *time.Time  `json:"cancelled_at"`
	RefundedAt       *time.Time  `json:"refunded_at"`
	RefundReason     string      `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Owner        *User         `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Items        []OrderItem   `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Licenses     []License     `json:"licenses,omitempty" gorm:"foreignKey:OrderID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:OrderID"`
}

// OrderItem is one line of an order. ExpirationDate is resolved at checkout
// and reused when licenses are issued later.
type OrderItem struct {
	BaseModel
	OrderID            uuid.UUID              `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID          uuid.UUID              `json:"product_id" gorm:"type:uuid;not null;index"`
	ProductName        string                 `json:"product_name" gorm:"size:255;not null"`
	Quantity           int                    `json:"quantity" gorm:"not null"`
	UnitPrice          float64                `json:"unit_price" gorm:"type:decimal(10,2);not null"`
	ValidityType       licensing.ValidityType `json:"validity_type,omitempty" gorm:"type:varchar(20)"`
	CustomValidityDate string                 `json:"custom_validity_date,omitempty" gorm:"size:40"`
	ExpirationDate     *time.Time             `json:"expiration_date,omitempty"`

	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// TransitionTo moves the order to next and stamps the matching timestamp.
// It reports false, leaving the order untouched, for a transition the order
// state machine does not allow.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) bool {
	if !o.Status.CanTransitionTo(next) {
		return false
	}
	o.Status = next
	switch next {
	case OrderStatusPaid:
		o.PaidAt = &at
	case OrderStatusFulfilled:
		o.FulfilledAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	case OrderStatusRefunded:
		o.RefundedAt = &at
	}
	return true
}
