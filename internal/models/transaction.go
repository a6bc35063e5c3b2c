// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a payment ledger entry for an order: the charge and any refund.
type Transaction struct {
	BaseModel
	OrderID          uuid.UUID         `json:"order_id" gorm:"type:uuid;not null;index"`
	TransactionType  TransactionType   `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	Amount           float64           `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency         string            `json:"currency" gorm:"size:3;default:'usd'"`
	Provider         string            `json:"provider" gorm:"size:20"`
	PaymentMethod    string            `json:"payment_method" gorm:"size:50"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	FailureReason    string            `json:"failure_reason,omitempty" gorm:"type:text"`
	ProcessedAt      *time.Time        `json:"processed_at"`
}
