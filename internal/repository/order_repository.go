// internal/repository/order_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/database"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

// OrderRepository resolves the orders, catalog entries and owners that
// license issuance hangs off.
type OrderRepository interface {
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type OrderFilter struct {
	OwnerID *uuid.UUID
	Status  models.OrderStatus
}

// OrderStore is the full persistence surface used by checkout.
type OrderStore interface {
	OrderRepository
	// CreateOrder inserts the order together with its items.
	CreateOrder(ctx context.Context, order *models.Order) error
	SaveOrder(ctx context.Context, order *models.Order) error
	// SaveRefund stores a refunded order and expires its seats atomically. It
	// returns how many seats were expired.
	SaveRefund(ctx context.Context, order *models.Order) (int64, error)
	// GetOrder loads an order with items, licenses and transactions.
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter, opts ListOptions) ([]models.Order, int64, error)
	RecordTransaction(ctx context.Context, txn *models.Transaction) error
	IncrementSales(ctx context.Context, productID uuid.UUID, quantity int) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderStore {
	return &orderRepository{db: db}
}

var orderSortFields = map[string]string{
	"created_at": "created_at",
	"total":      "total",
	"status":     "status",
}

func (r *orderRepository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

func (r *orderRepository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *orderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit("Owner", "Items.Product").Create(order).Error)
}

func (r *orderRepository) SaveOrder(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Omit(clauseAssociations...).Save(order).Error)
}

func (r *orderRepository) SaveRefund(ctx context.Context, order *models.Order) (int64, error) {
	var revoked int64
	err := database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Omit(clauseAssociations...).Save(order).Error; err != nil {
			return err
		}

		result := tx.Model(&models.License{}).
			Where("order_id = ? AND (license_status <> ? OR device_activation = ?)", order.ID, models.LicenseStatusExpired, true).
			Updates(expiredColumns())
		if result.Error != nil {
			return fmt.Errorf("revoke order licenses: %w", result.Error)
		}
		revoked = result.RowsAffected
		return nil
	})
	return revoked, translate(err)
}

var clauseAssociations = []string{"Owner", "Items", "Licenses", "Transactions"}

func (r *orderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("Licenses").
		Preload("Transactions").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, filter OrderFilter, opts ListOptions) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	sortField, ok := orderSortFields[opts.SortBy]
	if !ok {
		sortField = "created_at"
	}
	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	var orders []models.Order
	err := query.Preload("Items").
		Order(sortField + " " + direction).
		Offset(opts.offset()).
		Limit(opts.limit()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (r *orderRepository) RecordTransaction(ctx context.Context, txn *models.Transaction) error {
	return translate(r.db.WithContext(ctx).Create(txn).Error)
}

func (r *orderRepository) IncrementSales(ctx context.Context, productID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("sales_count", gorm.Expr("sales_count + ?", quantity)).Error
}
