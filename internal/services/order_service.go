// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/metrics"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type OrderService struct {
	store    repository.OrderStore
	licenses *LicenseService
	gateway  PaymentGateway
	notifier OrderNotifier
	metrics  *metrics.Recorder
	currency string
}

type CheckoutItem struct {
	ProductID          uuid.UUID `json:"product_id" validate:"required"`
	Quantity           int       `json:"quantity" validate:"required,min=1,max=100"`
	ValidityType       string    `json:"validity_type,omitempty" validate:"omitempty,validity_type"`
	CustomValidityDate string    `json:"custom_validity_date,omitempty"`
}

type CheckoutRequest struct {
	Items         []CheckoutItem `json:"items" validate:"required,min=1,max=20,dive"`
	PaymentMethod string         `json:"payment_method" validate:"required,max=100"`
	BillingEmail  string         `json:"billing_email" validate:"required,email"`
}

type RefundOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type OrderSearchParams struct {
	utils.PaginationParams
	OwnerID *uuid.UUID         `json:"owner_id,omitempty"`
	Status  models.OrderStatus `json:"status,omitempty"`
}

func NewOrderService(store repository.OrderStore, licenses *LicenseService, gateway PaymentGateway, notifier OrderNotifier, currency string, recorder *metrics.Recorder) *OrderService {
	if currency == "" {
		currency = "usd"
	}
	return &OrderService{
		store:    store,
		licenses: licenses,
		gateway:  gateway,
		notifier: notifier,
		metrics:  recorder,
		currency: strings.ToLower(currency),
	}
}

// Checkout creates a pending order, charges it and issues licenses for every
// licensed item. A declined payment cancels the order. When issuance fails the
// order stays paid and FulfillOrder can finish it.
func (s *OrderService) Checkout(ctx context.Context, ownerID uuid.UUID, req *CheckoutRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	items, total, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OwnerID:         ownerID,
		Status:          models.OrderStatusPending,
		Total:           total,
		Currency:        s.currency,
		PaymentProvider: s.gateway.Name(),
		BillingEmail:    req.BillingEmail,
		Items:           items,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, apperrors.Internal("failed to create order", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"owner_id": ownerID,
		"total":    total,
	})

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		Amount:        order.Total,
		Currency:      order.Currency,
		PaymentMethod: req.PaymentMethod,
		Description:   "CuBIT Dynamics order " + order.ID.String(),
		Metadata: map[string]string{
			"order_id": order.ID.String(),
			"owner_id": ownerID.String(),
		},
	})
	if err != nil {
		s.recordCharge(ctx, order, req.PaymentMethod, "", err)
		if errors.Is(err, ErrPaymentDeclined) {
			order.TransitionTo(models.OrderStatusCancelled, s.now())
			if saveErr := s.store.SaveOrder(ctx, order); saveErr != nil {
				log.WithError(saveErr).Error("Failed to cancel declined order")
			}
			s.metrics.Order(string(models.OrderStatusCancelled))
			log.WithError(err).Warn("Payment declined")
			return nil, apperrors.Conflict(apperrors.ReasonPaymentDeclined, err.Error())
		}
		log.WithError(err).Error("Payment gateway error")
		return nil, apperrors.Internal("payment failed", err)
	}

	order.TransitionTo(models.OrderStatusPaid, s.now())
	order.PaymentReference = result.Reference
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, apperrors.Internal("failed to update order", err)
	}
	s.recordCharge(ctx, order, req.PaymentMethod, result.Reference, nil)
	log.WithField("reference", result.Reference).Info("Order paid")

	if err := s.notifier.NotifyAdminNewOrder(order); err != nil {
		log.WithError(err).Warn("Failed to notify admin of new order")
	}

	return s.fulfill(ctx, order)
}

// FulfillOrder finishes license issuance for a paid order. Seats already
// issued are not duplicated.
func (s *OrderService) FulfillOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order not found")
	}
	if order.Status != models.OrderStatusPaid {
		return nil, invalidTransition(order.Status, models.OrderStatusFulfilled)
	}
	return s.fulfill(ctx, order)
}

func (s *OrderService) fulfill(ctx context.Context, order *models.Order) (*models.Order, error) {
	var issued []models.License
	for _, item := range order.Items {
		if item.ValidityType == "" {
			continue
		}

		existing, err := s.licenses.IssuedCount(ctx, order.ID, item.ProductID)
		if err != nil {
			return nil, err
		}
		missing := item.Quantity - int(existing)
		if missing <= 0 {
			continue
		}

		licenses, err := s.licenses.CreateLicenses(ctx, &CreateLicensesRequest{
			OwnerID:            order.OwnerID,
			OrderID:            order.ID,
			ProductID:          item.ProductID,
			Quantity:           missing,
			ValidityType:       string(item.ValidityType),
			CustomValidityDate: item.CustomValidityDate,
			ExpirationDate:     item.ExpirationDate,
		})
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Error("Order left paid: license issuance failed")
			return nil, err
		}
		issued = append(issued, licenses...)
	}

	if !order.TransitionTo(models.OrderStatusFulfilled, s.now()) {
		return nil, invalidTransition(order.Status, models.OrderStatusFulfilled)
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, apperrors.Internal("failed to update order", err)
	}
	s.metrics.Order(string(models.OrderStatusFulfilled))

	for _, item := range order.Items {
		if err := s.store.IncrementSales(ctx, item.ProductID, item.Quantity); err != nil {
			logrus.WithError(err).WithField("product_id", item.ProductID).Warn("Failed to update sales count")
		}
	}

	if err := s.notifier.SendPurchaseConfirmation(order, issued); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to send purchase confirmation")
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"licenses": len(issued),
	}).Info("Order fulfilled")

	order.Licenses = append(order.Licenses, issued...)
	return order, nil
}

// CancelOrder cancels a pending order. A zero ownerID skips the ownership
// check for admins.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, ownerID uuid.UUID) (*models.Order, error) {
	order, err := s.findOrder(ctx, orderID, ownerID)
	if err != nil {
		return nil, err
	}
	if !order.TransitionTo(models.OrderStatusCancelled, s.now()) {
		return nil, invalidTransition(order.Status, models.OrderStatusCancelled)
	}
	if err := s.store.SaveOrder(ctx, order); err != nil {
		return nil, apperrors.Internal("failed to update order", err)
	}
	s.metrics.Order(string(models.OrderStatusCancelled))
	return order, nil
}

// RefundOrder refunds a paid or fulfilled order and revokes its licenses.
func (s *OrderService) RefundOrder(ctx context.Context, orderID uuid.UUID, req *RefundOrderRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order not found")
	}
	if !order.Status.CanTransitionTo(models.OrderStatusRefunded) {
		return nil, invalidTransition(order.Status, models.OrderStatusRefunded)
	}

	reference, err := s.gateway.Refund(ctx, RefundRequest{
		Reference: order.PaymentReference,
		Amount:    order.Total,
		Currency:  order.Currency,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, apperrors.Internal("refund failed", err)
	}

	now := s.now()
	order.TransitionTo(models.OrderStatusRefunded, now)
	order.RefundReason = req.Reason
	revoked, err := s.store.SaveRefund(ctx, order)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"order_id":  order.ID,
			"reference": reference,
		}).Error("Refund issued but order not updated")
		return nil, apperrors.Internal("failed to update order", err)
	}
	s.metrics.Expired(revoked)
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"revoked":  revoked,
	}).Info("Order licenses revoked")

	txn := &models.Transaction{
		OrderID:          order.ID,
		TransactionType:  models.TransactionTypeRefund,
		Amount:           order.Total,
		Currency:         order.Currency,
		Provider:         s.gateway.Name(),
		PaymentReference: reference,
		Status:           models.TransactionStatusCompleted,
		ProcessedAt:      &now,
	}
	if err := s.store.RecordTransaction(ctx, txn); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("Failed to record refund transaction")
	}

	s.metrics.Order(string(models.OrderStatusRefunded))

	if err := s.notifier.SendRefundNotification(order); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Warn("Failed to send refund notification")
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, ownerID uuid.UUID) (*models.Order, error) {
	return s.findOrder(ctx, orderID, ownerID)
}

func (s *OrderService) ListOrders(ctx context.Context, params OrderSearchParams) ([]models.Order, int64, error) {
	orders, total, err := s.store.ListOrders(ctx, repository.OrderFilter{
		OwnerID: params.OwnerID,
		Status:  params.Status,
	}, repository.ListOptions{
		Page:      params.Page,
		Limit:     params.Limit,
		SortBy:    params.Sort,
		SortOrder: params.Order,
	})
	if err != nil {
		return nil, 0, apperrors.Internal("failed to fetch orders", err)
	}
	return orders, total, nil
}

func (s *OrderService) buildItems(ctx context.Context, reqItems []CheckoutItem) ([]models.OrderItem, float64, error) {
	items := make([]models.OrderItem, 0, len(reqItems))
	var total float64

	for _, reqItem := range reqItems {
		product, err := s.store.FindProduct(ctx, reqItem.ProductID)
		if err != nil {
			return nil, 0, lookupError(err, "product not found")
		}
		if product.Status != models.ProductStatusActive {
			return nil, 0, apperrors.Validationf("product %q is not available", product.Name)
		}

		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    reqItem.Quantity,
			UnitPrice:   product.Price,
		}

		if product.IsLicensed() {
			validity := licensing.ValidityType(reqItem.ValidityType)
			expiration, err := licensing.ComputeExpiration(validity, reqItem.CustomValidityDate, s.licenses.clock)
			if err != nil {
				return nil, 0, apperrors.Validationf("%s: %v", product.Name, err)
			}
			item.ValidityType = validity
			item.ExpirationDate = &expiration
			if validity == licensing.ValidityCustomDate {
				item.CustomValidityDate = reqItem.CustomValidityDate
			}
		}

		total += item.Subtotal()
		items = append(items, item)
	}

	return items, roundPrice(total), nil
}

func (s *OrderService) findOrder(ctx context.Context, orderID, ownerID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order not found")
	}
	if ownerID != uuid.Nil && order.OwnerID != ownerID {
		return nil, apperrors.NotFound("order not found")
	}
	return order, nil
}

func (s *OrderService) recordCharge(ctx context.Context, order *models.Order, method, reference string, chargeErr error) {
	now := s.now()
	txn := &models.Transaction{
		OrderID:          order.ID,
		TransactionType:  models.TransactionTypeCharge,
		Amount:           order.Total,
		Currency:         order.Currency,
		Provider:         s.gateway.Name(),
		PaymentMethod:    method,
		PaymentReference: reference,
		Status:           models.TransactionStatusCompleted,
		ProcessedAt:      &now,
	}
	if chargeErr != nil {
		txn.Status = models.TransactionStatusFailed
		txn.FailureReason = chargeErr.Error()
	}
	if err := s.store.RecordTransaction(ctx, txn); err != nil {
		logrus.WithError(err).WithField("order_id", order.ID).Error("Failed to record charge transaction")
	}
}

func (s *OrderService) now() time.Time {
	return s.licenses.clock.Now()
}

func invalidTransition(from, to models.OrderStatus) error {
	return apperrors.Conflict(apperrors.ReasonInvalidTransition, fmt.Sprintf("order cannot move from %s to %s", from, to))
}
