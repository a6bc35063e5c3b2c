package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

type OrderServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	licenses *memLicenseRepo
	store    *memOrderRepo
	notifier *recordingNotifier
	clock    *licensing.FixedClock
	license  *LicenseService
	service  *OrderService

	owner    uuid.UUID
	designer *models.Product
	kit      *models.Product
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.licenses = newMemLicenseRepo()
	s.store = newMemOrderRepo()
	s.store.licenses = s.licenses
	s.notifier = &recordingNotifier{}
	s.clock = &licensing.FixedClock{T: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)}
	s.license = NewLicenseService(s.licenses, s.store, WithClock(s.clock))
	s.service = NewOrderService(s.store, s.license, NewMockGateway(), s.notifier, "USD", nil)

	s.owner = uuid.New()
	s.designer = s.store.addProduct("designer", licensing.ProductDesigner)
	s.kit = s.store.addProduct("cube-kit", "")
}

func (s *OrderServiceTestSuite) checkout(method string, items ...CheckoutItem) (*models.Order, error) {
	return s.service.Checkout(s.ctx, s.owner, &CheckoutRequest{
		Items:         items,
		PaymentMethod: method,
		BillingEmail:  "buyer@example.com",
	})
}

func (s *OrderServiceTestSuite) TestCheckoutIssuesLicenses() {
	order, err := s.checkout("pm_card_visa",
		CheckoutItem{ProductID: s.designer.ID, Quantity: 2, ValidityType: string(licensing.ValidityLifetime)},
		CheckoutItem{ProductID: s.kit.ID, Quantity: 1},
	)
	s.Require().NoError(err)

	s.Equal(models.OrderStatusFulfilled, order.Status)
	s.Equal(297.0, order.Total)
	s.Equal("usd", order.Currency)
	s.Equal("mock", order.PaymentProvider)
	s.True(strings.HasPrefix(order.PaymentReference, "mock_ch_"))
	s.NotNil(order.PaidAt)
	s.NotNil(order.FulfilledAt)
	s.Len(order.Licenses, 2)

	stored := s.store.order(order.ID)
	s.Equal(models.OrderStatusFulfilled, stored.Status)

	for _, l := range order.Licenses {
		s.Equal(licensing.ProductDesigner, l.ProductName)
		s.Equal(models.LicenseStatusInactive, l.LicenseStatus)
		s.Equal(s.owner, l.OwnerID)
		s.True(l.ExpirationDate.Equal(licensing.LifetimeExpiration))
	}

	txns := s.store.transactionsFor(order.ID)
	s.Require().Len(txns, 1)
	s.Equal(models.TransactionTypeCharge, txns[0].TransactionType)
	s.Equal(models.TransactionStatusCompleted, txns[0].Status)

	s.Equal(1, s.notifier.confirmations)
	s.Equal(2, s.notifier.seats)
	s.Equal(1, s.notifier.adminNotices)

	product, err := s.store.FindProduct(s.ctx, s.designer.ID)
	s.Require().NoError(err)
	s.EqualValues(2, product.SalesCount)
}

func (s *OrderServiceTestSuite) TestCheckoutCustomDateValidity() {
	order, err := s.checkout("pm_card_visa",
		CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: string(licensing.ValidityCustomDate), CustomValidityDate: "2026-12-31"},
	)
	s.Require().NoError(err)
	s.Require().Len(order.Licenses, 1)
	s.Equal(time.Date(2026, 12, 31, 23, 59, 59, 999_000_000, time.UTC), order.Licenses[0].ExpirationDate)
	s.Equal("2026-12-31", order.Items[0].CustomValidityDate)
}

func (s *OrderServiceTestSuite) TestCheckoutDeclined() {
	_, err := s.checkout(MockDeclineMethod,
		CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: string(licensing.ValidityLifetime)},
	)
	s.Require().Error(err)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
	s.Equal(apperrors.ReasonPaymentDeclined, apperrors.ReasonOf(err))

	orders, total, err := s.service.ListOrders(s.ctx, OrderSearchParams{OwnerID: &s.owner})
	s.Require().NoError(err)
	s.Require().EqualValues(1, total)
	s.Equal(models.OrderStatusCancelled, orders[0].Status)
	s.NotNil(orders[0].CancelledAt)

	txns := s.store.transactionsFor(orders[0].ID)
	s.Require().Len(txns, 1)
	s.Equal(models.TransactionStatusFailed, txns[0].Status)
	s.NotEmpty(txns[0].FailureReason)

	licenses, _, err := s.license.ListLicenses(s.ctx, LicenseSearchParams{OwnerID: &s.owner})
	s.Require().NoError(err)
	s.Empty(licenses)
	s.Zero(s.notifier.confirmations)
}

func (s *OrderServiceTestSuite) TestCheckoutGatewayError() {
	service := NewOrderService(s.store, s.license, brokenGateway{}, s.notifier, "usd", nil)
	_, err := service.Checkout(s.ctx, s.owner, &CheckoutRequest{
		Items:         []CheckoutItem{{ProductID: s.kit.ID, Quantity: 1}},
		PaymentMethod: "pm_card_visa",
		BillingEmail:  "buyer@example.com",
	})
	s.Require().Error(err)
	s.Equal(apperrors.KindInternal, apperrors.KindOf(err))

	orders, _, err := s.service.ListOrders(s.ctx, OrderSearchParams{OwnerID: &s.owner})
	s.Require().NoError(err)
	s.Require().Len(orders, 1)
	s.Equal(models.OrderStatusPending, orders[0].Status)
}

func (s *OrderServiceTestSuite) TestCheckoutValidation() {
	archived := s.store.addProduct("legacy", licensing.ProductAnalyzer)
	archived.Status = models.ProductStatusArchived

	tests := []struct {
		name string
		item CheckoutItem
		kind apperrors.Kind
	}{
		{"licensed item without validity", CheckoutItem{ProductID: s.designer.ID, Quantity: 1}, apperrors.KindValidation},
		{"custom date in the past", CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: "CUSTOM_DATE", CustomValidityDate: "2026-03-09"}, apperrors.KindValidation},
		{"custom date missing", CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: "CUSTOM_DATE"}, apperrors.KindValidation},
		{"unknown validity", CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: "FOREVER"}, apperrors.KindValidation},
		{"zero quantity", CheckoutItem{ProductID: s.kit.ID, Quantity: 0}, apperrors.KindValidation},
		{"archived product", CheckoutItem{ProductID: archived.ID, Quantity: 1, ValidityType: "LIFETIME"}, apperrors.KindValidation},
		{"unknown product", CheckoutItem{ProductID: uuid.New(), Quantity: 1}, apperrors.KindNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.checkout("pm_card_visa", tt.item)
			s.Require().Error(err)
			s.Equal(tt.kind, apperrors.KindOf(err))
		})
	}

	_, total, err := s.service.ListOrders(s.ctx, OrderSearchParams{})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *OrderServiceTestSuite) TestRefundRevokesLicenses() {
	order, err := s.checkout("pm_card_visa",
		CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: string(licensing.ValidityLifetime)},
	)
	s.Require().NoError(err)
	seat := order.Licenses[0]

	_, err = s.license.ActivateLicense(s.ctx, seat.ID, s.owner, &ActivateLicenseRequest{SystemIdentifier: "HOST-1"})
	s.Require().NoError(err)

	refunded, err := s.service.RefundOrder(s.ctx, order.ID, &RefundOrderRequest{Reason: "customer request"})
	s.Require().NoError(err)
	s.Equal(models.OrderStatusRefunded, refunded.Status)
	s.Equal("customer request", refunded.RefundReason)
	s.NotNil(refunded.RefundedAt)

	revoked := s.licenses.get(seat.ID)
	s.Equal(models.LicenseStatusExpired, revoked.LicenseStatus)
	s.False(revoked.DeviceActivation)

	status, err := s.license.CheckActivation(s.ctx, &CheckActivationRequest{SystemIdentifier: "HOST-1", ProductName: string(licensing.ProductDesigner)})
	s.Require().NoError(err)
	s.True(status.Found)
	s.True(status.Expired)
	s.Equal(models.DeviceStatusInactive, status.ActivationStatus)

	txns := s.store.transactionsFor(order.ID)
	s.Require().Len(txns, 2)
	s.Equal(models.TransactionTypeRefund, txns[1].TransactionType)
	s.Equal(1, s.notifier.refunds)

	_, err = s.service.RefundOrder(s.ctx, order.ID, &RefundOrderRequest{Reason: "again"})
	s.Require().Error(err)
	s.Equal(apperrors.ReasonInvalidTransition, apperrors.ReasonOf(err))
}

func (s *OrderServiceTestSuite) TestRefundRequiresReason() {
	_, err := s.service.RefundOrder(s.ctx, uuid.New(), &RefundOrderRequest{})
	s.Require().Error(err)
	s.Equal(apperrors.KindValidation, apperrors.KindOf(err))
}

func (s *OrderServiceTestSuite) TestFulfillOrderIssuesOnlyMissingSeats() {
	order := s.store.addOrder(s.owner)
	order.Items = []models.OrderItem{{
		OrderID:      order.ID,
		ProductID:    s.designer.ID,
		ProductName:  s.designer.Name,
		Quantity:     3,
		UnitPrice:    s.designer.Price,
		ValidityType: licensing.ValidityLifetime,
	}}

	_, err := s.license.CreateLicenses(s.ctx, &CreateLicensesRequest{
		OwnerID:      s.owner,
		OrderID:      order.ID,
		ProductID:    s.designer.ID,
		Quantity:     1,
		ValidityType: string(licensing.ValidityLifetime),
	})
	s.Require().NoError(err)

	fulfilled, err := s.service.FulfillOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusFulfilled, fulfilled.Status)

	count, err := s.license.IssuedCount(s.ctx, order.ID, s.designer.ID)
	s.Require().NoError(err)
	s.EqualValues(3, count)

	_, err = s.service.FulfillOrder(s.ctx, order.ID)
	s.Require().Error(err)
	s.Equal(apperrors.ReasonInvalidTransition, apperrors.ReasonOf(err))
}

func (s *OrderServiceTestSuite) TestFulfillOrderKeepsCheckoutExpiration() {
	s.licenses.insertErr = errors.New("connection lost")
	_, err := s.checkout("pm_card_visa",
		CheckoutItem{ProductID: s.designer.ID, Quantity: 2, ValidityType: string(licensing.ValidityCustomDate), CustomValidityDate: "2026-03-10"},
	)
	s.Require().Error(err)

	paid, total, err := s.service.ListOrders(s.ctx, OrderSearchParams{Status: models.OrderStatusPaid})
	s.Require().NoError(err)
	s.Require().EqualValues(1, total)
	order := paid[0]
	want := time.Date(2026, 3, 10, 23, 59, 59, 999_000_000, time.UTC)
	s.Require().NotNil(order.Items[0].ExpirationDate)
	s.Equal(want, *order.Items[0].ExpirationDate)

	s.clock.Set(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC))
	fulfilled, err := s.service.FulfillOrder(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusFulfilled, fulfilled.Status)
	s.Require().Len(fulfilled.Licenses, 2)
	for _, license := range fulfilled.Licenses {
		s.Equal(want, license.ExpirationDate)
		s.Equal(licensing.ValidityCustomDate, license.ValidityType)
	}
}

func (s *OrderServiceTestSuite) TestRefundLeavesSeatsWhenOrderSaveFails() {
	order, err := s.checkout("pm_card_visa",
		CheckoutItem{ProductID: s.designer.ID, Quantity: 1, ValidityType: string(licensing.ValidityLifetime)},
	)
	s.Require().NoError(err)
	seat := order.Licenses[0]
	_, err = s.license.ActivateLicense(s.ctx, seat.ID, s.owner, &ActivateLicenseRequest{SystemIdentifier: "HOST-1"})
	s.Require().NoError(err)

	s.store.saveErr = errors.New("connection lost")
	_, err = s.service.RefundOrder(s.ctx, order.ID, &RefundOrderRequest{Reason: "customer request"})
	s.Require().Error(err)
	s.Equal(apperrors.KindInternal, apperrors.KindOf(err))

	s.Equal(models.LicenseStatusActive, s.licenses.get(seat.ID).LicenseStatus)
	s.Equal(models.OrderStatusFulfilled, s.store.order(order.ID).Status)
}

func (s *OrderServiceTestSuite) TestCancelOrder() {
	pending := s.store.addOrder(s.owner)
	pending.Status = models.OrderStatusPending

	_, err := s.service.CancelOrder(s.ctx, pending.ID, uuid.New())
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))

	cancelled, err := s.service.CancelOrder(s.ctx, pending.ID, s.owner)
	s.Require().NoError(err)
	s.Equal(models.OrderStatusCancelled, cancelled.Status)

	paid := s.store.addOrder(s.owner)
	_, err = s.service.CancelOrder(s.ctx, paid.ID, uuid.Nil)
	s.Require().Error(err)
	s.Equal(apperrors.ReasonInvalidTransition, apperrors.ReasonOf(err))
}

func (s *OrderServiceTestSuite) TestGetOrderHidesOtherOwners() {
	order := s.store.addOrder(uuid.New())

	_, err := s.service.GetOrder(s.ctx, order.ID, s.owner)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))

	got, err := s.service.GetOrder(s.ctx, order.ID, uuid.Nil)
	s.Require().NoError(err)
	s.Equal(order.ID, got.ID)
}

func TestOrderServiceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func TestOrderTransitions(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	order := &models.Order{Status: models.OrderStatusPending}
	assert.False(t, order.TransitionTo(models.OrderStatusFulfilled, at))
	assert.False(t, order.TransitionTo(models.OrderStatusRefunded, at))
	assert.Equal(t, models.OrderStatusPending, order.Status)

	require.True(t, order.TransitionTo(models.OrderStatusPaid, at))
	assert.Equal(t, &at, order.PaidAt)
	assert.False(t, order.TransitionTo(models.OrderStatusCancelled, at))

	require.True(t, order.TransitionTo(models.OrderStatusFulfilled, at))
	require.True(t, order.TransitionTo(models.OrderStatusRefunded, at))
	assert.NotNil(t, order.RefundedAt)

	for _, next := range []models.OrderStatus{models.OrderStatusPending, models.OrderStatusPaid, models.OrderStatusFulfilled, models.OrderStatusCancelled} {
		assert.False(t, order.TransitionTo(next, at), "refunded -> %s", next)
	}
}

func TestMockGateway(t *testing.T) {
	gateway := NewMockGateway()
	ctx := context.Background()

	result, err := gateway.Charge(ctx, ChargeRequest{Amount: 10, Currency: "usd", PaymentMethod: "pm_card_visa"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Reference, "mock_ch_"))
	assert.Equal(t, "succeeded", result.Status)

	_, err = gateway.Charge(ctx, ChargeRequest{Amount: 10, Currency: "usd", PaymentMethod: MockDeclineMethod})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaymentDeclined))

	ref, err := gateway.Refund(ctx, RefundRequest{Reference: result.Reference, Amount: 10})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "mock_re_"))

	_, err = gateway.Refund(ctx, RefundRequest{})
	assert.Error(t, err)
}

func TestNewPaymentGateway(t *testing.T) {
	gateway, err := NewPaymentGateway(config.PaymentConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", gateway.Name())

	gateway, err = NewPaymentGateway(config.PaymentConfig{Provider: "stripe", StripeSecretKey: "sk_test_123"})
	require.NoError(t, err)
	assert.Equal(t, "stripe", gateway.Name())

	_, err = NewPaymentGateway(config.PaymentConfig{Provider: "paypal"})
	assert.Error(t, err)
}
