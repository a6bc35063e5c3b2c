// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"github.com/stripe/stripe-go/v74/refund"

	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

// MockDeclineMethod is the payment method the mock gateway always declines.
const MockDeclineMethod = "mock_decline"

// ErrPaymentDeclined is returned by gateways when the payment was refused.
// The wrapped message carries the provider's reason.
var ErrPaymentDeclined = errors.New("payment declined")

type ChargeRequest struct {
	Amount        float64
	Currency      string
	PaymentMethod string
	Description   string
	Metadata      map[string]string
}

type ChargeResult struct {
	Reference string
	Status    string
}

type RefundRequest struct {
	Reference string
	Amount    float64
	Currency  string
	Reason    string
}

// PaymentGateway charges and refunds orders.
type PaymentGateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (string, error)
}

// NewPaymentGateway returns the gateway selected by PAYMENT_PROVIDER.
func NewPaymentGateway(cfg config.PaymentConfig) (PaymentGateway, error) {
	switch cfg.Provider {
	case "", "mock":
		return NewMockGateway(), nil
	case "stripe":
		return NewStripeGateway(cfg.StripeSecretKey), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// MockGateway approves every charge except those made with MockDeclineMethod.
type MockGateway struct{}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Name() string {
	return "mock"
}

func (g *MockGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.PaymentMethod == MockDeclineMethod {
		return nil, fmt.Errorf("%w: card declined", ErrPaymentDeclined)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrPaymentDeclined)
	}

	reference, err := utils.GeneratePaymentReference("mock_ch_")
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment reference: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"reference": reference,
		"amount":    req.Amount,
		"currency":  req.Currency,
	}).Debug("Mock charge approved")

	return &ChargeResult{Reference: reference, Status: "succeeded"}, nil
}

func (g *MockGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	if req.Reference == "" {
		return "", errors.New("missing payment reference")
	}
	return utils.GeneratePaymentReference("mock_re_")
}

// StripeGateway confirms PaymentIntents synchronously with a saved payment
// method.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) Name() string {
	return "stripe"
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Description),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
		}
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: payment intent %s is %s", ErrPaymentDeclined, pi.ID, pi.Status)
	}

	return &ChargeResult{Reference: pi.ID, Status: string(pi.Status)}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.Reference),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount > 0 {
		params.Amount = stripe.Int64(toCents(req.Amount))
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to process refund: %w", err)
	}
	return r.ID, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
