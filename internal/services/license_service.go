// internal/services/license_service.go
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

type LicenseService struct {
	licenses  repository.LicenseRepository
	orders    repository.OrderRepository
	clock     licensing.Clock
	deriveKey licensing.KeyDeriver
	metrics   *metrics.Recorder
}

type LicenseServiceOption func(*LicenseService)

func WithClock(clock licensing.Clock) LicenseServiceOption {
	return func(s *LicenseService) { s.clock = clock }
}

func WithKeyDeriver(deriver licensing.KeyDeriver) LicenseServiceOption {
	return func(s *LicenseService) { s.deriveKey = deriver }
}

func WithMetrics(recorder *metrics.Recorder) LicenseServiceOption {
	return func(s *LicenseService) { s.metrics = recorder }
}

type CreateLicensesRequest struct {
	OwnerID            uuid.UUID `json:"owner_id" validate:"required"`
	OrderID            uuid.UUID `json:"order_id" validate:"required"`
	ProductID          uuid.UUID `json:"product_id" validate:"required"`
	Quantity           int       `json:"quantity" validate:"required,min=1,max=100"`
	ValidityType       string    `json:"validity_type" validate:"required,validity_type"`
	CustomValidityDate string    `json:"custom_validity_date,omitempty"`

	// ExpirationDate, when set, was resolved at checkout and is used as is.
	ExpirationDate *time.Time `json:"-"`
}

type ActivateLicenseRequest struct {
	SystemIdentifier string `json:"system_identifier" validate:"required,max=255"`
}

type AddDeviceRequest struct {
	OwnerID            *uuid.UUID `json:"owner_id,omitempty"`
	SystemIdentifier   string     `json:"system_identifier" validate:"required,max=255"`
	ProductName        string     `json:"product_name" validate:"required,licensed_product"`
	ValidityType       string     `json:"validity_type" validate:"required,validity_type"`
	CustomValidityDate string     `json:"custom_validity_date,omitempty"`
}

type CheckActivationRequest struct {
	SystemIdentifier string `json:"system_identifier" form:"system_identifier" validate:"required,max=255"`
	ProductName      string `json:"product_name" form:"product_name" validate:"required,licensed_product"`
}

type ActivateByKeyRequest struct {
	SystemIdentifier string `json:"system_identifier" validate:"required,max=255"`
	ActivationKey    string `json:"activation_key" validate:"required,max=64"`
	ProductName      string `json:"product_name" validate:"required,licensed_product"`
}

type LicenseSearchParams struct {
	utils.PaginationParams
	OwnerID          *uuid.UUID            `json:"owner_id,omitempty"`
	ProductID        *uuid.UUID            `json:"product_id,omitempty"`
	ProductName      licensing.ProductName `json:"product_name,omitempty"`
	Status           models.LicenseStatus  `json:"status,omitempty"`
	SystemIdentifier string                `json:"system_identifier,omitempty"`
}

// ActivationStatus is the answer returned to a client application at startup.
type ActivationStatus struct {
	Found            bool                 `json:"found"`
	ActivationStatus models.DeviceStatus  `json:"activation_status"`
	DeviceActivation bool                 `json:"device_activation"`
	LicenseStatus    models.LicenseStatus `json:"license_status,omitempty"`
	Expired          bool                 `json:"expired"`
	ExpirationDate   *time.Time           `json:"expiration_date,omitempty"`
	ValidityType     string               `json:"validity_type,omitempty"`
}

func NewLicenseService(licenses repository.LicenseRepository, orders repository.OrderRepository, opts ...LicenseServiceOption) *LicenseService {
	s := &LicenseService{
		licenses:  licenses,
		orders:    orders,
		clock:     licensing.NewSystemClock(nil),
		deriveKey: licensing.DeriveKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateLicenses issues quantity inactive seats with placeholder keys for a
// licensed product on an order. Units already inserted stay persisted if a
// later insert fails.
func (s *LicenseService) CreateLicenses(ctx context.Context, req *CreateLicensesRequest) ([]models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	var expiration time.Time
	if req.ExpirationDate != nil {
		expiration = *req.ExpirationDate
	} else {
		var err error
		expiration, err = licensing.ComputeExpiration(licensing.ValidityType(req.ValidityType), req.CustomValidityDate, s.clock)
		if err != nil {
			return nil, apperrors.Validation(err.Error())
		}
	}

	order, err := s.orders.FindOrder(ctx, req.OrderID)
	if err != nil {
		return nil, lookupError(err, "order not found")
	}
	if order.OwnerID != req.OwnerID {
		return nil, apperrors.NotFound("order not found")
	}

	product, err := s.orders.FindProduct(ctx, req.ProductID)
	if err != nil {
		return nil, lookupError(err, "product not found")
	}
	if !product.IsLicensed() {
		return nil, apperrors.Validationf("product %q does not issue licenses", product.Name)
	}

	now := s.clock.Now()
	created := make([]models.License, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		license := models.License{
			ActivationKey:    placeholderKey(now, i),
			OwnerID:          req.OwnerID,
			ProductName:      *product.LicensedProduct,
			DeviceStatus:     models.DeviceStatusInactive,
			DeviceActivation: false,
			ExpirationDate:   expiration,
			ValidityType:     licensing.ValidityType(req.ValidityType),
			LicenseStatus:    models.LicenseStatusInactive,
			PurchaseDate:     now,
			OrderID:          &order.ID,
			ProductID:        &product.ID,
		}

		if err := s.licenses.Insert(ctx, &license); err != nil {
			s.metrics.LicensesIssued(string(license.ProductName), len(created))
			logrus.WithFields(logrus.Fields{
				"order_id": order.ID,
				"product":  license.ProductName,
				"created":  len(created),
				"quantity": req.Quantity,
			}).WithError(err).Error("License issuance stopped partway")
			if repository.IsDuplicateKey(err) {
				return nil, apperrors.Conflict(apperrors.ReasonDuplicateKey, "placeholder activation key already exists").WithCause(err)
			}
			return nil, apperrors.Internal("failed to create license", err)
		}
		created = append(created, license)
	}

	s.metrics.LicensesIssued(string(*product.LicensedProduct), len(created))
	logrus.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"product":    *product.LicensedProduct,
		"quantity":   req.Quantity,
		"expiration": expiration,
	}).Info("Licenses issued")

	return created, nil
}

// ActivateLicense binds one of the owner's seats to a system and replaces its
// placeholder with the derived activation key.
func (s *LicenseService) ActivateLicense(ctx context.Context, licenseID, ownerID uuid.UUID, req *ActivateLicenseRequest) (license *models.License, err error) {
	defer func() { s.metrics.Activation(metrics.PathLicense, outcome(err)) }()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}
	systemID := licensing.NormalizeSystemIdentifier(req.SystemIdentifier)
	if systemID == "" {
		return nil, apperrors.Validation("system identifier is required")
	}

	license, err = s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, lookupError(err, "license not found")
	}
	if license.OwnerID != ownerID {
		return nil, apperrors.NotFound("license not found")
	}

	if license.IsActive() {
		return nil, apperrors.Conflict(apperrors.ReasonAlreadyActivated, "license is already activated")
	}

	if err := s.ensureSystemFree(ctx, systemID, license.ProductName, license.ID); err != nil {
		return nil, err
	}

	if s.expired(license) {
		s.persistExpiry(ctx, license)
		return nil, apperrors.Expired("license has expired")
	}

	key := s.deriveKey(systemID, license.ProductName)
	if key == "" {
		return nil, apperrors.Internal(fmt.Sprintf("no activation key derived for product %q", license.ProductName), nil)
	}

	license.MarkActive(systemID, key, s.clock.Now())
	if err := s.licenses.Save(ctx, license); err != nil {
		return nil, saveError(err)
	}

	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"owner_id":   ownerID,
		"product":    license.ProductName,
	}).Info("License activated")

	return license, nil
}

// AddDevice creates an already active license for a system without an order.
// Used by store administrators.
func (s *LicenseService) AddDevice(ctx context.Context, ownerID uuid.UUID, req *AddDeviceRequest) (license *models.License, err error) {
	defer func() { s.metrics.Activation(metrics.PathDirect, outcome(err)) }()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}
	if req.OwnerID != nil {
		if _, err := s.orders.FindUser(ctx, *req.OwnerID); err != nil {
			return nil, lookupError(err, "owner not found")
		}
		ownerID = *req.OwnerID
	}
	systemID := licensing.NormalizeSystemIdentifier(req.SystemIdentifier)
	if systemID == "" {
		return nil, apperrors.Validation("system identifier is required")
	}
	product := licensing.ProductName(req.ProductName)
	validity := licensing.ValidityType(req.ValidityType)

	expiration, err := licensing.ComputeExpiration(validity, req.CustomValidityDate, s.clock)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	_, err = s.licenses.FindOne(ctx, repository.LicenseFilter{SystemIdentifier: systemID, ProductName: product})
	switch {
	case err == nil:
		return nil, apperrors.Conflict(apperrors.ReasonDuplicateDevice, "a license already exists for this system and product")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Internal("failed to look up existing license", err)
	}

	key := s.deriveKey(systemID, product)
	if key == "" {
		return nil, apperrors.Internal(fmt.Sprintf("no activation key derived for product %q", product), nil)
	}

	now := s.clock.Now()
	license = &models.License{
		OwnerID:        ownerID,
		ProductName:    product,
		ExpirationDate: expiration,
		ValidityType:   validity,
		PurchaseDate:   now,
	}
	license.MarkActive(systemID, key, now)

	if err := s.licenses.Insert(ctx, license); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, apperrors.Conflict(apperrors.ReasonDuplicateDevice, "a license already exists for this system and product").WithCause(err)
		}
		return nil, apperrors.Internal("failed to create license", err)
	}

	s.metrics.LicensesIssued(string(product), 1)
	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"owner_id":   ownerID,
		"product":    product,
	}).Info("Device added")

	return license, nil
}

// CheckActivation reports whether a system holds a live license for a product.
// An unknown system is a normal negative answer. A record found past its
// expiration is switched off and stored before answering.
func (s *LicenseService) CheckActivation(ctx context.Context, req *CheckActivationRequest) (*ActivationStatus, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}
	systemID := licensing.NormalizeSystemIdentifier(req.SystemIdentifier)
	if systemID == "" {
		return nil, apperrors.Validation("system identifier is required")
	}

	license, err := s.licenses.FindOne(ctx, repository.LicenseFilter{
		SystemIdentifier: systemID,
		ProductName:      licensing.ProductName(req.ProductName),
	})
	if errors.Is(err, repository.ErrNotFound) {
		s.metrics.Check("not_found")
		return &ActivationStatus{
			Found:            false,
			ActivationStatus: models.DeviceStatusInactive,
			DeviceActivation: false,
		}, nil
	}
	if err != nil {
		s.metrics.Check("error")
		return nil, apperrors.Internal("failed to look up license", err)
	}

	status := &ActivationStatus{
		Found:          true,
		ExpirationDate: &license.ExpirationDate,
		ValidityType:   string(license.ValidityType),
	}

	if s.expired(license) {
		if license.MarkExpired() {
			if err := s.licenses.Save(ctx, license); err != nil {
				s.metrics.Check("error")
				return nil, apperrors.Internal("failed to store expired license", err)
			}
			s.metrics.Expired(1)
			logrus.WithFields(logrus.Fields{
				"license_id": license.ID,
				"product":    license.ProductName,
				"expired_at": license.ExpirationDate,
			}).Info("License expired on check")
		}
		status.Expired = true
	}

	status.ActivationStatus = license.DeviceStatus
	status.DeviceActivation = license.DeviceActivation
	status.LicenseStatus = license.LicenseStatus

	switch {
	case status.Expired:
		s.metrics.Check("expired")
	case license.DeviceActivation:
		s.metrics.Check("active")
	default:
		s.metrics.Check("inactive")
	}

	return status, nil
}

// ActivateByKey activates the license holding activationKey on a system. The
// key must be the one derived from that system, so placeholder keys and keys
// issued to other machines are rejected.
func (s *LicenseService) ActivateByKey(ctx context.Context, req *ActivateByKeyRequest) (license *models.License, err error) {
	defer func() { s.metrics.Activation(metrics.PathByKey, outcome(err)) }()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}
	systemID := licensing.NormalizeSystemIdentifier(req.SystemIdentifier)
	if systemID == "" {
		return nil, apperrors.Validation("system identifier is required")
	}
	key := licensing.NormalizeKey(req.ActivationKey)
	product := licensing.ProductName(req.ProductName)

	license, err = s.licenses.FindOne(ctx, repository.LicenseFilter{ActivationKey: key, ProductName: product})
	if err != nil {
		return nil, lookupError(err, "invalid activation key")
	}

	if license.SystemIdentifier != "" && license.SystemIdentifier != systemID {
		return nil, apperrors.Conflict(apperrors.ReasonKeyBoundElsewhere, "activation key is already used on another system")
	}

	if s.expired(license) {
		s.persistExpiry(ctx, license)
		return nil, apperrors.Expired("license has expired")
	}

	if s.deriveKey(systemID, product) != key {
		return nil, apperrors.Conflict(apperrors.ReasonKeyMismatch, "activation key does not match this system")
	}

	if license.IsActive() && license.SystemIdentifier == systemID {
		return license, nil
	}

	if err := s.ensureSystemFree(ctx, systemID, product, license.ID); err != nil {
		return nil, err
	}

	license.MarkActive(systemID, key, s.clock.Now())
	if err := s.licenses.Save(ctx, license); err != nil {
		return nil, saveError(err)
	}

	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"product":    product,
	}).Info("License activated by key")

	return license, nil
}

func (s *LicenseService) GetLicense(ctx context.Context, licenseID, ownerID uuid.UUID) (*models.License, error) {
	license, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, lookupError(err, "license not found")
	}
	if license.OwnerID != ownerID {
		return nil, apperrors.NotFound("license not found")
	}
	return license, nil
}

func (s *LicenseService) GetLicenseByID(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	license, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, lookupError(err, "license not found")
	}
	return license, nil
}

func (s *LicenseService) ListLicenses(ctx context.Context, params LicenseSearchParams) ([]models.License, int64, error) {
	filter := repository.LicenseFilter{
		OwnerID:          params.OwnerID,
		ProductID:        params.ProductID,
		ProductName:      params.ProductName,
		LicenseStatus:    params.Status,
		SystemIdentifier: licensing.NormalizeSystemIdentifier(params.SystemIdentifier),
		Search:           params.Search,
	}
	opts := repository.ListOptions{
		Page:      params.Page,
		Limit:     params.Limit,
		SortBy:    params.Sort,
		SortOrder: params.Order,
	}

	licenses, total, err := s.licenses.List(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to fetch licenses", err)
	}
	return licenses, total, nil
}

// DeactivateLicense releases an active seat so it can be activated on another
// system.
func (s *LicenseService) DeactivateLicense(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	license, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return nil, lookupError(err, "license not found")
	}
	if !license.IsActive() {
		return nil, apperrors.Conflict(apperrors.ReasonInvalidTransition, "only active licenses can be deactivated")
	}

	license.MarkInactive()
	license.SystemIdentifier = ""
	if err := s.licenses.Save(ctx, license); err != nil {
		return nil, saveError(err)
	}

	logrus.WithField("license_id", license.ID).Info("License deactivated")
	return license, nil
}

// ExpireOverdue flips every license whose expiration day has passed.
func (s *LicenseService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.licenses.ExpireBefore(ctx, licensing.Today(s.clock))
	if err != nil {
		return 0, apperrors.Internal("failed to expire licenses", err)
	}
	s.metrics.Expired(n)
	return n, nil
}

// IssuedCount returns how many seats an order already holds for a product.
func (s *LicenseService) IssuedCount(ctx context.Context, orderID, productID uuid.UUID) (int64, error) {
	_, total, err := s.licenses.List(ctx, repository.LicenseFilter{
		OrderID:   &orderID,
		ProductID: &productID,
	}, repository.ListOptions{Limit: 1})
	if err != nil {
		return 0, apperrors.Internal("failed to count licenses", err)
	}
	return total, nil
}

func (s *LicenseService) ensureSystemFree(ctx context.Context, systemID string, product licensing.ProductName, self uuid.UUID) error {
	_, err := s.licenses.FindOne(ctx, repository.LicenseFilter{
		SystemIdentifier: systemID,
		ProductName:      product,
		LicenseStatus:    models.LicenseStatusActive,
		ExcludeID:        &self,
	})
	switch {
	case err == nil:
		return apperrors.Conflict(apperrors.ReasonSystemAlreadyActive, "system is already activated for this product")
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return apperrors.Internal("failed to look up active licenses", err)
	}
}

func (s *LicenseService) expired(license *models.License) bool {
	return license.LicenseStatus == models.LicenseStatusExpired || licensing.IsExpired(license.ExpirationDate, s.clock)
}

func (s *LicenseService) persistExpiry(ctx context.Context, license *models.License) {
	if !license.MarkExpired() {
		return
	}
	if err := s.licenses.Save(ctx, license); err != nil {
		logrus.WithError(err).WithField("license_id", license.ID).Warn("Failed to store expired license")
		return
	}
	s.metrics.Expired(1)
}

func placeholderKey(at time.Time, index int) string {
	return fmt.Sprintf("TEMP-%d-%d-%s", at.UnixNano(), index, strings.ToUpper(uuid.NewString()[:8]))
}

func invalidRequest(err error) error {
	return apperrors.Validation("invalid request").WithCause(err)
}

func lookupError(err error, notFound string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(notFound)
	}
	return apperrors.Internal("database error", err)
}

func saveError(err error) error {
	if repository.IsDuplicateKey(err) {
		return apperrors.Conflict(apperrors.ReasonDuplicateKey, "activation key or system is already in use").WithCause(err)
	}
	return apperrors.Internal("failed to save license", err)
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.IsExpired(err):
		return "expired"
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return "invalid"
	case apperrors.KindNotFound:
		return "not_found"
	case apperrors.KindConflict:
		return "conflict"
	default:
		return "error"
	}
}
