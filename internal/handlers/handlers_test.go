package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/middleware"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/services"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

// licenseStore is a minimal in-memory LicenseRepository.
type licenseStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]models.License
}

func (s *licenseStore) FindByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *licenseStore) FindOne(_ context.Context, f repository.LicenseFilter) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if f.ExcludeID != nil && rec.ID == *f.ExcludeID {
			continue
		}
		if f.SystemIdentifier != "" && rec.SystemIdentifier != f.SystemIdentifier {
			continue
		}
		if f.ProductName != "" && rec.ProductName != f.ProductName {
			continue
		}
		if f.ActivationKey != "" && rec.ActivationKey != f.ActivationKey {
			continue
		}
		if f.LicenseStatus != "" && rec.LicenseStatus != f.LicenseStatus {
			continue
		}
		found := rec
		return &found, nil
	}
	return nil, repository.ErrNotFound
}

func (s *licenseStore) Insert(ctx context.Context, license *models.License) error {
	if license.ID == uuid.Nil {
		license.ID = uuid.New()
	}
	return s.Save(ctx, license)
}

func (s *licenseStore) Save(_ context.Context, license *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[license.ID] = *license
	return nil
}

func (s *licenseStore) List(_ context.Context, f repository.LicenseFilter, _ repository.ListOptions) ([]models.License, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.License
	for _, rec := range s.records {
		if f.OwnerID != nil && rec.OwnerID != *f.OwnerID {
			continue
		}
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (s *licenseStore) ExpireBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.records {
		if rec.ExpirationDate.Before(cutoff) && rec.MarkExpired() {
			s.records[id] = rec
			n++
		}
	}
	return n, nil
}

// noOrders satisfies OrderRepository for routes that never touch orders.
type noOrders struct{}

func (noOrders) FindOrder(context.Context, uuid.UUID) (*models.Order, error) {
	return nil, repository.ErrNotFound
}

func (noOrders) FindProduct(context.Context, uuid.UUID) (*models.Product, error) {
	return nil, repository.ErrNotFound
}

func (noOrders) FindUser(context.Context, uuid.UUID) (*models.User, error) {
	return nil, repository.ErrNotFound
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type LicenseAPITestSuite struct {
	suite.Suite
	router   *gin.Engine
	store    *licenseStore
	clock    *licensing.FixedClock
	customer uuid.UUID
	token    string
}

func (suite *LicenseAPITestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("handler-test-secret")
}

func (suite *LicenseAPITestSuite) SetupTest() {
	suite.store = &licenseStore{records: make(map[uuid.UUID]models.License)}
	suite.clock = &licensing.FixedClock{T: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	licenseService := services.NewLicenseService(suite.store, noOrders{}, services.WithClock(suite.clock))

	suite.customer = uuid.New()
	suite.token = suite.tokenFor(suite.customer, models.UserTypeCustomer)

	licenseHandler := NewLicenseHandler(licenseService)
	activationHandler := NewActivationHandler(licenseService)

	r := gin.New()
	v1 := r.Group("/v1")
	activation := v1.Group("/activation")
	{
		activation.GET("/check", activationHandler.Check)
		activation.POST("/check", activationHandler.Check)
		activation.POST("/activate", activationHandler.Activate)
	}
	licenses := v1.Group("/licenses")
	licenses.Use(middleware.AuthRequired())
	{
		licenses.GET("", licenseHandler.GetMyLicenses)
		licenses.GET("/:id", licenseHandler.GetMyLicense)
		licenses.POST("/:id/activate", licenseHandler.ActivateLicense)
	}
	admin := v1.Group("/admin/licenses")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.POST("/expire", licenseHandler.AdminExpireOverdue)
	}
	suite.router = r
}

func (suite *LicenseAPITestSuite) tokenFor(userID uuid.UUID, userType models.UserType) string {
	token, err := utils.GenerateJWT(userID, "tester", string(userType), 1)
	require.NoError(suite.T(), err)
	return token
}

func (suite *LicenseAPITestSuite) seed(owner uuid.UUID, key string, expires time.Time) models.License {
	license := models.License{
		OwnerID:        owner,
		ProductName:    licensing.ProductDesigner,
		ActivationKey:  key,
		DeviceStatus:   models.DeviceStatusInactive,
		LicenseStatus:  models.LicenseStatusInactive,
		ValidityType:   licensing.ValidityCustomDate,
		ExpirationDate: expires,
		PurchaseDate:   suite.clock.Now(),
	}
	license.ID = uuid.New()
	require.NoError(suite.T(), suite.store.Save(context.Background(), &license))
	return license
}

func (suite *LicenseAPITestSuite) do(method, path, token string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(suite.T(), json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (suite *LicenseAPITestSuite) checkQuery(systemID string) string {
	q := url.Values{}
	q.Set("system_identifier", systemID)
	q.Set("product_name", string(licensing.ProductDesigner))
	return "/v1/activation/check?" + q.Encode()
}

func (suite *LicenseAPITestSuite) TestCheckUnknownSystem() {
	code, resp := suite.do(http.MethodGet, suite.checkQuery("never-seen"), "", nil)

	assert.Equal(suite.T(), http.StatusOK, code)
	var status services.ActivationStatus
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &status))
	assert.False(suite.T(), status.Found)
	assert.False(suite.T(), status.DeviceActivation)
	assert.Equal(suite.T(), models.DeviceStatusInactive, status.ActivationStatus)
}

func (suite *LicenseAPITestSuite) TestCheckReadsQueryOnGetAndBodyOnPost() {
	code, resp := suite.do(http.MethodPost, "/v1/activation/check", "", gin.H{
		"system_identifier": "never-seen",
		"product_name":      licensing.ProductDesigner,
	})
	require.Equal(suite.T(), http.StatusOK, code)
	var status services.ActivationStatus
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &status))
	assert.False(suite.T(), status.Found)

	code, _ = suite.do(http.MethodGet, "/v1/activation/check", "", gin.H{
		"system_identifier": "never-seen",
		"product_name":      licensing.ProductDesigner,
	})
	assert.Equal(suite.T(), http.StatusBadRequest, code)
}

func (suite *LicenseAPITestSuite) TestCheckRejectsUnknownProduct() {
	code, resp := suite.do(http.MethodPost, "/v1/activation/check", "", gin.H{
		"system_identifier": "abc",
		"product_name":      "Photoshop",
	})

	assert.Equal(suite.T(), http.StatusBadRequest, code)
	require.NotNil(suite.T(), resp.Error)
	assert.Equal(suite.T(), "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(suite.T(), string(resp.Error.Details), "product_name")
}

func (suite *LicenseAPITestSuite) TestActivateByKeyThenCheck() {
	key := licensing.DeriveKey("WS-0042", licensing.ProductDesigner)
	suite.seed(suite.customer, key, suite.clock.Now().AddDate(1, 0, 0))

	code, resp := suite.do(http.MethodPost, "/v1/activation/activate", "", gin.H{
		"system_identifier": "ws-0042",
		"activation_key":    key,
		"product_name":      licensing.ProductDesigner,
	})
	require.Equal(suite.T(), http.StatusOK, code, resp.Error)

	var body struct {
		Activation ActivationResult `json:"activation"`
	}
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &body))
	assert.True(suite.T(), body.Activation.Activated)
	assert.Equal(suite.T(), "WS-0042", body.Activation.SystemIdentifier)
	assert.Equal(suite.T(), key, body.Activation.ActivationKey)

	code, resp = suite.do(http.MethodGet, suite.checkQuery("ws-0042"), "", nil)
	assert.Equal(suite.T(), http.StatusOK, code)
	var status services.ActivationStatus
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &status))
	assert.True(suite.T(), status.Found)
	assert.True(suite.T(), status.DeviceActivation)
	assert.Equal(suite.T(), models.LicenseStatusActive, status.LicenseStatus)
}

func (suite *LicenseAPITestSuite) TestActivateByKeyFromOtherSystem() {
	key := licensing.DeriveKey("WS-0042", licensing.ProductDesigner)
	suite.seed(suite.customer, key, suite.clock.Now().AddDate(1, 0, 0))

	code, resp := suite.do(http.MethodPost, "/v1/activation/activate", "", gin.H{
		"system_identifier": "WS-9999",
		"activation_key":    key,
		"product_name":      licensing.ProductDesigner,
	})

	assert.Equal(suite.T(), http.StatusConflict, code)
	require.NotNil(suite.T(), resp.Error)
	assert.Equal(suite.T(), "KEY_MISMATCH", resp.Error.Code)
}

func (suite *LicenseAPITestSuite) TestExpiredLicense() {
	key := licensing.DeriveKey("WS-0042", licensing.ProductDesigner)
	suite.seed(suite.customer, key, suite.clock.Now().AddDate(0, 0, -2))

	code, resp := suite.do(http.MethodPost, "/v1/activation/activate", "", gin.H{
		"system_identifier": "WS-0042",
		"activation_key":    key,
		"product_name":      licensing.ProductDesigner,
	})
	assert.Equal(suite.T(), http.StatusConflict, code)
	require.NotNil(suite.T(), resp.Error)
	assert.Equal(suite.T(), "LICENSE_EXPIRED", resp.Error.Code)
}

func (suite *LicenseAPITestSuite) TestOwnerActivation() {
	license := suite.seed(suite.customer, "TEMP-1-0-ABCDEF12", suite.clock.Now().AddDate(0, 6, 0))
	path := "/v1/licenses/" + license.ID.String() + "/activate"

	code, resp := suite.do(http.MethodPost, path, suite.token, gin.H{"system_identifier": " lab-pc-7 "})
	require.Equal(suite.T(), http.StatusOK, code, resp.Error)

	var body struct {
		License models.License `json:"license"`
	}
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &body))
	assert.Equal(suite.T(), "LAB-PC-7", body.License.SystemIdentifier)
	assert.Equal(suite.T(), licensing.DeriveKey("LAB-PC-7", licensing.ProductDesigner), body.License.ActivationKey)
	assert.True(suite.T(), body.License.DeviceActivation)

	code, resp = suite.do(http.MethodPost, path, suite.token, gin.H{"system_identifier": "lab-pc-8"})
	assert.Equal(suite.T(), http.StatusConflict, code)
	require.NotNil(suite.T(), resp.Error)
	assert.Equal(suite.T(), "ALREADY_ACTIVATED", resp.Error.Code)
}

func (suite *LicenseAPITestSuite) TestLicenseOwnership() {
	license := suite.seed(suite.customer, "TEMP-1-0-ABCDEF12", suite.clock.Now().AddDate(0, 6, 0))
	path := "/v1/licenses/" + license.ID.String()

	code, _ := suite.do(http.MethodGet, path, "", nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, code)

	stranger := suite.tokenFor(uuid.New(), models.UserTypeCustomer)
	code, resp := suite.do(http.MethodGet, path, stranger, nil)
	assert.Equal(suite.T(), http.StatusNotFound, code)
	require.NotNil(suite.T(), resp.Error)
	assert.Equal(suite.T(), "NOT_FOUND", resp.Error.Code)

	code, _ = suite.do(http.MethodGet, path, suite.token, nil)
	assert.Equal(suite.T(), http.StatusOK, code)

	code, _ = suite.do(http.MethodGet, "/v1/licenses/not-a-uuid", suite.token, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, code)
}

func (suite *LicenseAPITestSuite) TestAdminRoutesRequireAdmin() {
	suite.seed(suite.customer, "TEMP-1-0-ABCDEF12", suite.clock.Now().AddDate(0, 0, -1))

	code, _ := suite.do(http.MethodPost, "/v1/admin/licenses/expire", suite.token, nil)
	assert.Equal(suite.T(), http.StatusForbidden, code)

	admin := suite.tokenFor(uuid.New(), models.UserTypeAdmin)
	code, resp := suite.do(http.MethodPost, "/v1/admin/licenses/expire", admin, nil)
	require.Equal(suite.T(), http.StatusOK, code)

	var body struct {
		Expired int64 `json:"expired"`
	}
	require.NoError(suite.T(), json.Unmarshal(resp.Data, &body))
	assert.Equal(suite.T(), int64(1), body.Expired)
}

func TestLicenseAPISuite(t *testing.T) {
	suite.Run(t, new(LicenseAPITestSuite))
}
