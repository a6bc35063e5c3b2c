package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
)

func writeAppError(t *testing.T, err error) (int, APIError) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	AppErrorResponse(c, err)

	var resp struct {
		Success bool     `json:"success"`
		Error   APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return w.Code, resp.Error
}

func TestAppErrorResponseStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", apperrors.Validation("bad input"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", apperrors.NotFound("license not found"), http.StatusNotFound, "NOT_FOUND"},
		{"expired", apperrors.Expired("license has expired"), http.StatusConflict, "LICENSE_EXPIRED"},
		{"bare conflict", apperrors.Conflict("", "busy"), http.StatusConflict, "CONFLICT"},
		{"internal", apperrors.Internal("db down", errors.New("dial tcp")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"untagged", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, apiErr := writeAppError(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, apiErr.Code)
		})
	}
}

func TestAppErrorResponseHidesInternalCause(t *testing.T) {
	_, apiErr := writeAppError(t, apperrors.Internal("db down", errors.New("password authentication failed")))
	assert.NotContains(t, apiErr.Message, "password")
}

func TestAppErrorResponseValidationDetails(t *testing.T) {
	req := struct {
		ProductName string `json:"product_name" validate:"required,licensed_product"`
	}{ProductName: "Unknown Product"}

	err := apperrors.Validation("invalid request").WithCause(ValidateStruct(&req))
	status, apiErr := writeAppError(t, err)

	assert.Equal(t, http.StatusBadRequest, status)
	details, ok := apiErr.Details.([]interface{})
	require.True(t, ok, "details should be a list, got %T", apiErr.Details)
	require.Len(t, details, 1)
	field := details[0].(map[string]interface{})
	assert.Equal(t, "product_name", field["field"])
	assert.Equal(t, "licensed_product", field["tag"])
}
