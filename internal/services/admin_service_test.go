package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
)

func TestGrowth(t *testing.T) {
	assert.Equal(t, 50.0, growth(15, 10))
	assert.Equal(t, -100.0, growth(0, 4))
	assert.Equal(t, 0.0, growth(7, 0))
}

func TestCheckSettingType(t *testing.T) {
	assert.NoError(t, checkSettingType("string", "CuBIT"))
	assert.NoError(t, checkSettingType("number", 5.0))
	assert.NoError(t, checkSettingType("boolean", true))
	assert.NoError(t, checkSettingType("json", map[string]interface{}{"a": 1}))

	err := checkSettingType("number", "five")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Error(t, checkSettingType("boolean", "true"))
}
